package metrics

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

type Report struct {
	StartDate     time.Time
	EndDate       time.Time
	Snapshots     int
	InitialEquity fixed.Point
	FinalEquity   fixed.Point
	MaxDrawdown   fixed.Point
	SharpeLike    fixed.Point
	HasSharpe     bool
	Fills         int
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       fixed.Point
	TotalProfit   fixed.Point
	AverageProfit fixed.Point
	MedianProfit  fixed.Point
}

func (r Report) Print(logger *zap.Logger) {
	fields := []zap.Field{
		zap.Time("start", r.StartDate),
		zap.Time("end", r.EndDate),
		zap.Int("snapshots", r.Snapshots),
		zap.String("initial_equity", r.InitialEquity.String()),
		zap.String("final_equity", r.FinalEquity.String()),
		zap.String("max_drawdown", fmt.Sprintf("%s%%", r.MaxDrawdown)),
	}
	if r.HasSharpe {
		fields = append(fields, zap.String("sharpe_like", r.SharpeLike.String()))
	}
	logger.Info("equity report", fields...)

	logger.Info("trade statistics",
		zap.Int("fills", r.Fills),
		zap.Int("total_trades", r.TotalTrades),
		zap.Int("winning_trades", r.WinningTrades),
		zap.Int("losing_trades", r.LosingTrades),
		zap.String("win_rate", fmt.Sprintf("%s%%", r.WinRate)),
		zap.String("total_profit", r.TotalProfit.String()),
		zap.String("average_profit", r.AverageProfit.String()),
		zap.String("median_profit", r.MedianProfit.String()))
}
