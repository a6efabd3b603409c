package metrics

import (
	"context"
	"sort"
	"sync"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

var sharpeEpsilon = fixed.FromInt(1, 9)

// Audit collects equity snapshots and trade rows and summarizes them.
type Audit struct {
	mu       sync.Mutex
	equities []common.EquitySnapshot
	trades   []common.TradeRow
}

func NewAudit() *Audit {
	return &Audit{}
}

// Load builds an audit from everything a journal reader holds.
func Load(ctx context.Context, r journal.Reader) (*Audit, error) {
	equities, err := r.LoadEquities(ctx)
	if err != nil {
		return nil, err
	}
	trades, err := r.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}
	return &Audit{equities: equities, trades: trades}, nil
}

func (a *Audit) OnEquity(_ context.Context, snapshot common.EquitySnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.equities = append(a.equities, snapshot)
}

func (a *Audit) OnTrade(_ context.Context, row common.TradeRow) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trades = append(a.trades, row)
}

func (a *Audit) GenerateReport() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := Report{}

	if len(a.equities) > 0 {
		equities := make([]common.EquitySnapshot, len(a.equities))
		copy(equities, a.equities)
		sort.SliceStable(equities, func(i, j int) bool {
			return equities[i].TimeStamp.Before(equities[j].TimeStamp)
		})

		report.StartDate = equities[0].TimeStamp
		report.EndDate = equities[len(equities)-1].TimeStamp
		report.InitialEquity = equities[0].Equity
		report.FinalEquity = equities[len(equities)-1].Equity
		report.Snapshots = len(equities)

		peak := equities[0].Equity
		returns := make([]fixed.Point, 0, len(equities))
		for idx, snap := range equities {
			if snap.Equity.Gt(peak) {
				peak = snap.Equity
			}
			if peak.IsPos() {
				drawdown := peak.Sub(snap.Equity).Div(peak)
				if drawdown.Gt(report.MaxDrawdown) {
					report.MaxDrawdown = drawdown
				}
			}

			ret := fixed.Zero
			if idx > 0 && !equities[idx-1].Equity.IsZero() {
				ret = snap.Equity.Div(equities[idx-1].Equity).Sub(fixed.One)
			}
			returns = append(returns, ret)
		}
		report.MaxDrawdown = report.MaxDrawdown.MulInt(100).Round(2)

		if len(returns) > 1 {
			mean := fixed.Mean(returns)
			std := fixed.SampleStdDev(returns, mean)
			n := fixed.FromInt(len(returns), 0).Sqrt()
			report.SharpeLike = mean.Div(std.Add(sharpeEpsilon)).Mul(n).Round(4)
			report.HasSharpe = true
		}
	}

	// Every row that moved realized PnL counts as one trade outcome.
	var outcomes []fixed.Point
	for _, row := range a.trades {
		if row.RealizedDelta.IsZero() {
			continue
		}
		outcomes = append(outcomes, row.RealizedDelta)
		if row.RealizedDelta.IsPos() {
			report.WinningTrades++
		} else {
			report.LosingTrades++
		}
	}
	report.Fills = len(a.trades)
	report.TotalTrades = len(outcomes)
	if report.TotalTrades > 0 {
		report.WinRate = fixed.FromInt(report.WinningTrades, 0).DivInt(report.TotalTrades).MulInt(100).Round(2)
		report.TotalProfit = fixed.Sum(outcomes)
		report.AverageProfit = fixed.Mean(outcomes).Round(8)
		report.MedianProfit = fixed.Median(outcomes)
	}

	return report
}
