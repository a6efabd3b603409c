package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorPrices
	MonitorSignals
	MonitorOrders
	MonitorFills
	MonitorNotes
	MonitorOrdersRejected
)

// Monitor logs the events selected by flags.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithPrice(handler bus.EventHandler[common.Price]) bus.EventHandler[common.Price] {
	return func(ctx context.Context, price common.Price) {
		if m.enabled(MonitorPrices) {
			m.logger.Info("event", zap.String("topic", common.TopicMarketLast),
				zap.String("symbol", price.Symbol),
				zap.String("price", price.Price.String()))
		}
		handler(ctx, price)
	}
}

func (m *Monitor) WithSignal(handler bus.EventHandler[common.Signal]) bus.EventHandler[common.Signal] {
	return func(ctx context.Context, signal common.Signal) {
		if m.enabled(MonitorSignals) {
			m.logger.Info("event", zap.String("topic", common.TopicSignalsTarget),
				zap.String("symbol", signal.Symbol),
				zap.Stringer("side", signal.Side),
				zap.String("strength", signal.Strength.String()),
				zap.String("atr", signal.Atr.String()))
		}
		handler(ctx, signal)
	}
}

func (m *Monitor) WithOrder(handler bus.EventHandler[common.Order]) bus.EventHandler[common.Order] {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrders) {
			m.logger.Info("event", zap.String("topic", common.TopicOrdersPlanned),
				zap.String("symbol", order.Symbol),
				zap.Stringer("side", order.Side),
				zap.String("qty", order.Qty.String()),
				zap.String("reason", order.Reason),
				zap.String("src", order.Source))
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithFill(handler bus.EventHandler[common.Fill]) bus.EventHandler[common.Fill] {
	return func(ctx context.Context, fill common.Fill) {
		if m.enabled(MonitorFills) {
			m.logger.Info("event", zap.String("topic", common.TopicExecFills),
				zap.String("status", fill.Status),
				zap.String("symbol", fill.Symbol),
				zap.Stringer("side", fill.Side),
				zap.String("qty", fill.Qty.String()),
				zap.String("price", fill.Price.String()))
		}
		handler(ctx, fill)
	}
}

func (m *Monitor) WithNote(handler bus.EventHandler[common.Note]) bus.EventHandler[common.Note] {
	return func(ctx context.Context, note common.Note) {
		if m.enabled(MonitorNotes) {
			m.logger.Info("event", zap.String("topic", common.TopicStrategyLog),
				zap.String("note", note.Note),
				zap.String("symbol", note.Symbol),
				zap.Any("fields", note.Fields))
		}
		handler(ctx, note)
	}
}

func (m *Monitor) WithOrderRejected(handler bus.EventHandler[common.OrderRejected]) bus.EventHandler[common.OrderRejected] {
	return func(ctx context.Context, rejected common.OrderRejected) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Warn("event", zap.String("topic", common.TopicOrderRejected),
				zap.String("symbol", rejected.OriginalFill.Symbol),
				zap.Stringer("side", rejected.OriginalFill.Side),
				zap.String("qty", rejected.OriginalFill.Qty.String()),
				zap.String("reason", rejected.Reason))
		}
		handler(ctx, rejected)
	}
}
