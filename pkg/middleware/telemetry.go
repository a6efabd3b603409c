package middleware

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
)

// Telemetry counts events per topic.
type Telemetry struct {
	logger *zap.Logger

	priceEventCounter         atomic.Int64
	signalEventCounter        atomic.Int64
	orderEventCounter         atomic.Int64
	fillEventCounter          atomic.Int64
	noteEventCounter          atomic.Int64
	orderRejectedEventCounter atomic.Int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telemetry{
		logger: logger,
	}
}

func (t *Telemetry) WithPrice(handler bus.EventHandler[common.Price]) bus.EventHandler[common.Price] {
	return func(ctx context.Context, price common.Price) {
		t.priceEventCounter.Add(1)
		handler(ctx, price)
	}
}

func (t *Telemetry) WithSignal(handler bus.EventHandler[common.Signal]) bus.EventHandler[common.Signal] {
	return func(ctx context.Context, signal common.Signal) {
		t.signalEventCounter.Add(1)
		handler(ctx, signal)
	}
}

func (t *Telemetry) WithOrder(handler bus.EventHandler[common.Order]) bus.EventHandler[common.Order] {
	return func(ctx context.Context, order common.Order) {
		t.orderEventCounter.Add(1)
		handler(ctx, order)
	}
}

func (t *Telemetry) WithFill(handler bus.EventHandler[common.Fill]) bus.EventHandler[common.Fill] {
	return func(ctx context.Context, fill common.Fill) {
		t.fillEventCounter.Add(1)
		handler(ctx, fill)
	}
}

func (t *Telemetry) WithNote(handler bus.EventHandler[common.Note]) bus.EventHandler[common.Note] {
	return func(ctx context.Context, note common.Note) {
		t.noteEventCounter.Add(1)
		handler(ctx, note)
	}
}

func (t *Telemetry) WithOrderRejected(handler bus.EventHandler[common.OrderRejected]) bus.EventHandler[common.OrderRejected] {
	return func(ctx context.Context, rejected common.OrderRejected) {
		t.orderRejectedEventCounter.Add(1)
		handler(ctx, rejected)
	}
}

// Counts returns the number of events seen per topic.
func (t *Telemetry) Counts() map[string]int64 {
	return map[string]int64{
		common.TopicMarketLast:    t.priceEventCounter.Load(),
		common.TopicSignalsTarget: t.signalEventCounter.Load(),
		common.TopicOrdersPlanned: t.orderEventCounter.Load(),
		common.TopicExecFills:     t.fillEventCounter.Load(),
		common.TopicStrategyLog:   t.noteEventCounter.Load(),
		common.TopicOrderRejected: t.orderRejectedEventCounter.Load(),
	}
}

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("price_events", t.priceEventCounter.Load()),
		zap.Int64("signal_events", t.signalEventCounter.Load()),
		zap.Int64("order_events", t.orderEventCounter.Load()),
		zap.Int64("fill_events", t.fillEventCounter.Load()),
		zap.Int64("note_events", t.noteEventCounter.Load()),
		zap.Int64("order_rejected_events", t.orderRejectedEventCounter.Load()))
}
