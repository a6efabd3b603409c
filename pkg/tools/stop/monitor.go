package stop

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

const ComponentName = "stop"

// Monitor watches prices against the stop-loss and take-profit levels carried
// by fills and emits one flatten order per breach.
type Monitor struct {
	logger *zap.Logger
	router *bus.Router
	now    func() time.Time

	mu        sync.Mutex
	states    map[string]*State
	lastPrice map[string]fixed.Point
}

func NewMonitor(logger *zap.Logger, router *bus.Router) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		logger:    logger.Named(ComponentName),
		router:    router,
		now:       time.Now,
		states:    make(map[string]*State),
		lastPrice: make(map[string]fixed.Point),
	}
}

func (m *Monitor) Attach() func(context.Context) error {
	prices := bus.SubscribeAndListen(m.router, common.TopicMarketLast, m.OnPrice)
	fills := bus.SubscribeAndListen(m.router, common.TopicExecFills, m.OnFill)

	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return prices(gctx) })
		g.Go(func() error { return fills(gctx) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (m *Monitor) OnPrice(_ context.Context, p common.Price) {
	if p.Symbol == "" || !p.Price.IsPos() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastPrice[p.Symbol] = p.Price

	st := m.state(p.Symbol)
	if st.Status != StatusArmed || st.Qty.IsZero() {
		return
	}

	reason, hit := st.breach(p.Price)
	if !hit {
		return
	}

	order := common.Order{
		Symbol:      p.Symbol,
		Side:        common.SideFlat,
		Qty:         st.Qty.Abs(),
		Price:       p.Price,
		Reason:      reason,
		Source:      ComponentName,
		ExecutionID: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   m.now(),
	}
	st.Status = StatusFlattening

	m.logger.Info("level breached",
		zap.String("symbol", p.Symbol),
		zap.String("reason", reason),
		zap.String("price", p.Price.String()),
		zap.String("qty", order.Qty.String()))
	m.router.Publish(common.TopicOrdersPlanned, order)
}

func (m *Monitor) OnFill(_ context.Context, f common.Fill) {
	if !f.IsFilled() || f.Symbol == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(f.Symbol)

	if f.Side == common.SideFlat {
		held := st.Qty.Abs()
		if !f.Qty.IsPos() || f.Qty.Gte(held) {
			st.Qty = fixed.Zero
		} else if st.Qty.IsPos() {
			st.Qty = st.Qty.Sub(f.Qty)
		} else {
			st.Qty = st.Qty.Add(f.Qty)
		}
		if st.Qty.IsZero() {
			st.AvgPx = fixed.Zero
		}
		st.StopLoss, st.TakeProfit = nil, nil
		st.Status = StatusFlat
		return
	}

	price := f.Price
	if price.IsZero() {
		price = m.lastPrice[f.Symbol]
	}

	trade := f.Qty
	if f.Side == common.SideShort {
		trade = trade.Neg()
	}

	var c fixed.Calc
	next := c.Add(st.Qty, trade)
	avg := st.AvgPx

	switch {
	case st.Qty.IsZero() || st.Qty.Sign() == next.Sign():
		total := c.Add(st.Qty.Abs(), trade.Abs())
		if total.IsPos() {
			avg = c.Div(c.Add(c.Mul(st.Qty.Abs(), st.AvgPx), c.Mul(trade.Abs(), price)), total)
		}
	case next.IsZero():
		avg = fixed.Zero
	default:
		avg = price
	}

	if err := c.Err(); err != nil {
		m.logger.Warn("ignoring fill out of range",
			zap.String("symbol", f.Symbol),
			zap.String("qty", f.Qty.String()),
			zap.String("price", price.String()),
			zap.Error(err))
		return
	}
	st.Qty, st.AvgPx = next, avg

	if f.StopLoss != nil {
		sl := *f.StopLoss
		st.StopLoss = &sl
	}
	if f.TakeProfit != nil {
		tp := *f.TakeProfit
		st.TakeProfit = &tp
	}

	if st.Qty.IsZero() {
		st.Status = StatusFlat
	} else {
		st.Status = StatusArmed
	}
}

// State returns a copy of the monitor's view of symbol.
func (m *Monitor) State(symbol string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok {
		return State{}
	}
	return *st
}

func (m *Monitor) state(symbol string) *State {
	st, ok := m.states[symbol]
	if !ok {
		st = &State{}
		m.states[symbol] = st
	}
	return st
}
