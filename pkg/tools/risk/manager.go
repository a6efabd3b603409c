package risk

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/indicators"
	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

const (
	ComponentName   = "risk"
	defaultQtyScale = 6
)

// Rejection reasons reported in Decision.Reason.
const (
	ReasonMissingPrice   = "missing price"
	ReasonMaxOpen        = "max open reached"
	ReasonPortfolioCap   = "portfolio allocation cap"
	ReasonZeroQty        = "zero quantity"
	ReasonNothingToClose = "nothing to close"
	ReasonShortsDisabled = "shorts disabled"
	ReasonOutOfRange     = "size out of range"
)

type Decision struct {
	Accepted bool
	Order    common.Order
	Reason   string
}

// Manager sizes target signals into bounded orders. Its view of open quantity
// and exposure is its own estimate, built from the orders it emits, the flat
// fills it observes and the rejections the ledger reports; the ledger stays
// authoritative.
type Manager struct {
	logger *zap.Logger
	router *bus.Router

	balance fixed.Point
	limits  Limits

	inlineFills bool
	qtyScale    int
	atrWindow   int
	now         func() time.Time

	mu        sync.Mutex
	lastPrice map[string]fixed.Point
	tracked   map[string]fixed.Point
	exposure  fixed.Point
	atr       map[string]*indicators.Atr
}

func NewManager(logger *zap.Logger, router *bus.Router, balance fixed.Point, limits Limits, options ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		logger:      logger.Named(ComponentName),
		router:      router,
		balance:     balance,
		limits:      limits,
		inlineFills: true,
		qtyScale:    defaultQtyScale,
		now:         time.Now,
		lastPrice:   make(map[string]fixed.Point),
		tracked:     make(map[string]fixed.Point),
		atr:         make(map[string]*indicators.Atr),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Attach subscribes to prices, signals, fills and rejections and returns the listener loop.
func (m *Manager) Attach() func(context.Context) error {
	prices := bus.SubscribeAndListen(m.router, common.TopicMarketLast, m.OnPrice)
	signals := bus.SubscribeAndListen(m.router, common.TopicSignalsTarget, func(ctx context.Context, s common.Signal) {
		m.OnSignal(ctx, s)
	})
	fills := bus.SubscribeAndListen(m.router, common.TopicExecFills, m.OnFill)
	rejections := bus.SubscribeAndListen(m.router, common.TopicOrderRejected, m.OnRejected)

	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return prices(gctx) })
		g.Go(func() error { return signals(gctx) })
		g.Go(func() error { return fills(gctx) })
		g.Go(func() error { return rejections(gctx) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (m *Manager) OnPrice(_ context.Context, p common.Price) {
	if p.Symbol == "" || !p.Price.IsPos() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice[p.Symbol] = p.Price

	if m.atrWindow > 0 {
		atr, ok := m.atr[p.Symbol]
		if !ok {
			atr = indicators.NewAtr(m.atrWindow)
			m.atr[p.Symbol] = atr
		}
		atr.OnPrice(p.Price)
	}
}

// OnSignal gates and sizes a signal. Accepted orders are published on
// orders.planned and, with inline fills, confirmed on exec.fills at the last price.
func (m *Manager) OnSignal(_ context.Context, s common.Signal) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	px, ok := m.lastPrice[s.Symbol]
	if !ok {
		return m.reject(s, ReasonMissingPrice, true)
	}

	if s.Side != common.SideFlat {
		if m.liveCount() >= m.limits.MaxOpenTrades {
			return m.reject(s, ReasonMaxOpen, true)
		}
		if m.exposure.Gt(m.balance.Mul(m.limits.MaxPortfolioAllocationPct)) {
			return m.reject(s, ReasonPortfolioCap, true)
		}
	}

	if !s.Atr.IsPos() {
		if atr, ok := m.atr[s.Symbol]; ok && atr.Ready() {
			s.Atr = atr.AverageTrueRange()
		}
	}

	qty, err := m.size(s, px)
	if err != nil {
		m.logger.Warn("unable to size signal", zap.String("symbol", s.Symbol), zap.Error(err))
		return m.reject(s, ReasonOutOfRange, true)
	}
	if !qty.IsPos() {
		return m.reject(s, ReasonZeroQty, false)
	}

	switch s.Side {
	case common.SideFlat:
		held := m.tracked[s.Symbol].Abs()
		if !held.IsPos() {
			return m.reject(s, ReasonNothingToClose, false)
		}
		order := m.newOrder(s, common.SideFlat, held, px)
		order.StopLoss, order.TakeProfit = nil, nil
		m.emit(order, px)
		m.release(held, px)
		m.tracked[s.Symbol] = fixed.Zero
		return Decision{Accepted: true, Order: order}

	case common.SideLong:
		order := m.newOrder(s, common.SideLong, qty, px)
		m.emit(order, px)
		m.tracked[s.Symbol] = m.tracked[s.Symbol].Add(qty)
		m.exposure = m.exposure.Add(qty.Mul(px))
		return Decision{Accepted: true, Order: order}

	case common.SideShort:
		if !m.limits.AllowShorts {
			return m.reject(s, ReasonShortsDisabled, true)
		}
		order := m.newOrder(s, common.SideShort, qty, px)
		m.emit(order, px)
		m.tracked[s.Symbol] = m.tracked[s.Symbol].Sub(qty)
		m.exposure = m.exposure.Add(qty.Mul(px))
		return Decision{Accepted: true, Order: order}
	}

	return m.reject(s, "unknown side", true)
}

// OnFill releases the tracked quantity of flat fills that other components
// originated, such as stop-loss flattens, so their slots can be reused.
func (m *Manager) OnFill(_ context.Context, f common.Fill) {
	if !f.IsFilled() || f.Side != common.SideFlat || f.OrderSource == ComponentName {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.tracked[f.Symbol]
	if held.IsZero() {
		return
	}

	closing := held.Abs()
	if f.Qty.IsPos() && f.Qty.Lt(closing) {
		closing = f.Qty
	}

	m.release(closing, m.fillPrice(f))

	if held.IsPos() {
		m.tracked[f.Symbol] = held.Sub(closing)
	} else {
		m.tracked[f.Symbol] = held.Add(closing)
	}

	m.logger.Debug("released tracked quantity",
		zap.String("symbol", f.Symbol),
		zap.String("qty", closing.String()),
		zap.String("reason", f.Reason))
}

// OnRejected undoes the tracked quantity and exposure of an open or add of its
// own that the ledger refused, so the slot it held is freed.
func (m *Manager) OnRejected(_ context.Context, r common.OrderRejected) {
	f := r.OriginalFill
	if f.OrderSource != ComponentName || f.Side == common.SideFlat || !f.Qty.IsPos() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.tracked[f.Symbol]
	var undone fixed.Point
	switch {
	case f.Side == common.SideLong && held.IsPos():
		undone = fixed.Min(held, f.Qty)
		m.tracked[f.Symbol] = held.Sub(undone)
	case f.Side == common.SideShort && held.IsNeg():
		undone = fixed.Min(held.Abs(), f.Qty)
		m.tracked[f.Symbol] = held.Add(undone)
	default:
		return
	}
	m.release(undone, m.fillPrice(f))

	m.logger.Debug("undid rejected order",
		zap.String("symbol", f.Symbol),
		zap.String("qty", undone.String()),
		zap.String("reason", r.Reason))
}

// Tracked returns the signed quantity the manager believes is open for symbol.
func (m *Manager) Tracked(symbol string) fixed.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracked[symbol]
}

func (m *Manager) LastPrice(symbol string) (fixed.Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	px, ok := m.lastPrice[symbol]
	return px, ok
}

func (m *Manager) Exposure() fixed.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exposure
}

func (m *Manager) liveCount() int {
	n := 0
	for _, qty := range m.tracked {
		if !qty.IsZero() {
			n++
		}
	}
	return n
}

// size is the lower of the risk budget spread over the atr and the per-trade
// allocation. A quotient beyond the decimal range is reported, except for the
// risk budget over a tiny atr, where the allocation cap binds.
func (m *Manager) size(s common.Signal, px fixed.Point) (fixed.Point, error) {
	byAllocation, err := m.balance.Mul(m.limits.PerTradeAllocationPct).DivE(px)
	if err != nil {
		return fixed.Zero, err
	}

	target := fixed.Zero
	if s.Atr.IsPos() {
		var c fixed.Calc
		byRisk := c.Div(m.balance.Mul(m.limits.RiskPct), s.Atr)
		target = c.Mul(byRisk, strengthMultiplier(s.Strength))
		if c.Err() != nil {
			target = byAllocation
		}
	}

	return fixed.Min(fixed.Max(fixed.Zero, target), byAllocation).Round(m.qtyScale), nil
}

// release lowers the exposure by qty at px, never below zero.
func (m *Manager) release(qty, px fixed.Point) {
	notional, err := qty.MulE(px)
	if err != nil || notional.Gt(m.exposure) {
		notional = m.exposure
	}
	m.exposure = m.exposure.Sub(notional)
}

func (m *Manager) fillPrice(f common.Fill) fixed.Point {
	if f.Price.IsZero() {
		return m.lastPrice[f.Symbol]
	}
	return f.Price
}

func (m *Manager) newOrder(s common.Signal, side common.Side, qty, px fixed.Point) common.Order {
	return common.Order{
		Symbol:      s.Symbol,
		Side:        side,
		Qty:         qty,
		Price:       px,
		StopLoss:    s.StopLoss,
		TakeProfit:  s.TakeProfit,
		Reason:      s.Comment,
		Source:      ComponentName,
		ExecutionID: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   m.now(),
	}
}

func (m *Manager) emit(order common.Order, px fixed.Point) {
	m.logger.Info("order planned",
		zap.String("symbol", order.Symbol),
		zap.Stringer("side", order.Side),
		zap.String("qty", order.Qty.String()),
		zap.String("price", px.String()))

	m.router.Publish(common.TopicOrdersPlanned, order)
	if !m.inlineFills {
		return
	}

	fill := common.FillFromOrder(order, px)
	fill.Source = ComponentName
	fill.ExecutionID = order.ExecutionID
	fill.TraceID = utility.CreateTraceID()
	fill.TimeStamp = m.now()
	m.router.Publish(common.TopicExecFills, fill)
}

func (m *Manager) reject(s common.Signal, reason string, publish bool) Decision {
	m.logger.Debug("signal rejected", zap.String("symbol", s.Symbol), zap.Stringer("side", s.Side), zap.String("reason", reason))
	if publish {
		m.router.Publish(common.TopicStrategyLog, common.Note{
			Note:        "risk: " + reason,
			Symbol:      s.Symbol,
			Fields:      map[string]any{"side": s.Side.String()},
			Source:      ComponentName,
			ExecutionID: utility.GetExecutionID(),
			TraceID:     utility.CreateTraceID(),
			TimeStamp:   m.now(),
		})
	}
	return Decision{Reason: reason}
}
