package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

const componentName = "ledger"

type Config struct {
	StartingCash fixed.Point
	AllowShorts  bool
}

// Ledger is the authoritative book of cash, positions and realized PnL.
// It consumes market.last and exec.fills, persists a trade row per fill and an
// equity snapshot per tick or fill, and publishes order.rejected when a fill
// breaks a cash or short-selling constraint.
type Ledger struct {
	logger  *zap.Logger
	router  *bus.Router
	journal journal.Journal

	// mu guards account; every handler holds it from its first read to its last write.
	mu      sync.Mutex
	account *Account

	now func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time source of trade rows and snapshots.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func NewLedger(logger *zap.Logger, router *bus.Router, j journal.Journal, cfg Config, options ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if j == nil {
		j = journal.NewMemory()
	}

	l := &Ledger{
		logger:  logger.Named(componentName),
		router:  router,
		journal: j,
		account: NewAccount(cfg.StartingCash, cfg.AllowShorts),
		now:     time.Now,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Attach subscribes to prices and fills immediately and returns the listener
// loop. Events published after Attach returns are never missed.
func (l *Ledger) Attach() func(context.Context) error {
	prices := bus.SubscribeAndListen(l.router, common.TopicMarketLast, l.OnPrice)
	fills := bus.SubscribeAndListen(l.router, common.TopicExecFills, l.OnFill)

	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return prices(gctx) })
		g.Go(func() error { return fills(gctx) })
		err := g.Wait()

		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ferr := l.journal.Flush(flushCtx); ferr != nil {
			l.logger.Error("final journal flush failed", zap.Error(ferr))
		}

		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func (l *Ledger) Run(ctx context.Context) error {
	return l.Attach()(ctx)
}

func (l *Ledger) OnPrice(ctx context.Context, p common.Price) {
	if p.Symbol == "" || !p.Price.IsPos() {
		l.note(p.Symbol, "malformed price", map[string]any{"price": p.Price.String()})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.account.Mark(p.Symbol, p.Price); err != nil {
		l.note(p.Symbol, "price out of range", map[string]any{"price": p.Price.String(), "error": err.Error()})
		return
	}
	l.recordEquity(ctx)
}

func (l *Ledger) OnFill(ctx context.Context, f common.Fill) {
	if !f.IsFilled() {
		l.logger.Debug("ignoring fill", zap.String("status", f.Status), zap.String("symbol", f.Symbol))
		return
	}
	if f.Symbol == "" || f.Qty.IsNeg() || f.Price.IsNeg() {
		l.note(f.Symbol, "malformed fill", map[string]any{"qty": f.Qty.String(), "price": f.Price.String()})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price := f.Price
	if price.IsZero() {
		last, ok := l.account.LastPrice[f.Symbol]
		if !ok {
			l.note(f.Symbol, "no price for fill", map[string]any{"side": f.Side.String(), "qty": f.Qty.String()})
			return
		}
		price = last
	}

	res, err := l.account.Apply(f.Symbol, f.Side, f.Qty, price)
	if errors.Is(err, fixed.ErrArithmetic) {
		l.note(f.Symbol, "fill out of range", map[string]any{
			"side":  f.Side.String(),
			"qty":   f.Qty.String(),
			"price": price.String(),
			"error": err.Error(),
		})
		return
	}

	// A rejected fill still leaves a trade row with the unchanged position.
	l.recordTrade(ctx, f, price, res)

	var rejection *RejectionError
	if errors.As(err, &rejection) {
		l.logger.Warn("fill rejected",
			zap.String("symbol", f.Symbol),
			zap.Stringer("side", f.Side),
			zap.String("qty", f.Qty.String()),
			zap.String("price", price.String()),
			zap.String("reason", rejection.Reason))
		l.router.Publish(common.TopicOrderRejected, common.OrderRejected{
			OriginalFill: f,
			Reason:       rejection.Reason,
			Source:       componentName,
			ExecutionID:  utility.GetExecutionID(),
			TraceID:      utility.CreateTraceID(),
			TimeStamp:    l.now(),
		})
	}

	l.recordEquity(ctx)
}

// Apply books a fill directly, bypassing the bus. Nothing is persisted or published.
func (l *Ledger) Apply(symbol string, side common.Side, qty, price fixed.Point) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Apply(symbol, side, qty, price)
}

func (l *Ledger) Snapshot() common.EquitySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot, err := l.snapshotLocked()
	if err != nil {
		l.logger.Error("unable to value account", zap.Error(err))
	}
	return snapshot
}

// MarkToMarket returns the current equity.
func (l *Ledger) MarkToMarket() fixed.Point {
	return l.Snapshot().Equity
}

// Position returns a copy of the position of symbol and whether it was ever referenced.
func (l *Ledger) Position(symbol string) (common.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.account.Positions[symbol]
	if !ok {
		return common.Position{Symbol: symbol}, false
	}
	return *pos, true
}

func (l *Ledger) Positions() []common.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]common.Position, 0, len(l.account.Positions))
	for _, pos := range l.account.Positions {
		out = append(out, *pos)
	}
	return out
}

func (l *Ledger) Cash() fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Cash
}

func (l *Ledger) RealizedTotal() fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.RealizedTotal
}

func (l *Ledger) LastPrice(symbol string) (fixed.Point, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	px, ok := l.account.LastPrice[symbol]
	return px, ok
}

func (l *Ledger) snapshotLocked() (common.EquitySnapshot, error) {
	v, err := l.account.Valuation()
	if err != nil {
		return common.EquitySnapshot{TimeStamp: l.now(), Cash: l.account.Cash, RealizedTotal: l.account.RealizedTotal}, err
	}
	return common.EquitySnapshot{
		TimeStamp:     l.now(),
		Equity:        v.Equity,
		Cash:          l.account.Cash,
		Unrealized:    v.Unrealized,
		RealizedTotal: l.account.RealizedTotal,
		GrossExposure: v.GrossExposure,
		NumPositions:  l.account.OpenPositions(),
	}, nil
}

func (l *Ledger) recordEquity(ctx context.Context) {
	snapshot, err := l.snapshotLocked()
	if err != nil {
		l.logger.Error("unable to value account", zap.Error(err))
		return
	}
	if err := l.journal.RecordEquity(ctx, snapshot); err != nil {
		l.logger.Error("unable to record equity snapshot", zap.Error(err))
	}
}

func (l *Ledger) recordTrade(ctx context.Context, f common.Fill, price fixed.Point, res Result) {
	row := common.TradeRow{
		ID:            utility.CreateRecordID(),
		TimeStamp:     l.now(),
		Symbol:        f.Symbol,
		Side:          f.Side,
		Qty:           f.Qty,
		Price:         price,
		RealizedDelta: res.RealizedDelta,
		RealizedTotal: l.account.RealizedTotal,
		CashAfter:     l.account.Cash,
		PosQty:        res.Position.Qty,
		PosAvgPx:      res.Position.AvgPx,
	}
	if err := l.journal.RecordTrade(ctx, row); err != nil {
		l.logger.Error("unable to record trade", zap.String("symbol", f.Symbol), zap.Error(err))
	}
}

func (l *Ledger) note(symbol, msg string, fields map[string]any) {
	l.logger.Warn(msg, zap.String("symbol", symbol), zap.Any("fields", fields))
	l.router.Publish(common.TopicStrategyLog, common.Note{
		Note:        msg,
		Symbol:      symbol,
		Fields:      fields,
		Source:      componentName,
		ExecutionID: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   l.now(),
	})
}
