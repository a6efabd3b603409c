package paper

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

const ComponentName = "exchange.paper"

// Executor fills every planned order immediately, at the order price or the
// last known price of its symbol.
type Executor struct {
	logger *zap.Logger
	router *bus.Router
	now    func() time.Time

	ignored  map[string]struct{}
	slippage fixed.Point

	mu        sync.Mutex
	lastPrice map[string]fixed.Point
}

func NewExecutor(logger *zap.Logger, router *bus.Router, options ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		logger:    logger.Named(ComponentName),
		router:    router,
		now:       time.Now,
		ignored:   make(map[string]struct{}),
		lastPrice: make(map[string]fixed.Point),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *Executor) Attach() func(context.Context) error {
	prices := bus.SubscribeAndListen(e.router, common.TopicMarketLast, e.OnPrice)
	orders := bus.SubscribeAndListen(e.router, common.TopicOrdersPlanned, e.OnOrder)

	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return prices(gctx) })
		g.Go(func() error { return orders(gctx) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (e *Executor) OnPrice(_ context.Context, p common.Price) {
	if p.Symbol == "" || !p.Price.IsPos() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPrice[p.Symbol] = p.Price
}

func (e *Executor) OnOrder(_ context.Context, order common.Order) {
	if _, skip := e.ignored[order.Source]; skip {
		return
	}

	e.mu.Lock()
	price := order.Price
	if !price.IsPos() {
		price = e.lastPrice[order.Symbol]
	}
	e.mu.Unlock()

	if price.IsZero() {
		e.logger.Debug("no price for order, ledger will use its last price", zap.String("symbol", order.Symbol))
	} else {
		price = e.slip(order.Side, price)
	}

	fill := common.FillFromOrder(order, price)
	fill.Source = ComponentName
	fill.ExecutionID = utility.GetExecutionID()
	fill.TraceID = utility.CreateTraceID()
	fill.TimeStamp = e.now()

	e.logger.Info("order filled",
		zap.String("symbol", fill.Symbol),
		zap.Stringer("side", fill.Side),
		zap.String("qty", fill.Qty.String()),
		zap.String("price", fill.Price.String()),
		zap.String("order_src", order.Source))
	e.router.Publish(common.TopicExecFills, fill)
}

// slip moves price against side. A price the slippage cannot be applied to is kept as is.
func (e *Executor) slip(side common.Side, price fixed.Point) fixed.Point {
	if e.slippage.IsZero() || side == common.SideFlat {
		return price
	}

	var c fixed.Calc
	offset := c.Mul(price, e.slippage)
	var slipped fixed.Point
	if side == common.SideLong {
		slipped = c.Add(price, offset)
	} else {
		slipped = c.Sub(price, offset)
	}
	if c.Err() != nil {
		return price
	}
	return slipped
}
