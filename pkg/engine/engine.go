package engine

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/exchange/paper"
	"github.com/peter-kozarec/paperloop/pkg/ingress"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/ledger"
	"github.com/peter-kozarec/paperloop/pkg/middleware"
	"github.com/peter-kozarec/paperloop/pkg/stream"
	"github.com/peter-kozarec/paperloop/pkg/tools/risk"
	"github.com/peter-kozarec/paperloop/pkg/tools/stop"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

var ErrAlreadyRunning = errors.New("engine already running")

type Config struct {
	StartBalance fixed.Point
	Limits       risk.Limits
	InlineFills  bool
	Slippage     fixed.Point
	MonitorFlags middleware.MonitorFlags

	// FallbackAtrWindow > 0 sizes signals without an atr from recent ticks.
	FallbackAtrWindow int
}

type Option func(*Engine)

// WithStream relays the given topics to websocket clients.
func WithStream(topics ...string) Option {
	return func(e *Engine) {
		e.streamTopics = topics
	}
}

func WithPushover(p *middleware.Pushover) Option {
	return func(e *Engine) {
		e.pushover = p
	}
}

// Engine wires the control loop components onto one router. Every component
// subscribes in NewEngine, so nothing published through Ingress is lost even
// before Run starts.
type Engine struct {
	logger  *zap.Logger
	router  *bus.Router
	journal journal.Journal

	ledger   *ledger.Ledger
	risk     *risk.Manager
	stops    *stop.Monitor
	executor *paper.Executor
	ingress  *ingress.Adapter

	monitor   *middleware.Monitor
	telemetry *middleware.Telemetry
	pushover  *middleware.Pushover

	streamTopics []string
	hub          *stream.Hub

	runners []func(context.Context) error
	running atomic.Bool
}

func NewEngine(logger *zap.Logger, j journal.Journal, cfg Config, options ...Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	if j == nil {
		j = journal.NewMemory()
	}

	router := bus.NewRouter(logger.Named("bus"))

	e := &Engine{
		logger:    logger,
		router:    router,
		journal:   j,
		monitor:   middleware.NewMonitor(logger.Named("monitor"), cfg.MonitorFlags),
		telemetry: middleware.NewTelemetry(logger.Named("telemetry")),
	}
	for _, option := range options {
		option(e)
	}

	e.ledger = ledger.NewLedger(logger, router, j, ledger.Config{
		StartingCash: cfg.StartBalance,
		AllowShorts:  cfg.Limits.AllowShorts,
	})
	e.risk = risk.NewManager(logger, router, cfg.StartBalance, cfg.Limits,
		risk.WithInlineFills(cfg.InlineFills),
		risk.WithFallbackAtr(cfg.FallbackAtrWindow))
	e.stops = stop.NewMonitor(logger, router)

	// With inline fills the risk manager fills its own orders; the executor
	// only serves the rest.
	var ignored []string
	if cfg.InlineFills {
		ignored = append(ignored, risk.ComponentName)
	}
	e.executor = paper.NewExecutor(logger, router, paper.WithIgnoredSources(ignored...), paper.WithSlippage(cfg.Slippage))
	e.ingress = ingress.NewAdapter(logger, router)

	e.runners = []func(context.Context) error{
		e.observe(),
		e.ledger.Attach(),
		e.risk.Attach(),
		e.stops.Attach(),
		e.executor.Attach(),
	}
	if len(e.streamTopics) > 0 {
		e.hub = stream.NewHub(logger, router, e.streamTopics...)
		e.runners = append(e.runners, e.hub.Attach())
	}

	return e, nil
}

// Run blocks until ctx is done or a component fails, then closes the journal.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	e.logger.Info("paper loop started", zap.Int("components", len(e.runners)))

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range e.runners {
		g.Go(func() error { return run(gctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if cerr := e.journal.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}

	e.telemetry.PrintStatistics()
	e.router.PrintStatistics()
	e.logger.Info("paper loop stopped", zap.String("equity", e.ledger.MarkToMarket().String()))
	return err
}

// Drain waits until the router has stayed idle for a few consecutive polls,
// so events already handed to Ingress have been fully processed.
func (e *Engine) Drain(ctx context.Context) error {
	const (
		interval = 5 * time.Millisecond
		settle   = 4
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quiet := 0
	for quiet < settle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if e.router.Idle() {
			quiet++
		} else {
			quiet = 0
		}
	}
	return nil
}

// observe taps every topic for logging, counting and notifications.
func (e *Engine) observe() func(context.Context) error {
	fillWrappers := []func(bus.EventHandler[common.Fill]) bus.EventHandler[common.Fill]{e.telemetry.WithFill, e.monitor.WithFill}
	rejectWrappers := []func(bus.EventHandler[common.OrderRejected]) bus.EventHandler[common.OrderRejected]{e.telemetry.WithOrderRejected, e.monitor.WithOrderRejected}
	if e.pushover != nil {
		fillWrappers = append(fillWrappers, e.pushover.WithFill)
		rejectWrappers = append(rejectWrappers, e.pushover.WithOrderRejected)
	}

	listeners := []func(context.Context) error{
		bus.SubscribeAndListen(e.router, common.TopicMarketLast,
			middleware.Chain(e.telemetry.WithPrice, e.monitor.WithPrice)(middleware.NoopPriceHdl)),
		bus.SubscribeAndListen(e.router, common.TopicSignalsTarget,
			middleware.Chain(e.telemetry.WithSignal, e.monitor.WithSignal)(middleware.NoopSignalHdl)),
		bus.SubscribeAndListen(e.router, common.TopicOrdersPlanned,
			middleware.Chain(e.telemetry.WithOrder, e.monitor.WithOrder)(middleware.NoopOrderHdl)),
		bus.SubscribeAndListen(e.router, common.TopicExecFills,
			middleware.Chain(fillWrappers...)(middleware.NoopFillHdl)),
		bus.SubscribeAndListen(e.router, common.TopicStrategyLog,
			middleware.Chain(e.telemetry.WithNote, e.monitor.WithNote)(middleware.NoopNoteHdl)),
		bus.SubscribeAndListen(e.router, common.TopicOrderRejected,
			middleware.Chain(rejectWrappers...)(middleware.NoopOrderRjctHdl)),
	}

	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, listen := range listeners {
			g.Go(func() error { return listen(gctx) })
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// Handler serves POST /events/{topic} into the ingress adapter and, when
// streaming is enabled, websocket clients on /stream.
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events/", e.ingress)
	if e.hub != nil {
		mux.Handle("/stream", e.hub.Handler())
	}
	return mux
}

func (e *Engine) Router() *bus.Router              { return e.router }
func (e *Engine) Ingress() *ingress.Adapter        { return e.ingress }
func (e *Engine) Ledger() *ledger.Ledger           { return e.ledger }
func (e *Engine) Risk() *risk.Manager              { return e.risk }
func (e *Engine) Stops() *stop.Monitor             { return e.stops }
func (e *Engine) Telemetry() *middleware.Telemetry { return e.telemetry }
func (e *Engine) Hub() *stream.Hub                 { return e.hub }
