package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/middleware"
	"github.com/peter-kozarec/paperloop/pkg/tools/risk"
	"github.com/peter-kozarec/paperloop/pkg/tools/stop"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

const waitFor = 2 * time.Second

func testConfig() Config {
	return Config{
		StartBalance: fixed.FromInt(10000, 0),
		Limits: risk.LimitsFromPercent(3,
			fixed.FromInt(2, 0), fixed.FromInt(25, 0), fixed.FromInt(100, 0), false),
		InlineFills:  true,
		MonitorFlags: middleware.MonitorNone,
	}
}

func startEngine(t *testing.T, j journal.Journal, options ...Option) (*Engine, func() error) {
	t.Helper()

	e, err := NewEngine(nil, j, testConfig(), options...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	stopped := false
	shutdown := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(waitFor):
			t.Fatal("engine did not stop")
			return nil
		}
	}
	t.Cleanup(func() { _ = shutdown() })
	return e, shutdown
}

func tick(t *testing.T, e *Engine, px int) {
	t.Helper()
	require.NoError(t, e.Ingress().PublishRaw(common.TopicMarketLast, map[string]any{
		"symbol": "BTCUSDT",
		"price":  px,
	}))
}

func TestEngine_StopLossRoundTrip(t *testing.T) {
	mem := journal.NewMemory()
	e, shutdown := startEngine(t, mem)

	tick(t, e, 100)
	require.Eventually(t, func() bool {
		_, ok := e.Risk().LastPrice("BTCUSDT")
		return ok
	}, waitFor, time.Millisecond)

	require.NoError(t, e.Ingress().PublishRaw(common.TopicSignalsTarget, map[string]any{
		"symbol":   "BTCUSDT",
		"side":     "long",
		"strength": "1",
		"atr":      "2",
		"sl_price": "95",
		"tp_price": "120",
	}))

	require.Eventually(t, func() bool {
		pos, ok := e.Ledger().Position("BTCUSDT")
		return ok && pos.Qty.Eq(fixed.FromInt(25, 0))
	}, waitFor, time.Millisecond)
	require.Eventually(t, func() bool {
		return e.Stops().State("BTCUSDT").Status == stop.StatusArmed
	}, waitFor, time.Millisecond)

	tick(t, e, 94)

	require.Eventually(t, func() bool {
		pos, _ := e.Ledger().Position("BTCUSDT")
		return pos.Qty.IsZero() && e.Ledger().RealizedTotal().Eq(fixed.FromInt(-150, 0))
	}, waitFor, time.Millisecond)
	require.Eventually(t, func() bool {
		return e.Risk().Tracked("BTCUSDT").IsZero()
	}, waitFor, time.Millisecond)

	assert.True(t, e.Ledger().Cash().Eq(fixed.FromInt(9850, 0)))

	require.Eventually(t, func() bool {
		counts := e.Telemetry().Counts()
		return counts[common.TopicMarketLast] == 2 &&
			counts[common.TopicSignalsTarget] == 1 &&
			counts[common.TopicOrdersPlanned] == 2 &&
			counts[common.TopicExecFills] == 2
	}, waitFor, time.Millisecond)

	require.NoError(t, shutdown())

	trades := mem.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, common.SideLong, trades[0].Side)
	assert.Equal(t, common.SideFlat, trades[1].Side)
	assert.True(t, trades[1].RealizedDelta.Eq(fixed.FromInt(-150, 0)))
	assert.NotEmpty(t, mem.Equities())
}

func TestEngine_MalformedIngressBecomesNote(t *testing.T) {
	e, shutdown := startEngine(t, nil)

	err := e.Ingress().PublishRaw(common.TopicMarketLast, map[string]any{"symbol": "BTCUSDT", "price": "abc"})
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return e.Telemetry().Counts()[common.TopicStrategyLog] == 1
	}, waitFor, time.Millisecond)
	assert.Equal(t, int64(0), e.Telemetry().Counts()[common.TopicMarketLast])
	require.NoError(t, shutdown())
}

func TestEngine_HTTPIngress(t *testing.T) {
	e, _ := startEngine(t, nil, WithStream(common.TopicExecFills))
	require.NotNil(t, e.Hub())

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/events/"+common.TopicMarketLast, "application/json",
		bytes.NewBufferString(`{"symbol":"ETHUSDT","price":"2500.5"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		px, ok := e.Ledger().LastPrice("ETHUSDT")
		return ok && px.Eq(fixed.FromInt(25005, 1))
	}, waitFor, time.Millisecond)
}

func TestEngine_RunTwice(t *testing.T) {
	e, shutdown := startEngine(t, nil)

	require.Eventually(t, func() bool { return e.running.Load() }, waitFor, time.Millisecond)
	assert.ErrorIs(t, e.Run(context.Background()), ErrAlreadyRunning)
	require.NoError(t, shutdown())
}

func TestEngine_InvalidLimits(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxOpenTrades = 0

	_, err := NewEngine(nil, nil, cfg)
	assert.Error(t, err)
}

func TestEngine_Drain(t *testing.T) {
	e, shutdown := startEngine(t, nil)

	for px := 100; px < 150; px++ {
		tick(t, e, px)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, e.Drain(ctx))

	px, ok := e.Ledger().LastPrice("BTCUSDT")
	require.True(t, ok)
	assert.True(t, px.Eq(fixed.FromInt(149, 0)))
	assert.Equal(t, int64(50), e.Telemetry().Counts()[common.TopicMarketLast])
	require.NoError(t, shutdown())
}

func TestEngine_ShortsDisabledLeavesLedgerUnchanged(t *testing.T) {
	mem := journal.NewMemory()
	e, shutdown := startEngine(t, mem)

	tick(t, e, 100)
	require.Eventually(t, func() bool {
		_, ok := e.Risk().LastPrice("BTCUSDT")
		return ok
	}, waitFor, time.Millisecond)

	require.NoError(t, e.Ingress().PublishRaw(common.TopicSignalsTarget, map[string]any{
		"symbol":   "BTCUSDT",
		"side":     "short",
		"strength": "1",
		"atr":      "2",
	}))

	require.Eventually(t, func() bool {
		return e.Telemetry().Counts()[common.TopicStrategyLog] == 1
	}, waitFor, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, e.Drain(ctx))

	assert.True(t, e.Ledger().Cash().Eq(fixed.FromInt(10000, 0)))
	for _, pos := range e.Ledger().Positions() {
		assert.False(t, pos.IsOpen(), "unexpected open position %+v", pos)
	}
	assert.True(t, e.Ledger().RealizedTotal().IsZero())
	assert.True(t, e.Risk().Tracked("BTCUSDT").IsZero())
	assert.Empty(t, mem.Trades())

	counts := e.Telemetry().Counts()
	assert.Equal(t, int64(0), counts[common.TopicOrdersPlanned])
	assert.Equal(t, int64(0), counts[common.TopicExecFills])
	require.NoError(t, shutdown())
}

func TestEngine_OversizedFillKeepsLoopRunning(t *testing.T) {
	mem := journal.NewMemory()
	e, shutdown := startEngine(t, mem)
	huge := fixed.FromInt64(10_000_000_000, 0)

	e.Router().Publish(common.TopicMarketLast, common.Price{Symbol: "XUSDT", Price: huge})
	e.Router().Publish(common.TopicExecFills, common.Fill{
		Status: common.FillStatusFilled,
		Symbol: "XUSDT",
		Side:   common.SideLong,
		Qty:    huge,
		Price:  huge,
	})

	require.Eventually(t, func() bool {
		return e.Telemetry().Counts()[common.TopicStrategyLog] == 1
	}, waitFor, time.Millisecond)
	assert.True(t, e.Ledger().Cash().Eq(fixed.FromInt(10000, 0)))

	tick(t, e, 100)
	e.Router().Publish(common.TopicExecFills, common.Fill{
		Status: common.FillStatusFilled,
		Symbol: "BTCUSDT",
		Side:   common.SideLong,
		Qty:    fixed.One,
		Price:  fixed.FromInt(100, 0),
	})

	require.Eventually(t, func() bool {
		pos, ok := e.Ledger().Position("BTCUSDT")
		return ok && pos.Qty.Eq(fixed.One)
	}, waitFor, time.Millisecond)
	assert.True(t, e.Ledger().Cash().Eq(fixed.FromInt(9900, 0)))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, e.Drain(ctx))
	require.Len(t, mem.Trades(), 1)
	require.NoError(t, shutdown())
}
