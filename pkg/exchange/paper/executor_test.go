package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

func newTestExecutor(options ...Option) (*Executor, *bus.Router, *bus.Subscription) {
	r := bus.NewRouter(nil)
	fills := r.Subscribe(common.TopicExecFills)
	return NewExecutor(nil, r, options...), r, fills
}

func TestExecutor_FillsAtLastPrice(t *testing.T) {
	e, _, fills := newTestExecutor()
	ctx := context.Background()
	tp := fixed.FromInt(120, 0)

	e.OnPrice(ctx, common.Price{Symbol: "BTC", Price: fixed.FromInt(100, 0)})
	e.OnOrder(ctx, common.Order{Symbol: "BTC", Side: common.SideLong, Qty: fixed.Two, TakeProfit: &tp, Reason: "entry", Source: "strategy", TraceID: 7})

	ev, ok := fills.TryNext()
	require.True(t, ok)
	fill := ev.Payload.(common.Fill)
	assert.True(t, fill.IsFilled())
	assert.Equal(t, "BTC", fill.Symbol)
	assert.Equal(t, common.SideLong, fill.Side)
	assert.True(t, fill.Qty.Eq(fixed.Two))
	assert.True(t, fill.Price.Eq(fixed.FromInt(100, 0)))
	require.NotNil(t, fill.TakeProfit)
	assert.True(t, fill.TakeProfit.Eq(tp))
	assert.Equal(t, "entry", fill.Reason)
	assert.Equal(t, "strategy", fill.OrderSource)
	assert.EqualValues(t, 7, fill.OrderTraceID)
	assert.Equal(t, ComponentName, fill.Source)
}

func TestExecutor_OrderPriceWins(t *testing.T) {
	e, _, fills := newTestExecutor()
	ctx := context.Background()

	e.OnPrice(ctx, common.Price{Symbol: "BTC", Price: fixed.FromInt(100, 0)})
	e.OnOrder(ctx, common.Order{Symbol: "BTC", Side: common.SideShort, Qty: fixed.One, Price: fixed.FromInt(99, 0)})

	ev, ok := fills.TryNext()
	require.True(t, ok)
	assert.True(t, ev.Payload.(common.Fill).Price.Eq(fixed.FromInt(99, 0)))
}

func TestExecutor_UnknownPriceLeavesZero(t *testing.T) {
	e, _, fills := newTestExecutor()

	e.OnOrder(context.Background(), common.Order{Symbol: "ETH", Side: common.SideFlat, Qty: fixed.One})

	ev, ok := fills.TryNext()
	require.True(t, ok)
	assert.True(t, ev.Payload.(common.Fill).Price.IsZero())
}

func TestExecutor_IgnoredSources(t *testing.T) {
	e, _, fills := newTestExecutor(WithIgnoredSources("risk"))
	ctx := context.Background()

	e.OnOrder(ctx, common.Order{Symbol: "BTC", Side: common.SideLong, Qty: fixed.One, Price: fixed.One, Source: "risk"})
	assert.Equal(t, 0, fills.Pending())

	e.OnOrder(ctx, common.Order{Symbol: "BTC", Side: common.SideFlat, Qty: fixed.One, Price: fixed.One, Source: "stop"})
	assert.Equal(t, 1, fills.Pending())
}

func TestExecutor_Slippage(t *testing.T) {
	e, _, fills := newTestExecutor(WithSlippage(fixed.FromInt(1, 2)))
	ctx := context.Background()

	e.OnOrder(ctx, common.Order{Symbol: "BTC", Side: common.SideLong, Qty: fixed.One, Price: fixed.FromInt(100, 0)})
	e.OnOrder(ctx, common.Order{Symbol: "BTC", Side: common.SideShort, Qty: fixed.One, Price: fixed.FromInt(100, 0)})

	ev, _ := fills.TryNext()
	assert.True(t, ev.Payload.(common.Fill).Price.Eq(fixed.FromInt(101, 0)))
	ev, _ = fills.TryNext()
	assert.True(t, ev.Payload.(common.Fill).Price.Eq(fixed.FromInt(99, 0)))
}

func TestExecutor_SlippageOutOfRangeKeepsPrice(t *testing.T) {
	e, _, fills := newTestExecutor(WithSlippage(fixed.FromInt(2, 2)))
	price, err := fixed.Parse("9900000000000000000")
	require.NoError(t, err)

	e.OnOrder(context.Background(), common.Order{Symbol: "BTC", Side: common.SideLong, Qty: fixed.One, Price: price})

	ev, ok := fills.TryNext()
	require.True(t, ok)
	assert.True(t, ev.Payload.(common.Fill).Price.Eq(price))
}

func TestExecutor_AttachFillsPublishedOrders(t *testing.T) {
	e, r, fills := newTestExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := e.Attach()
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	r.Publish(common.TopicOrdersPlanned, common.Order{Symbol: "BTC", Side: common.SideLong, Qty: fixed.One, Price: fixed.FromInt(10, 0)})

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	ev, err := fills.Next(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "BTC", ev.Payload.(common.Fill).Symbol)

	cancel()
	assert.NoError(t, <-done)
}
