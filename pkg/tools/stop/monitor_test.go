package stop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

func pt(v int) *fixed.Point {
	p := fixed.FromInt(v, 0)
	return &p
}

func newTestMonitor() (*Monitor, *bus.Subscription) {
	r := bus.NewRouter(nil)
	orders := r.Subscribe(common.TopicOrdersPlanned)
	return NewMonitor(nil, r), orders
}

func openFill(side common.Side, qty, price int, sl, tp *fixed.Point) common.Fill {
	return common.Fill{
		Status:     common.FillStatusFilled,
		Symbol:     "BTC",
		Side:       side,
		Qty:        fixed.FromInt(qty, 0),
		Price:      fixed.FromInt(price, 0),
		StopLoss:   sl,
		TakeProfit: tp,
	}
}

func tick(m *Monitor, v int) {
	m.OnPrice(context.Background(), common.Price{Symbol: "BTC", Price: fixed.FromInt(v, 0)})
}

func TestMonitor_LongBreaches(t *testing.T) {
	tests := []struct {
		name       string
		price      int
		wantReason string
	}{
		{"stop loss", 94, common.StopReasonStopLoss},
		{"stop loss touch", 95, common.StopReasonStopLoss},
		{"take profit", 111, common.StopReasonTakeProfit},
		{"inside range", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, orders := newTestMonitor()
			m.OnFill(context.Background(), openFill(common.SideLong, 2, 100, pt(95), pt(110)))

			tick(m, tt.price)

			ev, ok := orders.TryNext()
			if tt.wantReason == "" {
				assert.False(t, ok, "expected no emission")
				assert.Equal(t, StatusArmed, m.State("BTC").Status)
				return
			}
			require.True(t, ok)
			order := ev.Payload.(common.Order)
			assert.Equal(t, common.SideFlat, order.Side)
			assert.Equal(t, tt.wantReason, order.Reason)
			assert.True(t, order.Qty.Eq(fixed.FromInt(2, 0)))
			assert.Equal(t, ComponentName, order.Source)
			assert.True(t, order.Price.Eq(fixed.FromInt(tt.price, 0)))

			st := m.State("BTC")
			assert.Equal(t, StatusFlattening, st.Status)
			assert.True(t, st.Qty.Eq(fixed.FromInt(2, 0)), "emission must not mutate the position")
		})
	}
}

func TestMonitor_ShortBreaches(t *testing.T) {
	m, orders := newTestMonitor()
	m.OnFill(context.Background(), openFill(common.SideShort, 1, 100, pt(105), pt(90)))

	tick(m, 100)
	assert.Equal(t, 0, orders.Pending())

	tick(m, 89)
	ev, ok := orders.TryNext()
	require.True(t, ok)
	assert.Equal(t, common.StopReasonTakeProfit, ev.Payload.(common.Order).Reason)
}

func TestMonitor_StopLossWinsWhenBothHit(t *testing.T) {
	m, orders := newTestMonitor()
	// inverted levels so one price crosses both
	m.OnFill(context.Background(), openFill(common.SideLong, 1, 100, pt(105), pt(95)))

	tick(m, 100)

	ev, ok := orders.TryNext()
	require.True(t, ok)
	assert.Equal(t, common.StopReasonStopLoss, ev.Payload.(common.Order).Reason)
}

func TestMonitor_SingleEmissionWhileFlattening(t *testing.T) {
	m, orders := newTestMonitor()
	ctx := context.Background()
	m.OnFill(ctx, openFill(common.SideLong, 1, 100, pt(95), pt(110)))

	tick(m, 94)
	tick(m, 93)
	tick(m, 92)
	assert.Equal(t, 1, orders.Pending())

	m.OnFill(ctx, common.Fill{Status: common.FillStatusFilled, Symbol: "BTC", Side: common.SideFlat, Qty: fixed.One})

	st := m.State("BTC")
	assert.Equal(t, StatusFlat, st.Status)
	assert.True(t, st.Qty.IsZero())
	assert.Nil(t, st.StopLoss)
	assert.Nil(t, st.TakeProfit)

	tick(m, 50)
	assert.Equal(t, 1, orders.Pending())
}

func TestMonitor_FillsUpdateAverageAndLevels(t *testing.T) {
	m, _ := newTestMonitor()
	ctx := context.Background()

	m.OnFill(ctx, openFill(common.SideLong, 1, 100, pt(90), nil))
	m.OnFill(ctx, openFill(common.SideLong, 1, 120, nil, pt(130)))

	st := m.State("BTC")
	assert.True(t, st.Qty.Eq(fixed.FromInt(2, 0)))
	assert.True(t, st.AvgPx.Eq(fixed.FromInt(110, 0)))
	require.NotNil(t, st.StopLoss)
	assert.True(t, st.StopLoss.Eq(fixed.FromInt(90, 0)))
	require.NotNil(t, st.TakeProfit)
	assert.True(t, st.TakeProfit.Eq(fixed.FromInt(130, 0)))

	// flip through zero takes the fill price
	m.OnFill(ctx, openFill(common.SideShort, 3, 125, nil, nil))
	st = m.State("BTC")
	assert.True(t, st.Qty.Eq(fixed.FromInt(-1, 0)))
	assert.True(t, st.AvgPx.Eq(fixed.FromInt(125, 0)))
}

func TestMonitor_PartialFlatReducesQty(t *testing.T) {
	m, _ := newTestMonitor()
	ctx := context.Background()

	m.OnFill(ctx, openFill(common.SideLong, 3, 100, pt(95), pt(110)))
	m.OnFill(ctx, common.Fill{Status: common.FillStatusFilled, Symbol: "BTC", Side: common.SideFlat, Qty: fixed.One})

	st := m.State("BTC")
	assert.True(t, st.Qty.Eq(fixed.FromInt(2, 0)))
	assert.Nil(t, st.StopLoss)
	assert.Equal(t, StatusFlat, st.Status)
}

func TestMonitor_FillWithoutPriceUsesLastTick(t *testing.T) {
	m, _ := newTestMonitor()
	ctx := context.Background()

	tick(m, 100)
	m.OnFill(ctx, openFill(common.SideLong, 1, 0, pt(95), nil))

	assert.True(t, m.State("BTC").AvgPx.Eq(fixed.FromInt(100, 0)))
}

func TestMonitor_FillOutOfRangeIsIgnored(t *testing.T) {
	m, _ := newTestMonitor()
	ctx := context.Background()
	huge := fixed.FromInt64(10_000_000_000, 0)

	m.OnFill(ctx, openFill(common.SideLong, 2, 100, pt(95), pt(110)))
	m.OnFill(ctx, common.Fill{Status: common.FillStatusFilled, Symbol: "BTC", Side: common.SideLong, Qty: huge, Price: huge})

	st := m.State("BTC")
	assert.Equal(t, StatusArmed, st.Status)
	assert.True(t, st.Qty.Eq(fixed.FromInt(2, 0)))
	assert.True(t, st.AvgPx.Eq(fixed.FromInt(100, 0)))
}
