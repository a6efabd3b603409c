package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

func newTestPushover(t *testing.T) (*Pushover, <-chan map[string]string) {
	t.Helper()

	received := make(chan map[string]string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- map[string]string{
			"token":   r.PostForm.Get("token"),
			"user":    r.PostForm.Get("user"),
			"title":   r.PostForm.Get("title"),
			"message": r.PostForm.Get("message"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	p := NewPushover(nil, "user-key", "app-token", "phone")
	p.endpoint = srv.URL
	return p, received
}

func TestMiddlewarePushover_StopFill(t *testing.T) {
	p, received := newTestPushover(t)

	var called bool
	p.WithFill(func(context.Context, common.Fill) { called = true })(context.Background(), common.Fill{
		Status: common.FillStatusFilled,
		Symbol: "BTCUSDT",
		Side:   common.SideFlat,
		Qty:    fixed.FromInt(10, 0),
		Price:  fixed.FromInt(94, 0),
		Reason: common.StopReasonStopLoss,
	})
	assert.True(t, called)

	select {
	case form := <-received:
		assert.Equal(t, "app-token", form["token"])
		assert.Equal(t, "user-key", form["user"])
		assert.Equal(t, "SL hit", form["title"])
		assert.Contains(t, form["message"], "BTCUSDT")
	case <-time.After(2 * time.Second):
		t.Fatal("notification not sent")
	}
}

func TestMiddlewarePushover_IgnoresRegularFills(t *testing.T) {
	p, received := newTestPushover(t)

	p.WithFill(NoopFillHdl)(context.Background(), common.Fill{
		Status: common.FillStatusFilled,
		Symbol: "BTCUSDT",
		Side:   common.SideLong,
		Qty:    fixed.FromInt(1, 0),
	})

	select {
	case form := <-received:
		t.Fatalf("unexpected notification %v", form)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMiddlewarePushover_Rejection(t *testing.T) {
	p, received := newTestPushover(t)

	p.WithOrderRejected(NoopOrderRjctHdl)(context.Background(), common.OrderRejected{
		OriginalFill: common.Fill{Symbol: "ETHUSDT", Side: common.SideLong, Qty: fixed.FromInt(5, 0)},
		Reason:       common.RejectReasonInsufficientCash,
	})

	select {
	case form := <-received:
		require.Equal(t, "Fill Rejected", form["title"])
		assert.Contains(t, form["message"], common.RejectReasonInsufficientCash)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not sent")
	}
}

func TestMiddlewarePushover_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":0}`))
	}))
	defer srv.Close()

	p := NewPushover(nil, "u", "t", "d")
	p.endpoint = srv.URL

	err := p.send(context.Background(), "title", "message")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pushover error")
}
