package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/pkg/bus"
	"github.com/peter-kozarec/paperloop/pkg/common"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// Pushover sends a phone notification when a stop level closes a position or
// the ledger rejects a fill. Notifications are sent asynchronously.
type Pushover struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string

	user   string
	token  string
	device string
}

func NewPushover(logger *zap.Logger, user, token, device string) *Pushover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pushover{
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: pushoverEndpoint,
		user:     user,
		token:    token,
		device:   device,
	}
}

func (p *Pushover) WithFill(handler bus.EventHandler[common.Fill]) bus.EventHandler[common.Fill] {
	return func(ctx context.Context, fill common.Fill) {
		if fill.IsFilled() && fill.Side == common.SideFlat &&
			(fill.Reason == common.StopReasonStopLoss || fill.Reason == common.StopReasonTakeProfit) {
			msg := fmt.Sprintf("symbol = %s\nqty = %s\nprice = %s", fill.Symbol, fill.Qty, fill.Price)
			p.notify(ctx, fmt.Sprintf("%s hit", fill.Reason), msg)
		}
		handler(ctx, fill)
	}
}

func (p *Pushover) WithOrderRejected(handler bus.EventHandler[common.OrderRejected]) bus.EventHandler[common.OrderRejected] {
	return func(ctx context.Context, rejected common.OrderRejected) {
		f := rejected.OriginalFill
		msg := fmt.Sprintf("%s %s %s\nreason = %s", f.Side, f.Qty, f.Symbol, rejected.Reason)
		p.notify(ctx, "Fill Rejected", msg)
		handler(ctx, rejected)
	}
}

func (p *Pushover) notify(ctx context.Context, title, message string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := p.send(ctx, title, message); err != nil {
			p.logger.Error("unable to send pushover notification", zap.String("title", title), zap.Error(err))
		}
	}()
}

func (p *Pushover) send(ctx context.Context, title, message string) error {
	data := url.Values{}
	data.Set("token", p.token)
	data.Set("user", p.user)
	data.Set("device", p.device)
	data.Set("title", title)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover post failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pushover error: %s", body)
	}

	return nil
}
