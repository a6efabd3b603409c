package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility"
)

const (
	RejectReasonInsufficientCash = "insufficient_cash"
	RejectReasonShortsDisabled   = "shorts_disabled"
)

// OrderRejected reports a fill the ledger could not apply, published on order.rejected.
type OrderRejected struct {
	OriginalFill Fill   `json:"original_fill"`
	Reason       string `json:"reason"`

	Source      string              `json:"src,omitempty"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
