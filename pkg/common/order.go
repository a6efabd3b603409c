package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

const (
	StopReasonStopLoss   = "SL"
	StopReasonTakeProfit = "TP"
)

// Order is a bounded, planned order, published on orders.planned.
// A zero Price means "at the last known price".
type Order struct {
	Symbol     string       `json:"symbol"`
	Side       Side         `json:"side"`
	Qty        fixed.Point  `json:"qty"`
	Price      fixed.Point  `json:"price,omitzero"`
	StopLoss   *fixed.Point `json:"sl_price,omitempty"`
	TakeProfit *fixed.Point `json:"tp_price,omitempty"`
	Reason     string       `json:"reason,omitempty"`

	Source      string              `json:"src,omitempty"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
