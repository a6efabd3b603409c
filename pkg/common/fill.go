package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

const FillStatusFilled = "filled"

// Fill confirms execution of an order, published on exec.fills.
// A zero Price means the consumer should use the last known price.
type Fill struct {
	Status     string       `json:"status"`
	Symbol     string       `json:"symbol"`
	Side       Side         `json:"side"`
	Qty        fixed.Point  `json:"qty"`
	Price      fixed.Point  `json:"price,omitzero"`
	StopLoss   *fixed.Point `json:"sl_price,omitempty"`
	TakeProfit *fixed.Point `json:"tp_price,omitempty"`
	Reason     string       `json:"reason,omitempty"`

	OrderSource  string              `json:"order_src,omitempty"`
	OrderTraceID utility.TraceID     `json:"order_tid,omitempty"`
	Source       string              `json:"src,omitempty"`
	ExecutionID  utility.ExecutionID `json:"eid,omitempty"`
	TraceID      utility.TraceID     `json:"tid,omitempty"`
	TimeStamp    time.Time           `json:"ts"`
}

func (f Fill) IsFilled() bool {
	return f.Status == FillStatusFilled
}

// FillFromOrder builds the filled confirmation of an order at the given price.
func FillFromOrder(order Order, price fixed.Point) Fill {
	return Fill{
		Status:       FillStatusFilled,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Qty:          order.Qty,
		Price:        price,
		StopLoss:     order.StopLoss,
		TakeProfit:   order.TakeProfit,
		Reason:       order.Reason,
		OrderSource:  order.Source,
		OrderTraceID: order.TraceID,
	}
}
