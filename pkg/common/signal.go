package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Signal is a target intent from a decision agent, published on signals.target.
type Signal struct {
	Symbol     string       `json:"symbol"`
	Side       Side         `json:"side"`
	Strength   fixed.Point  `json:"strength"`
	Atr        fixed.Point  `json:"atr,omitzero"`
	StopLoss   *fixed.Point `json:"sl_price,omitempty"`
	TakeProfit *fixed.Point `json:"tp_price,omitempty"`
	Comment    string       `json:"comment,omitempty"`

	Source      string              `json:"src,omitempty"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
