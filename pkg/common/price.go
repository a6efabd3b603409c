package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Price is the last traded price of a symbol, published on market.last.
type Price struct {
	Symbol string      `json:"symbol"`
	Price  fixed.Point `json:"price"`

	Source      string              `json:"src,omitempty"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
