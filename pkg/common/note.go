package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility"
)

// Note is a free-form diagnostic, published on strategy.log.
type Note struct {
	Note   string         `json:"note"`
	Symbol string         `json:"symbol,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`

	Source      string              `json:"src,omitempty"`
	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
