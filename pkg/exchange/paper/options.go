package paper

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

type Option func(*Executor)

// WithIgnoredSources skips orders from producers that confirm their own fills.
func WithIgnoredSources(sources ...string) Option {
	return func(e *Executor) {
		for _, source := range sources {
			e.ignored[source] = struct{}{}
		}
	}
}

// WithSlippage moves long fills up and short fills down by the given fraction of price.
func WithSlippage(slippage fixed.Point) Option {
	return func(e *Executor) {
		e.slippage = slippage
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}
