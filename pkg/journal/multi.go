package journal

import (
	"context"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

// Multi writes every record to all journals; one failing sink does not stop the others.
type Multi []Journal

func NewMulti(journals ...Journal) Multi {
	return journals
}

func (m Multi) RecordTrade(ctx context.Context, row common.TradeRow) error {
	var errs error
	for _, j := range m {
		errs = multierr.Append(errs, j.RecordTrade(ctx, row))
	}
	return errs
}

func (m Multi) RecordEquity(ctx context.Context, snapshot common.EquitySnapshot) error {
	var errs error
	for _, j := range m {
		errs = multierr.Append(errs, j.RecordEquity(ctx, snapshot))
	}
	return errs
}

func (m Multi) Flush(ctx context.Context) error {
	var errs error
	for _, j := range m {
		errs = multierr.Append(errs, j.Flush(ctx))
	}
	return errs
}

func (m Multi) Close() error {
	var errs error
	for _, j := range m {
		errs = multierr.Append(errs, j.Close())
	}
	return errs
}
