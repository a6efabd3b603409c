package journal

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

var ErrJournalClosed = errors.New("journal closed")

type entry struct {
	trade  *common.TradeRow
	equity *common.EquitySnapshot
	flush  chan error
}

// Buffered hands records to a writer goroutine so callers never wait on disk.
// Writes block only when backlog records are already pending. Write errors
// are collected and reported by the next Flush or Close.
type Buffered struct {
	inner   Journal
	entries chan entry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  error
}

func NewBuffered(inner Journal, backlog int) *Buffered {
	if backlog <= 0 {
		backlog = 1
	}
	b := &Buffered{
		inner:   inner,
		entries: make(chan entry, backlog),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Buffered) RecordTrade(ctx context.Context, row common.TradeRow) error {
	return b.enqueue(ctx, entry{trade: &row})
}

func (b *Buffered) RecordEquity(ctx context.Context, snapshot common.EquitySnapshot) error {
	return b.enqueue(ctx, entry{equity: &snapshot})
}

// Flush waits until every record enqueued before the call is written.
func (b *Buffered) Flush(ctx context.Context) error {
	result := make(chan error, 1)
	if err := b.enqueue(ctx, entry{flush: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending records, then closes the wrapped journal.
func (b *Buffered) Close() error {
	flushErr := b.Flush(context.Background())

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.entries)
	b.mu.Unlock()

	<-b.done
	if errors.Is(flushErr, ErrJournalClosed) {
		flushErr = nil
	}
	return multierr.Combine(flushErr, b.inner.Close())
}

func (b *Buffered) enqueue(ctx context.Context, e entry) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrJournalClosed
	}

	select {
	case b.entries <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Buffered) run() {
	defer close(b.done)

	ctx := context.Background()
	for e := range b.entries {
		switch {
		case e.trade != nil:
			b.collect(b.inner.RecordTrade(ctx, *e.trade))
		case e.equity != nil:
			b.collect(b.inner.RecordEquity(ctx, *e.equity))
		case e.flush != nil:
			b.collect(b.inner.Flush(ctx))
			b.errMu.Lock()
			err := b.errs
			b.errs = nil
			b.errMu.Unlock()
			e.flush <- err
		}
	}
}

func (b *Buffered) collect(err error) {
	if err == nil {
		return
	}
	b.errMu.Lock()
	b.errs = multierr.Append(b.errs, err)
	b.errMu.Unlock()
}
