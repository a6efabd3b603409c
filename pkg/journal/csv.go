package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

var (
	TradeHeader  = []string{"ts", "symbol", "side", "qty", "price", "realized_delta", "realized_total", "cash_after", "pos_qty", "pos_avg_px"}
	EquityHeader = []string{"ts", "equity", "cash", "unrealized", "realized_total", "gross_exposure", "num_positions"}
)

// CSV appends rows to trades and equity files. Headers are written only when
// a file is created or empty, so restarts keep extending the same logs.
type CSV struct {
	mu     sync.Mutex
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	tf, tw, err := openAppend(tradesPath, TradeHeader)
	if err != nil {
		return nil, err
	}
	ef, ew, err := openAppend(equityPath, EquityHeader)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	return &CSV{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func (j *CSV) RecordTrade(_ context.Context, t common.TradeRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.trades.Write([]string{
		strconv.FormatInt(t.TimeStamp.Unix(), 10),
		t.Symbol,
		t.Side.String(),
		t.Qty.String(),
		t.Price.String(),
		t.RealizedDelta.String(),
		t.RealizedTotal.String(),
		t.CashAfter.String(),
		t.PosQty.String(),
		t.PosAvgPx.String(),
	}); err != nil {
		return fmt.Errorf("write trade row: %w", err)
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(_ context.Context, e common.EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.equity.Write([]string{
		strconv.FormatInt(e.TimeStamp.Unix(), 10),
		e.Equity.String(),
		e.Cash.String(),
		e.Unrealized.String(),
		e.RealizedTotal.String(),
		e.GrossExposure.String(),
		strconv.Itoa(e.NumPositions),
	}); err != nil {
		return fmt.Errorf("write equity row: %w", err)
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Flush(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	j.equity.Flush()
	return multierr.Combine(j.trades.Error(), j.equity.Error(), j.tf.Sync(), j.ef.Sync())
}

func (j *CSV) Close() error {
	err := j.Flush(context.Background())
	return multierr.Combine(err, j.tf.Close(), j.ef.Close())
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir %q: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("write header %q: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}
