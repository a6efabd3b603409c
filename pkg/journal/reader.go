package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Reader loads persisted rows back, oldest first.
type Reader interface {
	LoadTrades(ctx context.Context) ([]common.TradeRow, error)
	LoadEquities(ctx context.Context) ([]common.EquitySnapshot, error)
	Close() error
}

// OpenReader opens the store selected by cfg for reading. Buffering is ignored.
func OpenReader(ctx context.Context, cfg Config) (Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		r   Reader
		err error
	)
	switch strings.ToLower(cfg.Type) {
	case TypeCSV:
		r = NewCSVReader(filepath.Join(cfg.Dir, cfg.TradesFile), filepath.Join(cfg.Dir, cfg.EquityFile))
	case TypeSQLite:
		r, err = NewSQLite(ctx, cfg.DSN)
	case TypeDuckDB:
		r, err = NewDuckDB(ctx, cfg.DSN)
	case TypePostgres:
		r, err = NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("journal type %q cannot be read back", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s reader: %w", cfg.Type, err)
	}
	return r, nil
}

func (m *Memory) LoadTrades(context.Context) ([]common.TradeRow, error) {
	return m.Trades(), nil
}

func (m *Memory) LoadEquities(context.Context) ([]common.EquitySnapshot, error) {
	return m.Equities(), nil
}

// CSVReader reads the files written by CSV. A missing file reads as empty.
type CSVReader struct {
	tradesPath string
	equityPath string
}

func NewCSVReader(tradesPath, equityPath string) *CSVReader {
	return &CSVReader{tradesPath: tradesPath, equityPath: equityPath}
}

func (r *CSVReader) Close() error { return nil }

func (r *CSVReader) LoadTrades(context.Context) ([]common.TradeRow, error) {
	var rows []common.TradeRow
	err := readCSV(r.tradesPath, TradeHeader, func(rec csvRecord) error {
		side, err := common.ParseSide(rec.str("side"))
		if err != nil {
			return err
		}
		row := common.TradeRow{Symbol: rec.str("symbol"), Side: side}
		if row.TimeStamp, err = rec.ts(); err != nil {
			return err
		}
		for _, f := range []struct {
			name string
			dst  *fixed.Point
		}{
			{"qty", &row.Qty},
			{"price", &row.Price},
			{"realized_delta", &row.RealizedDelta},
			{"realized_total", &row.RealizedTotal},
			{"cash_after", &row.CashAfter},
			{"pos_qty", &row.PosQty},
			{"pos_avg_px", &row.PosAvgPx},
		} {
			if *f.dst, err = rec.point(f.name); err != nil {
				return err
			}
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func (r *CSVReader) LoadEquities(context.Context) ([]common.EquitySnapshot, error) {
	var snapshots []common.EquitySnapshot
	err := readCSV(r.equityPath, EquityHeader, func(rec csvRecord) error {
		var (
			snap common.EquitySnapshot
			err  error
		)
		if snap.TimeStamp, err = rec.ts(); err != nil {
			return err
		}
		for _, f := range []struct {
			name string
			dst  *fixed.Point
		}{
			{"equity", &snap.Equity},
			{"cash", &snap.Cash},
			{"unrealized", &snap.Unrealized},
			{"realized_total", &snap.RealizedTotal},
			{"gross_exposure", &snap.GrossExposure},
		} {
			if *f.dst, err = rec.point(f.name); err != nil {
				return err
			}
		}
		if snap.NumPositions, err = strconv.Atoi(rec.str("num_positions")); err != nil {
			return fmt.Errorf("num_positions: %w", err)
		}
		snapshots = append(snapshots, snap)
		return nil
	})
	return snapshots, err
}

type csvRecord struct {
	index  map[string]int
	fields []string
}

func (r csvRecord) str(name string) string {
	if i, ok := r.index[name]; ok && i < len(r.fields) {
		return r.fields[i]
	}
	return ""
}

func (r csvRecord) point(name string) (fixed.Point, error) {
	s := r.str(name)
	if s == "" {
		return fixed.Zero, nil
	}
	p, err := fixed.Parse(s)
	if err != nil {
		return fixed.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

func (r csvRecord) ts() (time.Time, error) {
	secs, err := strconv.ParseFloat(r.str("ts"), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("ts: %w", err)
	}
	return time.Unix(0, int64(secs*float64(time.Second))).UTC(), nil
}

func readCSV(path string, want []string, fn func(csvRecord) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header %q: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range want {
		if _, ok := index[name]; !ok {
			return fmt.Errorf("%q: missing column %q", path, name)
		}
	}

	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}
		if err := fn(csvRecord{index: index, fields: fields}); err != nil {
			return fmt.Errorf("%q line %d: %w", path, line, err)
		}
	}
}
