package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

type dialect struct {
	name         string
	schema       []string
	insertTrade  string
	insertEquity string
	selectTrades string
	selectEquity string
}

// sqlJournal is shared by the database/sql backed journals.
type sqlJournal struct {
	db      *sql.DB
	dialect dialect
}

func newSQLJournal(ctx context.Context, driver, dsn string, d dialect) (*sqlJournal, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create %s schema: %w", d.name, err)
		}
	}

	return &sqlJournal{db: db, dialect: d}, nil
}

func (j *sqlJournal) RecordTrade(ctx context.Context, t common.TradeRow) error {
	_, err := j.db.ExecContext(ctx, j.dialect.insertTrade,
		t.ID,
		t.TimeStamp.UTC(),
		t.Symbol,
		t.Side.String(),
		t.Qty.Float(),
		t.Price.Float(),
		t.RealizedDelta.Float(),
		t.RealizedTotal.Float(),
		t.CashAfter.Float(),
		t.PosQty.Float(),
		t.PosAvgPx.Float(),
	)
	if err != nil {
		return fmt.Errorf("insert trade into %s: %w", j.dialect.name, err)
	}
	return nil
}

func (j *sqlJournal) RecordEquity(ctx context.Context, e common.EquitySnapshot) error {
	_, err := j.db.ExecContext(ctx, j.dialect.insertEquity,
		e.TimeStamp.UTC(),
		e.Equity.Float(),
		e.Cash.Float(),
		e.Unrealized.Float(),
		e.RealizedTotal.Float(),
		e.GrossExposure.Float(),
		e.NumPositions,
	)
	if err != nil {
		return fmt.Errorf("insert equity into %s: %w", j.dialect.name, err)
	}
	return nil
}

func (j *sqlJournal) Flush(_ context.Context) error {
	return nil
}

func (j *sqlJournal) Close() error {
	return j.db.Close()
}

// DB exposes the underlying handle for queries and reports.
func (j *sqlJournal) DB() *sql.DB {
	return j.db
}

func (j *sqlJournal) LoadTrades(ctx context.Context) (rows []common.TradeRow, err error) {
	rs, err := j.db.QueryContext(ctx, j.dialect.selectTrades)
	if err != nil {
		return nil, fmt.Errorf("query %s trades: %w", j.dialect.name, err)
	}
	defer func() { err = multierr.Append(err, rs.Close()) }()

	for rs.Next() {
		var (
			row  common.TradeRow
			ts   time.Time
			side string
			vals [7]float64
		)
		if err := rs.Scan(&row.ID, &ts, &row.Symbol, &side,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6]); err != nil {
			return nil, fmt.Errorf("scan %s trade: %w", j.dialect.name, err)
		}
		if row.Side, err = common.ParseSide(side); err != nil {
			return nil, err
		}
		row.TimeStamp = ts
		row.Qty = fixed.FromFloat64(vals[0])
		row.Price = fixed.FromFloat64(vals[1])
		row.RealizedDelta = fixed.FromFloat64(vals[2])
		row.RealizedTotal = fixed.FromFloat64(vals[3])
		row.CashAfter = fixed.FromFloat64(vals[4])
		row.PosQty = fixed.FromFloat64(vals[5])
		row.PosAvgPx = fixed.FromFloat64(vals[6])
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

func (j *sqlJournal) LoadEquities(ctx context.Context) (snapshots []common.EquitySnapshot, err error) {
	rs, err := j.db.QueryContext(ctx, j.dialect.selectEquity)
	if err != nil {
		return nil, fmt.Errorf("query %s equity: %w", j.dialect.name, err)
	}
	defer func() { err = multierr.Append(err, rs.Close()) }()

	for rs.Next() {
		var (
			snap common.EquitySnapshot
			vals [5]float64
		)
		if err := rs.Scan(&snap.TimeStamp, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &snap.NumPositions); err != nil {
			return nil, fmt.Errorf("scan %s equity: %w", j.dialect.name, err)
		}
		snap.Equity = fixed.FromFloat64(vals[0])
		snap.Cash = fixed.FromFloat64(vals[1])
		snap.Unrealized = fixed.FromFloat64(vals[2])
		snap.RealizedTotal = fixed.FromFloat64(vals[3])
		snap.GrossExposure = fixed.FromFloat64(vals[4])
		snapshots = append(snapshots, snap)
	}
	return snapshots, rs.Err()
}
