package journal

import (
	"context"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name: TypePostgres,
	schema: []string{`
CREATE TABLE IF NOT EXISTS paper_trades (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	realized_delta DOUBLE PRECISION NOT NULL,
	realized_total DOUBLE PRECISION NOT NULL,
	cash_after DOUBLE PRECISION NOT NULL,
	pos_qty DOUBLE PRECISION NOT NULL,
	pos_avg_px DOUBLE PRECISION NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS paper_equity (
	ts TIMESTAMPTZ NOT NULL,
	equity DOUBLE PRECISION NOT NULL,
	cash DOUBLE PRECISION NOT NULL,
	unrealized DOUBLE PRECISION NOT NULL,
	realized_total DOUBLE PRECISION NOT NULL,
	gross_exposure DOUBLE PRECISION NOT NULL,
	num_positions INTEGER NOT NULL
)`,
	},
	insertTrade: `INSERT INTO paper_trades
		(id, ts, symbol, side, qty, price, realized_delta, realized_total, cash_after, pos_qty, pos_avg_px)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
	insertEquity: `INSERT INTO paper_equity
		(ts, equity, cash, unrealized, realized_total, gross_exposure, num_positions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	selectTrades: `SELECT id, ts, symbol, side, qty, price, realized_delta, realized_total, cash_after, pos_qty, pos_avg_px
		FROM paper_trades ORDER BY ts, id`,
	selectEquity: `SELECT ts, equity, cash, unrealized, realized_total, gross_exposure, num_positions
		FROM paper_equity ORDER BY ts`,
}

// Postgres writes to a shared database, dsn in lib/pq format.
type Postgres struct {
	*sqlJournal
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	j, err := newSQLJournal(ctx, "postgres", dsn, postgresDialect)
	if err != nil {
		return nil, err
	}
	return &Postgres{j}, nil
}
