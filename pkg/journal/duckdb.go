package journal

import (
	"context"

	_ "github.com/marcboeker/go-duckdb"
)

var duckdbDialect = dialect{
	name: TypeDuckDB,
	schema: []string{`
CREATE TABLE IF NOT EXISTS trades (
	id VARCHAR PRIMARY KEY,
	ts TIMESTAMP NOT NULL,
	symbol VARCHAR NOT NULL,
	side VARCHAR NOT NULL,
	qty DOUBLE NOT NULL,
	price DOUBLE NOT NULL,
	realized_delta DOUBLE NOT NULL,
	realized_total DOUBLE NOT NULL,
	cash_after DOUBLE NOT NULL,
	pos_qty DOUBLE NOT NULL,
	pos_avg_px DOUBLE NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS equity (
	ts TIMESTAMP NOT NULL,
	equity DOUBLE NOT NULL,
	cash DOUBLE NOT NULL,
	unrealized DOUBLE NOT NULL,
	realized_total DOUBLE NOT NULL,
	gross_exposure DOUBLE NOT NULL,
	num_positions INTEGER NOT NULL
)`,
	},
	insertTrade: `INSERT INTO trades
		(id, ts, symbol, side, qty, price, realized_delta, realized_total, cash_after, pos_qty, pos_avg_px)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	insertEquity: `INSERT INTO equity
		(ts, equity, cash, unrealized, realized_total, gross_exposure, num_positions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	selectTrades: `SELECT id, ts, symbol, side, qty, price, realized_delta, realized_total, cash_after, pos_qty, pos_avg_px
		FROM trades ORDER BY ts, id`,
	selectEquity: `SELECT ts, equity, cash, unrealized, realized_total, gross_exposure, num_positions
		FROM equity ORDER BY ts`,
}

// DuckDB stores the logs in a DuckDB file; an empty path keeps them in memory.
type DuckDB struct {
	*sqlJournal
}

func NewDuckDB(ctx context.Context, path string) (*DuckDB, error) {
	j, err := newSQLJournal(ctx, "duckdb", path, duckdbDialect)
	if err != nil {
		return nil, err
	}
	return &DuckDB{j}, nil
}
