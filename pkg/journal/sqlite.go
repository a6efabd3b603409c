package journal

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: TypeSQLite,
	schema: []string{`
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	price REAL NOT NULL,
	realized_delta REAL NOT NULL,
	realized_total REAL NOT NULL,
	cash_after REAL NOT NULL,
	pos_qty REAL NOT NULL,
	pos_avg_px REAL NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS equity (
	ts DATETIME NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	unrealized REAL NOT NULL,
	realized_total REAL NOT NULL,
	gross_exposure REAL NOT NULL,
	num_positions INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_ts ON equity(ts)`,
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

type SQLite struct {
	*sqlJournal
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	j, err := newSQLJournal(ctx, "sqlite3", path, sqliteDialect)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under concurrent listeners.
	j.db.SetMaxOpenConns(1)
	return &SQLite{j}, nil
}
