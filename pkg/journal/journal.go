package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

// Journal persists the append-only trade log and equity snapshots.
type Journal interface {
	RecordTrade(ctx context.Context, row common.TradeRow) error
	RecordEquity(ctx context.Context, snapshot common.EquitySnapshot) error
	Flush(ctx context.Context) error
	Close() error
}

const (
	TypeCSV      = "csv"
	TypeSQLite   = "sqlite"
	TypeDuckDB   = "duckdb"
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

type Config struct {
	Type       string `yaml:"type"`
	Dir        string `yaml:"dir"`
	TradesFile string `yaml:"trades_file"`
	EquityFile string `yaml:"equity_file"`
	DSN        string `yaml:"dsn"`
	// Buffer > 0 wraps the journal into an asynchronous writer with that backlog.
	Buffer int `yaml:"buffer"`
}

func DefaultConfig() Config {
	return Config{
		Type:       TypeCSV,
		Dir:        "logs",
		TradesFile: "trades.csv",
		EquityFile: "equity.csv",
		Buffer:     1024,
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Type) {
	case TypeCSV:
		if c.TradesFile == "" || c.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case TypeSQLite, TypeDuckDB, TypePostgres:
		if c.DSN == "" {
			return fmt.Errorf("journal dsn required for %s type", c.Type)
		}
	case TypeMemory:
	default:
		return fmt.Errorf("unknown journal type %q", c.Type)
	}
	if c.Buffer < 0 {
		return fmt.Errorf("journal buffer must not be negative")
	}
	return nil
}

// Open builds the journal selected by cfg.Type.
func Open(ctx context.Context, cfg Config) (Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		j   Journal
		err error
	)
	switch strings.ToLower(cfg.Type) {
	case TypeCSV:
		j, err = NewCSV(filepath.Join(cfg.Dir, cfg.TradesFile), filepath.Join(cfg.Dir, cfg.EquityFile))
	case TypeSQLite:
		j, err = NewSQLite(ctx, cfg.DSN)
	case TypeDuckDB:
		j, err = NewDuckDB(ctx, cfg.DSN)
	case TypePostgres:
		j, err = NewPostgres(ctx, cfg.DSN)
	case TypeMemory:
		j = NewMemory()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s journal: %w", cfg.Type, err)
	}

	if cfg.Buffer > 0 {
		j = NewBuffered(j, cfg.Buffer)
	}
	return j, nil
}
