package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.StartBalance().Eq(fixed.FromInt(10000, 0)))

	limits := cfg.Limits()
	assert.Equal(t, 3, limits.MaxOpenTrades)
	assert.True(t, limits.RiskPct.Eq(fixed.FromInt(2, 2)))
	assert.True(t, limits.PerTradeAllocationPct.Eq(fixed.FromInt(25, 2)))
	assert.True(t, limits.MaxPortfolioAllocationPct.Eq(fixed.One))
	assert.False(t, limits.AllowShorts)
	assert.True(t, cfg.Risk.InlineFills)
	assert.Equal(t, journal.TypeCSV, cfg.Journal.Type)
	assert.False(t, cfg.Pushover.Enabled())
}

func TestConfig_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paperloop.yaml")
	data := []byte(`
account:
  start_balance: 5000
risk:
  max_open_trades: 5
  risk_per_trade_pct: 1.5
  allow_shorts: true
journal:
  type: sqlite
  dsn: ./paper.db
server:
  listen: ":8080"
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000.0, cfg.Account.StartBalance)
	assert.Equal(t, 5, cfg.Risk.MaxOpenTrades)
	assert.True(t, cfg.Limits().RiskPct.Eq(fixed.FromInt(15, 3)))
	assert.True(t, cfg.Risk.AllowShorts)
	// untouched keys keep their defaults
	assert.Equal(t, 25.0, cfg.Risk.PerTradeAllocationPct)
	assert.Equal(t, journal.TypeSQLite, cfg.Journal.Type)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.NotEmpty(t, cfg.Server.StreamTopics)
}

func TestConfig_LoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"PAPER_START_BALANCE":          "25000",
		"MAX_OPEN_TRADES":              " 7 ",
		"RISK_PER_TRADE_PCT":           "1",
		"PER_TRADE_ALLOCATION_PCT":     "10",
		"MAX_PORTFOLIO_ALLOCATION_PCT": "50",
		"ALLOW_SHORTS":                 "TRUE",
	}))
	require.NoError(t, err)

	assert.Equal(t, 25000.0, cfg.Account.StartBalance)
	assert.Equal(t, 7, cfg.Risk.MaxOpenTrades)
	assert.Equal(t, 1.0, cfg.Risk.RiskPerTradePct)
	assert.Equal(t, 10.0, cfg.Risk.PerTradeAllocationPct)
	assert.Equal(t, 50.0, cfg.Risk.MaxPortfolioAllocationPct)
	assert.True(t, cfg.Risk.AllowShorts)
}

func TestConfig_ApplyEnvInvalid(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"MAX_OPEN_TRADES": "many",
		"ALLOW_SHORTS":    "perhaps",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_OPEN_TRADES")
	assert.Contains(t, err.Error(), "ALLOW_SHORTS")
	assert.Equal(t, 3, cfg.Risk.MaxOpenTrades)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.Account.StartBalance = 0
	cfg.Risk.MaxOpenTrades = 0
	cfg.Execution.Slippage = 1.5
	cfg.Journal.Type = "parquet"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"start_balance", "max open trades", "slippage", "parquet"} {
		assert.Contains(t, err.Error(), want)
	}
}
