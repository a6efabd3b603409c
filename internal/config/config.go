package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/peter-kozarec/paperloop/internal/dbg"
	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/tools/risk"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Config is the complete paperloop configuration.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	Journal   journal.Config  `yaml:"journal"`
	Log       dbg.LogConfig   `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Pushover  PushoverConfig  `yaml:"pushover"`
}

type AccountConfig struct {
	StartBalance float64 `yaml:"start_balance"`
}

// RiskConfig holds percent values (2.0 for 2%).
type RiskConfig struct {
	MaxOpenTrades             int     `yaml:"max_open_trades"`
	RiskPerTradePct           float64 `yaml:"risk_per_trade_pct"`
	PerTradeAllocationPct     float64 `yaml:"per_trade_allocation_pct"`
	MaxPortfolioAllocationPct float64 `yaml:"max_portfolio_allocation_pct"`
	AllowShorts               bool    `yaml:"allow_shorts"`
	InlineFills               bool    `yaml:"inline_fills"`
	FallbackAtrWindow         int     `yaml:"fallback_atr_window"`
}

type ExecutionConfig struct {
	// Slippage as a fraction of price applied against the order side.
	Slippage float64 `yaml:"slippage"`
}

type ServerConfig struct {
	Listen       string   `yaml:"listen"`
	StreamTopics []string `yaml:"stream_topics"`
	MonitorAll   bool     `yaml:"monitor_all"`
}

type PushoverConfig struct {
	User   string `yaml:"user"`
	Token  string `yaml:"token"`
	Device string `yaml:"device"`
}

func (p PushoverConfig) Enabled() bool {
	return p.User != "" && p.Token != ""
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StartBalance: 10000,
		},
		Risk: RiskConfig{
			MaxOpenTrades:             3,
			RiskPerTradePct:           2.0,
			PerTradeAllocationPct:     25.0,
			MaxPortfolioAllocationPct: 100.0,
			AllowShorts:               false,
			InlineFills:               true,
		},
		Journal: journal.DefaultConfig(),
		Log:     dbg.DefaultLogConfig(),
		Server: ServerConfig{
			StreamTopics: []string{
				common.TopicExecFills,
				common.TopicStrategyLog,
				common.TopicOrderRejected,
			},
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the account and risk settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var err error

	if v, ok := lookup("PAPER_START_BALANCE"); ok {
		f, e := cast.ToFloat64E(strings.TrimSpace(v))
		err = multierr.Append(err, envError("PAPER_START_BALANCE", e))
		if e == nil {
			c.Account.StartBalance = f
		}
	}
	if v, ok := lookup("MAX_OPEN_TRADES"); ok {
		n, e := cast.ToIntE(strings.TrimSpace(v))
		err = multierr.Append(err, envError("MAX_OPEN_TRADES", e))
		if e == nil {
			c.Risk.MaxOpenTrades = n
		}
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"RISK_PER_TRADE_PCT", &c.Risk.RiskPerTradePct},
		{"PER_TRADE_ALLOCATION_PCT", &c.Risk.PerTradeAllocationPct},
		{"MAX_PORTFOLIO_ALLOCATION_PCT", &c.Risk.MaxPortfolioAllocationPct},
	}
	for _, f := range floats {
		v, ok := lookup(f.name)
		if !ok {
			continue
		}
		n, e := cast.ToFloat64E(strings.TrimSpace(v))
		err = multierr.Append(err, envError(f.name, e))
		if e == nil {
			*f.dst = n
		}
	}
	if v, ok := lookup("ALLOW_SHORTS"); ok {
		b, e := cast.ToBoolE(strings.ToLower(strings.TrimSpace(v)))
		err = multierr.Append(err, envError("ALLOW_SHORTS", e))
		if e == nil {
			c.Risk.AllowShorts = b
		}
	}
	return err
}

func envError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("env %s: %w", name, err)
}

func (c *Config) Validate() error {
	var err error
	if c.Account.StartBalance <= 0 {
		err = multierr.Append(err, fmt.Errorf("account.start_balance must be positive"))
	}
	if c.Risk.FallbackAtrWindow < 0 {
		err = multierr.Append(err, fmt.Errorf("risk.fallback_atr_window must not be negative"))
	}
	if c.Execution.Slippage < 0 || c.Execution.Slippage >= 1 {
		err = multierr.Append(err, fmt.Errorf("execution.slippage must be in [0, 1)"))
	}
	err = multierr.Append(err, c.Limits().Validate())
	err = multierr.Append(err, c.Journal.Validate())
	return err
}

func (c *Config) StartBalance() fixed.Point {
	return fixed.FromFloat64(c.Account.StartBalance)
}

func (c *Config) Limits() risk.Limits {
	return risk.LimitsFromPercent(
		c.Risk.MaxOpenTrades,
		fixed.FromFloat64(c.Risk.RiskPerTradePct),
		fixed.FromFloat64(c.Risk.PerTradeAllocationPct),
		fixed.FromFloat64(c.Risk.MaxPortfolioAllocationPct),
		c.Risk.AllowShorts)
}
