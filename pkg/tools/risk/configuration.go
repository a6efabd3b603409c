package risk

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Limits are the sizing and gating parameters of the risk manager.
// Percent fields hold fractions (0.02 for 2%).
type Limits struct {
	MaxOpenTrades int

	// Position size
	RiskPct               fixed.Point
	PerTradeAllocationPct fixed.Point

	// Max exposure
	MaxPortfolioAllocationPct fixed.Point

	AllowShorts bool
}

// LimitsFromPercent converts percent values (2.0 for 2%) into Limits.
func LimitsFromPercent(maxOpenTrades int, riskPct, perTradePct, maxPortfolioPct fixed.Point, allowShorts bool) Limits {
	return Limits{
		MaxOpenTrades:             maxOpenTrades,
		RiskPct:                   riskPct.Div(fixed.Hundred),
		PerTradeAllocationPct:     perTradePct.Div(fixed.Hundred),
		MaxPortfolioAllocationPct: maxPortfolioPct.Div(fixed.Hundred),
		AllowShorts:               allowShorts,
	}
}

func (l Limits) Validate() error {
	var err error
	if l.MaxOpenTrades <= 0 {
		err = multierr.Append(err, fmt.Errorf("max open trades must be positive, got %d", l.MaxOpenTrades))
	}
	if !l.RiskPct.IsPos() || l.RiskPct.Gt(fixed.One) {
		err = multierr.Append(err, fmt.Errorf("risk per trade must be in (0, 100]%%, got %s", l.RiskPct.Mul(fixed.Hundred)))
	}
	if !l.PerTradeAllocationPct.IsPos() || l.PerTradeAllocationPct.Gt(fixed.One) {
		err = multierr.Append(err, fmt.Errorf("per trade allocation must be in (0, 100]%%, got %s", l.PerTradeAllocationPct.Mul(fixed.Hundred)))
	}
	if !l.MaxPortfolioAllocationPct.IsPos() {
		err = multierr.Append(err, fmt.Errorf("max portfolio allocation must be positive, got %s", l.MaxPortfolioAllocationPct.Mul(fixed.Hundred)))
	}
	return err
}
