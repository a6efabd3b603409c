package common

import (
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Position is a signed holding: positive Qty is long, negative is short.
// AvgPx is meaningful only while Qty is non-zero.
type Position struct {
	Symbol   string      `json:"symbol"`
	Qty      fixed.Point `json:"qty"`
	AvgPx    fixed.Point `json:"avg_px"`
	Realized fixed.Point `json:"realized"`
}

func (p Position) IsOpen() bool {
	return !p.Qty.IsZero()
}

func (p Position) IsLong() bool {
	return p.Qty.IsPos()
}

func (p Position) IsShort() bool {
	return p.Qty.IsNeg()
}

// Unrealized marks the position at the given price.
func (p Position) Unrealized(price fixed.Point) fixed.Point {
	if p.Qty.IsZero() {
		return fixed.Zero
	}
	return p.Qty.Mul(price.Sub(p.AvgPx))
}
