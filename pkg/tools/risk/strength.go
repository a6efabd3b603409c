package risk

import "github.com/peter-kozarec/paperloop/pkg/utility/fixed"

var (
	minStrengthMultiplier = fixed.FromInt(2, 1)
	maxStrengthMultiplier = fixed.One
)

// strengthMultiplier scales a weak signal to no less than a fifth of full size.
func strengthMultiplier(strength fixed.Point) fixed.Point {
	return fixed.Clamp(strength, minStrengthMultiplier, maxStrengthMultiplier)
}
