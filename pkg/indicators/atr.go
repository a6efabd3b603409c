package indicators

import (
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// Atr is a Wilder-smoothed average true range over a stream of last prices.
// Each tick's true range is its absolute move from the previous tick.
type Atr struct {
	windowSize int
	samples    int

	lastPrice  fixed.Point
	currentAtr fixed.Point
	currentTr  fixed.Point
}

func NewAtr(windowSize int) *Atr {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Atr{
		windowSize: windowSize,

		lastPrice:  fixed.Zero,
		currentAtr: fixed.Zero,
		currentTr:  fixed.Zero,
	}
}

func (a *Atr) OnPrice(price fixed.Point) {
	defer func() {
		a.lastPrice = price
	}()

	if a.lastPrice.IsZero() {
		return
	}

	a.currentTr = price.Sub(a.lastPrice).Abs()
	a.samples++

	if a.samples == 1 {
		a.currentAtr = a.currentTr
	} else {
		a.currentAtr = a.currentAtr.MulInt(a.windowSize - 1).Add(a.currentTr).DivInt(a.windowSize)
	}
}

func (a *Atr) AverageTrueRange() fixed.Point {
	return a.currentAtr
}

func (a *Atr) TrueRange() fixed.Point {
	return a.currentTr
}

// Ready reports whether a full window of ranges has been seen.
func (a *Atr) Ready() bool {
	return a.samples >= a.windowSize
}

func (a *Atr) Reset() {
	a.samples = 0
	a.lastPrice = fixed.Zero
	a.currentAtr = fixed.Zero
	a.currentTr = fixed.Zero
}
