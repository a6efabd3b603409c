package stop

import (
	"fmt"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

type Status int

const (
	StatusFlat Status = iota
	StatusArmed
	StatusFlattening
)

func (s Status) String() string {
	switch s {
	case StatusFlat:
		return "flat"
	case StatusArmed:
		return "armed"
	case StatusFlattening:
		return "flattening"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is the monitor's local view of one symbol. The ledger stays authoritative.
type State struct {
	Qty        fixed.Point
	AvgPx      fixed.Point
	StopLoss   *fixed.Point
	TakeProfit *fixed.Point
	Status     Status
}

// breach reports which level price crosses, if any. Stop loss wins when both do.
func (s State) breach(price fixed.Point) (string, bool) {
	var hitSL, hitTP bool
	switch {
	case s.Qty.IsPos():
		hitSL = s.StopLoss != nil && price.Lte(*s.StopLoss)
		hitTP = s.TakeProfit != nil && price.Gte(*s.TakeProfit)
	case s.Qty.IsNeg():
		hitSL = s.StopLoss != nil && price.Gte(*s.StopLoss)
		hitTP = s.TakeProfit != nil && price.Lte(*s.TakeProfit)
	}

	switch {
	case hitSL:
		return common.StopReasonStopLoss, true
	case hitTP:
		return common.StopReasonTakeProfit, true
	default:
		return "", false
	}
}
