package ledger

import (
	"fmt"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// RejectionError reports a fill that violated a cash or short-selling constraint.
// The account is left as it was before the rejected part of the fill.
type RejectionError struct {
	Reason string
	Symbol string
	Side   common.Side
	Qty    fixed.Point
	Price  fixed.Point
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s %s %s @ %s rejected: %s", e.Side, e.Qty, e.Symbol, e.Price, e.Reason)
}

// Result is the outcome of applying one fill.
type Result struct {
	RealizedDelta fixed.Point
	Position      common.Position
}

// Account is the mutable accounting state. It is not safe for concurrent use;
// Ledger serializes access to it.
type Account struct {
	Cash          fixed.Point
	RealizedTotal fixed.Point
	Positions     map[string]*common.Position
	LastPrice     map[string]fixed.Point

	allowShorts bool
}

func NewAccount(startingCash fixed.Point, allowShorts bool) *Account {
	return &Account{
		Cash:        startingCash,
		Positions:   make(map[string]*common.Position),
		LastPrice:   make(map[string]fixed.Point),
		allowShorts: allowShorts,
	}
}

// position returns the position of symbol, creating it flat on first reference.
// Positions are never removed once a fill or price has been booked.
func (a *Account) position(symbol string) *common.Position {
	pos, ok := a.Positions[symbol]
	if !ok {
		pos = &common.Position{Symbol: symbol}
		a.Positions[symbol] = pos
	}
	return pos
}

// Apply books a fill of qty units at price.
// A flat side closes up to qty, or the whole position when qty is not positive.
// A fill whose arithmetic leaves the decimal range, or that would leave the
// account impossible to value, is refused with an error wrapping
// fixed.ErrArithmetic and the account is left untouched.
func (a *Account) Apply(symbol string, side common.Side, qty, price fixed.Point) (Result, error) {
	_, existed := a.Positions[symbol]
	pos := a.position(symbol)
	saved, cash, realized := *pos, a.Cash, a.RealizedTotal

	var c fixed.Calc
	res, err := a.apply(&c, pos, side, qty, price)

	cerr := c.Err()
	if cerr == nil {
		_, cerr = a.Valuation()
	}
	if cerr != nil {
		*pos, a.Cash, a.RealizedTotal = saved, cash, realized
		if !existed {
			delete(a.Positions, symbol)
		}
		return Result{Position: saved}, fmt.Errorf("%s %s %s @ %s: %w", side, qty, symbol, price, cerr)
	}

	res.Position = *pos
	return res, a.reject(err, symbol, side, qty, price)
}

func (a *Account) apply(c *fixed.Calc, pos *common.Position, side common.Side, qty, price fixed.Point) (Result, error) {
	if side == common.SideFlat {
		held := pos.Qty.Abs()
		closing := held
		if qty.IsPos() && qty.Lt(held) {
			closing = qty
		}
		return Result{RealizedDelta: a.close(c, pos, closing, price)}, nil
	}

	if !qty.IsPos() {
		return Result{}, nil
	}

	trade := qty
	if side == common.SideShort {
		trade = qty.Neg()
	}

	switch {
	case pos.Qty.IsZero():
		return Result{}, a.open(c, pos, trade, price)

	case pos.Qty.Sign() == trade.Sign():
		return Result{}, a.add(c, pos, trade, price)

	case qty.Lte(pos.Qty.Abs()):
		return Result{RealizedDelta: a.close(c, pos, qty, price)}, nil

	default:
		remainder := c.Sub(qty, pos.Qty.Abs())
		if trade.IsNeg() {
			remainder = remainder.Neg()
		}
		delta := a.close(c, pos, pos.Qty.Abs(), price)
		return Result{RealizedDelta: delta}, a.open(c, pos, remainder, price)
	}
}

func (a *Account) reject(reason error, symbol string, side common.Side, qty, price fixed.Point) error {
	if reason == nil {
		return nil
	}
	return &RejectionError{
		Reason: reason.Error(),
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
	}
}

type constraint string

func (c constraint) Error() string { return string(c) }

const (
	errInsufficientCash constraint = common.RejectReasonInsufficientCash
	errShortsDisabled   constraint = common.RejectReasonShortsDisabled
)

// reserve moves the cash of opening or adding trade units at price.
func (a *Account) reserve(c *fixed.Calc, trade, price fixed.Point) error {
	notional := c.Mul(trade.Abs(), price)
	if trade.IsPos() {
		if a.Cash.Lt(notional) {
			return errInsufficientCash
		}
		a.Cash = c.Sub(a.Cash, notional)
		return nil
	}

	if !a.allowShorts {
		return errShortsDisabled
	}
	a.Cash = c.Add(a.Cash, notional)
	return nil
}

func (a *Account) open(c *fixed.Calc, pos *common.Position, trade, price fixed.Point) error {
	if err := a.reserve(c, trade, price); err != nil {
		return err
	}
	pos.Qty = trade
	pos.AvgPx = price
	return nil
}

func (a *Account) add(c *fixed.Calc, pos *common.Position, trade, price fixed.Point) error {
	if err := a.reserve(c, trade, price); err != nil {
		return err
	}
	held := pos.Qty.Abs()
	added := trade.Abs()
	cost := c.Add(c.Mul(held, pos.AvgPx), c.Mul(added, price))
	pos.AvgPx = c.Div(cost, c.Add(held, added))
	pos.Qty = c.Add(pos.Qty, trade)
	return nil
}

// close reduces |pos.Qty| by n units at price and returns the realized delta.
func (a *Account) close(c *fixed.Calc, pos *common.Position, n, price fixed.Point) fixed.Point {
	if n.IsZero() || pos.Qty.IsZero() {
		return fixed.Zero
	}

	var delta fixed.Point
	if pos.Qty.IsPos() {
		delta = c.Mul(n, c.Sub(price, pos.AvgPx))
		a.Cash = c.Add(a.Cash, c.Mul(n, price))
		pos.Qty = c.Sub(pos.Qty, n)
	} else {
		delta = c.Mul(n, c.Sub(pos.AvgPx, price))
		a.Cash = c.Sub(a.Cash, c.Mul(n, price))
		pos.Qty = c.Add(pos.Qty, n)
	}

	pos.Realized = c.Add(pos.Realized, delta)
	a.RealizedTotal = c.Add(a.RealizedTotal, delta)
	if pos.Qty.IsZero() {
		pos.AvgPx = fixed.Zero
	}
	return delta
}

// Mark records the last price of symbol. A price at which the open positions
// cannot be valued is refused and the previous price kept.
func (a *Account) Mark(symbol string, price fixed.Point) error {
	prev, had := a.LastPrice[symbol]
	a.LastPrice[symbol] = price

	if _, err := a.Valuation(); err != nil {
		if had {
			a.LastPrice[symbol] = prev
		} else {
			delete(a.LastPrice, symbol)
		}
		return fmt.Errorf("mark %s @ %s: %w", symbol, price, err)
	}

	a.position(symbol)
	return nil
}

// Valuation is the mark-to-market view of an account.
type Valuation struct {
	Unrealized    fixed.Point
	GrossExposure fixed.Point
	Equity        fixed.Point
}

// Valuation marks every position at its last price. Positions without a price are marked flat.
// Apply and Mark keep the account within range, so only an account mutated
// directly can make it fail.
func (a *Account) Valuation() (Valuation, error) {
	var c fixed.Calc
	unrealized, gross := fixed.Zero, fixed.Zero
	for symbol, pos := range a.Positions {
		last, ok := a.LastPrice[symbol]
		if !ok || pos.Qty.IsZero() {
			continue
		}
		unrealized = c.Add(unrealized, c.Mul(pos.Qty, c.Sub(last, pos.AvgPx)))
		gross = c.Add(gross, c.Mul(pos.Qty, last).Abs())
	}
	equity := c.Add(c.Add(a.Cash, a.RealizedTotal), unrealized)
	if err := c.Err(); err != nil {
		return Valuation{}, err
	}
	return Valuation{Unrealized: unrealized, GrossExposure: gross, Equity: equity}, nil
}

func (a *Account) Unrealized() fixed.Point {
	v, _ := a.Valuation()
	return v.Unrealized
}

func (a *Account) GrossExposure() fixed.Point {
	v, _ := a.Valuation()
	return v.GrossExposure
}

func (a *Account) OpenPositions() int {
	n := 0
	for _, pos := range a.Positions {
		if pos.IsOpen() {
			n++
		}
	}
	return n
}

func (a *Account) Equity() fixed.Point {
	v, _ := a.Valuation()
	return v.Equity
}
