package fixed

import (
	"errors"
	"fmt"

	"github.com/govalues/decimal"
)

// Point is an unsafe wrapper around decimal implementation. Caller must make sure the calculations
// are correct and will not result in an error state, otherwise it will panic.
// Values taken from outside the process go through the checked operations (AddE, MulE, ...) instead.
// The zero value is a valid zero.
type Point struct {
	v decimal.Decimal
}

// ErrArithmetic wraps every failed checked operation: overflow past 19 integer
// digits or division by zero.
var ErrArithmetic = errors.New("fixed: arithmetic error")

func FromInt(value int, scale int) Point {
	return Point{must(decimal.New(int64(value), scale))}
}

func FromInt64(value int64, scale int) Point {
	return Point{must(decimal.New(value, scale))}
}

func FromFloat64(value float64) Point {
	return Point{must(decimal.NewFromFloat64(value))}
}

// Parse converts a decimal string such as "101.25" into a Point.
func Parse(s string) (Point, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Point{}, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	return Point{d}, nil
}

// ParseFloat64 is FromFloat64 that reports NaN and infinities instead of panicking.
func ParseFloat64(value float64) (Point, error) {
	d, err := decimal.NewFromFloat64(value)
	if err != nil {
		return Point{}, fmt.Errorf("fixed: convert %v: %w", value, err)
	}
	return Point{d}, nil
}

func (p Point) String() string           { return p.v.String() }
func (p Point) Float64() (float64, bool) { return p.v.Float64() }

// Float returns the nearest float64, used at persistence boundaries.
func (p Point) Float() float64 {
	f, _ := p.v.Float64()
	return f
}

func (p Point) Abs() Point { return Point{p.v.Abs()} }
func (p Point) Neg() Point { return Point{p.v.Neg()} }

func (p Point) Add(o Point) Point { return Point{must(p.v.Add(o.v))} }
func (p Point) Sub(o Point) Point { return Point{must(p.v.Sub(o.v))} }
func (p Point) Mul(o Point) Point { return Point{must(p.v.Mul(o.v))} }
func (p Point) Div(o Point) Point { return Point{must(p.v.Quo(o.v))} }

func (p Point) AddE(o Point) (Point, error) { return checked(p.v.Add(o.v)) }
func (p Point) SubE(o Point) (Point, error) { return checked(p.v.Sub(o.v)) }
func (p Point) MulE(o Point) (Point, error) { return checked(p.v.Mul(o.v)) }
func (p Point) DivE(o Point) (Point, error) { return checked(p.v.Quo(o.v)) }

func (p Point) MulInt(o int) Point { return Point{must(p.v.Mul(decimal.MustNew(int64(o), 0)))} }
func (p Point) DivInt(o int) Point { return Point{must(p.v.Quo(decimal.MustNew(int64(o), 0)))} }

func (p Point) Eq(o Point) bool  { return p.v.Cmp(o.v) == 0 }
func (p Point) Gt(o Point) bool  { return p.v.Cmp(o.v) > 0 }
func (p Point) Lt(o Point) bool  { return p.v.Cmp(o.v) < 0 }
func (p Point) Gte(o Point) bool { return p.v.Cmp(o.v) >= 0 }
func (p Point) Lte(o Point) bool { return p.v.Cmp(o.v) <= 0 }

func (p Point) IsZero() bool { return p.v.IsZero() }
func (p Point) IsPos() bool  { return p.v.IsPos() }
func (p Point) IsNeg() bool  { return p.v.IsNeg() }
func (p Point) Sign() int    { return p.v.Sign() }

// Round rounds half to even to the given number of fractional digits.
func (p Point) Round(scale int) Point { return Point{p.v.Round(scale)} }
func (p Point) Trim() Point           { return Point{p.v.Trim(0)} }

func (p Point) Sqrt() Point { return Point{must(p.v.Sqrt())} }

func Min(a, b Point) Point {
	if a.Lt(b) {
		return a
	}
	return b
}

func Max(a, b Point) Point {
	if a.Gt(b) {
		return a
	}
	return b
}

// Clamp limits p into [lo, hi].
func Clamp(p, lo, hi Point) Point {
	return Max(lo, Min(p, hi))
}

func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Point) UnmarshalText(text []byte) error {
	d, err := decimal.Parse(string(text))
	if err != nil {
		return fmt.Errorf("fixed: parse %q: %w", text, err)
	}
	p.v = d
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Point) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return p.UnmarshalText([]byte(s))
}

// Calc chains checked operations and keeps the first error. Once an operation
// has failed every later one returns its left operand unchanged.
type Calc struct {
	err error
}

func (c *Calc) Add(a, b Point) Point { return c.do(a, a.AddE, b) }
func (c *Calc) Sub(a, b Point) Point { return c.do(a, a.SubE, b) }
func (c *Calc) Mul(a, b Point) Point { return c.do(a, a.MulE, b) }
func (c *Calc) Div(a, b Point) Point { return c.do(a, a.DivE, b) }

func (c *Calc) Err() error { return c.err }

func (c *Calc) do(a Point, op func(Point) (Point, error), b Point) Point {
	if c.err != nil {
		return a
	}
	r, err := op(b)
	if err != nil {
		c.err = err
		return a
	}
	return r
}

func checked(v decimal.Decimal, err error) (Point, error) {
	if err != nil {
		return Point{}, fmt.Errorf("%w: %w", ErrArithmetic, err)
	}
	return Point{v}, nil
}

func must(v decimal.Decimal, err error) decimal.Decimal {
	if err == nil {
		return v
	}
	panic(err)
}
