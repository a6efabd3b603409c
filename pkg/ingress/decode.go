package ingress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/peter-kozarec/paperloop/pkg/common"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// DecodeError describes the first field of a payload that could not be decoded.
type DecodeError struct {
	Topic string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Topic, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	errMissing     = errors.New("missing value")
	errNonNumeric  = errors.New("not a number")
	errNegative    = errors.New("must not be negative")
	errNotPositive = errors.New("must be positive")
	errOutOfRange  = errors.New("magnitude out of range")
)

// maxMagnitude bounds every numeric field, so the product of a quantity and a
// price still fits the 19 integer digits of fixed.Point.
var maxMagnitude = fixed.FromInt64(1_000_000_000, 0)

// Decode turns a loosely typed payload into the record type of topic.
// Numbers may arrive as JSON numbers, integers or numeric strings.
func Decode(topic string, raw map[string]any) (any, error) {
	d := decoder{topic: topic, raw: raw}

	switch topic {
	case common.TopicMarketLast:
		return d.price()
	case common.TopicSignalsTarget:
		return d.signal()
	case common.TopicOrdersPlanned:
		return d.order()
	case common.TopicExecFills:
		return d.fill()
	case common.TopicStrategyLog:
		return d.note()
	default:
		return nil, &DecodeError{Topic: topic, Err: errors.New("unsupported topic")}
	}
}

type decoder struct {
	topic string
	raw   map[string]any
}

func (d decoder) fail(field string, err error) error {
	return &DecodeError{Topic: d.topic, Field: field, Err: err}
}

func (d decoder) str(field string) (string, bool, error) {
	v, ok := d.raw[field]
	if !ok || v == nil {
		return "", false, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false, d.fail(field, err)
	}
	s = strings.TrimSpace(s)
	return s, s != "", nil
}

func (d decoder) symbol() (string, error) {
	s, ok, err := d.str("symbol")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", d.fail("symbol", errMissing)
	}
	return s, nil
}

func (d decoder) side() (common.Side, error) {
	s, ok, err := d.str("side")
	if err != nil {
		return common.SideFlat, err
	}
	if !ok {
		return common.SideFlat, d.fail("side", errMissing)
	}
	side, err := common.ParseSide(s)
	if err != nil {
		return common.SideFlat, d.fail("side", err)
	}
	return side, nil
}

func (d decoder) point(field string) (fixed.Point, bool, error) {
	s, ok, err := d.str(field)
	if err != nil || !ok {
		return fixed.Zero, false, err
	}
	p, err := fixed.Parse(s)
	if err != nil {
		return fixed.Zero, false, d.fail(field, errNonNumeric)
	}
	if p.Abs().Gt(maxMagnitude) {
		return fixed.Zero, false, d.fail(field, errOutOfRange)
	}
	return p, true, nil
}

func (d decoder) nonNegative(field string) (fixed.Point, error) {
	p, _, err := d.point(field)
	if err != nil {
		return fixed.Zero, err
	}
	if p.IsNeg() {
		return fixed.Zero, d.fail(field, errNegative)
	}
	return p, nil
}

func (d decoder) level(field string) (*fixed.Point, error) {
	p, ok, err := d.point(field)
	if err != nil || !ok {
		return nil, err
	}
	if !p.IsPos() {
		return nil, d.fail(field, errNotPositive)
	}
	return &p, nil
}

func (d decoder) price() (common.Price, error) {
	symbol, err := d.symbol()
	if err != nil {
		return common.Price{}, err
	}
	px, ok, err := d.point("price")
	if err != nil {
		return common.Price{}, err
	}
	if !ok {
		return common.Price{}, d.fail("price", errMissing)
	}
	if !px.IsPos() {
		return common.Price{}, d.fail("price", errNotPositive)
	}
	return common.Price{Symbol: symbol, Price: px}, nil
}

func (d decoder) signal() (common.Signal, error) {
	var s common.Signal
	var err error

	if s.Symbol, err = d.symbol(); err != nil {
		return s, err
	}
	if s.Side, err = d.side(); err != nil {
		return s, err
	}
	if s.Strength, err = d.nonNegative("strength"); err != nil {
		return s, err
	}
	if s.Atr, err = d.nonNegative("atr"); err != nil {
		return s, err
	}
	if s.StopLoss, err = d.level("sl_price"); err != nil {
		return s, err
	}
	if s.TakeProfit, err = d.level("tp_price"); err != nil {
		return s, err
	}
	if s.Comment, _, err = d.str("comment"); err != nil {
		return s, err
	}
	return s, nil
}

func (d decoder) order() (common.Order, error) {
	var o common.Order
	var err error

	if o.Symbol, err = d.symbol(); err != nil {
		return o, err
	}
	if o.Side, err = d.side(); err != nil {
		return o, err
	}
	if o.Qty, err = d.nonNegative("qty"); err != nil {
		return o, err
	}
	if o.Price, err = d.nonNegative("price"); err != nil {
		return o, err
	}
	if o.StopLoss, err = d.level("sl_price"); err != nil {
		return o, err
	}
	if o.TakeProfit, err = d.level("tp_price"); err != nil {
		return o, err
	}
	if o.Reason, _, err = d.str("reason"); err != nil {
		return o, err
	}
	return o, nil
}

func (d decoder) fill() (common.Fill, error) {
	status, ok, err := d.str("status")
	if err != nil {
		return common.Fill{}, err
	}
	if !ok {
		return common.Fill{}, d.fail("status", errMissing)
	}

	o, err := d.order()
	if err != nil {
		return common.Fill{}, err
	}
	f := common.FillFromOrder(o, o.Price)
	f.Status = strings.ToLower(status)
	return f, nil
}

func (d decoder) note() (common.Note, error) {
	text, ok, err := d.str("note")
	if err != nil {
		return common.Note{}, err
	}
	if !ok {
		return common.Note{}, d.fail("note", errMissing)
	}

	n := common.Note{Note: text}
	if n.Symbol, _, err = d.str("symbol"); err != nil {
		return common.Note{}, err
	}
	for k, v := range d.raw {
		if k == "note" || k == "symbol" {
			continue
		}
		if n.Fields == nil {
			n.Fields = make(map[string]any)
		}
		n.Fields[k] = v
	}
	return n, nil
}
