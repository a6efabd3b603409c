package common

import (
	"fmt"
	"strings"
)

type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	case SideFlat:
		return "flat"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ParseSide accepts long, short and flat in any letter case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return SideLong, nil
	case "short":
		return SideShort, nil
	case "flat":
		return SideFlat, nil
	default:
		return SideFlat, fmt.Errorf("unknown side %q", s)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	side, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}
