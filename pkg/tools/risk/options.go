package risk

import "time"

type ManagerOption func(*Manager)

// WithInlineFills controls whether accepted orders are confirmed on exec.fills
// immediately at the last price. Enabled by default.
func WithInlineFills(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.inlineFills = enabled
	}
}

// WithQtyScale sets the number of fractional digits order quantities are rounded to.
func WithQtyScale(scale int) ManagerOption {
	return func(m *Manager) {
		m.qtyScale = scale
	}
}

// WithFallbackAtr estimates the ATR of signals that carry none from the last
// window price moves of their symbol. Disabled by default, such signals size to zero.
func WithFallbackAtr(window int) ManagerOption {
	return func(m *Manager) {
		m.atrWindow = window
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}
