package common

import (
	"time"

	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

// TradeRow is one append-only line of the trade log.
type TradeRow struct {
	ID            string      `json:"id"`
	TimeStamp     time.Time   `json:"ts"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Qty           fixed.Point `json:"qty"`
	Price         fixed.Point `json:"price"`
	RealizedDelta fixed.Point `json:"realized_delta"`
	RealizedTotal fixed.Point `json:"realized_total"`
	CashAfter     fixed.Point `json:"cash_after"`
	PosQty        fixed.Point `json:"pos_qty"`
	PosAvgPx      fixed.Point `json:"pos_avg_px"`
}

// EquitySnapshot is one mark-to-market observation of the account.
type EquitySnapshot struct {
	TimeStamp     time.Time   `json:"ts"`
	Equity        fixed.Point `json:"equity"`
	Cash          fixed.Point `json:"cash"`
	Unrealized    fixed.Point `json:"unrealized"`
	RealizedTotal fixed.Point `json:"realized_total"`
	GrossExposure fixed.Point `json:"gross_exposure"`
	NumPositions  int         `json:"num_positions"`
}
