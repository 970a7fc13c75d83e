package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosedTrade is one closed position record. Numeric fields are NullDecimal:
// a value the exchange sent but that failed to parse is kept as Valid=false
// and contributes nothing to aggregates.
type ClosedTrade struct {
	Asset         string              // Trading symbol (e.g., "BTCUSDT")
	Side          Side                // Side of the closing order
	ClosedPnL     decimal.NullDecimal // Realized PnL in quote currency
	AvgEntryPrice decimal.NullDecimal // Average entry price of the position
	CumEntryValue decimal.NullDecimal // Total entry notional value
	CreatedTime   time.Time           // When the position was opened
	UpdatedTime   time.Time           // When the position was closed
}
