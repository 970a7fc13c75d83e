package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one row of the account transaction log.
type LedgerEntry struct {
	Symbol          string              // Empty for non-trade transactions (transfers, funding)
	Change          decimal.NullDecimal // Wallet balance delta
	CashBalance     decimal.NullDecimal // Wallet balance after the change was applied
	TransactionTime time.Time
}

// CashBalanceBeforeChange returns cashBalance - change. ok is false when either
// side of the subtraction is missing.
func (e LedgerEntry) CashBalanceBeforeChange() (before decimal.Decimal, ok bool) {
	if !e.Change.Valid || !e.CashBalance.Valid {
		return decimal.Zero, false
	}
	return e.CashBalance.Decimal.Sub(e.Change.Decimal), true
}
