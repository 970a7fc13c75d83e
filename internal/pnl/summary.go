package pnl

import (
	"botPerformance/internal/domain"

	"github.com/shopspring/decimal"
)

// Summarize returns the total and per-trade average closed PnL, formatted to
// two decimals. An empty list yields "0.00" for both.
func Summarize(trades []domain.ClosedTrade) domain.Summary {
	if len(trades) == 0 {
		return domain.Summary{TotalPnL: "0.00", AveragePnL: "0.00"}
	}
	total := decimal.Zero
	for _, trade := range trades {
		if trade.ClosedPnL.Valid {
			total = total.Add(trade.ClosedPnL.Decimal)
		}
	}
	average := total.Div(decimal.NewFromInt(int64(len(trades))))
	return domain.Summary{
		TotalPnL:   total.StringFixed(2),
		AveragePnL: average.StringFixed(2),
	}
}
