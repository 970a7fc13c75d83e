package pnl

import (
	"sort"

	"botPerformance/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ledgerDay accumulates the ledger side of one bucket (PnL and ROE inputs).
type ledgerDay struct {
	change     decimal.Decimal
	cashBefore decimal.Decimal
	cashCount  int
}

// tradeDay accumulates the trade side of one bucket (ROI denominator).
type tradeDay struct {
	entryValue decimal.Decimal
	count      int
}

// AggregateDaily buckets the bot's ledger entries and closed trades into
// reporting days and returns one DailyMetric per day, ascending.
//
// PnL is the sum of ledger changes. ROI divides it by the entry notional of
// the trades closed that day. ROE divides it by the mean balance before each
// change. Every ratio is 0 when its denominator is missing or not positive.
func AggregateDaily(bot domain.Bot, trades []domain.ClosedTrade, ledger []domain.LedgerEntry) []domain.DailyMetric {
	ledgerDays := make(map[string]*ledgerDay)
	for _, entry := range ledger {
		if !entry.Change.Valid || !belongsTo(bot, entry.Symbol, entry.TransactionTime) {
			continue
		}
		key := BucketOf(entry.TransactionTime).Key
		day, ok := ledgerDays[key]
		if !ok {
			day = &ledgerDay{}
			ledgerDays[key] = day
		}
		day.change = day.change.Add(entry.Change.Decimal)
		if before, ok := entry.CashBalanceBeforeChange(); ok {
			day.cashBefore = day.cashBefore.Add(before)
			day.cashCount++
		}
	}

	// ROI is keyed by close time, ROE by settlement time.
	tradeDays := make(map[string]*tradeDay)
	for _, trade := range trades {
		if !belongsTo(bot, trade.Asset, trade.CreatedTime) {
			continue
		}
		key := BucketOf(trade.UpdatedTime).Key
		day, ok := tradeDays[key]
		if !ok {
			day = &tradeDay{}
			tradeDays[key] = day
		}
		if trade.CumEntryValue.Valid {
			day.entryValue = day.entryValue.Add(trade.CumEntryValue.Decimal)
		}
		day.count++
	}

	keys := make([]string, 0, len(ledgerDays)+len(tradeDays))
	for key := range ledgerDays {
		keys = append(keys, key)
	}
	for key := range tradeDays {
		if _, seen := ledgerDays[key]; !seen {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	metrics := make([]domain.DailyMetric, 0, len(keys))
	for _, key := range keys {
		pnl := decimal.Zero
		roe := decimal.Zero
		if day, ok := ledgerDays[key]; ok {
			pnl = day.change
			roe = returnOnEquity(day)
		}
		roi := decimal.Zero
		if day, ok := tradeDays[key]; ok && day.count > 0 && day.entryValue.IsPositive() {
			roi = pnl.Div(day.entryValue).Mul(hundred).Round(4)
		}
		metrics = append(metrics, domain.DailyMetric{
			Bucket: key,
			Date:   DisplayLabel(key),
			PnL:    pnl.InexactFloat64(),
			ROI:    roi.InexactFloat64(),
			ROE:    roe.InexactFloat64(),
		})
	}
	return metrics
}

func returnOnEquity(day *ledgerDay) decimal.Decimal {
	if day.cashCount == 0 {
		return decimal.Zero
	}
	avgBefore := day.cashBefore.Div(decimal.NewFromInt(int64(day.cashCount)))
	if !avgBefore.IsPositive() {
		return decimal.Zero
	}
	return day.change.Div(avgBefore).Mul(hundred).Round(2)
}
