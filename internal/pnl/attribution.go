package pnl

import (
	"time"

	"botPerformance/internal/domain"
)

// Attribute selects the trades that belong to bot: same asset and opened
// strictly after the bot was created. The result is never nil.
func Attribute(bot domain.Bot, trades []domain.ClosedTrade) []domain.ClosedTrade {
	attributed := make([]domain.ClosedTrade, 0, len(trades))
	for _, trade := range trades {
		if belongsTo(bot, trade.Asset, trade.CreatedTime) {
			attributed = append(attributed, trade)
		}
	}
	return attributed
}

// belongsTo is the single attribution rule shared by trades and ledger entries.
// The lower bound is exclusive: a record stamped in the bot's creation
// millisecond belongs to whatever ran before it.
func belongsTo(bot domain.Bot, symbol string, at time.Time) bool {
	return symbol == bot.Asset && at.UnixMilli() > bot.AttributionLowerBound()
}
