package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bot is a martingale bot instance as reported by the backend.
type Bot struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Asset     string    `json:"asset"`
	Status    BotStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"` // zero when the backend sent no creation time
}

// AttributionLowerBound returns the epoch millisecond after which trades and
// ledger entries belong to this bot. A bot without a creation time starts at epoch 0.
func (b Bot) AttributionLowerBound() int64 {
	if b.CreatedAt.IsZero() {
		return 0
	}
	return b.CreatedAt.UnixMilli()
}

// BotParams carries the settings sent to the backend when creating or editing a bot.
type BotParams struct {
	Name              string          `json:"name,omitempty"`
	Asset             string          `json:"asset"`
	Leverage          int             `json:"leverage"`
	BaseAmount        decimal.Decimal `json:"base_amount"`
	Multiplier        decimal.Decimal `json:"multiplier"`
	TakeProfitPercent decimal.Decimal `json:"take_profit_percent"`
	MaxSteps          int             `json:"max_steps"`
}

// Transfer moves funds between two wallets of the account.
type Transfer struct {
	Coin        string          `json:"coin"`
	Amount      decimal.Decimal `json:"amount"`
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
}
