package ports

import (
	"context"
	"time"

	"botPerformance/internal/domain"

	"github.com/shopspring/decimal"
)

// BotDirectory lists the bots known to the backend.
type BotDirectory interface {
	// ListBots returns every bot of the account.
	ListBots(ctx context.Context) ([]domain.Bot, error)
	// GetBot returns a single bot. Wraps ErrNotFound when the id is unknown.
	GetBot(ctx context.Context, id int64) (*domain.Bot, error)
}

// BotCommander issues lifecycle commands. The backend owns the lifecycle;
// these calls are passed through without local state changes.
type BotCommander interface {
	CreateBot(ctx context.Context, params domain.BotParams) (*domain.Bot, error)
	UpdateBot(ctx context.Context, id int64, params domain.BotParams) (*domain.Bot, error)
	StartBot(ctx context.Context, id int64) error
	StopBot(ctx context.Context, id int64) error
	DeleteBot(ctx context.Context, id int64) error
	Transfer(ctx context.Context, transfer domain.Transfer) error
}

// TradeSource supplies the raw records the PnL engine consumes.
type TradeSource interface {
	// ListClosedTrades returns closed positions for symbol, starting at since (zero means no bound).
	ListClosedTrades(ctx context.Context, symbol string, since time.Time) ([]domain.ClosedTrade, error)
	// ListLedgerEntries returns transaction log rows for symbol, starting at since (zero means no bound).
	ListLedgerEntries(ctx context.Context, symbol string, since time.Time) ([]domain.LedgerEntry, error)
	// GetWalletBalance returns the wallet balance of a coin (e.g., "USDT").
	GetWalletBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}
