package ports

import (
	"context"

	"botPerformance/internal/domain"
)

// SnapshotRepository persists the per-bot performance computed by each poll cycle.
type SnapshotRepository interface {
	// SaveSnapshot replaces everything stored for snapshot.Bot.ID.
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error
	// FindSnapshot retrieves the last stored snapshot of a bot.
	// Returns nil, nil if nothing was stored for the bot.
	FindSnapshot(ctx context.Context, botID int64) (*domain.Snapshot, error)
	// ListBotIDs returns the ids of all bots with a stored snapshot, ascending.
	ListBotIDs(ctx context.Context) ([]int64, error)
	// DeleteSnapshot removes a bot's stored snapshot. Missing bots are not an error.
	DeleteSnapshot(ctx context.Context, botID int64) error
}
