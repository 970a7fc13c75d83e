package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.SnapshotRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/bot_performance.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Data directory checked/created", map[string]interface{}{"path": filepath.Dir(dbPath)})

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour) // Optional: recycle connections periodically

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	// Initialize schema (consider moving to a separate migration tool/step)
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Times are stored as epoch milliseconds so they round-trip without timezone drift.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS bots (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		asset TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS daily_metrics (
		bot_id INTEGER NOT NULL,
		bucket TEXT NOT NULL,
		date_label TEXT NOT NULL,
		pnl REAL NOT NULL,
		roi REAL NOT NULL,
		roe REAL NOT NULL,
		PRIMARY KEY (bot_id, bucket)
	);

	CREATE TABLE IF NOT EXISTS bot_summaries (
		bot_id INTEGER PRIMARY KEY,
		total_pnl TEXT NOT NULL,
		average_pnl TEXT NOT NULL,
		trade_count INTEGER NOT NULL,
		insights TEXT NOT NULL, -- JSON encoded domain.Insights
		cycle_id TEXT NOT NULL DEFAULT '',
		computed_at_ms INTEGER NOT NULL
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- SnapshotRepository Implementation ---

// SaveSnapshot replaces the bot row, its daily metrics and its summary in one transaction.
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) (err error) {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", ports.ErrInvalidRequest)
	}
	botID := snapshot.Bot.ID

	insights, err := json.Marshal(snapshot.Insights)
	if err != nil {
		return fmt.Errorf("failed to encode insights for bot %d: %w", botID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bot %d: %w: %w", botID, ports.ErrDBConnection, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsertBot = `
	INSERT INTO bots (id, name, asset, status, created_at_ms)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name, asset = excluded.asset, status = excluded.status, created_at_ms = excluded.created_at_ms`
	if _, err = tx.ExecContext(ctx, upsertBot,
		botID, snapshot.Bot.Name, snapshot.Bot.Asset, string(snapshot.Bot.Status), snapshot.Bot.AttributionLowerBound()); err != nil {
		return fmt.Errorf("failed to upsert bot %d: %w: %w", botID, ports.ErrUpdateFailed, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM daily_metrics WHERE bot_id = ?`, botID); err != nil {
		return fmt.Errorf("failed to clear daily metrics of bot %d: %w: %w", botID, ports.ErrUpdateFailed, err)
	}

	const insertDaily = `
	INSERT INTO daily_metrics (bot_id, bucket, date_label, pnl, roi, roe)
	VALUES (?, ?, ?, ?, ?, ?)`
	for _, m := range snapshot.Daily {
		if _, err = tx.ExecContext(ctx, insertDaily, botID, m.Bucket, m.Date, m.PnL, m.ROI, m.ROE); err != nil {
			return fmt.Errorf("failed to insert daily metric %s of bot %d: %w: %w", m.Bucket, botID, ports.ErrUpdateFailed, err)
		}
	}

	const upsertSummary = `
	INSERT INTO bot_summaries (bot_id, total_pnl, average_pnl, trade_count, insights, cycle_id, computed_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(bot_id) DO UPDATE SET
		total_pnl = excluded.total_pnl, average_pnl = excluded.average_pnl, trade_count = excluded.trade_count,
		insights = excluded.insights, cycle_id = excluded.cycle_id, computed_at_ms = excluded.computed_at_ms`
	if _, err = tx.ExecContext(ctx, upsertSummary,
		botID, snapshot.Summary.TotalPnL, snapshot.Summary.AveragePnL, snapshot.TradeCount,
		string(insights), snapshot.CycleID, snapshot.ComputedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to upsert summary of bot %d: %w: %w", botID, ports.ErrUpdateFailed, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot of bot %d: %w: %w", botID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Snapshot saved", map[string]interface{}{"botID": botID, "days": len(snapshot.Daily), "cycleID": snapshot.CycleID})
	return nil
}

// FindSnapshot retrieves the stored snapshot of a bot, or nil if there is none.
func (r *Repository) FindSnapshot(ctx context.Context, botID int64) (*domain.Snapshot, error) {
	const query = `
	SELECT b.id, b.name, b.asset, b.status, b.created_at_ms,
	       s.total_pnl, s.average_pnl, s.trade_count, s.insights, s.cycle_id, s.computed_at_ms
	FROM bots b
	JOIN bot_summaries s ON s.bot_id = b.id
	WHERE b.id = ?`

	row := r.db.QueryRowContext(ctx, query, botID)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No snapshot found for bot", map[string]interface{}{"botID": botID})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query snapshot of bot %d: %w: %w", botID, ports.ErrQueryFailed, err)
	}

	daily, err := r.findDailyMetrics(ctx, botID)
	if err != nil {
		return nil, err
	}
	snapshot.Daily = daily
	return snapshot, nil
}

func (r *Repository) findDailyMetrics(ctx context.Context, botID int64) ([]domain.DailyMetric, error) {
	const query = `
	SELECT bucket, date_label, pnl, roi, roe
	FROM daily_metrics
	WHERE bot_id = ?
	ORDER BY bucket ASC`

	rows, err := r.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics of bot %d: %w: %w", botID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	daily := make([]domain.DailyMetric, 0)
	for rows.Next() {
		var m domain.DailyMetric
		if err := rows.Scan(&m.Bucket, &m.Date, &m.PnL, &m.ROI, &m.ROE); err != nil {
			return nil, fmt.Errorf("failed to scan daily metric of bot %d: %w", botID, err)
		}
		daily = append(daily, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily metric rows: %w", err)
	}
	return daily, nil
}

// ListBotIDs returns the ids of every bot with a stored summary, ascending.
func (r *Repository) ListBotIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT bot_id FROM bot_summaries ORDER BY bot_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bot ids: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bot id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bot id rows: %w", err)
	}
	return ids, nil
}

// DeleteSnapshot removes everything stored for a bot.
func (r *Repository) DeleteSnapshot(ctx context.Context, botID int64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bot %d: %w: %w", botID, ports.ErrDBConnection, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, query := range []string{
		`DELETE FROM daily_metrics WHERE bot_id = ?`,
		`DELETE FROM bot_summaries WHERE bot_id = ?`,
		`DELETE FROM bots WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, query, botID); err != nil {
			return fmt.Errorf("failed to delete snapshot of bot %d: %w: %w", botID, ports.ErrUpdateFailed, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of bot %d: %w: %w", botID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Snapshot deleted", map[string]interface{}{"botID": botID})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot scans a bots+bot_summaries row into a domain.Snapshot without its daily metrics.
func scanSnapshot(s scanner) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{}
	var status, insights string
	var createdAtMs, computedAtMs int64
	err := s.Scan(
		&snap.Bot.ID, &snap.Bot.Name, &snap.Bot.Asset, &status, &createdAtMs,
		&snap.Summary.TotalPnL, &snap.Summary.AveragePnL, &snap.TradeCount, &insights, &snap.CycleID, &computedAtMs)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	snap.Bot.Status = domain.ParseBotStatus(status)
	if createdAtMs > 0 {
		snap.Bot.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	}
	snap.ComputedAt = time.UnixMilli(computedAtMs).UTC()
	if err := json.Unmarshal([]byte(insights), &snap.Insights); err != nil {
		return nil, fmt.Errorf("failed to decode insights of bot %d: %w: %w", snap.Bot.ID, ports.ErrDecodeFailed, err)
	}
	return snap, nil
}
