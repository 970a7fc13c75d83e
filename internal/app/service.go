package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"botPerformance/config"
	"botPerformance/internal/domain"
	"botPerformance/internal/pnl"
	"botPerformance/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultFetchTimeout = time.Minute
)

// ErrAlreadyRunning is returned by Start when the poll loop is active.
var ErrAlreadyRunning = errors.New("performance service already running")

// RefreshReport describes the outcome of one poll cycle.
type RefreshReport struct {
	CycleID string `json:"cycleId"`
	Bots    int    `json:"bots"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

// assetData is what one fetch of an asset's history returns.
type assetData struct {
	trades []domain.ClosedTrade
	ledger []domain.LedgerEntry
}

// PerformanceService polls the bot directory and the trade source on a fixed
// interval and keeps the latest computed snapshot of every bot.
type PerformanceService struct {
	cfg      *config.Config
	logger   ports.Logger
	bots     ports.BotDirectory
	source   ports.TradeSource
	repo     ports.SnapshotRepository
	fetches  singleflight.Group
	interval time.Duration
	now      func() time.Time

	mu        sync.RWMutex // Protects snapshots
	snapshots map[int64]*domain.Snapshot

	runMu   sync.Mutex // Protects the loop lifecycle fields below
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPerformanceService creates a new application service instance.
func NewPerformanceService(
	cfg *config.Config,
	logger ports.Logger,
	bots ports.BotDirectory,
	source ports.TradeSource,
	repo ports.SnapshotRepository,
) (*PerformanceService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || bots == nil || source == nil || repo == nil {
		return nil, fmt.Errorf("missing required dependencies for PerformanceService")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &PerformanceService{
		cfg:       cfg,
		logger:    logger,
		bots:      bots,
		source:    source,
		repo:      repo,
		interval:  interval,
		now:       time.Now,
		snapshots: make(map[int64]*domain.Snapshot),
	}, nil
}

// LoadPersisted fills the in-memory view from the repository so the API has
// data before the first poll cycle finishes.
func (s *PerformanceService) LoadPersisted(ctx context.Context) error {
	ids, err := s.repo.ListBotIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persisted snapshots: %w", err)
	}

	loaded := 0
	for _, id := range ids {
		snap, err := s.repo.FindSnapshot(ctx, id)
		if err != nil {
			s.logger.Warn(ctx, "Failed to load persisted snapshot", map[string]interface{}{"botID": id, "error": err.Error()})
			continue
		}
		if snap == nil {
			continue
		}
		s.mu.Lock()
		if _, ok := s.snapshots[id]; !ok {
			s.snapshots[id] = snap
			loaded++
		}
		s.mu.Unlock()
	}
	s.logger.Info(ctx, "Persisted snapshots loaded", map[string]interface{}{"count": loaded})
	return nil
}

// Start launches the poll loop in the background. The first cycle runs
// immediately. The loop ends on Stop or when ctx is canceled.
func (s *PerformanceService) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running && !s.loopExited() {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info(ctx, "Starting Performance Service...", map[string]interface{}{"interval": s.interval.String()})
	go s.loop(loopCtx, s.done)
	return nil
}

// Stop ends the poll loop and waits for the in-flight cycle to return.
// Calling Stop on a stopped service does nothing.
func (s *PerformanceService) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	<-s.done
	s.running = false
	s.logger.Info(context.Background(), "Performance Service stopped.")
}

// Running reports whether the poll loop is active.
func (s *PerformanceService) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running && !s.loopExited()
}

// loopExited must be called with runMu held.
func (s *PerformanceService) loopExited() bool {
	if s.done == nil {
		return true
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *PerformanceService) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RefreshNow(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, err, "Poll cycle failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "Poll loop context cancelled")
			return
		case <-ticker.C:
		}
	}
}

// RefreshNow runs one poll cycle: list the bots, fetch each asset's history
// once and recompute every bot's snapshot. A bot whose asset could not be
// fetched keeps its previous snapshot.
func (s *PerformanceService) RefreshNow(ctx context.Context) (*RefreshReport, error) {
	report := &RefreshReport{CycleID: uuid.NewString()}
	fields := map[string]interface{}{"cycleID": report.CycleID}

	bots, err := s.bots.ListBots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	report.Bots = len(bots)
	s.logger.Debug(ctx, "Poll cycle started", map[string]interface{}{"cycleID": report.CycleID, "bots": len(bots)})

	byAsset := make(map[string][]domain.Bot)
	assets := make([]string, 0)
	for _, bot := range bots {
		if _, ok := byAsset[bot.Asset]; !ok {
			assets = append(assets, bot.Asset)
		}
		byAsset[bot.Asset] = append(byAsset[bot.Asset], bot)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		assetBots := byAsset[asset]
		data, err := s.fetchAsset(ctx, asset, earliestLowerBound(assetBots))
		if err != nil {
			report.Failed += len(assetBots)
			s.logger.Error(ctx, err, "Failed to fetch asset history, keeping previous snapshots", map[string]interface{}{
				"cycleID": report.CycleID,
				"asset":   asset,
				"bots":    len(assetBots),
			})
			continue
		}

		for _, bot := range assetBots {
			snap := pnl.BuildSnapshot(bot, data.trades, data.ledger, s.now().UTC())
			snap.CycleID = report.CycleID
			s.store(ctx, &snap)
			report.Updated++
		}
	}

	s.prune(ctx, bots)
	fields["updated"] = report.Updated
	fields["failed"] = report.Failed
	s.logger.Info(ctx, "Poll cycle finished", fields)
	return report, nil
}

// fetchAsset loads the closed trades and ledger entries of asset. Concurrent
// cycles asking for the same asset and window share a single fetch. The shared
// fetch is detached from the caller that started it, so one caller going away
// does not fail the others; it is bounded by the request timeout instead.
func (s *PerformanceService) fetchAsset(ctx context.Context, asset string, since time.Time) (*assetData, error) {
	key := fmt.Sprintf("%s@%d", asset, since.UnixMilli())
	v, err, shared := s.fetches.Do(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout())
		defer cancel()

		trades, err := s.source.ListClosedTrades(fetchCtx, asset, since)
		if err != nil {
			return nil, fmt.Errorf("closed trades of %s: %w", asset, err)
		}
		ledger, err := s.source.ListLedgerEntries(fetchCtx, asset, since)
		if err != nil {
			return nil, fmt.Errorf("ledger entries of %s: %w", asset, err)
		}
		return &assetData{trades: trades, ledger: ledger}, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug(ctx, "Asset fetch shared with a concurrent cycle", map[string]interface{}{"asset": asset})
	}
	return v.(*assetData), nil
}

func (s *PerformanceService) fetchTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return defaultFetchTimeout
}

// earliestLowerBound returns the oldest creation time among bots, or the zero
// time when any of them has none. The engine still applies the strict bound per bot.
func earliestLowerBound(bots []domain.Bot) time.Time {
	var earliest int64 = -1
	for _, bot := range bots {
		bound := bot.AttributionLowerBound()
		if bound == 0 {
			return time.Time{}
		}
		if earliest < 0 || bound < earliest {
			earliest = bound
		}
	}
	if earliest <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(earliest).UTC()
}

// store keeps snap unless a snapshot computed later is already held, which
// happens when an overlapping cycle finished first.
func (s *PerformanceService) store(ctx context.Context, snap *domain.Snapshot) {
	s.mu.Lock()
	if held, ok := s.snapshots[snap.Bot.ID]; ok && held.ComputedAt.After(snap.ComputedAt) {
		s.mu.Unlock()
		s.logger.Debug(ctx, "Dropping stale snapshot", map[string]interface{}{"botID": snap.Bot.ID, "computedAt": snap.ComputedAt, "held": held.ComputedAt})
		return
	}
	s.snapshots[snap.Bot.ID] = snap
	s.mu.Unlock()

	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn(ctx, "Failed to persist snapshot", map[string]interface{}{"botID": snap.Bot.ID, "error": err.Error()})
	}
}

// prune drops snapshots of bots the directory no longer lists.
func (s *PerformanceService) prune(ctx context.Context, listed []domain.Bot) {
	keep := make(map[int64]struct{}, len(listed))
	for _, bot := range listed {
		keep[bot.ID] = struct{}{}
	}

	s.mu.Lock()
	removed := make([]int64, 0)
	for id := range s.snapshots {
		if _, ok := keep[id]; !ok {
			delete(s.snapshots, id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	for _, id := range removed {
		if err := s.repo.DeleteSnapshot(ctx, id); err != nil {
			s.logger.Warn(ctx, "Failed to delete snapshot of removed bot", map[string]interface{}{"botID": id, "error": err.Error()})
			continue
		}
		s.logger.Info(ctx, "Removed snapshot of deleted bot", map[string]interface{}{"botID": id})
	}
}

// Snapshot returns a copy of the latest in-memory snapshot of a bot.
func (s *PerformanceService) Snapshot(botID int64) (*domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[botID]
	if !ok {
		return nil, false
	}
	cp := *snap
	return &cp, true
}

// Snapshots returns copies of all in-memory snapshots ordered by bot id.
func (s *PerformanceService) Snapshots() []domain.Snapshot {
	s.mu.RLock()
	out := make([]domain.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, *snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Bot.ID < out[j].Bot.ID
	})
	return out
}

// Lookup returns a bot's snapshot from memory, falling back to the repository.
// It returns nil, nil when neither has the bot.
func (s *PerformanceService) Lookup(ctx context.Context, botID int64) (*domain.Snapshot, error) {
	if snap, ok := s.Snapshot(botID); ok {
		return snap, nil
	}
	snap, err := s.repo.FindSnapshot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot of bot %d: %w", botID, err)
	}
	return snap, nil
}

// WalletBalance returns the current balance of the configured quote asset.
func (s *PerformanceService) WalletBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.source.GetWalletBalance(ctx, s.cfg.QuoteAsset)
}
