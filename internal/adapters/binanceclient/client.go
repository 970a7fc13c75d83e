package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Page sizes are the endpoint maximums.
	accountTradeLimit = 1000
	incomePageLimit   = 1000

	// userTrades serves at most a 7 day window per request.
	accountTradeWindow = 7 * 24 * time.Hour
	// Oldest history fetched when no start time is known; older rows are not served.
	historyLookback = 90 * 24 * time.Hour
)

// Client implements ports.TradeSource on top of Binance USD-M futures,
// for accounts whose bots trade there directly.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	quoteAsset    string
	now           func() time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	QuoteAsset string // Wallet coin whose balance the ledger tracks (e.g., "USDT")
	BaseURL    string // Optional; overrides the production/testnet endpoint
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: Binance trade history needs an API key and secret", ports.ErrConfigurationError)
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}
	return &Client{futuresClient: client, logger: cfg.Logger, quoteAsset: quote, now: time.Now}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature, key format or key permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1121, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -1000, -1001, -1006, -1007, -1008: // Unknown, disconnected, unexpected response, timeout, overloaded
			mappedErr = ports.ErrBackendUnavailable
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetWalletBalance retrieves the wallet balance for a specific asset (e.g., "USDT").
func (c *Client) GetWalletBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	op := "GetWalletBalance"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Assets {
		if bal.Asset == asset {
			balance, err := decimal.NewFromString(bal.WalletBalance)
			if err != nil {
				parseErr := fmt.Errorf("%w: balance '%s' for asset %s: %w", ports.ErrDecodeFailed, bal.WalletBalance, asset, err)
				return decimal.Zero, c.handleError(ctx, parseErr, op)
			}
			return balance, nil
		}
	}

	err = fmt.Errorf("%w: asset %s not found in account balance", ports.ErrNotFound, asset)
	return decimal.Zero, c.handleError(ctx, err, op)
}

// historyStart returns where a history scan begins: since, but no earlier
// than the lookback Binance still serves.
func (c *Client) historyStart(since time.Time) time.Time {
	oldest := c.now().Add(-historyLookback)
	if since.IsZero() || since.Before(oldest) {
		return oldest
	}
	return since
}

// ListClosedTrades returns the account fills of symbol that realized PnL,
// i.e. the fills that closed (part of) a position. The range since..now is
// walked in 7 day windows, each paged until a short page comes back.
func (c *Client) ListClosedTrades(ctx context.Context, symbol string, since time.Time) ([]domain.ClosedTrade, error) {
	op := "ListClosedTrades"
	end := c.now().UnixMilli()
	seen := make(map[int64]struct{})
	fills := make([]*futures.AccountTrade, 0)
	calls := 0

	for windowStart := c.historyStart(since).UnixMilli(); windowStart <= end; {
		windowEnd := windowStart + accountTradeWindow.Milliseconds() - 1
		if windowEnd > end {
			windowEnd = end
		}

		cursor := windowStart
		for {
			page, err := c.futuresClient.NewListAccountTradeService().
				Symbol(symbol).StartTime(cursor).EndTime(windowEnd).Limit(accountTradeLimit).Do(ctx)
			calls++
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			for _, fill := range page {
				if fill == nil {
					continue
				}
				if _, dup := seen[fill.ID]; dup {
					continue
				}
				seen[fill.ID] = struct{}{}
				fills = append(fills, fill)
			}
			if len(page) < accountTradeLimit {
				break
			}
			cursor = nextCursor(cursor, page[len(page)-1].Time)
		}
		windowStart = windowEnd + 1
	}

	sort.SliceStable(fills, func(i, j int) bool { return fills[i].Time < fills[j].Time })
	trades := translateAccountTrades(fills)
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "requests": calls, "fills": len(fills), "closed": len(trades)})
	return trades, nil
}

// incomeKey identifies an income row across overlapping pages.
type incomeKey struct {
	tranID     int64
	incomeType string
	asset      string
	time       int64
}

// ListLedgerEntries returns the income history of symbol as ledger entries.
// Binance does not report the balance after each income row, so it is rebuilt
// backwards from the current wallet balance over every income of the quote
// asset up to now. That only holds when no page is missed, so the history is
// paged until a short page comes back.
func (c *Client) ListLedgerEntries(ctx context.Context, symbol string, since time.Time) ([]domain.LedgerEntry, error) {
	op := "ListLedgerEntries"
	end := c.now().UnixMilli()
	seen := make(map[incomeKey]struct{})
	incomes := make([]*futures.IncomeHistory, 0)
	calls := 0

	cursor := c.historyStart(since).UnixMilli()
	for {
		page, err := c.futuresClient.NewGetIncomeHistoryService().
			StartTime(cursor).EndTime(end).Limit(incomePageLimit).Do(ctx)
		calls++
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		for _, income := range page {
			if income == nil {
				continue
			}
			key := incomeKey{tranID: income.TranID, incomeType: income.IncomeType, asset: income.Asset, time: income.Time}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			incomes = append(incomes, income)
		}
		if len(page) < incomePageLimit {
			break
		}
		cursor = nextCursor(cursor, page[len(page)-1].Time)
	}

	wallet, err := c.GetWalletBalance(ctx, c.quoteAsset)
	if err != nil {
		return nil, err
	}

	all := translateIncomeHistory(incomes, c.quoteAsset, wallet)
	entries := make([]domain.LedgerEntry, 0, len(all))
	for _, entry := range all {
		if symbol == "" || entry.Symbol == symbol {
			entries = append(entries, entry)
		}
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "requests": calls, "incomes": len(incomes), "entries": len(entries)})
	return entries, nil
}

// nextCursor restarts a full page at its last timestamp so rows sharing that
// millisecond are not skipped; duplicates are dropped by the caller. A page
// that never leaves its start millisecond moves on by one.
func nextCursor(cursor, lastTime int64) int64 {
	if lastTime <= cursor {
		return cursor + 1
	}
	return lastTime
}

// --- Translation Helpers ---

func nullDecimal(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// translateAccountTrades keeps the fills with a non-zero realized PnL.
// A fill carries one timestamp, so it is both the open and the close time.
func translateAccountTrades(fills []*futures.AccountTrade) []domain.ClosedTrade {
	trades := make([]domain.ClosedTrade, 0, len(fills))
	for _, fill := range fills {
		if fill == nil {
			continue
		}
		pnl := nullDecimal(fill.RealizedPnl)
		if pnl.Valid && pnl.Decimal.IsZero() {
			continue
		}
		at := time.UnixMilli(fill.Time).UTC()
		trades = append(trades, domain.ClosedTrade{
			Asset:         fill.Symbol,
			Side:          domain.ParseSide(string(fill.Side)),
			ClosedPnL:     pnl,
			AvgEntryPrice: nullDecimal(fill.Price),
			CumEntryValue: nullDecimal(fill.QuoteQuantity),
			CreatedTime:   at,
			UpdatedTime:   at,
		})
	}
	return trades
}

// translateIncomeHistory turns incomes of quoteAsset into ledger entries, oldest
// first, with each cash balance derived from the current wallet balance.
func translateIncomeHistory(incomes []*futures.IncomeHistory, quoteAsset string, wallet decimal.Decimal) []domain.LedgerEntry {
	entries := make([]domain.LedgerEntry, 0, len(incomes))
	for _, income := range incomes {
		if income == nil || income.Asset != quoteAsset {
			continue
		}
		entries = append(entries, domain.LedgerEntry{
			Symbol:          income.Symbol,
			Change:          nullDecimal(income.Income),
			TransactionTime: time.UnixMilli(income.Time).UTC(),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TransactionTime.Before(entries[j].TransactionTime)
	})

	balance := wallet
	for i := len(entries) - 1; i >= 0; i-- {
		entries[i].CashBalance = decimal.NullDecimal{Decimal: balance, Valid: true}
		if entries[i].Change.Valid {
			balance = balance.Sub(entries[i].Change.Decimal)
		}
	}
	return entries
}
