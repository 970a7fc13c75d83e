package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

const maxResponseBytes = 16 << 20

// Client talks to the dashboard backend REST API. It implements
// ports.BotDirectory, ports.BotCommander and ports.TradeSource.
type Client struct {
	baseURL     *url.URL
	apiKey      string
	httpClient  *http.Client
	logger      ports.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
}

// Config holds configuration for the backend client adapter.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // Per-request timeout
	MaxAttempts int           // Attempts per call, including the first
	MinBackoff  time.Duration // First retry delay
	MaxBackoff  time.Duration // Retry delay cap
	Logger      ports.Logger
	HTTPClient  *http.Client // Optional; built from Timeout when nil
}

// New creates a new backend client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for backend client")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: backend base URL is required", ports.ErrConfigurationError)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid backend base URL %q", ports.ErrConfigurationError, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	minBackoff := cfg.MinBackoff
	if minBackoff <= 0 {
		minBackoff = 500 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < minBackoff {
		maxBackoff = 10 * minBackoff
	}

	cfg.Logger.Info(context.Background(), "Backend client configured", map[string]interface{}{"baseURL": base.String(), "maxAttempts": maxAttempts})
	return &Client{
		baseURL:     base,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		logger:      cfg.Logger,
		maxAttempts: maxAttempts,
		minBackoff:  minBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// handleError translates transport and HTTP failures into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation}
	var mappedErr error
	var statusErr *statusError
	switch {
	case errors.As(err, &statusErr):
		fields["status"] = statusErr.code
		switch {
		case statusErr.code == http.StatusUnauthorized:
			mappedErr = ports.ErrAuthenticationFailed
		case statusErr.code == http.StatusForbidden:
			mappedErr = ports.ErrPermissionDenied
		case statusErr.code == http.StatusNotFound:
			mappedErr = ports.ErrNotFound
		case statusErr.code == http.StatusTooManyRequests:
			mappedErr = ports.ErrRateLimited
		case statusErr.code >= 500:
			mappedErr = ports.ErrBackendUnavailable
		default:
			mappedErr = ports.ErrInvalidRequest
		}
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case errors.Is(err, ports.ErrDecodeFailed):
		mappedErr = ports.ErrDecodeFailed
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			mappedErr = ports.ErrTimeout
		} else if errors.As(err, &urlErr) {
			mappedErr = ports.ErrConnectionFailed
		} else {
			mappedErr = ports.ErrUnknown
		}
	}

	if errors.Is(mappedErr, ports.ErrNotFound) {
		c.logger.Debug(ctx, operation+" returned not found", fields)
	} else {
		c.logger.Error(ctx, err, operation+" failed", fields)
	}
	if errors.Is(err, mappedErr) {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
}

// do runs one API call, retrying transport errors, 429 and 5xx with backoff.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("%w: encode request: %w", ports.ErrInvalidRequest, err), operation)
		}
	}

	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	target.RawQuery = query.Encode()

	b := &backoff.Backoff{Min: c.minBackoff, Max: c.maxBackoff, Factor: 2, Jitter: true}
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		data, retryable, err := c.once(ctx, method, target.String(), payload)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			break
		}
		delay := b.Duration()
		c.logger.Warn(ctx, operation+" attempt failed, retrying", map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": c.maxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, c.handleError(ctx, ctx.Err(), operation)
		case <-time.After(delay):
		}
	}
	return nil, c.handleError(ctx, lastErr, operation)
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte) (data []byte, retryable bool, err error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %w", ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, false, nil
	}
	snippet := string(data)
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	statusErr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(snippet)}
	return nil, resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, statusErr
}

func (c *Client) warnInvalid(ctx context.Context, operation string, stats DecodeStats, fields map[string]interface{}) {
	if stats.InvalidFields == 0 {
		return
	}
	fields["records"] = stats.Records
	fields["invalidFields"] = stats.InvalidFields
	c.logger.Warn(ctx, operation+" returned unparseable fields; they count as zero", fields)
}

func sinceQuery(symbol string, since time.Time) url.Values {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	if !since.IsZero() {
		q.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
	}
	return q
}

// --- BotDirectory Implementation ---

// ListBots returns every bot of the account.
func (c *Client) ListBots(ctx context.Context) ([]domain.Bot, error) {
	op := "ListBots"
	data, err := c.do(ctx, op, http.MethodGet, "/bots", nil, nil)
	if err != nil {
		return nil, err
	}
	bots, stats, err := DecodeBots(data)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.warnInvalid(ctx, op, stats, map[string]interface{}{})
	return bots, nil
}

// GetBot returns a single bot.
func (c *Client) GetBot(ctx context.Context, id int64) (*domain.Bot, error) {
	op := "GetBot"
	data, err := c.do(ctx, op, http.MethodGet, botPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	bot, stats, err := DecodeBot(data)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.warnInvalid(ctx, op, stats, map[string]interface{}{"botID": id})
	return bot, nil
}

// --- BotCommander Implementation ---

// CreateBot asks the backend to create a bot and returns the created record.
func (c *Client) CreateBot(ctx context.Context, params domain.BotParams) (*domain.Bot, error) {
	op := "CreateBot"
	data, err := c.do(ctx, op, http.MethodPost, "/bots", nil, params)
	if err != nil {
		return nil, err
	}
	bot, _, err := DecodeBot(data)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"botID": bot.ID, "asset": bot.Asset})
	return bot, nil
}

// UpdateBot edits the settings of an existing bot.
func (c *Client) UpdateBot(ctx context.Context, id int64, params domain.BotParams) (*domain.Bot, error) {
	op := "UpdateBot"
	data, err := c.do(ctx, op, http.MethodPut, botPath(id), nil, params)
	if err != nil {
		return nil, err
	}
	bot, _, err := DecodeBot(data)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"botID": id})
	return bot, nil
}

// StartBot asks the backend to start a bot.
func (c *Client) StartBot(ctx context.Context, id int64) error {
	return c.command(ctx, "StartBot", http.MethodPost, botPath(id)+"/start", id)
}

// StopBot asks the backend to stop a bot.
func (c *Client) StopBot(ctx context.Context, id int64) error {
	return c.command(ctx, "StopBot", http.MethodPost, botPath(id)+"/stop", id)
}

// DeleteBot asks the backend to delete a bot.
func (c *Client) DeleteBot(ctx context.Context, id int64) error {
	return c.command(ctx, "DeleteBot", http.MethodDelete, botPath(id), id)
}

func (c *Client) command(ctx context.Context, op, method, path string, id int64) error {
	if _, err := c.do(ctx, op, method, path, nil, nil); err != nil {
		return err
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"botID": id})
	return nil
}

// Transfer moves funds between the account's wallets.
func (c *Client) Transfer(ctx context.Context, transfer domain.Transfer) error {
	op := "Transfer"
	if !transfer.Amount.IsPositive() {
		return c.handleError(ctx, fmt.Errorf("%w: transfer amount must be positive", ports.ErrInvalidRequest), op)
	}
	if _, err := c.do(ctx, op, http.MethodPost, "/transfer", nil, transfer); err != nil {
		return err
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"coin": transfer.Coin, "amount": transfer.Amount.String(), "from": transfer.FromAccount, "to": transfer.ToAccount,
	})
	return nil
}

// --- TradeSource Implementation ---

// ListClosedTrades returns the closed-PnL list for symbol.
func (c *Client) ListClosedTrades(ctx context.Context, symbol string, since time.Time) ([]domain.ClosedTrade, error) {
	op := "ListClosedTrades"
	data, err := c.do(ctx, op, http.MethodGet, "/closed-pnl", sinceQuery(symbol, since), nil)
	if err != nil {
		return nil, err
	}
	trades, stats, err := DecodeClosedTrades(data)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.warnInvalid(ctx, op, stats, map[string]interface{}{"symbol": symbol})
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "count": len(trades)})
	return trades, nil
}

// ListLedgerEntries returns the transaction log for symbol.
func (c *Client) ListLedgerEntries(ctx context.Context, symbol string, since time.Time) ([]domain.LedgerEntry, error) {
	op := "ListLedgerEntries"
	data, err := c.do(ctx, op, http.MethodGet, "/transaction-log", sinceQuery(symbol, since), nil)
	if err != nil {
		return nil, err
	}
	entries, stats, err := DecodeLedgerEntries(data)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.warnInvalid(ctx, op, stats, map[string]interface{}{"symbol": symbol})
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "count": len(entries)})
	return entries, nil
}

// GetWalletBalance returns the wallet balance of a coin.
func (c *Client) GetWalletBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	op := "GetWalletBalance"
	data, err := c.do(ctx, op, http.MethodGet, "/wallet-balance", url.Values{"coin": []string{asset}}, nil)
	if err != nil {
		return decimal.Zero, err
	}
	var payload struct {
		WalletBalance flexValue `json:"walletBalance"`
		Data          *struct {
			WalletBalance flexValue `json:"walletBalance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return decimal.Zero, c.handleError(ctx, fmt.Errorf("%w: wallet balance: %w", ports.ErrDecodeFailed, err), op)
	}
	raw := payload.WalletBalance
	if raw == "" && payload.Data != nil {
		raw = payload.Data.WalletBalance
	}
	balance, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, c.handleError(ctx, fmt.Errorf("%w: wallet balance %q: %w", ports.ErrDecodeFailed, string(raw), err), op)
	}
	return balance, nil
}

func botPath(id int64) string {
	return "/bots/" + strconv.FormatInt(id, 10)
}
