package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	bots      []domain.Bot
	trades    []domain.ClosedTrade
	ledger    []domain.LedgerEntry
	since     time.Time
	started   []int64
	deleted   []int64
	created   *domain.BotParams
	transfers []domain.Transfer
}

func (m *mockClient) ListBots(ctx context.Context) ([]domain.Bot, error) { return m.bots, nil }

func (m *mockClient) GetBot(ctx context.Context, id int64) (*domain.Bot, error) {
	for _, b := range m.bots {
		if b.ID == id {
			bot := b
			return &bot, nil
		}
	}
	return nil, nil
}

func (m *mockClient) CreateBot(ctx context.Context, params domain.BotParams) (*domain.Bot, error) {
	m.created = &params
	return &domain.Bot{ID: 99, Asset: params.Asset}, nil
}

func (m *mockClient) UpdateBot(ctx context.Context, id int64, params domain.BotParams) (*domain.Bot, error) {
	return &domain.Bot{ID: id, Asset: params.Asset}, nil
}

func (m *mockClient) StartBot(ctx context.Context, id int64) error {
	m.started = append(m.started, id)
	return nil
}

func (m *mockClient) StopBot(ctx context.Context, id int64) error { return nil }

func (m *mockClient) DeleteBot(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockClient) Transfer(ctx context.Context, transfer domain.Transfer) error {
	m.transfers = append(m.transfers, transfer)
	return nil
}

func (m *mockClient) ListClosedTrades(ctx context.Context, symbol string, since time.Time) ([]domain.ClosedTrade, error) {
	m.since = since
	return m.trades, nil
}

func (m *mockClient) ListLedgerEntries(ctx context.Context, symbol string, since time.Time) ([]domain.LedgerEntry, error) {
	return m.ledger, nil
}

func (m *mockClient) GetWalletBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.RequireFromString("250.5"), nil
}

func num(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func newTestClient() *mockClient {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &mockClient{
		bots: []domain.Bot{{ID: 1, Name: "grid", Asset: "BTCUSDT", Status: domain.BotRunning, CreatedAt: created}},
		trades: []domain.ClosedTrade{{
			Asset:         "BTCUSDT",
			ClosedPnL:     num("10"),
			CumEntryValue: num("1000"),
			CreatedTime:   created.Add(25 * time.Hour),
			UpdatedTime:   created.Add(26 * time.Hour),
		}},
		ledger: []domain.LedgerEntry{{
			Symbol:          "BTCUSDT",
			Change:          num("10"),
			CashBalance:     num("110"),
			TransactionTime: created.Add(27 * time.Hour),
		}},
	}
}

func run(t *testing.T, client *mockClient, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &cliApp{client: client, out: &out, quoteAsset: "USDT"}
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestBotsCommand(t *testing.T) {
	out, err := run(t, newTestClient(), "bots")
	require.NoError(t, err)
	assert.Contains(t, out, "ASSET")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "2025-01-01T00:00:00Z")
}

func TestReportCommand(t *testing.T) {
	client := newTestClient()
	csvPath := filepath.Join(t.TempDir(), "bot1.csv")

	out, err := run(t, client, "report", "1", "--csv", csvPath)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), client.since.UTC())
	assert.Contains(t, out, "Total PnL: 10.00")
	assert.Contains(t, out, "02-01")
	assert.Contains(t, out, "1.0000")
	assert.Contains(t, out, "10.00")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2025-01-02,02-01,10,1,10", lines[1])
}

func TestReportCommand_UnknownBot(t *testing.T) {
	_, err := run(t, newTestClient(), "report", "7")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestLifecycleCommands(t *testing.T) {
	client := newTestClient()

	_, err := run(t, client, "start", "1")
	require.NoError(t, err)
	_, err = run(t, client, "delete", "1")
	require.NoError(t, err)
	_, err = run(t, client, "stop", "x")
	assert.Error(t, err)

	assert.Equal(t, []int64{1}, client.started)
	assert.Equal(t, []int64{1}, client.deleted)
}

func TestCreateCommand(t *testing.T) {
	client := newTestClient()

	out, err := run(t, client, "create", "--asset", "ETHUSDT", "--base-amount", "15", "--leverage", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Created bot 99")
	require.NotNil(t, client.created)
	assert.Equal(t, 3, client.created.Leverage)
	assert.Equal(t, "15", client.created.BaseAmount.String())

	_, err = run(t, client, "create", "--asset", "ETHUSDT", "--base-amount", "lots")
	assert.Error(t, err)
}

func TestTransferCommand(t *testing.T) {
	client := newTestClient()

	_, err := run(t, client, "transfer", "--amount", "25", "--from", "FUND", "--to", "UNIFIED")
	require.NoError(t, err)
	require.Len(t, client.transfers, 1)
	assert.Equal(t, "USDT", client.transfers[0].Coin)
	assert.Equal(t, "25", client.transfers[0].Amount.String())

	_, err = run(t, client, "transfer", "--amount", "-1", "--from", "FUND", "--to", "UNIFIED")
	assert.Error(t, err)
	assert.Len(t, client.transfers, 1)
}

func TestBalanceCommand(t *testing.T) {
	out, err := run(t, newTestClient(), "balance")
	require.NoError(t, err)
	assert.Equal(t, "250.50 USDT\n", out)
}
