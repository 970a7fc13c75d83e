package backend

import (
	"testing"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClosedTrades(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantCount   int
		wantInvalid int
		wantErr     bool
	}{
		{
			name:      "exchange envelope with string numbers",
			payload:   `{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","side":"Sell","closedPnl":"10.5","avgEntryPrice":"42000","cumEntryValue":"1000","createdTime":"1735776000000","updatedTime":"1735779600000"}]}}`,
			wantCount: 1,
		},
		{
			name:      "bare array with json numbers",
			payload:   `[{"symbol":"BTCUSDT","side":"Buy","closedPnl":-3,"avgEntryPrice":42000,"cumEntryValue":500,"createdTime":1735776000000,"updatedTime":1735776000000}]`,
			wantCount: 1,
		},
		{
			name:        "unparseable numbers are counted, not fatal",
			payload:     `{"list":[{"symbol":"BTCUSDT","closedPnl":"abc","cumEntryValue":"","createdTime":"x","updatedTime":"1"}]}`,
			wantCount:   1,
			wantInvalid: 2,
		},
		{
			name:      "null payload is an empty list",
			payload:   `null`,
			wantCount: 0,
		},
		{
			name:      "envelope without list",
			payload:   `{"result":{}}`,
			wantCount: 0,
		},
		{
			name:    "malformed json",
			payload: `{"list":[`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trades, stats, err := DecodeClosedTrades([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ports.ErrDecodeFailed)
				return
			}
			require.NoError(t, err)
			assert.Len(t, trades, tt.wantCount)
			assert.Equal(t, tt.wantCount, stats.Records)
			assert.Equal(t, tt.wantInvalid, stats.InvalidFields)
		})
	}
}

func TestDecodeClosedTrades_Fields(t *testing.T) {
	payload := `[{"symbol":"BTCUSDT","side":"SELL","closedPnl":"10.5","avgEntryPrice":"42000.1","cumEntryValue":"1000","createdTime":"1735776000000","updatedTime":1735779600000}]`

	trades, _, err := DecodeClosedTrades([]byte(payload))

	require.NoError(t, err)
	require.Len(t, trades, 1)
	trade := trades[0]
	assert.Equal(t, "BTCUSDT", trade.Asset)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.True(t, trade.ClosedPnL.Valid)
	assert.Equal(t, "10.5", trade.ClosedPnL.Decimal.String())
	assert.Equal(t, "42000.1", trade.AvgEntryPrice.Decimal.String())
	assert.Equal(t, "1000", trade.CumEntryValue.Decimal.String())
	assert.Equal(t, time.UnixMilli(1735776000000).UTC(), trade.CreatedTime)
	assert.Equal(t, time.UnixMilli(1735779600000).UTC(), trade.UpdatedTime)
}

func TestDecodeLedgerEntries(t *testing.T) {
	payload := `{"result":{"list":[
		{"symbol":"BTCUSDT","change":"10","cashBalance":"110","transactionTime":"1735776000000"},
		{"symbol":"","change":"-5","cashBalance":"105","transactionTime":"1735776001000"},
		{"symbol":"BTCUSDT","change":"oops","cashBalance":"105","transactionTime":"1735776002000"}
	]}}`

	entries, stats, err := DecodeLedgerEntries([]byte(payload))

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, stats.InvalidFields)

	before, ok := entries[0].CashBalanceBeforeChange()
	assert.True(t, ok)
	assert.Equal(t, "100", before.String())

	assert.Equal(t, "", entries[1].Symbol)
	assert.False(t, entries[2].Change.Valid)
	_, ok = entries[2].CashBalanceBeforeChange()
	assert.False(t, ok)
}

func TestDecodeBots(t *testing.T) {
	payload := `{"data":[
		{"id":1,"name":"alpha","asset":"BTCUSDT","status":"running","created_at":"2025-01-01T00:00:00Z"},
		{"id":"2","asset":"ETHUSDT","status":"Stopped","created_at":1735689600000},
		{"id":3,"asset":"SOLUSDT","status":"idle","created_at":1735689600},
		{"id":4,"asset":"XRPUSDT","status":"Error","created_at":null},
		{"id":5,"asset":"BNBUSDT","status":"Stopping","created_at":"2025-01-01 07:00:00"}
	]}`

	bots, stats, err := DecodeBots([]byte(payload))

	require.NoError(t, err)
	require.Len(t, bots, 5)
	assert.Zero(t, stats.InvalidFields)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.Bot{ID: 1, Name: "alpha", Asset: "BTCUSDT", Status: domain.BotRunning, CreatedAt: created}, bots[0])
	assert.Equal(t, created, bots[1].CreatedAt)
	assert.Equal(t, domain.BotStopped, bots[1].Status)
	assert.Equal(t, created, bots[2].CreatedAt)
	assert.True(t, bots[3].CreatedAt.IsZero())
	assert.Equal(t, int64(0), bots[3].AttributionLowerBound())
	assert.Equal(t, created.Add(7*time.Hour), bots[4].CreatedAt)
	assert.Equal(t, domain.BotStopping, bots[4].Status)
}

func TestDecodeBots_BadID(t *testing.T) {
	_, _, err := DecodeBots([]byte(`[{"id":"abc","asset":"BTCUSDT"}]`))
	assert.ErrorIs(t, err, ports.ErrDecodeFailed)
}

func TestDecodeBot(t *testing.T) {
	bot, _, err := DecodeBot([]byte(`{"data":{"id":9,"asset":"BTCUSDT","status":"Idle"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), bot.ID)

	bot, _, err = DecodeBot([]byte(`{"id":10,"asset":"ETHUSDT","status":"Running"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), bot.ID)
	assert.Equal(t, domain.BotRunning, bot.Status)
}
