package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	"github.com/shopspring/decimal"
)

// DecodeStats reports how much of a payload survived parsing.
type DecodeStats struct {
	Records       int // Records decoded
	InvalidFields int // Numeric or time fields that were present but unparseable
}

// flexValue holds a JSON scalar that may arrive as a number or as a string.
type flexValue string

func (f *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexValue(strings.TrimSpace(s))
		return nil
	}
	*f = flexValue(b)
	return nil
}

type rawClosedTrade struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	ClosedPnl     flexValue `json:"closedPnl"`
	AvgEntryPrice flexValue `json:"avgEntryPrice"`
	CumEntryValue flexValue `json:"cumEntryValue"`
	CreatedTime   flexValue `json:"createdTime"`
	UpdatedTime   flexValue `json:"updatedTime"`
}

type rawLedgerEntry struct {
	Symbol          string    `json:"symbol"`
	Change          flexValue `json:"change"`
	CashBalance     flexValue `json:"cashBalance"`
	TransactionTime flexValue `json:"transactionTime"`
}

type rawBot struct {
	ID        flexValue `json:"id"`
	Name      string    `json:"name"`
	Asset     string    `json:"asset"`
	Status    string    `json:"status"`
	CreatedAt flexValue `json:"created_at"`
}

// fieldParser collects per-field failures while converting one payload.
type fieldParser struct {
	stats DecodeStats
}

func (p *fieldParser) decimal(v flexValue) decimal.NullDecimal {
	if v == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(string(v))
	if err != nil {
		p.stats.InvalidFields++
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// millis parses an epoch-millisecond timestamp. Missing or invalid values give the zero time.
func (p *fieldParser) millis(v flexValue) time.Time {
	if v == "" {
		return time.Time{}
	}
	d, err := decimal.NewFromString(string(v))
	if err != nil {
		p.stats.InvalidFields++
		return time.Time{}
	}
	return time.UnixMilli(d.IntPart()).UTC()
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// instant parses a creation time given either as a date string or as epoch
// seconds/milliseconds. Layouts without a zone are read as UTC.
func (p *fieldParser) instant(v flexValue) time.Time {
	if v == "" {
		return time.Time{}
	}
	s := string(v)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		// Epoch seconds stay below 1e11 until the year 5138.
		if n < 1e11 {
			return time.UnixMilli(int64(n * 1000)).UTC()
		}
		return time.UnixMilli(int64(n)).UTC()
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	p.stats.InvalidFields++
	return time.Time{}
}

// unwrapList finds the record array in a payload. Bare arrays, {"list": [...]},
// {"data": ...} and exchange-style {"result": {"list": [...]}} envelopes are accepted.
func unwrapList(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}
	var envelope struct {
		List   json.RawMessage `json:"list"`
		Data   json.RawMessage `json:"data"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	switch {
	case len(envelope.List) > 0:
		return unwrapList(envelope.List)
	case len(envelope.Result) > 0:
		return unwrapList(envelope.Result)
	case len(envelope.Data) > 0:
		return unwrapList(envelope.Data)
	}
	return nil, nil
}

func decodeList[T any](raw []byte, what string) ([]T, error) {
	list, err := unwrapList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s envelope: %w", ports.ErrDecodeFailed, what, err)
	}
	if list == nil {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal(list, &records); err != nil {
		return nil, fmt.Errorf("%w: %s list: %w", ports.ErrDecodeFailed, what, err)
	}
	return records, nil
}

// DecodeClosedTrades converts a closed-PnL payload into typed records.
// Only malformed JSON is an error; bad numbers become invalid fields.
func DecodeClosedTrades(raw []byte) ([]domain.ClosedTrade, DecodeStats, error) {
	records, err := decodeList[rawClosedTrade](raw, "closed pnl")
	if err != nil {
		return nil, DecodeStats{}, err
	}
	p := &fieldParser{}
	trades := make([]domain.ClosedTrade, 0, len(records))
	for _, r := range records {
		trades = append(trades, domain.ClosedTrade{
			Asset:         r.Symbol,
			Side:          domain.ParseSide(r.Side),
			ClosedPnL:     p.decimal(r.ClosedPnl),
			AvgEntryPrice: p.decimal(r.AvgEntryPrice),
			CumEntryValue: p.decimal(r.CumEntryValue),
			CreatedTime:   p.millis(r.CreatedTime),
			UpdatedTime:   p.millis(r.UpdatedTime),
		})
	}
	p.stats.Records = len(trades)
	return trades, p.stats, nil
}

// DecodeLedgerEntries converts a transaction-log payload into typed records.
func DecodeLedgerEntries(raw []byte) ([]domain.LedgerEntry, DecodeStats, error) {
	records, err := decodeList[rawLedgerEntry](raw, "transaction log")
	if err != nil {
		return nil, DecodeStats{}, err
	}
	p := &fieldParser{}
	entries := make([]domain.LedgerEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, domain.LedgerEntry{
			Symbol:          r.Symbol,
			Change:          p.decimal(r.Change),
			CashBalance:     p.decimal(r.CashBalance),
			TransactionTime: p.millis(r.TransactionTime),
		})
	}
	p.stats.Records = len(entries)
	return entries, p.stats, nil
}

func (p *fieldParser) bot(r rawBot) (domain.Bot, error) {
	id, err := strconv.ParseInt(string(r.ID), 10, 64)
	if err != nil {
		return domain.Bot{}, fmt.Errorf("%w: bot id %q: %w", ports.ErrDecodeFailed, string(r.ID), err)
	}
	return domain.Bot{
		ID:        id,
		Name:      r.Name,
		Asset:     r.Asset,
		Status:    domain.ParseBotStatus(r.Status),
		CreatedAt: p.instant(r.CreatedAt),
	}, nil
}

// DecodeBots converts a bot list payload. A bot without a usable id is an error.
func DecodeBots(raw []byte) ([]domain.Bot, DecodeStats, error) {
	records, err := decodeList[rawBot](raw, "bots")
	if err != nil {
		return nil, DecodeStats{}, err
	}
	p := &fieldParser{}
	bots := make([]domain.Bot, 0, len(records))
	for _, r := range records {
		bot, err := p.bot(r)
		if err != nil {
			return nil, p.stats, err
		}
		bots = append(bots, bot)
	}
	p.stats.Records = len(bots)
	return bots, p.stats, nil
}

// DecodeBot converts a single bot payload, bare or wrapped in {"data": {...}}.
func DecodeBot(raw []byte) (*domain.Bot, DecodeStats, error) {
	trimmed := bytes.TrimSpace(raw)
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("%w: bot: %w", ports.ErrDecodeFailed, err)
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		trimmed = envelope.Data
	}
	var r rawBot
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("%w: bot: %w", ports.ErrDecodeFailed, err)
	}
	p := &fieldParser{}
	bot, err := p.bot(r)
	if err != nil {
		return nil, p.stats, err
	}
	p.stats.Records = 1
	return &bot, p.stats, nil
}
