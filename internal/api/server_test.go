package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botPerformance/internal/app"
	"botPerformance/internal/domain"
	"botPerformance/internal/ports"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockService struct {
	snapshots  []domain.Snapshot
	persisted  map[int64]*domain.Snapshot
	lookupErr  error
	refreshErr error
	refreshes  int
}

func (m *mockService) Snapshots() []domain.Snapshot { return m.snapshots }

func (m *mockService) Lookup(ctx context.Context, botID int64) (*domain.Snapshot, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for i := range m.snapshots {
		if m.snapshots[i].Bot.ID == botID {
			return &m.snapshots[i], nil
		}
	}
	return m.persisted[botID], nil
}

func (m *mockService) RefreshNow(ctx context.Context) (*app.RefreshReport, error) {
	m.refreshes++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return &app.RefreshReport{CycleID: "cycle-9", Bots: len(m.snapshots), Updated: len(m.snapshots)}, nil
}

func (m *mockService) WalletBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("1234.5"), nil
}

func (m *mockService) Running() bool { return true }

func newTestServer(t *testing.T, svc *mockService) (*Server, *mockLogger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := &mockLogger{}
	srv, err := New(Config{Port: 0, Logger: logger, Service: svc})
	require.NoError(t, err)
	return srv, logger
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func sampleService() *mockService {
	return &mockService{
		snapshots: []domain.Snapshot{{
			Bot:        domain.Bot{ID: 1, Asset: "BTCUSDT", Status: domain.BotRunning},
			Daily:      []domain.DailyMetric{{Bucket: "2025-01-02", Date: "02-01", PnL: 10, ROI: 1, ROE: 10}},
			Summary:    domain.Summary{TotalPnL: "10.00", AveragePnL: "10.00"},
			TradeCount: 1,
			ComputedAt: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		}},
		persisted: map[int64]*domain.Snapshot{
			5: {Bot: domain.Bot{ID: 5, Asset: "ETHUSDT"}, Summary: domain.Summary{TotalPnL: "0.00", AveragePnL: "0.00"}},
		},
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, sampleService())

	rec := do(srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["polling"])
}

func TestListBots(t *testing.T) {
	srv, _ := newTestServer(t, sampleService())

	rec := do(srv, http.MethodGet, "/v1/bots")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Bots []botSummary `json:"bots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Bots, 1)
	assert.Equal(t, int64(1), body.Bots[0].Bot.ID)
	assert.Equal(t, "10.00", body.Bots[0].Summary.TotalPnL)
}

func TestPerformance(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"from memory", "/v1/bots/1/performance", http.StatusOK, `"totalPnl":"10.00"`},
		{"from repository", "/v1/bots/5/performance", http.StatusOK, `"asset":"ETHUSDT"`},
		{"unknown bot", "/v1/bots/404/performance", http.StatusNotFound, "no performance data for bot 404"},
		{"bad id", "/v1/bots/abc/performance", http.StatusBadRequest, "invalid bot id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, sampleService())
			rec := do(srv, http.MethodGet, tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestPerformance_DailyShape(t *testing.T) {
	srv, _ := newTestServer(t, sampleService())

	rec := do(srv, http.MethodGet, "/v1/bots/1/performance")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Daily, 1)
	assert.Equal(t, domain.DailyMetric{Bucket: "2025-01-02", Date: "02-01", PnL: 10, ROI: 1, ROE: 10}, snap.Daily[0])
	assert.Equal(t, "10.00", snap.Summary.AveragePnL)
}

func TestPerformance_LookupErrorStatus(t *testing.T) {
	svc := sampleService()
	svc.lookupErr = fmt.Errorf("query failed: %w", ports.ErrQueryFailed)
	srv, logger := newTestServer(t, svc)

	rec := do(srv, http.MethodGet, "/v1/bots/1/performance")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logger.errorMsgs, "HTTP request failed")
}

func TestDailyCSV(t *testing.T) {
	srv, _ := newTestServer(t, sampleService())

	rec := do(srv, http.MethodGet, "/v1/bots/1/daily.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "bucket,date,pnl,roi,roe", lines[0])
	assert.Equal(t, "2025-01-02,02-01,10,1,10", lines[1])
}

func TestRefresh(t *testing.T) {
	svc := sampleService()
	srv, _ := newTestServer(t, svc)

	rec := do(srv, http.MethodPost, "/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.refreshes)
	assert.Contains(t, rec.Body.String(), `"cycleId":"cycle-9"`)

	svc.refreshErr = fmt.Errorf("failed to list bots: %w", ports.ErrBackendUnavailable)
	rec = do(srv, http.MethodPost, "/v1/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWallet(t *testing.T) {
	srv, _ := newTestServer(t, sampleService())

	rec := do(srv, http.MethodGet, "/v1/wallet")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"walletBalance":"1234.5"}`, rec.Body.String())
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, sampleService())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
