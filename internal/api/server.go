package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"botPerformance/internal/app"
	"botPerformance/internal/domain"
	"botPerformance/internal/ports"
	"botPerformance/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const requestIDHeader = "X-Request-ID"

// PerformanceReader is the part of the performance service the API serves from.
type PerformanceReader interface {
	Snapshots() []domain.Snapshot
	Lookup(ctx context.Context, botID int64) (*domain.Snapshot, error)
	RefreshNow(ctx context.Context) (*app.RefreshReport, error)
	WalletBalance(ctx context.Context) (decimal.Decimal, error)
	Running() bool
}

// Config holds configuration for the HTTP API.
type Config struct {
	Port    int
	Logger  ports.Logger
	Service PerformanceReader
}

// Server exposes computed bot performance over HTTP.
type Server struct {
	logger  ports.Logger
	service PerformanceReader
	router  *gin.Engine
	http    *http.Server
}

// botSummary is one row of the bot list.
type botSummary struct {
	Bot        domain.Bot     `json:"bot"`
	Summary    domain.Summary `json:"summary"`
	TradeCount int            `json:"tradeCount"`
	ComputedAt time.Time      `json:"computedAt"`
}

// New creates the API server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil || cfg.Service == nil {
		return nil, fmt.Errorf("logger and service are required for the API server")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	s := &Server{
		logger:  cfg.Logger,
		service: cfg.Service,
		router:  router,
	}
	router.Use(s.logRequestMiddleware)

	router.GET("/health", s.health)
	v1 := router.Group("/v1")
	v1.GET("/bots", s.listBots)
	v1.GET("/bots/:id/performance", s.performance)
	v1.GET("/bots/:id/daily.csv", s.dailyCSV)
	v1.GET("/wallet", s.wallet)
	v1.POST("/refresh", s.refresh)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP API listening", map[string]interface{}{"addr": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequestMiddleware(c *gin.Context) {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)

	start := time.Now()
	c.Next()

	fields := map[string]interface{}{
		"requestID":  requestID,
		"method":     c.Request.Method,
		"route":      c.FullPath(),
		"status":     c.Writer.Status(),
		"durationMs": time.Since(start).Milliseconds(),
	}
	if len(c.Errors) > 0 {
		s.logger.Error(c.Request.Context(), c.Errors.Last().Err, "HTTP request failed", fields)
		return
	}
	s.logger.Debug(c.Request.Context(), "HTTP request", fields)
}

func returnErrorJsonCode(c *gin.Context, err error, code int) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// statusFor maps sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ports.ErrBackendUnavailable), errors.Is(err, ports.ErrConnectionFailed),
		errors.Is(err, ports.ErrRateLimited), errors.Is(err, ports.ErrAuthenticationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"polling": s.service.Running(),
		"bots":    len(s.service.Snapshots()),
	})
}

func (s *Server) listBots(c *gin.Context) {
	snapshots := s.service.Snapshots()
	out := make([]botSummary, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, botSummary{
			Bot:        snap.Bot,
			Summary:    snap.Summary,
			TradeCount: snap.TradeCount,
			ComputedAt: snap.ComputedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"bots": out})
}

// lookup resolves the :id param to a snapshot, writing the error response itself.
func (s *Server) lookup(c *gin.Context) (*domain.Snapshot, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		returnErrorJsonCode(c, fmt.Errorf("%w: invalid bot id %q", ports.ErrInvalidRequest, c.Param("id")), http.StatusBadRequest)
		return nil, false
	}

	snap, err := s.service.Lookup(c.Request.Context(), id)
	if err != nil {
		returnErrorJsonCode(c, err, statusFor(err))
		return nil, false
	}
	if snap == nil {
		returnErrorJsonCode(c, fmt.Errorf("%w: no performance data for bot %d", ports.ErrNotFound, id), http.StatusNotFound)
		return nil, false
	}
	return snap, true
}

func (s *Server) performance(c *gin.Context) {
	snap, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) dailyCSV(c *gin.Context) {
	snap, ok := s.lookup(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=bot-%d-daily.csv", snap.Bot.ID))
	c.Status(http.StatusOK)
	if err := utils.WriteDailyMetricsCSV(c.Writer, snap.Daily); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) wallet(c *gin.Context) {
	balance, err := s.service.WalletBalance(c.Request.Context())
	if err != nil {
		returnErrorJsonCode(c, err, statusFor(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"walletBalance": balance.String()})
}

func (s *Server) refresh(c *gin.Context) {
	report, err := s.service.RefreshNow(c.Request.Context())
	if err != nil {
		returnErrorJsonCode(c, err, statusFor(err))
		return
	}
	c.JSON(http.StatusOK, report)
}
