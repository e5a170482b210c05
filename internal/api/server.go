// Package api serves the read endpoints over the persisted summaries plus
// health and metrics for operators.
package api

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trandminh/quote-ingest/internal/feed"
	"github.com/trandminh/quote-ingest/internal/observ"
	"github.com/trandminh/quote-ingest/internal/quotes"
)

// SummaryReader is the read-side store surface.
type SummaryReader interface {
	FindByStockCode(ctx context.Context, code string) (*quotes.Summary, error)
	FindByMarket(ctx context.Context, marketID string, page, pageSize int) ([]quotes.Summary, error)
	CountByMarket(ctx context.Context, marketID string) (int64, error)
}

// Health exposes the ingestion link's state for the health endpoint.
type Health interface {
	Phase() feed.Phase
	LastMessageAt() time.Time
	InSession() bool
}

// Server hosts the HTTP read API.
type Server struct {
	summaries SummaryReader
	cache     *quotes.Cache
	health    Health
	engine    *gin.Engine
}

// MarketPage is the paged envelope for market queries.
type MarketPage struct {
	Page       int              `json:"Page"`
	PageSize   int              `json:"PageSize"`
	MarketID   string           `json:"Market_ID"`
	TotalItems int64            `json:"TotalItems"`
	TotalPages int              `json:"TotalPages"`
	Data       []quotes.Summary `json:"Data"`
}

// New builds the server and its routes.
func New(summaries SummaryReader, cache *quotes.Cache, health Health) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		summaries: summaries,
		cache:     cache,
		health:    health,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/stocktradinginfo", s.getByStockCode)
	s.engine.GET("/stocktradinginfobyMarket_ID", s.getByMarket)
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(observ.MetricsHandler()))
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	observ.Log("api_listening", map[string]any{"addr": addr})
	return s.engine.Run(addr)
}

// getByStockCode serves one summary. A fresh raw quote in the change cache
// beats the store; otherwise fall back to the persisted summary.
func (s *Server) getByStockCode(c *gin.Context) {
	code := c.Query("Code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code is required"})
		return
	}

	if cached := s.cache.Get(code); cached != nil {
		c.JSON(http.StatusOK, quotes.MapQuote(cached))
		return
	}

	summary, err := s.summaries.FindByStockCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getByMarket(c *gin.Context) {
	page := intQuery(c, "Page", 1)
	pageSize := intQuery(c, "PageSize", 20)
	marketID := c.DefaultQuery("Market_ID", "HOSE")
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx := c.Request.Context()
	items, err := s.summaries.FindByMarket(ctx, marketID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.summaries.CountByMarket(ctx, marketID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, MarketPage{
		Page:       page,
		PageSize:   pageSize,
		MarketID:   marketID,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		Data:       items,
	})
}

func (s *Server) getHealth(c *gin.Context) {
	lastMsg := s.health.LastMessageAt()
	c.JSON(http.StatusOK, gin.H{
		"phase":               s.health.Phase(),
		"in_session":          s.health.InSession(),
		"last_message_at":     lastMsg,
		"last_message_age_ms": time.Since(lastMsg).Milliseconds(),
	})
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}
