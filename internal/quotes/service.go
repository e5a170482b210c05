package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trandminh/quote-ingest/internal/observ"
)

var (
	// ErrMissingSymbol rejects a wire quote with no symbol key.
	ErrMissingSymbol = errors.New("quote has no symbol")
	// ErrMissingStockCode rejects a quote whose mapped summary has no key.
	ErrMissingStockCode = errors.New("mapped summary has no stock code")
)

// QuoteStore persists raw wire quotes keyed by symbol.
type QuoteStore interface {
	Upsert(ctx context.Context, symbol string, q *Quote) error
}

// SummaryStore persists derived summaries keyed by stock code.
// FindByStockCode returns (nil, nil) when no summary exists yet.
type SummaryStore interface {
	Upsert(ctx context.Context, code string, s *Summary) error
	FindByStockCode(ctx context.Context, code string) (*Summary, error)
}

// Router decides, per inbound quote, which of the two collections need an
// upsert and keeps the change cache current.
type Router struct {
	rawStore     QuoteStore
	summaryStore SummaryStore
	cache        *Cache
	writeTimeout time.Duration
}

// NewRouter wires a persistence router over the two stores and the cache.
func NewRouter(raw QuoteStore, summaries SummaryStore, cache *Cache) *Router {
	return &Router{
		rawStore:     raw,
		summaryStore: summaries,
		cache:        cache,
		writeTimeout: 10 * time.Second,
	}
}

// Save routes one wire quote: validates it, runs change detection against
// the cache, upserts what changed, and refreshes the cache entry. The raw
// record is written only when a volatility field moved; the summary is also
// written when the stored summary is missing or stale on a derived field.
func (r *Router) Save(ctx context.Context, q *Quote) error {
	if q.Symbol == "" {
		return ErrMissingSymbol
	}

	summary := MapQuote(q)
	if summary.StockCode == "" {
		return ErrMissingStockCode
	}

	cached := r.cache.Get(q.Symbol)
	rawChanged := cached == nil || volatilityChanged(cached, q)

	saveSummary := rawChanged
	if !rawChanged {
		stored, err := r.summaryStore.FindByStockCode(ctx, summary.StockCode)
		if err != nil {
			return fmt.Errorf("load stored summary for %s: %w", summary.StockCode, err)
		}
		saveSummary = stored == nil || summaryChanged(summary, stored)
	}

	if rawChanged {
		if err := r.rawStore.Upsert(ctx, q.Symbol, q); err != nil {
			return fmt.Errorf("upsert quote %s: %w", q.Symbol, err)
		}
		observ.IncCounter("quote_raw_upserts_total", map[string]string{})
	}
	if saveSummary {
		if err := r.summaryStore.Upsert(ctx, summary.StockCode, summary); err != nil {
			return fmt.Errorf("upsert summary %s: %w", summary.StockCode, err)
		}
		observ.IncCounter("quote_summary_upserts_total", map[string]string{})
	}

	// The in-memory view tracks the freshest value even when nothing was
	// persisted, so future comparisons and TTL use the latest timestamp.
	r.cache.Set(q.Symbol, q)

	if rawChanged || saveSummary {
		observ.Log("quote_saved", map[string]any{
			"symbol":        q.Symbol,
			"raw_changed":   rawChanged,
			"summary_saved": saveSummary,
		})
	}
	return nil
}

// Dispatch hands a quote to Save on a background goroutine. Message intake
// must not wait on write latency; terminal failures are logged and counted,
// never returned.
func (r *Router) Dispatch(q *Quote) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := r.Save(ctx, q); err != nil {
			observ.Error("quote_save_failed", err, map[string]any{"symbol": q.Symbol})
			observ.IncCounter("quote_save_failures_total", map[string]string{})
		}
	}()
}
