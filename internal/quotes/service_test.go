package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuoteStore struct {
	mu      sync.Mutex
	upserts int
	last    *Quote
	err     error
}

func (f *fakeQuoteStore) Upsert(_ context.Context, _ string, q *Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	f.last = q
	return nil
}

func (f *fakeQuoteStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

type fakeSummaryStore struct {
	mu      sync.Mutex
	upserts int
	finds   int
	stored  map[string]*Summary
	err     error
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{stored: make(map[string]*Summary)}
}

func (f *fakeSummaryStore) Upsert(_ context.Context, code string, s *Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	f.stored[code] = s
	return nil
}

func (f *fakeSummaryStore) FindByStockCode(_ context.Context, code string) (*Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	return f.stored[code], nil
}

func (f *fakeSummaryStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func testQuote() *Quote {
	return &Quote{
		Symbol:            "AAA",
		MarketID:          "MARKET_ID_STO",
		MatchPrice:        f64(100),
		TotalVolumeTraded: f64(5000),
		MatchQuantity:     f64(50),
		ChangedValue:      f64(2),
		ChangedRatio:      f64(0.02),
	}
}

func newTestRouter() (*Router, *fakeQuoteStore, *fakeSummaryStore, *Cache) {
	raw := &fakeQuoteStore{}
	summaries := newFakeSummaryStore()
	cache, _ := newTestCache(5 * time.Minute)
	return NewRouter(raw, summaries, cache), raw, summaries, cache
}

func TestRouterFirstSaveWritesBoth(t *testing.T) {
	r, raw, summaries, cache := newTestRouter()

	err := r.Save(context.Background(), testQuote())
	require.NoError(t, err)

	assert.Equal(t, 1, raw.count())
	assert.Equal(t, 1, summaries.count())
	assert.NotNil(t, cache.Get("AAA"), "cache primed after first save")

	s := summaries.stored["AAA"]
	require.NotNil(t, s)
	assert.Equal(t, 100.0, *s.LastPrice)
	assert.Equal(t, "HOSE", s.MarketID)
}

func TestRouterIdenticalResubmitWritesNothing(t *testing.T) {
	r, raw, summaries, cache := newTestRouter()
	require.NoError(t, r.Save(context.Background(), testQuote()))

	first, ok := cache.UpdatedAt("AAA")
	require.True(t, ok)

	cache.now = func() time.Time { return first.Add(time.Minute) }
	require.NoError(t, r.Save(context.Background(), testQuote()))

	assert.Equal(t, 1, raw.count(), "no second raw write")
	assert.Equal(t, 1, summaries.count(), "no second summary write")

	second, ok := cache.UpdatedAt("AAA")
	require.True(t, ok)
	assert.True(t, second.After(first), "cache timestamp refreshed anyway")
}

func TestRouterVolatilityChangeWritesBoth(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Quote)
	}{
		{"match price", func(q *Quote) { q.MatchPrice = f64(101) }},
		{"total volume", func(q *Quote) { q.TotalVolumeTraded = f64(6000) }},
		{"match quantity", func(q *Quote) { q.MatchQuantity = f64(60) }},
		{"changed value", func(q *Quote) { q.ChangedValue = f64(3) }},
		{"changed ratio", func(q *Quote) { q.ChangedRatio = f64(0.03) }},
		{"change flattens to zero", func(q *Quote) { q.ChangedValue = f64(0); q.ChangedRatio = f64(0) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, raw, summaries, _ := newTestRouter()
			require.NoError(t, r.Save(context.Background(), testQuote()))

			q := testQuote()
			tc.mutate(q)
			require.NoError(t, r.Save(context.Background(), q))

			assert.Equal(t, 2, raw.count())
			assert.Equal(t, 2, summaries.count())
		})
	}
}

func TestRouterSummaryBackfill(t *testing.T) {
	t.Run("missing summary rewritten", func(t *testing.T) {
		r, raw, summaries, _ := newTestRouter()
		require.NoError(t, r.Save(context.Background(), testQuote()))

		// Summary vanished out of band: raw is unchanged but the derived
		// record must come back.
		delete(summaries.stored, "AAA")
		require.NoError(t, r.Save(context.Background(), testQuote()))

		assert.Equal(t, 1, raw.count())
		assert.Equal(t, 2, summaries.count())
	})

	t.Run("stale stored summary rewritten", func(t *testing.T) {
		r, raw, summaries, _ := newTestRouter()
		require.NoError(t, r.Save(context.Background(), testQuote()))

		summaries.stored["AAA"].LastPrice = f64(42)
		require.NoError(t, r.Save(context.Background(), testQuote()))

		assert.Equal(t, 1, raw.count())
		assert.Equal(t, 2, summaries.count())
		assert.Equal(t, 100.0, *summaries.stored["AAA"].LastPrice)
	})

	t.Run("fresh stored summary untouched", func(t *testing.T) {
		r, raw, summaries, _ := newTestRouter()
		require.NoError(t, r.Save(context.Background(), testQuote()))
		require.NoError(t, r.Save(context.Background(), testQuote()))

		assert.Equal(t, 1, raw.count())
		assert.Equal(t, 1, summaries.count())
		assert.Equal(t, 2, summaries.finds, "stored summary consulted on the unchanged path")
	})
}

func TestRouterValidation(t *testing.T) {
	r, raw, summaries, _ := newTestRouter()

	err := r.Save(context.Background(), &Quote{MatchPrice: f64(100)})
	assert.ErrorIs(t, err, ErrMissingSymbol)
	assert.Equal(t, 0, raw.count())
	assert.Equal(t, 0, summaries.count())
}

func TestRouterStoreErrorsWrapped(t *testing.T) {
	t.Run("raw store failure", func(t *testing.T) {
		r, raw, summaries, _ := newTestRouter()
		raw.err = errors.New("mongo down")

		err := r.Save(context.Background(), testQuote())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upsert quote AAA")
		assert.Equal(t, 0, summaries.count(), "summary write skipped after raw failure")
	})

	t.Run("summary store failure", func(t *testing.T) {
		r, _, summaries, _ := newTestRouter()
		summaries.err = errors.New("mongo down")

		err := r.Save(context.Background(), testQuote())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upsert summary AAA")
	})
}
