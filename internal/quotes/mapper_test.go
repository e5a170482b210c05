package quotes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestMapQuoteFieldTable(t *testing.T) {
	q := &Quote{
		Symbol:            "VNM",
		MarketID:          "MARKET_ID_STO",
		TradingTime:       "2026-03-02T02:15:00Z",
		ListedShares:      f64(2089955445),
		ReferencePrice:    f64(61.5),
		HighLimitPrice:    f64(65.8),
		LowLimitPrice:     f64(57.2),
		TotalVolumeTraded: f64(1200500),
		GrossTradeAmount:  f64(73830750000),
		HighestPrice:      f64(62.0),
		LowestPrice:       f64(61.1),
		OpenPrice:         f64(61.5),
		MatchPrice:        f64(61.9),
		AveragePrice:      f64(61.5),
		ChangedValue:      f64(0.4),
		ChangedRatio:      f64(0.65),
	}

	s := MapQuote(q)

	assert.Equal(t, "VNM", s.StockCode)
	assert.Equal(t, "HOSE", s.MarketID)
	assert.Equal(t, 61.9, *s.LastPrice)
	assert.Equal(t, 61.9, *s.ClosePrice, "close mirrors match price")
	assert.Equal(t, 61.5, *s.PriorClosePrice)
	assert.Equal(t, 61.5, *s.BasicPrice, "basic mirrors reference price")
	assert.Equal(t, 65.8, *s.CeilingPrice)
	assert.Equal(t, 57.2, *s.FloorPrice)
	assert.Equal(t, float64(1200500), *s.TotalVol)
	assert.Equal(t, float64(73830750000), *s.TotalVal)
	assert.Equal(t, float64(2089955445), *s.KLCPLH)
	assert.Equal(t, 0.4, *s.Change)
	assert.Equal(t, 0.65, *s.ChangeRatio)

	require.NotNil(t, s.TradingDate)
	want := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	assert.True(t, s.TradingDate.Equal(want), "trading time shifted to local market time, got %v", s.TradingDate)
}

func TestMapQuoteMarketID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hose", "MARKET_ID_STO", "HOSE"},
		{"hnx", "MARKET_ID_STX", "HNX"},
		{"upcom", "MARKET_ID_UPX", "UPCoM"},
		{"unknown passes through", "MARKET_ID_XYZ", "MARKET_ID_XYZ"},
		{"empty stays empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := MapQuote(&Quote{Symbol: "AAA", MarketID: tc.in})
			assert.Equal(t, tc.want, s.MarketID)
		})
	}
}

func TestMapQuoteAbsentFieldsStayNil(t *testing.T) {
	s := MapQuote(&Quote{Symbol: "AAA"})

	assert.Nil(t, s.LastPrice)
	assert.Nil(t, s.TotalVol)
	assert.Nil(t, s.TradingDate)
	assert.Nil(t, s.Change)
	assert.Equal(t, "AAA", s.StockCode)
}

func TestMapQuoteKeepsExplicitZero(t *testing.T) {
	// Price back at reference: the wire reports 0 for change fields, and the
	// summary must say 0, not omit them.
	payload := []byte(`{"symbol":"AAA","matchPrice":61.5,"referencePrice":61.5,"changedValue":0,"changedRatio":0}`)
	var q Quote
	require.NoError(t, json.Unmarshal(payload, &q))

	s := MapQuote(&q)

	require.NotNil(t, s.Change)
	assert.Equal(t, 0.0, *s.Change)
	require.NotNil(t, s.ChangeRatio)
	assert.Equal(t, 0.0, *s.ChangeRatio)
	assert.Nil(t, s.TotalVol, "fields the payload omitted stay nil")
}

func TestMapQuoteDoesNotAliasWire(t *testing.T) {
	q := &Quote{Symbol: "AAA", MatchPrice: f64(61.9)}
	s := MapQuote(q)

	*q.MatchPrice = 70
	assert.Equal(t, 61.9, *s.LastPrice, "summary holds its own copy")
}

func TestMapQuoteBadTradingTime(t *testing.T) {
	s := MapQuote(&Quote{Symbol: "AAA", TradingTime: "not-a-date"})
	assert.Nil(t, s.TradingDate)
}

func TestVolatilityChanged(t *testing.T) {
	base := func() *Quote {
		return &Quote{
			Symbol:            "AAA",
			MatchPrice:        f64(100),
			TotalVolumeTraded: f64(5000),
			MatchQuantity:     f64(50),
			ChangedValue:      f64(2),
			ChangedRatio:      f64(0.02),
		}
	}

	t.Run("identical", func(t *testing.T) {
		assert.False(t, volatilityChanged(base(), base()))
	})
	t.Run("value moved", func(t *testing.T) {
		b := base()
		b.MatchPrice = f64(101)
		assert.True(t, volatilityChanged(base(), b))
	})
	t.Run("zero vs absent", func(t *testing.T) {
		b := base()
		b.ChangedValue = nil
		zero := base()
		zero.ChangedValue = f64(0)
		assert.True(t, volatilityChanged(zero, b))
	})
}

func TestSummaryChanged(t *testing.T) {
	base := func() *Summary {
		return &Summary{
			LastPrice:   f64(61.9),
			TotalVol:    f64(1200500),
			Change:      f64(0.4),
			ChangeRatio: f64(0.65),
		}
	}

	t.Run("identical", func(t *testing.T) {
		assert.False(t, summaryChanged(base(), base()))
	})
	t.Run("price moved", func(t *testing.T) {
		b := base()
		b.LastPrice = f64(62.0)
		assert.True(t, summaryChanged(b, base()))
	})
	t.Run("nil vs set", func(t *testing.T) {
		b := base()
		b.TotalVol = nil
		assert.True(t, summaryChanged(b, base()))
	})
}
