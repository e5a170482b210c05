package quotes

import "time"

// Market identifier translation between the wire format and the public API
// shape. Unknown identifiers pass through unchanged.
var marketMap = map[string]string{
	"MARKET_ID_STO": "HOSE",
	"MARKET_ID_STX": "HNX",
	"MARKET_ID_UPX": "UPCoM",
}

// The wire reports trading time in UTC; the public shape carries local
// market time.
const marketUTCOffset = 7 * time.Hour

// fcopy clones an optional wire value so the summary never aliases the raw
// document. An explicit 0 is a value like any other; only absent maps to nil.
func fcopy(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MapQuote derives the public summary record from a wire quote: direct
// renames per the field table, market-id translation, and the trading-time
// shift to local market time. Fields absent on the wire stay nil.
func MapQuote(q *Quote) *Summary {
	s := &Summary{
		StockCode:       q.Symbol,
		KLCPLH:          fcopy(q.ListedShares),
		PriorClosePrice: fcopy(q.ReferencePrice),
		CeilingPrice:    fcopy(q.HighLimitPrice),
		FloorPrice:      fcopy(q.LowLimitPrice),
		TotalVol:        fcopy(q.TotalVolumeTraded),
		TotalVal:        fcopy(q.GrossTradeAmount),
		HighestPrice:    fcopy(q.HighestPrice),
		LowestPrice:     fcopy(q.LowestPrice),
		OpenPrice:       fcopy(q.OpenPrice),
		LastPrice:       fcopy(q.MatchPrice),
		AvrPrice:        fcopy(q.AveragePrice),
		Change:          fcopy(q.ChangedValue),
		ChangeRatio:     fcopy(q.ChangedRatio),
		ClosePrice:      fcopy(q.MatchPrice),
		BasicPrice:      fcopy(q.ReferencePrice),
	}

	if q.MarketID != "" {
		if mapped, ok := marketMap[q.MarketID]; ok {
			s.MarketID = mapped
		} else {
			s.MarketID = q.MarketID
		}
	}

	if q.TradingTime != "" {
		if ts, err := time.Parse(time.RFC3339, q.TradingTime); err == nil {
			local := ts.Add(marketUTCOffset)
			s.TradingDate = &local
		}
	}

	return s
}
