package quotes

import "time"

// Quote is the broker-native record, persisted verbatim keyed by symbol.
// Field names follow the wire payload. Numeric fields are pointers so a
// value the broker explicitly reports as 0 stays distinct from a field it
// omitted; both survive the round trip through json and bson.
type Quote struct {
	MarketID                      string   `json:"marketId,omitempty" bson:"marketId,omitempty"`
	BoardID                       string   `json:"boardId,omitempty" bson:"boardId,omitempty"`
	BoardIDOriginal               string   `json:"boardIdOriginal,omitempty" bson:"boardIdOriginal,omitempty"`
	ProductID                     string   `json:"productId,omitempty" bson:"productId,omitempty"`
	ISIN                          string   `json:"isin,omitempty" bson:"isin,omitempty"`
	Symbol                        string   `json:"symbol,omitempty" bson:"symbol,omitempty"`
	SymbolName                    string   `json:"symbolName,omitempty" bson:"symbolName,omitempty"`
	SymbolEnglishName             string   `json:"symbolEnglishName,omitempty" bson:"symbolEnglishName,omitempty"`
	TradingTime                   string   `json:"tradingTime,omitempty" bson:"tradingTime,omitempty"`
	SecurityGroupID               string   `json:"securityGroupId,omitempty" bson:"securityGroupId,omitempty"`
	ProductGrpID                  string   `json:"productGrpId,omitempty" bson:"productGrpId,omitempty"`
	ReferencePrice                *float64 `json:"referencePrice,omitempty" bson:"referencePrice,omitempty"`
	HighLimitPrice                *float64 `json:"highLimitPrice,omitempty" bson:"highLimitPrice,omitempty"`
	LowLimitPrice                 *float64 `json:"lowLimitPrice,omitempty" bson:"lowLimitPrice,omitempty"`
	HighestPrice                  *float64 `json:"highestPrice,omitempty" bson:"highestPrice,omitempty"`
	LowestPrice                   *float64 `json:"lowestPrice,omitempty" bson:"lowestPrice,omitempty"`
	OpenPrice                     *float64 `json:"openPrice,omitempty" bson:"openPrice,omitempty"`
	ClosePrice                    *float64 `json:"closePrice,omitempty" bson:"closePrice,omitempty"`
	AveragePrice                  *float64 `json:"averagePrice,omitempty" bson:"averagePrice,omitempty"`
	BuyForeignQuantity            *float64 `json:"buyForeignQuantity,omitempty" bson:"buyForeignQuantity,omitempty"`
	SellForeignQuantity           *float64 `json:"sellForeignQuantity,omitempty" bson:"sellForeignQuantity,omitempty"`
	BuyForeignValue               *float64 `json:"buyForeignValue,omitempty" bson:"buyForeignValue,omitempty"`
	SellForeignValue              *float64 `json:"sellForeignValue,omitempty" bson:"sellForeignValue,omitempty"`
	SecurityStatus                string   `json:"securityStatus,omitempty" bson:"securityStatus,omitempty"`
	ExpectedTradePrice            *float64 `json:"expectedTradePrice,omitempty" bson:"expectedTradePrice,omitempty"`
	ExpectedTradeQuantity         *float64 `json:"expectedTradeQuantity,omitempty" bson:"expectedTradeQuantity,omitempty"`
	TotalVolumeTraded             *float64 `json:"totalVolumeTraded,omitempty" bson:"totalVolumeTraded,omitempty"`
	GrossTradeAmount              *float64 `json:"grossTradeAmount,omitempty" bson:"grossTradeAmount,omitempty"`
	SellTotalOrderQuantity        *float64 `json:"sellTotalOrderQuantity,omitempty" bson:"sellTotalOrderQuantity,omitempty"`
	BuyTotalOrderQuantity         *float64 `json:"buyTotalOrderQuantity,omitempty" bson:"buyTotalOrderQuantity,omitempty"`
	MatchPrice                    *float64 `json:"matchPrice,omitempty" bson:"matchPrice,omitempty"`
	MatchQuantity                 *float64 `json:"matchQuantity,omitempty" bson:"matchQuantity,omitempty"`
	MatchValue                    *float64 `json:"matchValue,omitempty" bson:"matchValue,omitempty"`
	ChangedValue                  *float64 `json:"changedValue,omitempty" bson:"changedValue,omitempty"`
	ChangedRatio                  *float64 `json:"changedRatio,omitempty" bson:"changedRatio,omitempty"`
	LastTradingDate               string   `json:"lastTradingDate,omitempty" bson:"lastTradingDate,omitempty"`
	SymbolType                    string   `json:"symbolType,omitempty" bson:"symbolType,omitempty"`
	ListedShares                  *float64 `json:"listedShares,omitempty" bson:"listedShares,omitempty"`
	TradingSessionID              string   `json:"tradingSessionId,omitempty" bson:"tradingSessionId,omitempty"`
	SymbolAdminStatusCode         string   `json:"symbolAdminStatusCode,omitempty" bson:"symbolAdminStatusCode,omitempty"`
	SymbolTradingMethodStatusCode string   `json:"symbolTradingMethodStatusCode,omitempty" bson:"symbolTradingMethodStatusCode,omitempty"`
}

// volatilityChanged reports whether any of the fields that gate raw
// persistence differ between two quotes. Absent and explicit-zero count as
// different states.
func volatilityChanged(a, b *Quote) bool {
	return !floatPtrEq(a.MatchPrice, b.MatchPrice) ||
		!floatPtrEq(a.TotalVolumeTraded, b.TotalVolumeTraded) ||
		!floatPtrEq(a.MatchQuantity, b.MatchQuantity) ||
		!floatPtrEq(a.ChangedValue, b.ChangedValue) ||
		!floatPtrEq(a.ChangedRatio, b.ChangedRatio)
}

// Summary is the public-facing record keyed by stock code, derived from a
// Quote through the field table in mapper.go. Pointer fields distinguish
// "absent on the wire" from a genuine zero.
type Summary struct {
	StockCode       string     `json:"StockCode,omitempty" bson:"StockCode,omitempty"`
	TradingDate     *time.Time `json:"TradingDate,omitempty" bson:"TradingDate,omitempty"`
	KLCPLH          *float64   `json:"KLCPLH,omitempty" bson:"KLCPLH,omitempty"`
	PriorClosePrice *float64   `json:"PriorClosePrice,omitempty" bson:"PriorClosePrice,omitempty"`
	CeilingPrice    *float64   `json:"CeilingPrice,omitempty" bson:"CeilingPrice,omitempty"`
	FloorPrice      *float64   `json:"FloorPrice,omitempty" bson:"FloorPrice,omitempty"`
	TotalVol        *float64   `json:"TotalVol,omitempty" bson:"TotalVol,omitempty"`
	TotalVal        *float64   `json:"TotalVal,omitempty" bson:"TotalVal,omitempty"`
	HighestPrice    *float64   `json:"HighestPrice,omitempty" bson:"HighestPrice,omitempty"`
	LowestPrice     *float64   `json:"LowestPrice,omitempty" bson:"LowestPrice,omitempty"`
	OpenPrice       *float64   `json:"OpenPrice,omitempty" bson:"OpenPrice,omitempty"`
	LastPrice       *float64   `json:"LastPrice,omitempty" bson:"LastPrice,omitempty"`
	AvrPrice        *float64   `json:"AvrPrice,omitempty" bson:"AvrPrice,omitempty"`
	Change          *float64   `json:"Change,omitempty" bson:"Change,omitempty"`
	ChangeRatio     *float64   `json:"ChangeRatio,omitempty" bson:"ChangeRatio,omitempty"`
	ClosePrice      *float64   `json:"ClosePrice,omitempty" bson:"ClosePrice,omitempty"`
	BasicPrice      *float64   `json:"BasicPrice,omitempty" bson:"BasicPrice,omitempty"`
	MarketID        string     `json:"MarketID,omitempty" bson:"MarketID,omitempty"`
}

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// summaryChanged compares the summary-critical fields that can force a
// summary upsert even when the raw quote is unchanged.
func summaryChanged(fresh, stored *Summary) bool {
	return !floatPtrEq(fresh.LastPrice, stored.LastPrice) ||
		!floatPtrEq(fresh.TotalVol, stored.TotalVol) ||
		!floatPtrEq(fresh.Change, stored.Change) ||
		!floatPtrEq(fresh.ChangeRatio, stored.ChangeRatio)
}
