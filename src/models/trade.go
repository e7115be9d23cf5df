package models

import "time"

// Direction is the side of a normalized trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// NormalizedTrade is the broker-agnostic trade record produced by an import.
type NormalizedTrade struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"` // Empty at import time, attached by the caller
	Ticket     string    `json:"ticket"`    // May be empty for generic exports
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	OpenTime   time.Time `json:"openTime"`
	CloseTime  time.Time `json:"closeTime"` // Not guaranteed to be after OpenTime, broker data is kept as-is
	Volume     float64   `json:"volume"`
	OpenPrice  float64   `json:"openPrice"`
	ClosePrice float64   `json:"closePrice"` // Zero when several partial legs were merged
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"` // Stored as reported, usually negative
	Swap       float64   `json:"swap"`
	Comment    string    `json:"comment"`
	Tags       []string  `json:"tags"`
}

// StoredTrade is a NormalizedTrade as read back from persistence.
type StoredTrade struct {
	NormalizedTrade
	ImportID  string    `json:"importId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TradeSummary aggregates a list of trades for downstream analytics.
type TradeSummary struct {
	TradeCount      int     `json:"tradeCount"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	BreakEven       int     `json:"breakEven"`
	WinRate         float64 `json:"winRate"` // Percentage of trades with positive net result
	GrossPnL        float64 `json:"grossPnl"`
	TotalCommission float64 `json:"totalCommission"`
	TotalSwap       float64 `json:"totalSwap"`
	NetPnL          float64 `json:"netPnl"` // GrossPnL + commission + swap
	BestTrade       float64 `json:"bestTrade"`
	WorstTrade      float64 `json:"worstTrade"`
	MaxDrawdown     float64 `json:"maxDrawdown"` // Largest peak-to-trough drop of cumulative net P&L
	TotalVolume     float64 `json:"totalVolume"`
}
