package contracts

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// Collaborator errors
// =============================================================================

var (
	// ErrNotFound unknown symbol or missing data
	ErrNotFound = errors.New("not found")
	// ErrTimeout upstream did not answer in time
	ErrTimeout = errors.New("timeout")
	// ErrRateLimited upstream throttled the request
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable collaborator not configured or circuit open
	ErrUnavailable = errors.New("collaborator unavailable")
)

// =============================================================================
// Market data
// =============================================================================

// Ticker top-of-book snapshot
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Volume24h float64   `json:"volume_24h"` // base units
	Timestamp time.Time `json:"timestamp"`
}

// Mid returns the mid price, falling back to Last
func (t Ticker) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// SpreadBps quoted spread in basis points of mid; 10000 when unquoted
func (t Ticker) SpreadBps() float64 {
	mid := t.Mid()
	if t.Bid <= 0 || t.Ask <= 0 || mid <= 0 || t.Ask < t.Bid {
		return 10000
	}
	return (t.Ask - t.Bid) / mid * 10000
}

// BookLevel one price level
type BookLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// OrderBook bids descending, asks ascending
type OrderBook struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarketData ticker source
type MarketData interface {
	Ticker(ctx context.Context, symbol string) (Ticker, error)
}

// OrderBookSource order book source
type OrderBookSource interface {
	OrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
}

// =============================================================================
// Liquidity
// =============================================================================

// LiquidityState predicted liquidity regime
type LiquidityState string

const (
	LiquidityOptimal      LiquidityState = "optimal"
	LiquidityGood         LiquidityState = "good"
	LiquidityWarning      LiquidityState = "warning"
	LiquidityCritical     LiquidityState = "critical"
	LiquidityInsufficient LiquidityState = "insufficient"
)

// TradeRecommendation predictor's recommended action
type TradeRecommendation string

const (
	RecommendExecute          TradeRecommendation = "execute"
	RecommendReduceSize       TradeRecommendation = "reduce_size"
	RecommendWaitForLiquidity TradeRecommendation = "wait_for_liquidity"
	RecommendAbort            TradeRecommendation = "abort"
)

// LiquidityForecast predictor output
type LiquidityForecast struct {
	Symbol            string              `json:"symbol"`
	CurrentScore      float64             `json:"current_score"`
	PredictedScore    float64             `json:"predicted_score"`
	Confidence        float64             `json:"confidence"`
	State             LiquidityState      `json:"state"`
	RecommendedAction TradeRecommendation `json:"recommended_action"`
	RiskFactors       []string            `json:"risk_factors,omitempty"`
}

// LiquidityMonitor current liquidity score (0~1) per symbol
type LiquidityMonitor interface {
	LiquidityScore(ctx context.Context, symbol string) (float64, error)
}

// LiquidityPredictor forecasts liquidity over a horizon
type LiquidityPredictor interface {
	Predict(ctx context.Context, symbol string, horizon time.Duration) (LiquidityForecast, error)
}

// =============================================================================
// Safety / analytics / history
// =============================================================================

// SafetyMonitor kill-switch input
// ⭐ SSOT: 에러 반환 시 무조건 Critical 실패 (설정으로 무효화 불가)
type SafetyMonitor interface {
	CheckTradeAllowed(ctx context.Context, size float64, symbol string) error
}

// Analytics optional composite insight score (0~1)
type Analytics interface {
	CompositeInsight(ctx context.Context, strike Strike, outcomes []Outcome) (float64, error)
}

// MarketRegime coarse market regime label maintained by the trading loop
type MarketRegime string

const (
	RegimeBullTrend      MarketRegime = "bull_trend"
	RegimeBearTrend      MarketRegime = "bear_trend"
	RegimeHighVolatility MarketRegime = "high_volatility"
	RegimeLowVolatility  MarketRegime = "low_volatility"
	RegimeRanging        MarketRegime = "ranging"
	RegimeCascade        MarketRegime = "cascade"
	RegimeUnknown        MarketRegime = "unknown"
)

// HistorySnapshot validation/trade history read by checks
type HistorySnapshot struct {
	Symbol        string       `json:"symbol"`
	WinRate30d    float64      `json:"win_rate_30d"`
	WinRate90d    float64      `json:"win_rate_90d"`
	Trades30d     int          `json:"trades_30d"`
	Trades90d     int          `json:"trades_90d"`
	RecentReturns []float64    `json:"recent_returns"` // closed-trade returns, oldest first
	ApprovalRate  float64      `json:"approval_rate"`
	Validations   int          `json:"validations"`
	Regime        MarketRegime `json:"regime"`
}

// HistoryReader injected validation history
type HistoryReader interface {
	Snapshot(ctx context.Context, symbol string, strikeType StrikeType) (HistorySnapshot, error)
}

// Collaborators read-only handles shared by every check of a run.
// Nil handles are reported by checks as unavailable collaborators.
type Collaborators struct {
	MarketData MarketData
	OrderBooks OrderBookSource
	Liquidity  LiquidityMonitor
	Forecaster LiquidityPredictor
	Safety     SafetyMonitor
	History    HistoryReader
	Analytics  Analytics // optional
}
