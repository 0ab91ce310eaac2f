package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/risk"
)

// BookMetrics order book microstructure measures
type BookMetrics struct {
	EffectiveSpread float64 `json:"effective_spread"` // fraction of mid
	DepthImbalance  float64 `json:"depth_imbalance"`  // |bid-ask|/(bid+ask), top 10
	PriceImpact     float64 `json:"price_impact"`     // square-root model
	Toxicity        float64 `json:"toxicity"`
	Resiliency      float64 `json:"resiliency"`
	Quality         float64 `json:"quality"`
}

// AnalyzeBook computes microstructure metrics for an order of sizeBase units
func AnalyzeBook(book contracts.OrderBook, sizeBase float64) BookMetrics {
	m := BookMetrics{
		EffectiveSpread: effectiveSpread(book),
		DepthImbalance:  depthImbalance(book),
		PriceImpact:     priceImpact(book, sizeBase),
		Toxicity:        flowToxicity(book),
		Resiliency:      resiliency(book),
	}
	m.Quality = qualityScore(m)
	return m
}

func effectiveSpread(book contracts.OrderBook) float64 {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 1.0
	}
	bid, ask := book.Bids[0].Price, book.Asks[0].Price
	mid := (bid + ask) / 2
	if mid <= 0 {
		return 1.0
	}
	return (ask - bid) / mid
}

func topDepth(levels []contracts.BookLevel, n int) float64 {
	var sum float64
	for i, l := range levels {
		if i >= n {
			break
		}
		sum += l.Volume
	}
	return sum
}

func depthImbalance(book contracts.OrderBook) float64 {
	bid, ask := topDepth(book.Bids, 10), topDepth(book.Asks, 10)
	if bid+ask <= 0 {
		return 1.0
	}
	return math.Abs(bid-ask) / (bid + ask)
}

func priceImpact(book contracts.OrderBook, size float64) float64 {
	total := topDepth(book.Bids, len(book.Bids)) + topDepth(book.Asks, len(book.Asks))
	if total <= 0 {
		return 1.0
	}
	return 0.001 * math.Sqrt(size/total)
}

// flowToxicity volume imbalance plus a count of outsized resting orders
func flowToxicity(book contracts.OrderBook) float64 {
	bid := topDepth(book.Bids, len(book.Bids))
	ask := topDepth(book.Asks, len(book.Asks))
	total := bid + ask
	if total <= 0 {
		return 0
	}

	large := 0
	for _, levels := range [][]contracts.BookLevel{book.Bids, book.Asks} {
		for _, l := range levels {
			if l.Volume > total*0.1 {
				large++
			}
		}
	}

	imbalance := math.Abs(bid-ask) / total
	return math.Min(imbalance*0.7+float64(large)/20*0.3, 1)
}

func resiliency(book contracts.OrderBook) float64 {
	bid, ask := topDepth(book.Bids, 10), topDepth(book.Asks, 10)
	if bid == 0 || ask == 0 {
		return 0
	}
	ratio := math.Min(bid, ask) / math.Max(bid, ask)
	spread := (book.Asks[0].Price - book.Bids[0].Price) / book.Bids[0].Price
	return risk.Clamp(ratio*(1-math.Min(spread, 0.01)*100), 0, 1)
}

// qualityScore weighted blend, weights 0.2/0.15/0.2/0.15/0.1 renormalised
func qualityScore(m BookMetrics) float64 {
	weights := [5]float64{0.2, 0.15, 0.2, 0.15, 0.1}
	values := [5]float64{
		1 - math.Min(m.EffectiveSpread, 0.01)*100,
		1 - m.DepthImbalance,
		1 - math.Min(m.PriceImpact, 0.01)*100,
		1 - m.Toxicity,
		m.Resiliency,
	}
	var sum, wsum float64
	for i := range weights {
		sum += risk.Clamp(values[i], 0, 1) * weights[i]
		wsum += weights[i]
	}
	return sum / wsum
}

// Microstructure #4 order book quality, evaluated after #3
type Microstructure struct {
	base
	cfg Config
}

// NewMicrostructure creates check #4
func NewMicrostructure(cfg Config) *Microstructure {
	return &Microstructure{
		base: base{
			id:       MicrostructureID,
			name:     "microstructure",
			category: contracts.CategoryMarketStructure,
			severity: contracts.SeverityHigh,
			required: true,
			deps:     []contracts.CheckID{LiquidityID},
		},
		cfg: cfg,
	}
}

// Evaluate implements contracts.Check
func (c *Microstructure) Evaluate(ctx context.Context, s contracts.Strike, snap contracts.Snapshot, deps contracts.Collaborators) contracts.Outcome {
	if deps.OrderBooks == nil {
		return unavailable("order book", nil)
	}
	book, err := deps.OrderBooks.OrderBook(ctx, s.Symbol, c.cfg.BookDepth)
	if err != nil {
		return unavailable("order book", err)
	}

	// 포지션 크기는 quote 통화, 호가 수량은 base 단위
	sizeBase := s.PositionSize / s.EntryPrice
	m := AnalyzeBook(book, sizeBase)

	// 유동성 체크가 실패했으면 충격 허용치를 절반으로
	maxImpact := c.cfg.MaxPriceImpact
	upstream, ok := snap.Outcome(LiquidityID)
	if ok && upstream.Failed() {
		maxImpact /= 2
	}

	passed := m.Quality > c.cfg.MinBookQuality && m.PriceImpact < maxImpact

	recs := when(!passed, "Use limit orders", "Split the order", "Wait for better liquidity")

	return contracts.Outcome{
		Passed:               passed,
		ConfidenceMultiplier: pick(passed, 1.03, 0.92),
		RiskContribution:     (1 - m.Quality) * 0.15,
		Diagnostics: contracts.Diagnostics{
			PrimaryMetric: m.Quality,
			Metrics: map[string]float64{
				"effective_spread_bps": m.EffectiveSpread * 10000,
				"depth_imbalance":      m.DepthImbalance,
				"price_impact_bps":     m.PriceImpact * 10000,
				"flow_toxicity":        m.Toxicity,
				"market_resiliency":    m.Resiliency,
				"max_price_impact_bps": maxImpact * 10000,
			},
			Explanation: fmt.Sprintf("microstructure quality %.2f, spread %.1fbps, impact %.1fbps",
				m.Quality, m.EffectiveSpread*10000, m.PriceImpact*10000),
			Recommendations: recs,
		},
	}
}
