package liquidity

import (
	"math"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

// Requirements 최소 유동성 요건
type Requirements struct {
	MinDailyVolume float64 `yaml:"min_daily_volume"` // USD
	MinBookDepth   float64 `yaml:"min_book_depth"`   // USD per side
	MaxSpreadPct   float64 `yaml:"max_spread_pct"`   // percent (0.5 = 0.5%)
	MinMakers      int     `yaml:"min_makers"`
}

// DefaultRequirements $1M volume, $100k depth per side, 0.5% spread, 3 makers
func DefaultRequirements() Requirements {
	return Requirements{
		MinDailyVolume: 1_000_000,
		MinBookDepth:   100_000,
		MaxSpreadPct:   0.5,
		MinMakers:      3,
	}
}

// Metrics liquidity snapshot of one symbol
type Metrics struct {
	Symbol       string    `json:"symbol"`
	Volume24hUSD float64   `json:"volume_24h_usd"`
	BidDepthUSD  float64   `json:"bid_depth_usd"`
	AskDepthUSD  float64   `json:"ask_depth_usd"`
	SpreadPct    float64   `json:"spread_pct"`
	Makers       int       `json:"makers"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Score liquidity score (0~1)
// ⭐ SSOT: 0.4 volume + 0.3 depth + 0.2 spread + 0.1 makers
func Score(m Metrics) float64 {
	volume := math.Min(m.Volume24hUSD/10_000_000, 1)
	depth := math.Min((m.BidDepthUSD+m.AskDepthUSD)/1_000_000, 1)
	spread := 1 - math.Min(math.Max(m.SpreadPct, 0), 1)
	makers := math.Min(float64(m.Makers)/10, 1)

	return volume*0.4 + depth*0.3 + spread*0.2 + makers*0.1
}

// Meets reports which requirements the metrics satisfy
func (r Requirements) Meets(m Metrics) (volumeOK, depthOK, spreadOK, makersOK bool) {
	volumeOK = m.Volume24hUSD >= r.MinDailyVolume
	depthOK = m.BidDepthUSD >= r.MinBookDepth && m.AskDepthUSD >= r.MinBookDepth
	spreadOK = m.SpreadPct <= r.MaxSpreadPct
	makersOK = m.Makers >= r.MinMakers
	return
}

// FromMarket builds metrics from a ticker and an order book.
// Makers is approximated by the number of resting levels on the thinner side.
func FromMarket(t contracts.Ticker, book contracts.OrderBook, at time.Time) Metrics {
	m := Metrics{
		Symbol:       t.Symbol,
		Volume24hUSD: t.Volume24h * t.Mid(),
		SpreadPct:    t.SpreadBps() / 100,
		Makers:       min(len(book.Bids), len(book.Asks)),
		UpdatedAt:    at,
	}
	for _, l := range book.Bids {
		m.BidDepthUSD += l.Price * l.Volume
	}
	for _, l := range book.Asks {
		m.AskDepthUSD += l.Price * l.Volume
	}
	return m
}
