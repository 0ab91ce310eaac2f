package checks

import (
	"context"
	"fmt"

	"github.com/wonny/strikegate/internal/contracts"
)

// MarketConditions #7 quoted spread and 24h quote volume
type MarketConditions struct {
	base
	cfg Config
}

// NewMarketConditions creates check #7
func NewMarketConditions(cfg Config) *MarketConditions {
	return &MarketConditions{
		base: base{
			id:       MarketConditionsID,
			name:     "market_conditions",
			category: contracts.CategoryMarketStructure,
			severity: contracts.SeverityLow,
			required: false,
		},
		cfg: cfg,
	}
}

// Evaluate implements contracts.Check
func (c *MarketConditions) Evaluate(ctx context.Context, s contracts.Strike, _ contracts.Snapshot, deps contracts.Collaborators) contracts.Outcome {
	if deps.MarketData == nil {
		return unavailable("market data", nil)
	}
	t, err := deps.MarketData.Ticker(ctx, s.Symbol)
	if err != nil {
		return unavailable("market data", err)
	}

	spread := t.SpreadBps()
	quoteVolume := t.Volume24h * t.Mid()

	var recs []string
	if spread > c.cfg.MaxSpreadBps {
		recs = append(recs, "Use limit orders")
	}
	if quoteVolume < c.cfg.MinQuoteVolume {
		recs = append(recs, "Trade a more active market")
	}
	passed := len(recs) == 0

	return contracts.Outcome{
		Passed:               passed,
		ConfidenceMultiplier: pick(passed, 1.0, 0.95),
		RiskContribution:     pick(passed, 0, 0.05),
		Diagnostics: contracts.Diagnostics{
			PrimaryMetric: spread,
			Metrics: map[string]float64{
				"spread_bps":       spread,
				"quote_volume_24h": quoteVolume,
			},
			Explanation:     fmt.Sprintf("spread %.1fbps, 24h volume %.0f", spread, quoteVolume),
			Recommendations: recs,
		},
	}
}
