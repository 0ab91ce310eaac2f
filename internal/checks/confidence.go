package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/risk"
)

// regimePriors 시장 국면별 사전확률
var regimePriors = map[contracts.MarketRegime]float64{
	contracts.RegimeBullTrend:      0.85,
	contracts.RegimeBearTrend:      0.75,
	contracts.RegimeHighVolatility: 0.70,
	contracts.RegimeLowVolatility:  0.90,
	contracts.RegimeRanging:        0.80,
	contracts.RegimeCascade:        0.95,
	contracts.RegimeUnknown:        0.70,
}

// RegimePrior returns the prior win probability for a regime
func RegimePrior(r contracts.MarketRegime) float64 {
	if p, ok := regimePriors[r]; ok {
		return p
	}
	return regimePriors[contracts.RegimeUnknown]
}

// MarketPrior prior from top-of-book quality: tight spread and deep 24h volume
// Clamped to [0.1, 0.95] so the market never fully decides alone.
func MarketPrior(t contracts.Ticker) float64 {
	spreadQuality := 1 - math.Min(t.SpreadBps()/100, 1)
	volumeQuality := math.Min(t.Volume24h*t.Mid()/10_000_000, 1)
	return risk.Clamp(0.5*spreadQuality+0.5*volumeQuality, 0.1, 0.95)
}

// HistoricalPrior 0.6·win30 + 0.4·win90
func HistoricalPrior(h contracts.HistorySnapshot) float64 {
	return risk.Clamp(h.WinRate30d*0.6+h.WinRate90d*0.4, 0, 1)
}

// ProbabilisticConfidence #1 Bayesian update of the strike's base confidence
type ProbabilisticConfidence struct {
	base
	cfg Config
}

// NewProbabilisticConfidence creates check #1
func NewProbabilisticConfidence(cfg Config) *ProbabilisticConfidence {
	return &ProbabilisticConfidence{
		base: base{
			id:       ProbabilisticConfidenceID,
			name:     "probabilistic_confidence",
			category: contracts.CategoryStatistical,
			severity: contracts.SeverityCritical,
			required: true,
		},
		cfg: cfg,
	}
}

// Evaluate implements contracts.Check
func (c *ProbabilisticConfidence) Evaluate(ctx context.Context, s contracts.Strike, _ contracts.Snapshot, deps contracts.Collaborators) contracts.Outcome {
	if deps.MarketData == nil {
		return unavailable("market data", nil)
	}
	if deps.History == nil {
		return unavailable("validation history", nil)
	}

	ticker, err := deps.MarketData.Ticker(ctx, s.Symbol)
	if err != nil {
		return unavailable("market data", err)
	}
	hist, err := deps.History.Snapshot(ctx, s.Symbol, s.Type)
	if err != nil {
		return unavailable("validation history", err)
	}

	priors := []float64{MarketPrior(ticker), HistoricalPrior(hist), RegimePrior(hist.Regime)}
	prior := risk.WeightedPrior(priors, c.cfg.PriorWeights[:])

	posterior := risk.Posterior(s.Confidence, prior)
	gain := risk.InformationGain(prior, posterior)
	ci := risk.BetaInterval(posterior, c.cfg.Concentration, 0.95)

	minP := c.cfg.MinWinProbability
	passed := posterior >= minP && ci.Lower >= minP*0.95

	// posterior / base (base 0이면 곱셈 결과도 0)
	mult := 0.0
	if s.Confidence > 0 {
		mult = posterior / s.Confidence
	}

	return contracts.Outcome{
		Passed:               passed,
		ConfidenceMultiplier: mult,
		RiskContribution:     pick(passed, 0, 0.15),
		Diagnostics: contracts.Diagnostics{
			PrimaryMetric: posterior,
			Metrics: map[string]float64{
				"market_prior":     priors[0],
				"historical_prior": priors[1],
				"regime_prior":     priors[2],
				"weighted_prior":   prior,
				"information_gain": gain,
				"ci_lower":         ci.Lower,
				"ci_upper":         ci.Upper,
			},
			Explanation: fmt.Sprintf("Bayesian posterior %.2f%% (CI %.2f%%-%.2f%%), info gain %.3f nats",
				posterior*100, ci.Lower*100, ci.Upper*100, gain),
			Recommendations: when(!passed, "Increase base confidence", "Wait for better market conditions"),
		},
	}
}
