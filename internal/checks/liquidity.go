package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/strikegate/internal/contracts"
)

// SizePenalizedScore predicted/(1 + min(size/100k, 2)·0.1)
func SizePenalizedScore(predicted, size float64) float64 {
	return predicted / (1 + math.Min(size/100_000, 2)*0.1)
}

// Liquidity #3 current and forecast liquidity
type Liquidity struct {
	base
	cfg Config
}

// NewLiquidity creates check #3
func NewLiquidity(cfg Config) *Liquidity {
	return &Liquidity{
		base: base{
			id:       LiquidityID,
			name:     "liquidity",
			category: contracts.CategoryLiquidity,
			severity: contracts.SeverityHigh,
			required: true,
		},
		cfg: cfg,
	}
}

// Evaluate implements contracts.Check
func (c *Liquidity) Evaluate(ctx context.Context, s contracts.Strike, _ contracts.Snapshot, deps contracts.Collaborators) contracts.Outcome {
	if deps.Liquidity == nil {
		return unavailable("liquidity monitor", nil)
	}
	if deps.Forecaster == nil {
		return unavailable("liquidity predictor", nil)
	}

	current, err := deps.Liquidity.LiquidityScore(ctx, s.Symbol)
	if err != nil {
		return unavailable("liquidity monitor", err, "Wait for liquidity data")
	}
	fc, err := deps.Forecaster.Predict(ctx, s.Symbol, c.cfg.ForecastHorizon)
	if err != nil {
		return unavailable("liquidity predictor", err, "Wait for liquidity data")
	}

	adjusted := SizePenalizedScore(fc.PredictedScore, s.PositionSize)
	minScore := c.cfg.MinLiquidityScore
	passed := current >= minScore && adjusted >= minScore &&
		fc.RecommendedAction == contracts.RecommendExecute

	var recs []string
	if !passed {
		switch fc.RecommendedAction {
		case contracts.RecommendReduceSize:
			recs = []string{"Reduce position size"}
		case contracts.RecommendWaitForLiquidity:
			recs = []string{"Wait for liquidity to recover"}
		case contracts.RecommendAbort:
			recs = []string{"Abort: liquidity insufficient"}
		default:
			recs = []string{"Reduce position size", "Wait for liquidity to recover"}
		}
	}

	return contracts.Outcome{
		Passed:               passed,
		ConfidenceMultiplier: pick(passed, 1.04, 0.85),
		RiskContribution:     pick(passed, 0.01, 0.15),
		Diagnostics: contracts.Diagnostics{
			PrimaryMetric: adjusted,
			Metrics: map[string]float64{
				"current_score":       current,
				"predicted_score":     fc.PredictedScore,
				"adjusted_score":      adjusted,
				"forecast_confidence": fc.Confidence,
			},
			Explanation: fmt.Sprintf("liquidity current %.2f, predicted %.2f (size-adjusted %.2f), state %s, action %s",
				current, fc.PredictedScore, adjusted, fc.State, fc.RecommendedAction),
			Recommendations: recs,
		},
	}
}
