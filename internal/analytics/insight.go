package analytics

import (
	"context"
	"fmt"

	"github.com/wonny/strikegate/internal/contracts"
)

const (
	passWeight  = 0.7
	priorWeight = 0.3
	// neutralPrior approval prior for a strike type with no validations yet
	neutralPrior = 0.5
	// severeMultiplier 이 값 미만의 confidence multiplier가 하나라도 있으면 점수 절반
	severeMultiplier = 0.5
)

// InsightEngine composite insight over a run's outcomes
// composite = 0.7 · severity-weighted pass ratio + 0.3 · historical approval rate
type InsightEngine struct {
	history contracts.HistoryReader // optional
}

// NewInsightEngine creates the engine; history may be nil (neutral prior)
func NewInsightEngine(history contracts.HistoryReader) *InsightEngine {
	return &InsightEngine{history: history}
}

// CompositeInsight implements contracts.Analytics
func (e *InsightEngine) CompositeInsight(ctx context.Context, strike contracts.Strike, outcomes []contracts.Outcome) (float64, error) {
	prior := neutralPrior
	if e.history != nil {
		snap, err := e.history.Snapshot(ctx, strike.Symbol, strike.Type)
		if err != nil {
			return 0, fmt.Errorf("insight history: %w", err)
		}
		if snap.Validations > 0 {
			prior = snap.ApprovalRate
		}
	}

	score := passWeight*WeightedPassRatio(outcomes) + priorWeight*prior
	for _, o := range outcomes {
		if o.ConfidenceMultiplier < severeMultiplier {
			score /= 2
			break
		}
	}
	return contracts.Clamp01(score), nil
}

// WeightedPassRatio Σ weight(passed) / Σ weight, weights by severity
func WeightedPassRatio(outcomes []contracts.Outcome) float64 {
	var passed, total float64
	for _, o := range outcomes {
		w := o.Severity.Weight()
		total += w
		if o.Passed {
			passed += w
		}
	}
	if total == 0 {
		return 0
	}
	return passed / total
}
