package checks

import (
	"context"
	"fmt"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/risk"
)

// PositionSizing #5 half-Kelly sizing and reward/risk
type PositionSizing struct {
	base
	cfg Config
}

// NewPositionSizing creates check #5
func NewPositionSizing(cfg Config) *PositionSizing {
	return &PositionSizing{
		base: base{
			id:       PositionSizingID,
			name:     "position_sizing",
			category: contracts.CategoryRiskManagement,
			severity: contracts.SeverityHigh,
			required: true,
			deps:     []contracts.CheckID{ProbabilisticConfidenceID},
		},
		cfg: cfg,
	}
}

// Evaluate implements contracts.Check
func (c *PositionSizing) Evaluate(_ context.Context, s contracts.Strike, snap contracts.Snapshot, _ contracts.Collaborators) contracts.Outcome {
	// 승률: #1 posterior, 없으면 현재 running confidence
	p := snap.Confidence
	if upstream, ok := snap.Outcome(ProbabilisticConfidenceID); ok && !upstream.TimedOut && upstream.Diagnostics.PrimaryMetric > 0 {
		p = upstream.Diagnostics.PrimaryMetric
	}

	kelly := risk.KellyFraction(p, s.ExpectedReturn, c.cfg.MaxKellyFraction)
	fraction := s.PositionSize / c.cfg.AccountEquity
	rr := s.RewardRiskRatio()

	sizeOK := fraction <= kelly/2
	rrOK := rr >= c.cfg.MinRewardRisk
	passed := sizeOK && rrOK

	var recs []string
	if !sizeOK {
		recs = append(recs, fmt.Sprintf("Reduce position to at most %.0f (half-Kelly)", kelly/2*c.cfg.AccountEquity))
	}
	if !rrOK {
		recs = append(recs, "Widen target or tighten stop")
	}

	return contracts.Outcome{
		Passed:               passed,
		ConfidenceMultiplier: pick(passed, 1.05, 0.90),
		RiskContribution:     pick(passed, 0.02, 0.10),
		Diagnostics: contracts.Diagnostics{
			PrimaryMetric: fraction,
			Metrics: map[string]float64{
				"win_probability":   p,
				"kelly_fraction":    kelly,
				"position_fraction": fraction,
				"reward_risk":       rr,
			},
			Explanation: fmt.Sprintf("position %.2f%% of equity vs half-Kelly %.2f%%, reward/risk %.2f",
				fraction*100, kelly/2*100, rr),
			Recommendations: recs,
		},
	}
}
