package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/risk"
)

// TailRisk #6 historical VaR/CVaR of closed trades on the symbol
type TailRisk struct {
	base
	cfg Config
}

// NewTailRisk creates check #6
func NewTailRisk(cfg Config) *TailRisk {
	return &TailRisk{
		base: base{
			id:       TailRiskID,
			name:     "tail_risk",
			category: contracts.CategoryRiskManagement,
			severity: contracts.SeverityMedium,
			required: false,
		},
		cfg: cfg,
	}
}

// Evaluate implements contracts.Check
func (c *TailRisk) Evaluate(ctx context.Context, s contracts.Strike, _ contracts.Snapshot, deps contracts.Collaborators) contracts.Outcome {
	if deps.History == nil {
		return unavailable("validation history", nil)
	}
	hist, err := deps.History.Snapshot(ctx, s.Symbol, s.Type)
	if err != nil {
		return unavailable("validation history", err)
	}

	res := risk.CalculateVaR(hist.RecentReturns, c.cfg.VaRConfidence)

	// 표본 부족: 정보성 통과 + 기본 리스크 (정규 근사 VaR는 참고치로만 기록)
	if res.Samples < c.cfg.MinSamples {
		metrics := map[string]float64{"samples": float64(res.Samples)}
		if res.Samples >= 2 {
			est := risk.CalculateParametricVaR(risk.Mean(hist.RecentReturns), risk.StdDev(hist.RecentReturns), c.cfg.VaRConfidence)
			metrics["parametric_var"] = est.VaR
			metrics["parametric_cvar"] = est.CVaR
		}
		return contracts.Outcome{
			Passed:               true,
			ConfidenceMultiplier: 1.0,
			RiskContribution:     c.cfg.BaselineRisk,
			Diagnostics: contracts.Diagnostics{
				Metrics: metrics,
				Explanation: fmt.Sprintf("insufficient history (%d < %d samples), baseline risk applied",
					res.Samples, c.cfg.MinSamples),
			},
		}
	}

	passed := !res.Breaches(c.cfg.MaxVaR, c.cfg.MaxCVaR)

	return contracts.Outcome{
		Passed:               passed,
		ConfidenceMultiplier: pick(passed, 1.01, 0.92),
		RiskContribution:     math.Max(res.VaR, res.CVaR),
		Diagnostics: contracts.Diagnostics{
			PrimaryMetric: res.VaR,
			Metrics: map[string]float64{
				"var":     res.VaR,
				"cvar":    res.CVaR,
				"samples": float64(res.Samples),
			},
			Explanation: fmt.Sprintf("VaR(%.0f%%) %.2f%%, CVaR %.2f%% over %d trades",
				res.Confidence*100, res.VaR*100, res.CVaR*100, res.Samples),
			Recommendations: when(!passed, "Reduce position size", "Tighten stop loss"),
		},
	}
}
