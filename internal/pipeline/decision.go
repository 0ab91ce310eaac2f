package pipeline

import (
	"fmt"

	"github.com/wonny/strikegate/internal/contracts"
)

// Thresholds decision policy thresholds
type Thresholds struct {
	MinConfidence       float64 // 승인 최소 confidence
	MaxRisk             float64 // 승인 최대 risk
	ApprovePassRate     float64 // 완전 승인 pass rate
	ConditionalPassRate float64 // 조건부 승인 pass rate
	MinCompositeInsight float64 // analytics가 있을 때 완전 승인 최소값
}

// DefaultThresholds returns the default decision thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:       0.90,
		MaxRisk:             0.30,
		ApprovePassRate:     0.9,
		ConditionalPassRate: 0.7,
		MinCompositeInsight: 0.85,
	}
}

// Validate checks threshold ranges
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"min_confidence":        t.MinConfidence,
		"max_risk":              t.MaxRisk,
		"approve_pass_rate":     t.ApprovePassRate,
		"conditional_pass_rate": t.ConditionalPassRate,
		"min_composite_insight": t.MinCompositeInsight,
	} {
		if !finite(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if t.ConditionalPassRate > t.ApprovePassRate {
		return fmt.Errorf("conditional_pass_rate (%v) must not exceed approve_pass_rate (%v)",
			t.ConditionalPassRate, t.ApprovePassRate)
	}
	return nil
}

// Engine maps a finished run to a decision
// ⭐ SSOT: 판정 규칙은 여기서만 (규칙 순서 고정, 첫 매칭 우선)
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a decision engine
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Thresholds returns the engine thresholds
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Decide is a pure function of the final scores, outcomes and optional insight.
//
//  1. any failed required Critical outcome → Rejected
//  2. no failed required outcome, and pass rate, confidence, risk and insight
//     all within approval bounds → Approved
//  3. pass rate and confidence within conditional bounds → ConditionallyApproved
//  4. otherwise → Rejected
func (e *Engine) Decide(confidence, risk float64, outcomes []contracts.Outcome, insight *float64) contracts.Decision {
	t := e.thresholds

	// Rule 1: critical veto
	var critical []string
	for _, o := range outcomes {
		if o.CriticalFailure() {
			critical = append(critical, o.Diagnostics.Explanation)
		}
	}
	if len(critical) > 0 {
		return contracts.Rejected(critical, risk)
	}

	passRate := contracts.PassRate(outcomes)

	// Rule 2: full approval (실패한 required 체크가 하나라도 있으면 불가)
	insightOK := insight == nil || *insight >= t.MinCompositeInsight
	if !anyRequiredFailed(outcomes) && passRate >= t.ApprovePassRate &&
		confidence >= t.MinConfidence && risk <= t.MaxRisk && insightOK {
		return contracts.Approved(confidence, risk)
	}

	// Rule 3: conditional approval
	if passRate >= t.ConditionalPassRate && confidence >= t.MinConfidence {
		conditions := remediations(outcomes)
		scale := contracts.Clamp01(1 - risk)
		adj := contracts.Adjustments{SizeMultiplier: scale, StopMultiplier: scale}
		return contracts.ConditionallyApproved(confidence, conditions, adj, risk)
	}

	// Rule 4: reject with every failure
	var reasons []string
	for _, o := range outcomes {
		if !o.Passed {
			reasons = append(reasons, fmt.Sprintf("%s: %s", o.Name, o.Diagnostics.Explanation))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("below approval bounds (pass_rate=%.2f confidence=%.3f risk=%.3f)",
			passRate, confidence, risk))
	}
	return contracts.Rejected(reasons, risk)
}

func anyRequiredFailed(outcomes []contracts.Outcome) bool {
	for _, o := range outcomes {
		if o.RequiredFailure() {
			return true
		}
	}
	return false
}

// remediations deduped remediation text of failed non-critical outcomes
func remediations(outcomes []contracts.Outcome) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range outcomes {
		if o.Passed || o.CriticalFailure() {
			continue
		}
		items := o.Diagnostics.Recommendations
		if len(items) == 0 && o.Diagnostics.Explanation != "" {
			items = []string{fmt.Sprintf("%s: %s", o.Name, o.Diagnostics.Explanation)}
		}
		for _, r := range items {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}
