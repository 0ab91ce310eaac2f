package checks

import (
	"context"
	"fmt"

	"github.com/wonny/strikegate/internal/contracts"
)

// SafetyLimits #2 kill switch
// ⭐ SSOT: 모니터 거부/부재 → Halt (스케줄러가 Critical+Required로 강제)
type SafetyLimits struct {
	base
}

// NewSafetyLimits creates check #2
func NewSafetyLimits() *SafetyLimits {
	return &SafetyLimits{base: base{
		id:       SafetyLimitsID,
		name:     "safety_limits",
		category: contracts.CategorySafety,
		severity: contracts.SeverityCritical,
		required: true,
	}}
}

// Evaluate implements contracts.Check
func (c *SafetyLimits) Evaluate(ctx context.Context, s contracts.Strike, _ contracts.Snapshot, deps contracts.Collaborators) contracts.Outcome {
	var err error
	if deps.Safety == nil {
		err = fmt.Errorf("safety monitor: %w", contracts.ErrUnavailable)
	} else {
		err = deps.Safety.CheckTradeAllowed(ctx, s.PositionSize, s.Symbol)
	}

	if err != nil {
		return contracts.Outcome{
			Passed:               false,
			Halt:                 true,
			ConfidenceMultiplier: 0,
			RiskContribution:     1.0,
			Diagnostics: contracts.Diagnostics{
				PrimaryMetric:   1,
				Explanation:     fmt.Sprintf("trading halted: %v", err),
				Recommendations: []string{"Wait for the safety monitor to clear"},
			},
		}
	}

	return contracts.Outcome{
		Passed:               true,
		ConfidenceMultiplier: 1.0,
		Diagnostics: contracts.Diagnostics{
			Explanation: "within safety limits",
		},
	}
}
