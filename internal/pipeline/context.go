package pipeline

import (
	"github.com/wonny/strikegate/internal/contracts"
)

// RunContext accumulates scores and outcomes for one pipeline run.
// Only the scheduler goroutine folds into it; checks get a Snapshot copy.
type RunContext struct {
	confidence float64
	risk       float64
	completed  map[contracts.CheckID]contracts.Outcome
	order      []contracts.CheckID
}

// NewRunContext starts a run from the strike's base confidence and zero risk
func NewRunContext(baseConfidence float64) *RunContext {
	return &RunContext{
		confidence: contracts.Clamp01(baseConfidence),
		completed:  make(map[contracts.CheckID]contracts.Outcome),
	}
}

// Fold applies one outcome to the running scores
// ⭐ SSOT: confidence/risk 갱신은 여기서만 (항상 [0,1])
//
//	confidence = clamp(confidence × multiplier)
//	risk       = clamp(risk + weight × contribution), weight = severity weight on failure, 1.0 on pass
func (c *RunContext) Fold(o contracts.Outcome) {
	c.confidence = contracts.Clamp01(c.confidence * o.ConfidenceMultiplier)

	weight := 1.0
	if !o.Passed {
		weight = o.Severity.Weight()
	}
	c.risk = contracts.Clamp01(c.risk + weight*o.RiskContribution)

	if _, seen := c.completed[o.CheckID]; !seen {
		c.order = append(c.order, o.CheckID)
	}
	c.completed[o.CheckID] = o
}

// Confidence running confidence
func (c *RunContext) Confidence() float64 {
	return c.confidence
}

// Risk running risk
func (c *RunContext) Risk() float64 {
	return c.risk
}

// Outcomes folded outcomes in fold order
func (c *RunContext) Outcomes() []contracts.Outcome {
	out := make([]contracts.Outcome, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.completed[id])
	}
	return out
}

// Snapshot returns a read-only copy handed to checks of the next wave
func (c *RunContext) Snapshot() contracts.Snapshot {
	completed := make(map[contracts.CheckID]contracts.Outcome, len(c.completed))
	for id, o := range c.completed {
		completed[id] = o
	}
	return contracts.Snapshot{
		Confidence: c.confidence,
		Risk:       c.risk,
		Completed:  completed,
	}
}
