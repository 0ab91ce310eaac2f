package pipeline

import (
	"context"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

// stubCheck configurable check for pipeline tests
type stubCheck struct {
	id       contracts.CheckID
	name     string
	severity contracts.Severity
	required bool
	deps     []contracts.CheckID
	eval     func(ctx context.Context, s contracts.Strike, snap contracts.Snapshot) contracts.Outcome
}

func (c *stubCheck) ID() contracts.CheckID          { return c.id }
func (c *stubCheck) Name() string                   { return c.name }
func (c *stubCheck) Category() contracts.Category   { return contracts.CategoryStatistical }
func (c *stubCheck) Severity() contracts.Severity   { return c.severity }
func (c *stubCheck) Required() bool                 { return c.required }
func (c *stubCheck) DependsOn() []contracts.CheckID { return c.deps }

func (c *stubCheck) Evaluate(ctx context.Context, s contracts.Strike, snap contracts.Snapshot, _ contracts.Collaborators) contracts.Outcome {
	if c.eval == nil {
		return passing()
	}
	return c.eval(ctx, s, snap)
}

func check(id int, sev contracts.Severity, required bool, deps ...contracts.CheckID) *stubCheck {
	return &stubCheck{
		id:       contracts.CheckID(id),
		name:     "check_" + contracts.CheckID(id).String()[1:],
		severity: sev,
		required: required,
		deps:     deps,
	}
}

func (c *stubCheck) returning(o contracts.Outcome) *stubCheck {
	c.eval = func(context.Context, contracts.Strike, contracts.Snapshot) contracts.Outcome { return o }
	return c
}

func (c *stubCheck) sleeping(d time.Duration, o contracts.Outcome) *stubCheck {
	c.eval = func(ctx context.Context, _ contracts.Strike, _ contracts.Snapshot) contracts.Outcome {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		return o
	}
	return c
}

func passing() contracts.Outcome {
	return contracts.Outcome{Passed: true, ConfidenceMultiplier: 1.0, RiskContribution: 0}
}

func failing(mult, risk float64, explanation string, remediation ...string) contracts.Outcome {
	return contracts.Outcome{
		Passed:               false,
		ConfidenceMultiplier: mult,
		RiskContribution:     risk,
		Diagnostics: contracts.Diagnostics{
			Explanation:     explanation,
			Recommendations: remediation,
		},
	}
}

func testStrike() contracts.Strike {
	return contracts.Strike{
		ID:             42,
		Symbol:         "XBTUSD",
		Type:           contracts.StrikeMacroMomentum,
		EntryPrice:     60000,
		TargetPrice:    63000,
		StopLoss:       58500,
		Confidence:     0.95,
		ExpectedReturn: 0.05,
		PositionSize:   5000,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Policy.CheckTimeout = time.Second
	return cfg
}

// scrub zeroes run-specific fields (run id, wall clock)
func scrub(r *contracts.Report) contracts.Report {
	c := *r
	c.RunID = ""
	c.StartedAt = time.Time{}
	c.FinishedAt = time.Time{}
	c.Duration = 0
	c.Results = make([]contracts.CheckResult, len(r.Results))
	for i, res := range r.Results {
		res.Duration = 0
		c.Results[i] = res
	}
	return c
}
