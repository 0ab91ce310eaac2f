package contracts

import "time"

// Outcome is the result produced by one check for one run
// ⭐ CheckID/Name/Category/Severity/Required는 스케줄러가 체크 선언에서 채움
type Outcome struct {
	CheckID  CheckID  `json:"check_id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Required bool     `json:"required"`

	Passed               bool    `json:"passed"`
	ConfidenceMultiplier float64 `json:"confidence_multiplier"` // running confidence에 곱함
	RiskContribution     float64 `json:"risk_contribution"`     // running risk에 더함 (실패 시 severity 가중)

	// Halt marks a kill-switch veto (safety monitor denial)
	Halt     bool `json:"halt,omitempty"`
	TimedOut bool `json:"timed_out,omitempty"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// Diagnostics supporting metrics and remediation for an outcome
type Diagnostics struct {
	PrimaryMetric   float64            `json:"primary_metric"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Explanation     string             `json:"explanation"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// Failed reports whether the outcome did not pass
func (o Outcome) Failed() bool {
	return !o.Passed
}

// CriticalFailure reports a failed required check of Critical severity
func (o Outcome) CriticalFailure() bool {
	return !o.Passed && o.Required && o.Severity == SeverityCritical
}

// RequiredFailure reports a failed required check of any severity
func (o Outcome) RequiredFailure() bool {
	return !o.Passed && o.Required
}

// Metric returns a named secondary metric
func (o Outcome) Metric(name string) (float64, bool) {
	v, ok := o.Diagnostics.Metrics[name]
	return v, ok
}

// CheckResult an outcome plus its execution timing
type CheckResult struct {
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration_ns"`
}
