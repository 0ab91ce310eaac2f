package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Verdict 최종 판정 유형
// ⭐ 하위 실행 로직이 이 값으로 분기하므로 변경 금지
type Verdict string

const (
	VerdictApproved              Verdict = "approved"
	VerdictConditionallyApproved Verdict = "conditionally_approved"
	VerdictRejected              Verdict = "rejected"
)

// Adjustments size/stop scaling applied to a conditionally approved strike
type Adjustments struct {
	SizeMultiplier float64 `json:"size_multiplier"`
	StopMultiplier float64 `json:"stop_multiplier"` // stop distance 축소 비율
}

// Apply returns the adjusted position size and stop price for a strike.
// The stop moves toward the entry by StopMultiplier of the original distance.
func (a Adjustments) Apply(s Strike) (size float64, stop float64) {
	size = s.PositionSize * a.SizeMultiplier
	distance := s.EntryPrice - s.StopLoss
	stop = s.EntryPrice - distance*a.StopMultiplier
	return size, stop
}

// Decision terminal verdict of a pipeline run
type Decision struct {
	Verdict     Verdict      `json:"verdict"`
	Confidence  float64      `json:"confidence,omitempty"`
	Conditions  []string     `json:"conditions,omitempty"`
	Adjustments *Adjustments `json:"adjustments,omitempty"`
	Reasons     []string     `json:"reasons,omitempty"`
	RiskScore   float64      `json:"risk_score"`
}

// Approved full execution at the given confidence
func Approved(confidence, risk float64) Decision {
	return Decision{Verdict: VerdictApproved, Confidence: confidence, RiskScore: risk}
}

// ConditionallyApproved execution with conditions and size/stop adjustments
func ConditionallyApproved(confidence float64, conditions []string, adj Adjustments, risk float64) Decision {
	return Decision{
		Verdict:     VerdictConditionallyApproved,
		Confidence:  confidence,
		Conditions:  conditions,
		Adjustments: &adj,
		RiskScore:   risk,
	}
}

// Rejected no trade
func Rejected(reasons []string, risk float64) Decision {
	return Decision{Verdict: VerdictRejected, Reasons: reasons, RiskScore: risk}
}

// Executable reports whether the decision allows a trade
func (d Decision) Executable() bool {
	return d.Verdict == VerdictApproved || d.Verdict == VerdictConditionallyApproved
}

func (d Decision) String() string {
	switch d.Verdict {
	case VerdictApproved:
		return fmt.Sprintf("APPROVED (confidence=%.3f)", d.Confidence)
	case VerdictConditionallyApproved:
		return fmt.Sprintf("CONDITIONALLY_APPROVED (confidence=%.3f, conditions=%d)", d.Confidence, len(d.Conditions))
	default:
		return fmt.Sprintf("REJECTED (risk=%.3f): %s", d.RiskScore, strings.Join(d.Reasons, "; "))
	}
}

// =============================================================================
// Report
// =============================================================================

// Report full audit trail of one validation run
type Report struct {
	RunID      string        `json:"run_id"`
	StrikeID   uint64        `json:"strike_id"`
	Symbol     string        `json:"symbol"`
	StrikeType StrikeType    `json:"strike_type"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`

	Results          []CheckResult `json:"results"`
	Skipped          []CheckID     `json:"skipped,omitempty"`
	EarlyTermination bool          `json:"early_termination"`

	FinalConfidence  float64  `json:"final_confidence"`
	FinalRisk        float64  `json:"final_risk"`
	PassRate         float64  `json:"pass_rate"`
	CompositeInsight *float64 `json:"composite_insight,omitempty"`
	InsightError     string   `json:"insight_error,omitempty"`

	Decision        Decision `json:"decision"`
	Recommendations []string `json:"recommendations"`
}

// Outcomes returns the outcomes in execution order
func (r *Report) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, res.Outcome)
	}
	return out
}

// Outcome returns the outcome recorded for a check id
func (r *Report) Outcome(id CheckID) (Outcome, bool) {
	for _, res := range r.Results {
		if res.Outcome.CheckID == id {
			return res.Outcome, true
		}
	}
	return Outcome{}, false
}

// FailedCount number of failed outcomes
func (r *Report) FailedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Failed() {
			n++
		}
	}
	return n
}

// PassRate fraction of passed outcomes; zero outcomes yields 0
func PassRate(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	passed := 0
	for _, o := range outcomes {
		if o.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(outcomes))
}

// Clamp01 bounds a score to [0,1]; NaN maps to 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
