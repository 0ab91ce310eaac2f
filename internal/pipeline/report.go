package pipeline

import (
	"fmt"
	"strings"

	"github.com/wonny/strikegate/internal/contracts"
)

// Decision remarks appended to every report
const (
	RemarkApproved    = "Execute at full size"
	RemarkConditional = "Execute with conditions"
	RemarkRejected    = "Address primary issues before resubmission"
)

// recommendations returns deduped (first seen) remediation text of failing
// outcomes followed by one decision-specific remark
func recommendations(results []contracts.CheckResult, d contracts.Decision) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)

	for _, res := range results {
		o := res.Outcome
		if o.Passed {
			continue
		}
		for _, r := range o.Diagnostics.Recommendations {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}

	return append(out, remark(d))
}

func remark(d contracts.Decision) string {
	switch d.Verdict {
	case contracts.VerdictApproved:
		return RemarkApproved
	case contracts.VerdictConditionallyApproved:
		if len(d.Conditions) == 0 {
			return RemarkConditional
		}
		return fmt.Sprintf("%s: %s", RemarkConditional, strings.Join(d.Conditions, "; "))
	default:
		return RemarkRejected
	}
}

// Summary one-line human readable summary of a report
func Summary(r *contracts.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "strike %d %s: %s", r.StrikeID, r.Symbol, r.Decision.String())
	fmt.Fprintf(&b, " | checks=%d failed=%d pass_rate=%.2f confidence=%.3f risk=%.3f",
		len(r.Results), r.FailedCount(), r.PassRate, r.FinalConfidence, r.FinalRisk)
	if r.EarlyTermination {
		fmt.Fprintf(&b, " | early termination (skipped %d)", len(r.Skipped))
	}
	return b.String()
}
