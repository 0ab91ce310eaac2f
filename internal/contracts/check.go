package contracts

import (
	"context"
	"fmt"
	"sort"
)

// CheckID stable small integer identity of a check
type CheckID int

// String returns the id as "#N"
func (id CheckID) String() string {
	return fmt.Sprintf("#%d", int(id))
}

// =============================================================================
// Severity
// =============================================================================

// Severity 체크 실패 시 위험도 가중치 등급
type Severity int

// Zero value is SeverityUnknown so an unstamped outcome never takes the Critical weight.
const (
	SeverityUnknown Severity = iota
	SeverityCritical
	SeverityHigh
	SeverityMedium
	SeverityLow
)

// Weight returns the risk weight applied to a failed outcome of this severity
// ⭐ SSOT: Critical=2.0, High=1.5, Medium=1.0, Low=0.5 (Unknown=1.0)
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 2.0
	case SeverityHigh:
		return 1.5
	case SeverityMedium:
		return 1.0
	case SeverityLow:
		return 0.5
	default:
		return 1.0
	}
}

// Valid reports whether s is one of the declared severities
func (s Severity) Valid() bool {
	return s >= SeverityCritical && s <= SeverityLow
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CRITICAL":
		*s = SeverityCritical
	case "HIGH":
		*s = SeverityHigh
	case "MEDIUM":
		*s = SeverityMedium
	case "LOW":
		*s = SeverityLow
	case "UNKNOWN":
		*s = SeverityUnknown
	default:
		return fmt.Errorf("unknown severity %q", string(text))
	}
	return nil
}

// Category groups checks for reporting
type Category string

const (
	CategoryStatistical     Category = "statistical"
	CategorySafety          Category = "safety"
	CategoryLiquidity       Category = "liquidity"
	CategoryMarketStructure Category = "market_structure"
	CategoryRiskManagement  Category = "risk_management"
)

// =============================================================================
// Check
// =============================================================================

// Check is one independent validation unit
// ⭐ SSOT: 파이프라인 체크 인터페이스는 여기서만 정의
//
// Evaluate must not mutate the strike or the collaborators and should honour
// ctx; the scheduler substitutes a failing outcome when ctx expires.
type Check interface {
	ID() CheckID
	Name() string
	Category() Category
	Severity() Severity
	Required() bool

	// DependsOn lists checks whose outcomes must be folded before this one runs
	DependsOn() []CheckID

	Evaluate(ctx context.Context, strike Strike, snap Snapshot, deps Collaborators) Outcome
}

// Snapshot read-only view of the run context handed to a check
type Snapshot struct {
	Confidence float64             `json:"confidence"`
	Risk       float64             `json:"risk"`
	Completed  map[CheckID]Outcome `json:"completed"`
}

// Outcome returns the folded outcome of an upstream check
func (s Snapshot) Outcome(id CheckID) (Outcome, bool) {
	o, ok := s.Completed[id]
	return o, ok
}

// CompletedIDs returns completed check ids in ascending order
func (s Snapshot) CompletedIDs() []CheckID {
	ids := make([]CheckID, 0, len(s.Completed))
	for id := range s.Completed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
