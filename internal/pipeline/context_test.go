package pipeline

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/internal/contracts"
)

func TestRunContext_FoldBoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(20240601))
	extremes := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -5, 0, 1, 1e9, -1e-9}

	pick := func() float64 {
		if rng.Intn(5) == 0 {
			return extremes[rng.Intn(len(extremes))]
		}
		return rng.Float64()*4 - 1 // [-1, 3)
	}

	for run := 0; run < 500; run++ {
		rc := NewRunContext(pick())
		require.True(t, inUnit(rc.Confidence()), "initial confidence %v", rc.Confidence())

		steps := 1 + rng.Intn(30)
		for i := 0; i < steps; i++ {
			rc.Fold(contracts.Outcome{
				CheckID:              contracts.CheckID(i),
				Severity:             contracts.Severity(rng.Intn(4) + 1),
				Passed:               rng.Intn(2) == 0,
				ConfidenceMultiplier: pick(),
				RiskContribution:     pick(),
			})
			require.True(t, inUnit(rc.Confidence()), "run %d step %d confidence %v", run, i, rc.Confidence())
			require.True(t, inUnit(rc.Risk()), "run %d step %d risk %v", run, i, rc.Risk())
		}
	}
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func TestRunContext_SeverityWeighting(t *testing.T) {
	tests := []struct {
		severity contracts.Severity
		passed   bool
		want     float64
	}{
		{contracts.SeverityCritical, false, 0.2},
		{contracts.SeverityHigh, false, 0.15},
		{contracts.SeverityMedium, false, 0.1},
		{contracts.SeverityLow, false, 0.05},
		{contracts.SeverityCritical, true, 0.1}, // 통과 시 가중치 1.0
		{contracts.SeverityLow, true, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			rc := NewRunContext(1)
			rc.Fold(contracts.Outcome{
				CheckID:              1,
				Severity:             tt.severity,
				Passed:               tt.passed,
				ConfidenceMultiplier: 1,
				RiskContribution:     0.1,
			})
			assert.InDelta(t, tt.want, rc.Risk(), 1e-12)
		})
	}
}

func TestRunContext_ConfidenceIsMultiplied(t *testing.T) {
	rc := NewRunContext(0.95)
	rc.Fold(contracts.Outcome{CheckID: 1, Passed: true, ConfidenceMultiplier: 0.9})
	rc.Fold(contracts.Outcome{CheckID: 2, Passed: true, ConfidenceMultiplier: 1.05})

	assert.InDelta(t, 0.95*0.9*1.05, rc.Confidence(), 1e-12)

	rc.Fold(contracts.Outcome{CheckID: 3, Passed: true, ConfidenceMultiplier: 5})
	assert.Equal(t, 1.0, rc.Confidence())
}

func TestRunContext_SnapshotIsCopy(t *testing.T) {
	rc := NewRunContext(0.8)
	rc.Fold(contracts.Outcome{CheckID: 3, Passed: true, ConfidenceMultiplier: 1})

	snap := rc.Snapshot()
	snap.Completed[99] = contracts.Outcome{}

	_, ok := rc.Snapshot().Outcome(99)
	assert.False(t, ok)

	o, ok := snap.Outcome(3)
	assert.True(t, ok)
	assert.True(t, o.Passed)
	assert.Equal(t, []contracts.CheckID{3, 99}, snap.CompletedIDs())
}

func TestRunContext_OutcomesInFoldOrder(t *testing.T) {
	rc := NewRunContext(1)
	for _, id := range []contracts.CheckID{5, 2, 9} {
		rc.Fold(contracts.Outcome{CheckID: id, Passed: true, ConfidenceMultiplier: 1})
	}

	var got []contracts.CheckID
	for _, o := range rc.Outcomes() {
		got = append(got, o.CheckID)
	}
	assert.Equal(t, []contracts.CheckID{5, 2, 9}, got)
}
