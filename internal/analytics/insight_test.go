package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/history"
)

func outcome(sev contracts.Severity, passed bool, mult float64) contracts.Outcome {
	return contracts.Outcome{Severity: sev, Passed: passed, ConfidenceMultiplier: mult}
}

func TestWeightedPassRatio(t *testing.T) {
	outs := []contracts.Outcome{
		outcome(contracts.SeverityCritical, true, 1), // 2.0
		outcome(contracts.SeverityHigh, false, 0.9),  // 1.5
		outcome(contracts.SeverityLow, true, 1),      // 0.5
	}
	assert.InDelta(t, 2.5/4.0, WeightedPassRatio(outs), 1e-9)
	assert.Equal(t, 0.0, WeightedPassRatio(nil))
}

func TestCompositeInsight_NeutralPrior(t *testing.T) {
	e := NewInsightEngine(nil)
	outs := []contracts.Outcome{
		outcome(contracts.SeverityCritical, true, 1.02),
		outcome(contracts.SeverityHigh, true, 1.04),
	}

	score, err := e.CompositeInsight(context.Background(), contracts.Strike{Symbol: "XBTUSD"}, outs)
	require.NoError(t, err)
	assert.InDelta(t, 0.7+0.3*0.5, score, 1e-9)
}

func TestCompositeInsight_HistoryPrior(t *testing.T) {
	store := history.NewMemoryStore(nil)
	strike := contracts.Strike{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum}
	ctx := context.Background()
	for _, v := range []contracts.Verdict{contracts.VerdictApproved, contracts.VerdictApproved, contracts.VerdictRejected, contracts.VerdictApproved} {
		require.NoError(t, store.RecordReport(ctx, strike, &contracts.Report{Decision: contracts.Decision{Verdict: v}}))
	}

	score, err := NewInsightEngine(store).CompositeInsight(ctx, strike, []contracts.Outcome{
		outcome(contracts.SeverityMedium, true, 1),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7+0.3*0.75, score, 1e-9)
}

func TestCompositeInsight_SevereMultiplierHalves(t *testing.T) {
	outs := []contracts.Outcome{
		outcome(contracts.SeverityCritical, true, 1),
		outcome(contracts.SeverityLow, false, 0.4),
	}

	score, err := NewInsightEngine(nil).CompositeInsight(context.Background(), contracts.Strike{}, outs)
	require.NoError(t, err)
	assert.InDelta(t, (0.7*0.8+0.15)/2, score, 1e-9)
}

type failingHistory struct{}

func (failingHistory) Snapshot(context.Context, string, contracts.StrikeType) (contracts.HistorySnapshot, error) {
	return contracts.HistorySnapshot{}, errors.New("redis down")
}

func TestCompositeInsight_HistoryError(t *testing.T) {
	_, err := NewInsightEngine(failingHistory{}).CompositeInsight(context.Background(), contracts.Strike{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}
