package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/redis"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func daysAgo(d int) time.Time { return now.AddDate(0, 0, -d) }

// sampleTrades oldest first: 1 win >90d, 2 losses in 30~90d, 2 wins + 1 loss in 30d
func sampleTrades() []TradeRecord {
	return []TradeRecord{
		{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum, Return: 0.03, ClosedAt: daysAgo(120)},
		{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum, Return: -0.02, ClosedAt: daysAgo(60)},
		{Symbol: "XBTUSD", Type: contracts.StrikeMacroFlash, Return: -0.01, ClosedAt: daysAgo(45)},
		{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum, Return: 0.02, ClosedAt: daysAgo(20)},
		{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum, Return: -0.01, ClosedAt: daysAgo(10)},
		{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum, Return: 0.04, ClosedAt: daysAgo(1)},
	}
}

func reportWith(v contracts.Verdict, outcomes ...contracts.Outcome) *contracts.Report {
	r := &contracts.Report{Symbol: "XBTUSD", Decision: contracts.Decision{Verdict: v}}
	for _, o := range outcomes {
		r.Results = append(r.Results, contracts.CheckResult{Outcome: o})
	}
	return r
}

// =============================================================================
// MemoryStore
// =============================================================================

func TestMemoryStore_Snapshot(t *testing.T) {
	s := NewMemoryStore(fixedNow)
	ctx := context.Background()
	for _, tr := range sampleTrades() {
		require.NoError(t, s.RecordTrade(ctx, tr))
	}
	require.NoError(t, s.SetRegime(ctx, "XBTUSD", contracts.RegimeBullTrend))

	snap, err := s.Snapshot(ctx, "XBTUSD", contracts.StrikeMacroMomentum)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Trades30d)
	assert.InDelta(t, 2.0/3, snap.WinRate30d, 1e-9)
	assert.Equal(t, 5, snap.Trades90d)
	assert.InDelta(t, 0.4, snap.WinRate90d, 1e-9)
	assert.Equal(t, []float64{0.03, -0.02, -0.01, 0.02, -0.01, 0.04}, snap.RecentReturns)
	assert.Equal(t, contracts.RegimeBullTrend, snap.Regime)
}

func TestMemoryStore_EmptySnapshot(t *testing.T) {
	snap, err := NewMemoryStore(fixedNow).Snapshot(context.Background(), "ETHUSD", contracts.StrikeMacroFunding)
	require.NoError(t, err)

	assert.Equal(t, NeutralWinRate, snap.WinRate30d)
	assert.Equal(t, NeutralWinRate, snap.WinRate90d)
	assert.Equal(t, contracts.RegimeUnknown, snap.Regime)
	assert.Empty(t, snap.RecentReturns)
	assert.Equal(t, 0, snap.Validations)
}

func TestMemoryStore_RecordReport(t *testing.T) {
	s := NewMemoryStore(fixedNow)
	ctx := context.Background()
	strike := contracts.Strike{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum}

	require.NoError(t, s.RecordReport(ctx, strike, reportWith(contracts.VerdictApproved,
		contracts.Outcome{CheckID: 1, Passed: true},
		contracts.Outcome{CheckID: 3, Passed: false, TimedOut: true},
	)))
	require.NoError(t, s.RecordReport(ctx, strike, reportWith(contracts.VerdictConditionallyApproved,
		contracts.Outcome{CheckID: 1, Passed: true},
	)))
	require.NoError(t, s.RecordReport(ctx, strike, reportWith(contracts.VerdictRejected,
		contracts.Outcome{CheckID: 1, Passed: false},
	)))

	snap, err := s.Snapshot(ctx, "XBTUSD", contracts.StrikeMacroMomentum)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Validations)
	assert.InDelta(t, 2.0/3, snap.ApprovalRate, 1e-9)

	other, _ := s.Snapshot(ctx, "XBTUSD", contracts.StrikeMacroFlash)
	assert.Equal(t, 0, other.Validations)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, CheckStats{Runs: 3, Passes: 2}, stats.Checks[1])
	assert.Equal(t, CheckStats{Runs: 1, TimedOut: 1}, stats.Checks[3])
	assert.Equal(t, VerdictCounts{Approved: 1, Conditional: 1, Rejected: 1}, stats.Totals())
	assert.InDelta(t, 2.0/3, stats.Checks[1].PassRate(), 1e-9)
}

func TestMemoryStore_TrimsReturns(t *testing.T) {
	s := NewMemoryStore(fixedNow)
	ctx := context.Background()
	for i := 0; i < MaxRecentReturns+5; i++ {
		require.NoError(t, s.RecordTrade(ctx, TradeRecord{Symbol: "XBTUSD", Return: float64(i)}))
	}

	snap, _ := s.Snapshot(ctx, "XBTUSD", contracts.StrikeMacroMomentum)
	require.Len(t, snap.RecentReturns, MaxRecentReturns)
	assert.Equal(t, 5.0, snap.RecentReturns[0])
}

// =============================================================================
// RedisStore
// =============================================================================

func newRedisStore(t *testing.T) (*RedisStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	s, err := NewRedisStore(redis.Wrap(db), "strikegate", fixedNow)
	require.NoError(t, err)
	return s, mock
}

func TestNewRedisStore_Disabled(t *testing.T) {
	_, err := NewRedisStore(redis.Wrap(nil), "strikegate", nil)
	assert.ErrorIs(t, err, contracts.ErrUnavailable)
}

func TestRedisStore_Snapshot(t *testing.T) {
	s, mock := newRedisStore(t)

	var raw []string
	for _, tr := range sampleTrades() {
		data, _ := json.Marshal(tr)
		raw = append(raw, string(data))
	}
	mock.ExpectLRange("strikegate:history:trades:XBTUSD", 0, -1).SetVal(raw)
	mock.ExpectGet("strikegate:history:regime:XBTUSD").SetVal("cascade")
	mock.ExpectHGetAll("strikegate:history:verdicts:macro_momentum").SetVal(map[string]string{
		"approved": "3",
		"rejected": "1",
	})

	snap, err := s.Snapshot(context.Background(), "XBTUSD", contracts.StrikeMacroMomentum)
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3, snap.WinRate30d, 1e-9)
	assert.InDelta(t, 0.4, snap.WinRate90d, 1e-9)
	assert.Len(t, snap.RecentReturns, 6)
	assert.Equal(t, contracts.RegimeCascade, snap.Regime)
	assert.Equal(t, 4, snap.Validations)
	assert.Equal(t, 0.75, snap.ApprovalRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SnapshotNoRegime(t *testing.T) {
	s, mock := newRedisStore(t)

	mock.ExpectLRange("strikegate:history:trades:ETHUSD", 0, -1).SetVal(nil)
	mock.ExpectGet("strikegate:history:regime:ETHUSD").RedisNil()
	mock.ExpectHGetAll("strikegate:history:verdicts:macro_flash").SetVal(map[string]string{})

	snap, err := s.Snapshot(context.Background(), "ETHUSD", contracts.StrikeMacroFlash)
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeUnknown, snap.Regime)
	assert.Equal(t, NeutralWinRate, snap.WinRate30d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SnapshotError(t *testing.T) {
	s, mock := newRedisStore(t)
	mock.ExpectLRange("strikegate:history:trades:XBTUSD", 0, -1).SetErr(errors.New("connection refused"))

	_, err := s.Snapshot(context.Background(), "XBTUSD", contracts.StrikeMacroMomentum)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRedisStore_RecordTrade(t *testing.T) {
	s, mock := newRedisStore(t)
	trade := TradeRecord{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum, Return: 0.015}

	stamped := trade
	stamped.ClosedAt = now
	data, _ := json.Marshal(stamped)
	mock.ExpectRPush("strikegate:history:trades:XBTUSD", data).SetVal(1)
	mock.ExpectLTrim("strikegate:history:trades:XBTUSD", -MaxRecentReturns, -1).SetVal("OK")

	require.NoError(t, s.RecordTrade(context.Background(), trade))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_RecordReport(t *testing.T) {
	s, mock := newRedisStore(t)
	strike := contracts.Strike{Symbol: "XBTUSD", Type: contracts.StrikeMacroMomentum}
	report := reportWith(contracts.VerdictConditionallyApproved,
		contracts.Outcome{CheckID: 1, Passed: true},
		contracts.Outcome{CheckID: 4, Passed: false, TimedOut: true},
	)

	mock.ExpectHIncrBy("strikegate:history:verdicts:macro_momentum", "conditionally_approved", 1).SetVal(1)
	mock.ExpectHIncrBy("strikegate:history:checks", "1:runs", 1).SetVal(1)
	mock.ExpectHIncrBy("strikegate:history:checks", "1:passes", 1).SetVal(1)
	mock.ExpectHIncrBy("strikegate:history:checks", "4:runs", 1).SetVal(1)
	mock.ExpectHIncrBy("strikegate:history:checks", "4:timed_out", 1).SetVal(1)

	require.NoError(t, s.RecordReport(context.Background(), strike, report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetRegime(t *testing.T) {
	s, mock := newRedisStore(t)
	mock.ExpectSet("strikegate:history:regime:XBTUSD", "ranging", 0).SetVal("OK")

	require.NoError(t, s.SetRegime(context.Background(), "XBTUSD", contracts.RegimeRanging))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Stats(t *testing.T) {
	s, mock := newRedisStore(t)
	for _, st := range contracts.AllStrikeTypes() {
		fields := map[string]string{}
		if st == contracts.StrikeMacroMomentum {
			fields = map[string]string{"approved": "2", "rejected": "2"}
		}
		mock.ExpectHGetAll("strikegate:history:verdicts:" + string(st)).SetVal(fields)
	}
	mock.ExpectHGetAll("strikegate:history:checks").SetVal(map[string]string{
		"1:runs":   "4",
		"1:passes": "3",
		"bogus":    "x",
	})

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats.ByType, 1)
	assert.Equal(t, 0.5, stats.ByType[contracts.StrikeMacroMomentum].ApprovalRate())
	assert.Equal(t, CheckStats{Runs: 4, Passes: 3}, stats.Checks[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}
