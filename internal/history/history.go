package history

import (
	"context"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

const (
	// NeutralWinRate win rate reported for a window without closed trades
	NeutralWinRate = 0.5
	// MaxRecentReturns returns kept per symbol
	MaxRecentReturns = 1000
)

// TradeRecord one closed trade
type TradeRecord struct {
	Symbol   string               `json:"symbol"`
	Type     contracts.StrikeType `json:"type"`
	Return   float64              `json:"return"` // 0.02 = +2%
	ClosedAt time.Time            `json:"closed_at"`
}

// Win reports a profitable trade
func (t TradeRecord) Win() bool {
	return t.Return > 0
}

// VerdictCounts validations per verdict
type VerdictCounts struct {
	Approved    int `json:"approved"`
	Conditional int `json:"conditionally_approved"`
	Rejected    int `json:"rejected"`
}

// Total validations
func (c VerdictCounts) Total() int {
	return c.Approved + c.Conditional + c.Rejected
}

// ApprovalRate (approved + conditional) / total; 0 without validations
func (c VerdictCounts) ApprovalRate() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.Approved+c.Conditional) / float64(c.Total())
}

func (c *VerdictCounts) add(v contracts.Verdict) {
	switch v {
	case contracts.VerdictApproved:
		c.Approved++
	case contracts.VerdictConditionallyApproved:
		c.Conditional++
	default:
		c.Rejected++
	}
}

// CheckStats per-check execution counts
type CheckStats struct {
	Runs     int `json:"runs"`
	Passes   int `json:"passes"`
	TimedOut int `json:"timed_out"`
}

// PassRate passes / runs
func (s CheckStats) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Passes) / float64(s.Runs)
}

// Stats aggregate validation history
type Stats struct {
	ByType map[contracts.StrikeType]VerdictCounts `json:"by_type"`
	Checks map[contracts.CheckID]CheckStats       `json:"checks"`
}

// Totals sums verdict counts over all strike types
func (s Stats) Totals() VerdictCounts {
	var t VerdictCounts
	for _, c := range s.ByType {
		t.Approved += c.Approved
		t.Conditional += c.Conditional
		t.Rejected += c.Rejected
	}
	return t
}

// Store validation history: read by checks, written after each run
// ⭐ SSOT: 체크는 HistoryReader(Snapshot)만 사용, 기록은 파이프라인 바깥에서
type Store interface {
	contracts.HistoryReader
	RecordReport(ctx context.Context, strike contracts.Strike, report *contracts.Report) error
	RecordTrade(ctx context.Context, trade TradeRecord) error
	SetRegime(ctx context.Context, symbol string, regime contracts.MarketRegime) error
	Stats(ctx context.Context) (Stats, error)
}

// buildSnapshot derives the check-facing view from raw records.
// trades must be oldest first.
func buildSnapshot(symbol string, trades []TradeRecord, counts VerdictCounts, regime contracts.MarketRegime, now time.Time) contracts.HistorySnapshot {
	if regime == "" {
		regime = contracts.RegimeUnknown
	}
	snap := contracts.HistorySnapshot{
		Symbol:       symbol,
		ApprovalRate: counts.ApprovalRate(),
		Validations:  counts.Total(),
		Regime:       regime,
	}

	cut30 := now.AddDate(0, 0, -30)
	cut90 := now.AddDate(0, 0, -90)
	var wins30, wins90 int
	for _, t := range trades {
		if t.ClosedAt.After(cut90) {
			snap.Trades90d++
			if t.Win() {
				wins90++
			}
			if t.ClosedAt.After(cut30) {
				snap.Trades30d++
				if t.Win() {
					wins30++
				}
			}
		}
	}
	snap.WinRate30d = winRate(wins30, snap.Trades30d)
	snap.WinRate90d = winRate(wins90, snap.Trades90d)

	start := max(0, len(trades)-MaxRecentReturns)
	snap.RecentReturns = make([]float64, 0, len(trades)-start)
	for _, t := range trades[start:] {
		snap.RecentReturns = append(snap.RecentReturns, t.Return)
	}
	return snap
}

func winRate(wins, n int) float64 {
	if n == 0 {
		return NeutralWinRate
	}
	return float64(wins) / float64(n)
}
