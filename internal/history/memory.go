package history

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

// MemoryStore in-process history (tests, single-node CLI)
type MemoryStore struct {
	now func() time.Time

	mu      sync.RWMutex
	trades  map[string][]TradeRecord
	regimes map[string]contracts.MarketRegime
	byType  map[contracts.StrikeType]VerdictCounts
	checks  map[contracts.CheckID]CheckStats
}

// NewMemoryStore creates an empty store; now may be nil (time.Now)
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:     now,
		trades:  make(map[string][]TradeRecord),
		regimes: make(map[string]contracts.MarketRegime),
		byType:  make(map[contracts.StrikeType]VerdictCounts),
		checks:  make(map[contracts.CheckID]CheckStats),
	}
}

// Snapshot implements contracts.HistoryReader
func (s *MemoryStore) Snapshot(_ context.Context, symbol string, strikeType contracts.StrikeType) (contracts.HistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildSnapshot(symbol, s.trades[symbol], s.byType[strikeType], s.regimes[symbol], s.now()), nil
}

// RecordReport counts the verdict and per-check outcomes
func (s *MemoryStore) RecordReport(_ context.Context, strike contracts.Strike, report *contracts.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byType[strike.Type]
	c.add(report.Decision.Verdict)
	s.byType[strike.Type] = c

	for _, res := range report.Results {
		st := s.checks[res.Outcome.CheckID]
		st.Runs++
		if res.Outcome.Passed {
			st.Passes++
		}
		if res.Outcome.TimedOut {
			st.TimedOut++
		}
		s.checks[res.Outcome.CheckID] = st
	}
	return nil
}

// RecordTrade appends a closed trade
func (s *MemoryStore) RecordTrade(_ context.Context, trade TradeRecord) error {
	if trade.ClosedAt.IsZero() {
		trade.ClosedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.trades[trade.Symbol], trade)
	if over := len(h) - MaxRecentReturns; over > 0 {
		h = append([]TradeRecord(nil), h[over:]...)
	}
	s.trades[trade.Symbol] = h
	return nil
}

// SetRegime stores the current regime label for a symbol
func (s *MemoryStore) SetRegime(_ context.Context, symbol string, regime contracts.MarketRegime) error {
	s.mu.Lock()
	s.regimes[symbol] = regime
	s.mu.Unlock()
	return nil
}

// Stats returns a copy of the aggregate counters
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Stats{
		ByType: make(map[contracts.StrikeType]VerdictCounts, len(s.byType)),
		Checks: make(map[contracts.CheckID]CheckStats, len(s.checks)),
	}
	for k, v := range s.byType {
		out.ByType[k] = v
	}
	for k, v := range s.checks {
		out.Checks[k] = v
	}
	return out, nil
}
