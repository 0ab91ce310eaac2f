package checks

import (
	"context"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

type fakeMarket struct {
	ticker contracts.Ticker
	book   contracts.OrderBook
	err    error
}

func (f *fakeMarket) Ticker(_ context.Context, symbol string) (contracts.Ticker, error) {
	if f.err != nil {
		return contracts.Ticker{}, f.err
	}
	t := f.ticker
	t.Symbol = symbol
	return t, nil
}

func (f *fakeMarket) OrderBook(_ context.Context, symbol string, _ int) (contracts.OrderBook, error) {
	if f.err != nil {
		return contracts.OrderBook{}, f.err
	}
	b := f.book
	b.Symbol = symbol
	return b, nil
}

type fakeLiquidity struct {
	score    float64
	forecast contracts.LiquidityForecast
	err      error
}

func (f *fakeLiquidity) LiquidityScore(context.Context, string) (float64, error) {
	return f.score, f.err
}

func (f *fakeLiquidity) Predict(_ context.Context, symbol string, _ time.Duration) (contracts.LiquidityForecast, error) {
	fc := f.forecast
	fc.Symbol = symbol
	return fc, f.err
}

type fakeSafety struct{ err error }

func (f *fakeSafety) CheckTradeAllowed(context.Context, float64, string) error { return f.err }

type fakeHistory struct {
	snap contracts.HistorySnapshot
	err  error
}

func (f *fakeHistory) Snapshot(_ context.Context, symbol string, _ contracts.StrikeType) (contracts.HistorySnapshot, error) {
	s := f.snap
	s.Symbol = symbol
	return s, f.err
}

func testStrike() contracts.Strike {
	return contracts.Strike{
		ID:             7,
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

// healthyBook 10 levels each side, 5 units per level, 5 tick apart
func healthyBook() contracts.OrderBook {
	var b contracts.OrderBook
	for i := 0; i < 10; i++ {
		b.Bids = append(b.Bids, contracts.BookLevel{Price: 59995 - float64(i)*5, Volume: 5})
		b.Asks = append(b.Asks, contracts.BookLevel{Price: 60005 + float64(i)*5, Volume: 5})
	}
	return b
}

func healthyReturns() []float64 {
	r := []float64{-0.02, -0.02}
	for i := 0; i < 38; i++ {
		r = append(r, 0.01)
	}
	return r
}

type world struct {
	market    *fakeMarket
	liquidity *fakeLiquidity
	safety    *fakeSafety
	history   *fakeHistory
}

func healthyWorld() *world {
	return &world{
		market: &fakeMarket{
			ticker: contracts.Ticker{Bid: 59995, Ask: 60005, Last: 60000, Volume24h: 1000},
			book:   healthyBook(),
		},
		liquidity: &fakeLiquidity{
			score: 0.9,
			forecast: contracts.LiquidityForecast{
				CurrentScore:      0.9,
				PredictedScore:    0.9,
				Confidence:        0.8,
				State:             contracts.LiquidityOptimal,
				RecommendedAction: contracts.RecommendExecute,
			},
		},
		safety: &fakeSafety{},
		history: &fakeHistory{snap: contracts.HistorySnapshot{
			WinRate30d:    0.7,
			WinRate90d:    0.6,
			RecentReturns: healthyReturns(),
			Regime:        contracts.RegimeBullTrend,
		}},
	}
}

func (w *world) deps() contracts.Collaborators {
	return contracts.Collaborators{
		MarketData: w.market,
		OrderBooks: w.market,
		Liquidity:  w.liquidity,
		Forecaster: w.liquidity,
		Safety:     w.safety,
		History:    w.history,
	}
}

func emptySnap() contracts.Snapshot {
	return contracts.Snapshot{Confidence: 0.95, Completed: map[contracts.CheckID]contracts.Outcome{}}
}
