package liquidity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/marketdata"
	"github.com/wonny/strikegate/pkg/redis"
)

var t0 = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) // Monday

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testMarket() *marketdata.Static {
	s := marketdata.NewStatic()
	ticker, book := marketdata.Synthetic("XBTUSD", 60000, 10, 5, 10, 1000)
	s.SetTicker(ticker)
	s.SetOrderBook(book)
	return s
}

// =============================================================================
// Metrics / Score
// =============================================================================

func TestFromMarketAndScore(t *testing.T) {
	ticker, book := marketdata.Synthetic("XBTUSD", 60000, 10, 5, 10, 1000)
	m := FromMarket(ticker, book, t0)

	assert.Equal(t, 60_000_000.0, m.Volume24hUSD)
	assert.InDelta(t, 2_997_500, m.BidDepthUSD, 1e-6)
	assert.InDelta(t, 3_002_500, m.AskDepthUSD, 1e-6)
	assert.Equal(t, 10, m.Makers)
	assert.InDelta(t, 0.016667, m.SpreadPct, 1e-6)

	assert.InDelta(t, 0.4+0.3+0.2*(1-m.SpreadPct)+0.1, Score(m), 1e-9)
	assert.Equal(t, 0.2, Score(Metrics{SpreadPct: 0}))

	volumeOK, depthOK, spreadOK, makersOK := DefaultRequirements().Meets(m)
	assert.True(t, volumeOK && depthOK && spreadOK && makersOK)
}

// =============================================================================
// Monitor
// =============================================================================

func TestMonitor_Score(t *testing.T) {
	m := NewMonitor(testMarket(), testMarket(), nil)

	score, err := m.LiquidityScore(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)

	ok, err := m.VerifyLiquidity(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMonitor_BlacklistAndApproved(t *testing.T) {
	m := NewMonitor(testMarket(), testMarket(), nil,
		WithApproved("XBTUSD", "ETHUSD"),
		WithBlacklist("LUNAUSD"),
	)

	score, err := m.LiquidityScore(context.Background(), "LUNAUSD")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	ok, err := m.VerifyLiquidity(context.Background(), "SOLUSD")
	require.NoError(t, err)
	assert.False(t, ok, "not in approved list")

	assert.True(t, m.Allowed("XBTUSD"))
}

func TestMonitor_UnknownSymbol(t *testing.T) {
	m := NewMonitor(testMarket(), testMarket(), nil)

	_, err := m.LiquidityScore(context.Background(), "DOGEUSD")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = NewMonitor(nil, nil, nil).Metrics(context.Background(), "XBTUSD")
	assert.ErrorIs(t, err, contracts.ErrUnavailable)
}

func TestMonitor_RequirementsNotMet(t *testing.T) {
	s := marketdata.NewStatic()
	ticker, book := marketdata.Synthetic("THINUSD", 1, 0.01, 10, 2, 1000)
	s.SetTicker(ticker)
	s.SetOrderBook(book)

	ok, err := NewMonitor(s, s, nil).VerifyLiquidity(context.Background(), "THINUSD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMonitor_CacheTTL(t *testing.T) {
	market := testMarket()
	clk := &clock{now: t0}
	m := NewMonitor(market, market, nil, WithClock(clk.Now))

	first, err := m.Metrics(context.Background(), "XBTUSD")
	require.NoError(t, err)

	// 시세 변경: TTL 안에서는 캐시
	ticker, _ := marketdata.Synthetic("XBTUSD", 60000, 10, 5, 10, 10)
	market.SetTicker(ticker)

	clk.Advance(4 * time.Minute)
	cached, err := m.Metrics(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	clk.Advance(2 * time.Minute)
	fresh, err := m.Metrics(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, 600_000.0, fresh.Volume24hUSD)

	m.Invalidate(context.Background(), "XBTUSD")
	again, err := m.Metrics(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, clk.now, again.UpdatedAt)
}

func TestMonitor_SafePositionSize(t *testing.T) {
	m := NewMonitor(testMarket(), testMarket(), nil)

	size, err := m.SafePositionSize(context.Background(), "XBTUSD", 100_000)
	require.NoError(t, err)
	assert.InDelta(t, 29_975, size, 1e-6)

	size, err = m.SafePositionSize(context.Background(), "XBTUSD", 1_000)
	require.NoError(t, err)
	assert.Equal(t, 1_000.0, size)
}

func TestMonitor_RedisLayer(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "strikegate")
	market := testMarket()
	clk := &clock{now: t0}
	m := NewMonitor(market, market, nil, WithCache(cache), WithClock(clk.Now))

	ticker, _ := market.Ticker(context.Background(), "XBTUSD")
	book, _ := market.OrderBook(context.Background(), "XBTUSD", bookDepth)
	want := FromMarket(ticker, book, t0)
	data, err := json.Marshal(want)
	require.NoError(t, err)

	key := "strikegate:cache:liquidity:metrics:XBTUSD"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, data, DefaultCacheTTL).SetVal("OK")

	got, err := m.Metrics(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_InvalidateEvictsSharedSnapshot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "strikegate")
	m := NewMonitor(testMarket(), testMarket(), nil, WithCache(cache))

	mock.ExpectDel("strikegate:cache:liquidity:metrics:XBTUSD").SetVal(1)
	m.Invalidate(context.Background(), "XBTUSD")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_RedisHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "strikegate")
	clk := &clock{now: t0.Add(time.Minute)}

	// 다른 인스턴스가 기록한 지표: market 없이도 응답
	remote := Metrics{Symbol: "ETHUSD", Volume24hUSD: 5e8, BidDepthUSD: 1e6, AskDepthUSD: 1e6, SpreadPct: 0.02, Makers: 15, UpdatedAt: t0}
	data, _ := json.Marshal(remote)
	mock.ExpectGet("strikegate:cache:liquidity:metrics:ETHUSD").SetVal(string(data))

	m := NewMonitor(nil, nil, nil, WithCache(cache), WithClock(clk.Now))
	score, err := m.LiquidityScore(context.Background(), "ETHUSD")
	require.NoError(t, err)
	assert.InDelta(t, Score(remote), score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Predictor
// =============================================================================

func feed(p *Predictor, symbol string, score float64, n int, start time.Time) time.Time {
	at := start
	for i := 0; i < n; i++ {
		p.RecordScore(symbol, score, at)
		at = at.Add(time.Minute)
	}
	return at
}

func TestPredictor_NoModel(t *testing.T) {
	p := NewPredictor(DefaultPredictorConfig(), nil)
	feed(p, "XBTUSD", 0.9, 50, t0)

	fc, err := p.Predict(context.Background(), "XBTUSD", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, contracts.RecommendAbort, fc.RecommendedAction)
	assert.Equal(t, contracts.LiquidityInsufficient, fc.State)
	assert.Equal(t, 0.9, fc.CurrentScore)
	assert.Equal(t, []string{"No prediction model available"}, fc.RiskFactors)

	_, ok := p.Model("XBTUSD")
	assert.False(t, ok)
}

func TestPredictor_Classify(t *testing.T) {
	tests := []struct {
		score  float64
		state  contracts.LiquidityState
		action contracts.TradeRecommendation
	}{
		// dyadic scores keep the moving averages exact
		{0.875, contracts.LiquidityOptimal, contracts.RecommendExecute},
		{0.75, contracts.LiquidityGood, contracts.RecommendExecute},
		{0.625, contracts.LiquidityWarning, contracts.RecommendReduceSize},
		{0.375, contracts.LiquidityCritical, contracts.RecommendWaitForLiquidity},
		{0.25, contracts.LiquidityInsufficient, contracts.RecommendAbort},
	}
	for _, tt := range tests {
		clk := &clock{}
		p := NewPredictor(DefaultPredictorConfig(), clk.Now)
		clk.now = feed(p, "XBTUSD", tt.score, 120, t0)

		fc, err := p.Predict(context.Background(), "XBTUSD", 0)
		require.NoError(t, err)
		assert.InDelta(t, tt.score, fc.PredictedScore, 1e-9)
		assert.Equal(t, tt.state, fc.State, "score %v", tt.score)
		assert.Equal(t, tt.action, fc.RecommendedAction, "score %v", tt.score)
		assert.Equal(t, 0.5, fc.Confidence)
		assert.Empty(t, fc.RiskFactors)
	}
}

func TestPredictor_DecliningLiquidity(t *testing.T) {
	clk := &clock{}
	p := NewPredictor(DefaultPredictorConfig(), clk.Now)
	at := feed(p, "XBTUSD", 0.9, 100, t0)
	clk.now = feed(p, "XBTUSD", 0.4, 20, at)

	fc, err := p.Predict(context.Background(), "XBTUSD", 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 0.4, fc.CurrentScore)
	assert.Equal(t, contracts.RecommendAbort, fc.RecommendedAction)
	assert.Contains(t, fc.RiskFactors, "Declining liquidity trend")

	model, ok := p.Model("XBTUSD")
	require.True(t, ok)
	assert.InDelta(t, 0.4, model.MA5, 1e-9)
	assert.InDelta(t, (40*0.9+20*0.4)/60, model.MA60, 1e-9)
}

func TestPredictor_HistoryBounded(t *testing.T) {
	cfg := DefaultPredictorConfig()
	cfg.MaxHistoryPoints = 10
	cfg.MinHistoryPoints = 5
	p := NewPredictor(cfg, nil)

	feed(p, "XBTUSD", 0.8, 15, t0)

	assert.Equal(t, 10, p.HistoryLen("XBTUSD"))
	model, ok := p.Model("XBTUSD")
	require.True(t, ok)
	assert.Equal(t, 10, model.Samples)
}

func TestPredictor_ShouldExecute(t *testing.T) {
	clk := &clock{}
	p := NewPredictor(DefaultPredictorConfig(), clk.Now)
	clk.now = feed(p, "XBTUSD", 0.9, 120, t0)

	ok, fc, err := p.ShouldExecute(context.Background(), "XBTUSD", 50_000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, contracts.RecommendExecute, fc.RecommendedAction)

	ok, _, err = p.ShouldExecute(context.Background(), "ETHUSD", 50_000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPredictor_NextOptimalTime(t *testing.T) {
	clk := &clock{}
	p := NewPredictor(DefaultPredictorConfig(), clk.Now)
	clk.now = feed(p, "XBTUSD", 0.9, 100, t0) // 10:00 ~ 11:39 UTC

	at, ok := p.NextOptimalTime("XBTUSD")
	require.True(t, ok)
	assert.Equal(t, clk.now.Add(23*time.Hour), at)

	_, ok = p.NextOptimalTime("ETHUSD")
	assert.False(t, ok)
}

func TestPredictor_Record(t *testing.T) {
	p := NewPredictor(DefaultPredictorConfig(), func() time.Time { return t0 })
	p.Record("XBTUSD", Metrics{Volume24hUSD: 1e7, BidDepthUSD: 5e5, AskDepthUSD: 5e5, Makers: 10})

	fc, err := p.Predict(context.Background(), "XBTUSD", time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fc.CurrentScore, 1e-9)
}
