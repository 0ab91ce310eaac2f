package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/pipeline"
)

func TestDefaults(t *testing.T) {
	cs := Defaults(DefaultConfig())
	require.Len(t, cs, 7)

	reg := pipeline.NewRegistry()
	require.NoError(t, reg.Register(cs...))

	assert.Equal(t, [][]contracts.CheckID{{1, 2, 3, 6, 7}, {4, 5}}, reg.Waves())

	critical := 0
	for _, c := range cs {
		if c.Severity() == contracts.SeverityCritical {
			assert.True(t, c.Required(), "%s", c.Name())
			critical++
		}
	}
	assert.Equal(t, 2, critical)
}

func TestDependsOnReturnsCopy(t *testing.T) {
	c := NewMicrostructure(DefaultConfig())
	deps := c.DependsOn()
	deps[0] = 99
	assert.Equal(t, []contracts.CheckID{LiquidityID}, c.DependsOn())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"win probability", func(c *Config) { c.MinWinProbability = 1.2 }, "min_win_probability"},
		{"negative weight", func(c *Config) { c.PriorWeights[1] = -1 }, "prior_weights"},
		{"zero weights", func(c *Config) { c.PriorWeights = [3]float64{} }, "prior_weights"},
		{"book depth", func(c *Config) { c.BookDepth = 0 }, "book_depth"},
		{"equity", func(c *Config) { c.AccountEquity = 0 }, "account_equity"},
		{"horizon", func(c *Config) { c.ForecastHorizon = 0 }, "forecast_horizon"},
		{"samples", func(c *Config) { c.MinSamples = 0 }, "min_samples"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// =============================================================================
// #1 probabilistic confidence
// =============================================================================

func TestProbabilisticConfidence_Pass(t *testing.T) {
	w := healthyWorld()
	o := NewProbabilisticConfidence(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

	require.True(t, o.Passed, o.Diagnostics.Explanation)
	// prior = 0.4·0.95 + 0.4·0.66 + 0.2·0.85
	prior, _ := o.Metric("weighted_prior")
	assert.InDelta(t, 0.814, prior, 1e-9)
	assert.InDelta(t, 0.95*0.814/(0.95*0.814+0.05*0.186), o.Diagnostics.PrimaryMetric, 1e-9)
	assert.InDelta(t, o.Diagnostics.PrimaryMetric/0.95, o.ConfidenceMultiplier, 1e-9)
	assert.Equal(t, 0.0, o.RiskContribution)
	assert.Empty(t, o.Diagnostics.Recommendations)

	lower, _ := o.Metric("ci_lower")
	assert.GreaterOrEqual(t, lower, 0.9*0.95)
}

func TestProbabilisticConfidence_LowConfidence(t *testing.T) {
	s := testStrike()
	s.Confidence = 0.3

	o := NewProbabilisticConfidence(DefaultConfig()).Evaluate(context.Background(), s, emptySnap(), healthyWorld().deps())

	assert.False(t, o.Passed)
	assert.Equal(t, 0.15, o.RiskContribution)
	assert.Equal(t, []string{"Increase base confidence", "Wait for better market conditions"}, o.Diagnostics.Recommendations)
}

func TestProbabilisticConfidence_ZeroBase(t *testing.T) {
	s := testStrike()
	s.Confidence = 0

	o := NewProbabilisticConfidence(DefaultConfig()).Evaluate(context.Background(), s, emptySnap(), healthyWorld().deps())

	assert.False(t, o.Passed)
	assert.Equal(t, 0.0, o.ConfidenceMultiplier)
}

func TestProbabilisticConfidence_Unavailable(t *testing.T) {
	w := healthyWorld()
	w.history.err = contracts.ErrTimeout

	o := NewProbabilisticConfidence(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

	assert.False(t, o.Passed)
	assert.Equal(t, unavailableMultiplier, o.ConfidenceMultiplier)
	assert.Contains(t, o.Diagnostics.Explanation, "validation history unavailable: timeout")

	o = NewProbabilisticConfidence(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), contracts.Collaborators{})
	assert.False(t, o.Passed)
	assert.Contains(t, o.Diagnostics.Explanation, "market data unavailable")
}

func TestPriors(t *testing.T) {
	assert.Equal(t, 0.1, MarketPrior(contracts.Ticker{}))
	assert.Equal(t, 0.95, MarketPrior(contracts.Ticker{Bid: 59995, Ask: 60005, Volume24h: 1000}))

	assert.InDelta(t, 0.66, HistoricalPrior(contracts.HistorySnapshot{WinRate30d: 0.7, WinRate90d: 0.6}), 1e-9)

	assert.Equal(t, 0.95, RegimePrior(contracts.RegimeCascade))
	assert.Equal(t, 0.70, RegimePrior("sideways"))
}

// =============================================================================
// #2 safety limits
// =============================================================================

func TestSafetyLimits(t *testing.T) {
	c := NewSafetyLimits()

	o := c.Evaluate(context.Background(), testStrike(), emptySnap(), healthyWorld().deps())
	assert.True(t, o.Passed)
	assert.False(t, o.Halt)

	w := healthyWorld()
	w.safety.err = errors.New("emergency stop active")
	o = c.Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())
	assert.False(t, o.Passed)
	assert.True(t, o.Halt)
	assert.Equal(t, 0.0, o.ConfidenceMultiplier)
	assert.Equal(t, 1.0, o.RiskContribution)
	assert.Contains(t, o.Diagnostics.Explanation, "emergency stop active")
}

func TestSafetyLimits_MissingMonitorHalts(t *testing.T) {
	o := NewSafetyLimits().Evaluate(context.Background(), testStrike(), emptySnap(), contracts.Collaborators{})
	assert.True(t, o.Halt)
	assert.Contains(t, o.Diagnostics.Explanation, contracts.ErrUnavailable.Error())
}

// =============================================================================
// #3 liquidity
// =============================================================================

func TestSizePenalizedScore(t *testing.T) {
	assert.InDelta(t, 0.9/1.005, SizePenalizedScore(0.9, 5000), 1e-9)
	assert.InDelta(t, 0.8/1.2, SizePenalizedScore(0.8, 300_000), 1e-9)
	assert.InDelta(t, 0.8/1.2, SizePenalizedScore(0.8, 10_000_000), 1e-9)
}

func TestLiquidity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeLiquidity)
		pass   bool
		rec    string
	}{
		{"healthy", func(*fakeLiquidity) {}, true, ""},
		{"low current", func(f *fakeLiquidity) { f.score = 0.5 }, false, "Reduce position size"},
		{"reduce size", func(f *fakeLiquidity) { f.forecast.RecommendedAction = contracts.RecommendReduceSize }, false, "Reduce position size"},
		{"wait", func(f *fakeLiquidity) {
			f.forecast.PredictedScore = 0.5
			f.forecast.RecommendedAction = contracts.RecommendWaitForLiquidity
		}, false, "Wait for liquidity to recover"},
		{"abort", func(f *fakeLiquidity) { f.forecast.RecommendedAction = contracts.RecommendAbort }, false, "Abort: liquidity insufficient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := healthyWorld()
			tt.mutate(w.liquidity)

			o := NewLiquidity(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

			assert.Equal(t, tt.pass, o.Passed)
			if tt.pass {
				assert.Equal(t, 1.04, o.ConfidenceMultiplier)
				assert.Equal(t, 0.01, o.RiskContribution)
				return
			}
			assert.Equal(t, 0.85, o.ConfidenceMultiplier)
			assert.Equal(t, 0.15, o.RiskContribution)
			assert.Contains(t, o.Diagnostics.Recommendations, tt.rec)
		})
	}
}

func TestLiquidity_Unavailable(t *testing.T) {
	w := healthyWorld()
	w.liquidity.err = contracts.ErrNotFound

	o := NewLiquidity(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

	assert.False(t, o.Passed)
	assert.Equal(t, []string{"Wait for liquidity data"}, o.Diagnostics.Recommendations)
}

// =============================================================================
// #4 microstructure
// =============================================================================

func TestAnalyzeBook(t *testing.T) {
	m := AnalyzeBook(healthyBook(), 5000.0/60000)

	assert.InDelta(t, 10.0/60000, m.EffectiveSpread, 1e-9)
	assert.Equal(t, 0.0, m.DepthImbalance)
	assert.Equal(t, 0.0, m.Toxicity)
	assert.Less(t, m.PriceImpact, 0.0001)
	assert.Greater(t, m.Quality, 0.95)

	empty := AnalyzeBook(contracts.OrderBook{}, 1)
	assert.Equal(t, 1.0, empty.EffectiveSpread)
	assert.Equal(t, 1.0, empty.PriceImpact)
	assert.InDelta(t, 0.15/0.8, empty.Quality, 1e-9)
}

func TestAnalyzeBook_Toxicity(t *testing.T) {
	book := healthyBook()
	book.Bids[0].Volume = 200 // 한쪽으로 쏠린 대형 호가

	m := AnalyzeBook(book, 0.1)

	assert.Greater(t, m.DepthImbalance, 0.5)
	assert.Greater(t, m.Toxicity, 0.4)
	assert.Less(t, m.Resiliency, 0.5)
}

func TestMicrostructure(t *testing.T) {
	o := NewMicrostructure(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), healthyWorld().deps())

	require.True(t, o.Passed, o.Diagnostics.Explanation)
	assert.Equal(t, 1.03, o.ConfidenceMultiplier)
	assert.InDelta(t, (1-o.Diagnostics.PrimaryMetric)*0.15, o.RiskContribution, 1e-12)
}

func TestMicrostructure_UpstreamLiquidityTightensImpact(t *testing.T) {
	// impact = 0.001·sqrt(225/100) = 0.0015: 기본 한도(0.002) 통과, 절반(0.001) 실패
	s := testStrike()
	s.PositionSize = 225 * s.EntryPrice
	c := NewMicrostructure(DefaultConfig())
	deps := healthyWorld().deps()

	o := c.Evaluate(context.Background(), s, emptySnap(), deps)
	assert.True(t, o.Passed, o.Diagnostics.Explanation)

	snap := emptySnap()
	snap.Completed[LiquidityID] = contracts.Outcome{CheckID: LiquidityID, Passed: false}

	o = c.Evaluate(context.Background(), s, snap, deps)
	assert.False(t, o.Passed)
	assert.Equal(t, 0.92, o.ConfidenceMultiplier)
	assert.Equal(t, []string{"Use limit orders", "Split the order", "Wait for better liquidity"}, o.Diagnostics.Recommendations)
}

// =============================================================================
// #5 position sizing
// =============================================================================

func TestPositionSizing(t *testing.T) {
	c := NewPositionSizing(DefaultConfig())

	snap := emptySnap()
	snap.Completed[ProbabilisticConfidenceID] = contracts.Outcome{
		Passed:      true,
		Diagnostics: contracts.Diagnostics{PrimaryMetric: 0.98},
	}

	o := c.Evaluate(context.Background(), testStrike(), snap, contracts.Collaborators{})
	require.True(t, o.Passed, o.Diagnostics.Explanation)
	p, _ := o.Metric("win_probability")
	assert.Equal(t, 0.98, p)
	k, _ := o.Metric("kelly_fraction")
	assert.Equal(t, 0.25, k)
	assert.Equal(t, 0.05, o.Diagnostics.PrimaryMetric)
	assert.Equal(t, 1.05, o.ConfidenceMultiplier)
	assert.Equal(t, 0.02, o.RiskContribution)
}

func TestPositionSizing_Failures(t *testing.T) {
	c := NewPositionSizing(DefaultConfig())
	snap := emptySnap()
	snap.Completed[ProbabilisticConfidenceID] = contracts.Outcome{
		Passed:      true,
		Diagnostics: contracts.Diagnostics{PrimaryMetric: 0.98},
	}

	big := testStrike()
	big.PositionSize = 20_000
	o := c.Evaluate(context.Background(), big, snap, contracts.Collaborators{})
	assert.False(t, o.Passed)
	assert.Equal(t, []string{"Reduce position to at most 12500 (half-Kelly)"}, o.Diagnostics.Recommendations)

	wide := testStrike()
	wide.StopLoss = 57000 // reward/risk 1.0
	o = c.Evaluate(context.Background(), wide, snap, contracts.Collaborators{})
	assert.False(t, o.Passed)
	assert.Equal(t, []string{"Widen target or tighten stop"}, o.Diagnostics.Recommendations)
	assert.Equal(t, 0.10, o.RiskContribution)
}

func TestPositionSizing_FallsBackToRunningConfidence(t *testing.T) {
	snap := emptySnap()
	snap.Confidence = 0.5

	o := NewPositionSizing(DefaultConfig()).Evaluate(context.Background(), testStrike(), snap, contracts.Collaborators{})

	p, _ := o.Metric("win_probability")
	assert.Equal(t, 0.5, p)
	// (0.5·0.05 − 0.5)/0.05 < 0 → Kelly 0 → 어떤 크기도 통과 불가
	assert.False(t, o.Passed)
}

// =============================================================================
// #6 tail risk
// =============================================================================

func TestTailRisk(t *testing.T) {
	o := NewTailRisk(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), healthyWorld().deps())

	require.True(t, o.Passed, o.Diagnostics.Explanation)
	assert.Equal(t, 0.0, o.Diagnostics.PrimaryMetric)
	assert.InDelta(t, 0.01, o.RiskContribution, 1e-9)
}

func TestTailRisk_InsufficientHistory(t *testing.T) {
	w := healthyWorld()
	w.history.snap.RecentReturns = []float64{-0.5, 0.1}

	o := NewTailRisk(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

	assert.True(t, o.Passed)
	assert.Equal(t, 0.05, o.RiskContribution)
	assert.Contains(t, o.Diagnostics.Explanation, "insufficient history")
	// mean −0.2, sd ≈0.424 → 정규 근사 VaR ≈0.90 (참고치, 통과 여부와 무관)
	assert.InDelta(t, 0.898, o.Diagnostics.Metrics["parametric_var"], 1e-2)
}

func TestTailRisk_Breach(t *testing.T) {
	w := healthyWorld()
	returns := []float64{-0.10, -0.10, -0.10, -0.10, -0.10}
	for i := 0; i < 35; i++ {
		returns = append(returns, 0.01)
	}
	w.history.snap.RecentReturns = returns

	o := NewTailRisk(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

	assert.False(t, o.Passed)
	assert.InDelta(t, 0.10, o.RiskContribution, 1e-9)
	assert.Equal(t, 0.92, o.ConfidenceMultiplier)
}

// =============================================================================
// #7 market conditions
// =============================================================================

func TestMarketConditions(t *testing.T) {
	tests := []struct {
		name   string
		ticker contracts.Ticker
		pass   bool
		recs   []string
	}{
		{"healthy", contracts.Ticker{Bid: 59995, Ask: 60005, Volume24h: 1000}, true, nil},
		{"wide spread", contracts.Ticker{Bid: 59000, Ask: 61000, Volume24h: 1000}, false, []string{"Use limit orders"}},
		{"thin", contracts.Ticker{Bid: 59995, Ask: 60005, Volume24h: 1}, false, []string{"Trade a more active market"}},
		{"unquoted", contracts.Ticker{Last: 60000}, false, []string{"Use limit orders", "Trade a more active market"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := healthyWorld()
			w.market.ticker = tt.ticker

			o := NewMarketConditions(DefaultConfig()).Evaluate(context.Background(), testStrike(), emptySnap(), w.deps())

			assert.Equal(t, tt.pass, o.Passed)
			assert.Equal(t, tt.recs, o.Diagnostics.Recommendations)
		})
	}
}

// =============================================================================
// full pipeline
// =============================================================================

func TestDefaultsThroughPipeline(t *testing.T) {
	w := healthyWorld()
	v, err := pipeline.New(pipeline.DefaultConfig(), w.deps(), nil, Defaults(DefaultConfig())...)
	require.NoError(t, err)

	r := v.Validate(context.Background(), testStrike())

	require.Equal(t, contracts.VerdictApproved, r.Decision.Verdict, pipeline.Summary(r))
	assert.Len(t, r.Results, 7)
	assert.Equal(t, 1.0, r.PassRate)
	assert.Equal(t, 1.0, r.FinalConfidence)
	assert.Less(t, r.FinalRisk, 0.1)
}

func TestDefaultsThroughPipeline_SafetyHalt(t *testing.T) {
	w := healthyWorld()
	w.safety.err = errors.New("daily loss limit reached")
	v, err := pipeline.New(pipeline.DefaultConfig(), w.deps(), nil, Defaults(DefaultConfig())...)
	require.NoError(t, err)

	r := v.Validate(context.Background(), testStrike())

	assert.Equal(t, contracts.VerdictRejected, r.Decision.Verdict)
	require.Len(t, r.Decision.Reasons, 1)
	assert.Contains(t, r.Decision.Reasons[0], "daily loss limit reached")
}
