package checks

import (
	"fmt"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

// =============================================================================
// Check IDs
// =============================================================================

// ⭐ SSOT: 기본 체크 ID (리포트/정책 파일/메트릭 라벨에서 동일하게 사용)
const (
	ProbabilisticConfidenceID contracts.CheckID = 1
	SafetyLimitsID            contracts.CheckID = 2
	LiquidityID               contracts.CheckID = 3
	MicrostructureID          contracts.CheckID = 4
	PositionSizingID          contracts.CheckID = 5
	TailRiskID                contracts.CheckID = 6
	MarketConditionsID        contracts.CheckID = 7
)

// Collaborator failures: same weight as a timed-out check
const (
	unavailableMultiplier = 0.9
	unavailableRisk       = 0.1
)

// Config thresholds of the built-in checks
type Config struct {
	// #1 probabilistic confidence
	MinWinProbability float64    `yaml:"min_win_probability"`
	PriorWeights      [3]float64 `yaml:"prior_weights"` // market, historical, regime
	Concentration     float64    `yaml:"concentration"`

	// #3 liquidity
	MinLiquidityScore float64       `yaml:"min_liquidity_score"`
	ForecastHorizon   time.Duration `yaml:"forecast_horizon"`

	// #4 microstructure
	BookDepth      int     `yaml:"book_depth"`
	MinBookQuality float64 `yaml:"min_book_quality"`
	MaxPriceImpact float64 `yaml:"max_price_impact"`

	// #5 position sizing
	AccountEquity    float64 `yaml:"account_equity"`
	MaxKellyFraction float64 `yaml:"max_kelly_fraction"`
	MinRewardRisk    float64 `yaml:"min_reward_risk"`

	// #6 tail risk
	VaRConfidence float64 `yaml:"var_confidence"`
	MinSamples    int     `yaml:"min_samples"`
	MaxVaR        float64 `yaml:"max_var"`
	MaxCVaR       float64 `yaml:"max_cvar"`
	BaselineRisk  float64 `yaml:"baseline_risk"`

	// #7 market conditions
	MaxSpreadBps   float64 `yaml:"max_spread_bps"`
	MinQuoteVolume float64 `yaml:"min_quote_volume"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MinWinProbability: 0.90,
		PriorWeights:      [3]float64{0.4, 0.4, 0.2},
		Concentration:     100,

		MinLiquidityScore: 0.7,
		ForecastHorizon:   30 * time.Minute,

		BookDepth:      50,
		MinBookQuality: 0.7,
		MaxPriceImpact: 0.002,

		AccountEquity:    100_000,
		MaxKellyFraction: 0.25,
		MinRewardRisk:    1.5,

		VaRConfidence: 0.95,
		MinSamples:    30,
		MaxVaR:        0.05,
		MaxCVaR:       0.08,
		BaselineRisk:  0.05,

		MaxSpreadBps:   50,
		MinQuoteVolume: 500_000,
	}
}

// Validate rejects thresholds the checks cannot evaluate against
func (c Config) Validate() error {
	unit := map[string]float64{
		"min_win_probability": c.MinWinProbability,
		"min_liquidity_score": c.MinLiquidityScore,
		"min_book_quality":    c.MinBookQuality,
		"max_kelly_fraction":  c.MaxKellyFraction,
		"var_confidence":      c.VaRConfidence,
		"baseline_risk":       c.BaselineRisk,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	var wsum float64
	for _, w := range c.PriorWeights {
		if w < 0 {
			return fmt.Errorf("prior_weights must be >= 0, got %v", c.PriorWeights)
		}
		wsum += w
	}
	if wsum == 0 {
		return fmt.Errorf("prior_weights must not all be zero")
	}
	if c.BookDepth <= 0 {
		return fmt.Errorf("book_depth must be > 0, got %d", c.BookDepth)
	}
	if c.AccountEquity <= 0 {
		return fmt.Errorf("account_equity must be > 0, got %v", c.AccountEquity)
	}
	if c.ForecastHorizon <= 0 {
		return fmt.Errorf("forecast_horizon must be > 0, got %v", c.ForecastHorizon)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be >= 1, got %d", c.MinSamples)
	}
	return nil
}

// Defaults returns the seven built-in checks configured with cfg
func Defaults(cfg Config) []contracts.Check {
	return []contracts.Check{
		NewProbabilisticConfidence(cfg),
		NewSafetyLimits(),
		NewLiquidity(cfg),
		NewMicrostructure(cfg),
		NewPositionSizing(cfg),
		NewTailRisk(cfg),
		NewMarketConditions(cfg),
	}
}

// =============================================================================
// shared plumbing
// =============================================================================

// base static declaration shared by every built-in check
type base struct {
	id       contracts.CheckID
	name     string
	category contracts.Category
	severity contracts.Severity
	required bool
	deps     []contracts.CheckID
}

func (b base) ID() contracts.CheckID        { return b.id }
func (b base) Name() string                 { return b.name }
func (b base) Category() contracts.Category { return b.category }
func (b base) Severity() contracts.Severity { return b.severity }
func (b base) Required() bool               { return b.required }

func (b base) DependsOn() []contracts.CheckID {
	return append([]contracts.CheckID(nil), b.deps...)
}

// unavailable failing outcome for a collaborator that could not answer
func unavailable(what string, err error, remediation ...string) contracts.Outcome {
	if err == nil {
		err = contracts.ErrUnavailable
	}
	if len(remediation) == 0 {
		remediation = []string{fmt.Sprintf("Restore %s before resubmitting", what)}
	}
	return contracts.Outcome{
		Passed:               false,
		ConfidenceMultiplier: unavailableMultiplier,
		RiskContribution:     unavailableRisk,
		Diagnostics: contracts.Diagnostics{
			Explanation:     fmt.Sprintf("%s unavailable: %v", what, err),
			Recommendations: remediation,
		},
	}
}

// pick returns pass when ok, fail otherwise
func pick(ok bool, pass, fail float64) float64 {
	if ok {
		return pass
	}
	return fail
}

// when returns recs only for a failing outcome
func when(failed bool, recs ...string) []string {
	if !failed {
		return nil
	}
	return recs
}
