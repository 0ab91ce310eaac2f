package gatecfg

import (
	"time"

	"github.com/wonny/strikegate/internal/checks"
	"github.com/wonny/strikegate/internal/liquidity"
	"github.com/wonny/strikegate/internal/pipeline"
	"github.com/wonny/strikegate/internal/safety"
)

// Config는 게이트 정책 전체 설정
// ⭐ SSOT: 임계값/정책은 이 구조체로만 주입 (코드 상수 직접 참조 금지)
type Config struct {
	Meta      Meta          `yaml:"meta" json:"meta"`
	Pipeline  Pipeline      `yaml:"pipeline" json:"pipeline"`
	Decision  Decision      `yaml:"decision" json:"decision"`
	Checks    checks.Config `yaml:"checks" json:"checks"`
	Safety    safety.Limits `yaml:"safety" json:"safety"`
	Liquidity Liquidity     `yaml:"liquidity" json:"liquidity"`
	Jobs      Jobs          `yaml:"jobs" json:"jobs"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
}

// Pipeline wave scheduler policy
type Pipeline struct {
	Concurrency      int           `yaml:"concurrency" json:"concurrency"`
	CheckTimeout     time.Duration `yaml:"check_timeout" json:"check_timeout"`
	FailFast         bool          `yaml:"fail_fast" json:"fail_fast"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
}

// Decision verdict thresholds
type Decision struct {
	MinConfidence       float64 `yaml:"min_confidence" json:"min_confidence"`
	MaxRisk             float64 `yaml:"max_risk" json:"max_risk"`
	ApprovePassRate     float64 `yaml:"approve_pass_rate" json:"approve_pass_rate"`
	ConditionalPassRate float64 `yaml:"conditional_pass_rate" json:"conditional_pass_rate"`
	MinCompositeInsight float64 `yaml:"min_composite_insight" json:"min_composite_insight"`
}

// Liquidity monitor + predictor settings
type Liquidity struct {
	Requirements liquidity.Requirements    `yaml:"requirements" json:"requirements"`
	Predictor    liquidity.PredictorConfig `yaml:"predictor" json:"predictor"`
	Approved     []string                  `yaml:"approved" json:"approved"` // 비어 있으면 blacklist 외 전부 허용
	Blacklist    []string                  `yaml:"blacklist" json:"blacklist"`
	CacheTTL     time.Duration             `yaml:"cache_ttl" json:"cache_ttl"`
}

// Jobs scheduler job settings
type Jobs struct {
	SafetyResetSchedule string   `yaml:"safety_reset_schedule" json:"safety_reset_schedule"`
	SamplerSchedule     string   `yaml:"sampler_schedule" json:"sampler_schedule"`
	SamplerSymbols      []string `yaml:"sampler_symbols" json:"sampler_symbols"`
}

// Default built-in policy
func Default() *Config {
	policy := pipeline.DefaultPolicy()
	thresholds := pipeline.DefaultThresholds()

	return &Config{
		Meta: Meta{PolicyID: "default", Version: "1"},
		Pipeline: Pipeline{
			Concurrency:      policy.Concurrency,
			CheckTimeout:     policy.CheckTimeout,
			FailFast:         policy.FailFast,
			FailureThreshold: policy.FailureThreshold,
		},
		Decision: Decision{
			MinConfidence:       thresholds.MinConfidence,
			MaxRisk:             thresholds.MaxRisk,
			ApprovePassRate:     thresholds.ApprovePassRate,
			ConditionalPassRate: thresholds.ConditionalPassRate,
			MinCompositeInsight: thresholds.MinCompositeInsight,
		},
		Checks: checks.DefaultConfig(),
		Safety: safety.DefaultLimits(),
		Liquidity: Liquidity{
			Requirements: liquidity.DefaultRequirements(),
			Predictor:    liquidity.DefaultPredictorConfig(),
			CacheTTL:     liquidity.DefaultCacheTTL,
		},
		Jobs: Jobs{
			SafetyResetSchedule: "0 0 0 * * *",
			SamplerSchedule:     "0 * * * * *",
			SamplerSymbols:      []string{"XBTUSD", "ETHUSD"},
		},
	}
}

// PipelineConfig validator configuration derived from the policy
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Policy: pipeline.Policy{
			Concurrency:      c.Pipeline.Concurrency,
			CheckTimeout:     c.Pipeline.CheckTimeout,
			FailFast:         c.Pipeline.FailFast,
			FailureThreshold: c.Pipeline.FailureThreshold,
		},
		Thresholds: pipeline.Thresholds{
			MinConfidence:       c.Decision.MinConfidence,
			MaxRisk:             c.Decision.MaxRisk,
			ApprovePassRate:     c.Decision.ApprovePassRate,
			ConditionalPassRate: c.Decision.ConditionalPassRate,
			MinCompositeInsight: c.Decision.MinCompositeInsight,
		},
	}
}

// LiquidityOptions monitor options derived from the policy
func (c *Config) LiquidityOptions() []liquidity.Option {
	opts := []liquidity.Option{
		liquidity.WithRequirements(c.Liquidity.Requirements),
		liquidity.WithTTL(c.Liquidity.CacheTTL),
	}
	if len(c.Liquidity.Approved) > 0 {
		opts = append(opts, liquidity.WithApproved(c.Liquidity.Approved...))
	}
	if len(c.Liquidity.Blacklist) > 0 {
		opts = append(opts, liquidity.WithBlacklist(c.Liquidity.Blacklist...))
	}
	return opts
}
