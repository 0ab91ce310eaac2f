package gatecfg

import (
	"fmt"
	"math"

	"github.com/robfig/cron/v3"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// cronParser scheduler 와 같은 6필드(초 포함) 형식
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	// === Pipeline ===
	if err := cfg.PipelineConfig().Policy.Validate(); err != nil {
		return ValidationError{"pipeline", err.Error()}
	}

	// === Decision ===
	if err := cfg.PipelineConfig().Thresholds.Validate(); err != nil {
		return ValidationError{"decision", err.Error()}
	}

	// === Checks ===
	if err := cfg.Checks.Validate(); err != nil {
		return ValidationError{"checks", err.Error()}
	}

	// === Safety ===
	s := cfg.Safety
	for field, v := range map[string]float64{
		"safety.max_position_size":  s.MaxPositionSize,
		"safety.max_total_exposure": s.MaxTotalExposure,
		"safety.max_daily_loss":     s.MaxDailyLoss,
	} {
		if err := validatePositive(v, field); err != nil {
			return err
		}
	}
	if s.MaxPositionSize > s.MaxTotalExposure {
		return ValidationError{"safety", "max_position_size must be <= max_total_exposure"}
	}
	if s.MaxTradesPerHour < 1 {
		return ValidationError{"safety.max_trades_per_hour", "must be >= 1"}
	}
	if s.MinTradeInterval < 0 {
		return ValidationError{"safety.min_trade_interval", "must be >= 0"}
	}
	if s.MaxConsecutiveLosses < 1 {
		return ValidationError{"safety.max_consecutive_losses", "must be >= 1"}
	}
	if err := validatePctRange(s.MaxLossPct, "safety.max_loss_pct"); err != nil {
		return err
	}

	// === Liquidity ===
	r := cfg.Liquidity.Requirements
	if r.MinDailyVolume < 0 || r.MinBookDepth < 0 || r.MinMakers < 0 {
		return ValidationError{"liquidity.requirements", "minimums must be >= 0"}
	}
	if err := validatePositive(r.MaxSpreadPct, "liquidity.requirements.max_spread_pct"); err != nil {
		return err
	}
	p := cfg.Liquidity.Predictor
	if p.MinHistoryPoints < 1 || p.MaxHistoryPoints < p.MinHistoryPoints {
		return ValidationError{"liquidity.predictor", "must satisfy 1 <= min_history_points <= max_history_points"}
	}
	if p.Horizon <= 0 {
		return ValidationError{"liquidity.predictor.horizon", "must be > 0"}
	}
	for field, v := range map[string]float64{
		"liquidity.predictor.min_liquidity_score": p.MinLiquidityScore,
		"liquidity.predictor.optimal_threshold":   p.OptimalThreshold,
		"liquidity.predictor.warning_threshold":   p.WarningThreshold,
		"liquidity.predictor.critical_threshold":  p.CriticalThreshold,
		"liquidity.predictor.abort_threshold":     p.AbortThreshold,
	} {
		if err := validatePctRange(v, field); err != nil {
			return err
		}
	}
	if !(p.OptimalThreshold > p.WarningThreshold && p.WarningThreshold > p.CriticalThreshold && p.CriticalThreshold > p.AbortThreshold) {
		return ValidationError{"liquidity.predictor", "thresholds must satisfy optimal > warning > critical > abort"}
	}
	if cfg.Liquidity.CacheTTL <= 0 {
		return ValidationError{"liquidity.cache_ttl", "must be > 0"}
	}
	for _, sym := range cfg.Liquidity.Approved {
		for _, bad := range cfg.Liquidity.Blacklist {
			if sym == bad {
				return ValidationError{"liquidity", fmt.Sprintf("%s is both approved and blacklisted", sym)}
			}
		}
	}

	// === Jobs ===
	if _, err := cronParser.Parse(cfg.Jobs.SafetyResetSchedule); err != nil {
		return ValidationError{"jobs.safety_reset_schedule", err.Error()}
	}
	if _, err := cronParser.Parse(cfg.Jobs.SamplerSchedule); err != nil {
		return ValidationError{"jobs.sampler_schedule", err.Error()}
	}

	return nil
}

func validatePctRange(v float64, field string) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return ValidationError{field, fmt.Sprintf("must be in [0, 1], got %v", v)}
	}
	return nil
}

func validatePositive(v float64, field string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return ValidationError{field, fmt.Sprintf("must be > 0, got %v", v)}
	}
	return nil
}
