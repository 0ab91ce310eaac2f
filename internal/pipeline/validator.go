package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/logger"
)

// Config validator configuration
type Config struct {
	Policy     Policy
	Thresholds Thresholds
}

// DefaultConfig returns default scheduler policy and thresholds
func DefaultConfig() Config {
	return Config{
		Policy:     DefaultPolicy(),
		Thresholds: DefaultThresholds(),
	}
}

// Validator is the strike gating pipeline
// ⭐ SSOT: 스트라이크 검증 진입점은 Validate 하나뿐
type Validator struct {
	registry  *Registry
	scheduler *scheduler
	engine    *Engine
	deps      contracts.Collaborators
	cfg       Config
	logger    *logger.Logger
}

// New builds a validator. Configuration problems (invalid policy,
// duplicate/unknown/cyclic check dependencies) are returned here, never at run time.
func New(cfg Config, deps contracts.Collaborators, log *logger.Logger, checks ...contracts.Check) (*Validator, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	registry := NewRegistry()
	if err := registry.Register(checks...); err != nil {
		return nil, err
	}

	return &Validator{
		registry:  registry,
		scheduler: &scheduler{registry: registry, policy: cfg.Policy},
		engine:    NewEngine(cfg.Thresholds),
		deps:      deps,
		cfg:       cfg,
		logger:    log,
	}, nil
}

// Registry returns the check registry
func (v *Validator) Registry() *Registry {
	return v.registry
}

// Config returns the validator configuration
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate runs every registered check against the strike and returns the report.
// It never panics and never returns nil.
func (v *Validator) Validate(ctx context.Context, strike contracts.Strike) (report *contracts.Report) {
	started := time.Now()
	report = &contracts.Report{
		RunID:      uuid.NewString(),
		StrikeID:   strike.ID,
		Symbol:     strike.Symbol,
		StrikeType: strike.Type,
		StartedAt:  started,
		Results:    make([]contracts.CheckResult, 0, v.registry.Len()),
	}

	log := v.logger.WithRun(report.RunID, strike.ID, strike.Symbol)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Validation aborted")
			report.Decision = contracts.Rejected([]string{fmt.Sprintf("internal error: %v", r)}, 1)
			report.FinalRisk = 1
			report.Recommendations = []string{RemarkRejected}
		}
		report.FinishedAt = time.Now()
		report.Duration = report.FinishedAt.Sub(started)
	}()

	if err := strike.Validate(); err != nil {
		report.Decision = contracts.Rejected([]string{fmt.Sprintf("invalid strike: %v", err)}, 0)
		report.Recommendations = []string{RemarkRejected}
		report.Skipped = v.registry.Order()
		log.WithError(err).Warn("Invalid strike rejected")
		return report
	}

	rc := NewRunContext(strike.Confidence)
	run := v.scheduler.run(ctx, log, strike, v.deps, rc)

	report.Results = run.results
	report.Skipped = run.skipped
	report.EarlyTermination = run.earlyTermination
	report.FinalConfidence = rc.Confidence()
	report.FinalRisk = rc.Risk()

	outcomes := report.Outcomes()
	report.PassRate = contracts.PassRate(outcomes)

	if v.deps.Analytics != nil {
		score, err := v.compositeInsight(ctx, strike, outcomes)
		if err != nil {
			// 인사이트 실패 → 0 (완전 승인 차단)
			score = 0
			report.InsightError = err.Error()
			log.WithError(err).Warn("Composite insight unavailable")
		}
		report.CompositeInsight = &score
	}

	report.Decision = v.engine.Decide(report.FinalConfidence, report.FinalRisk, outcomes, report.CompositeInsight)
	report.Recommendations = recommendations(report.Results, report.Decision)

	log.WithFields(map[string]interface{}{
		"verdict":    report.Decision.Verdict,
		"confidence": report.FinalConfidence,
		"risk":       report.FinalRisk,
		"pass_rate":  report.PassRate,
		"checks":     len(report.Results),
		"early_stop": report.EarlyTermination,
	}).Info("Strike validated")

	return report
}

// compositeInsight calls the analytics collaborator under the check timeout
func (v *Validator) compositeInsight(ctx context.Context, strike contracts.Strike, outcomes []contracts.Outcome) (score float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Policy.CheckTimeout)
	defer cancel()

	type result struct {
		score float64
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("analytics panicked: %v", r)}
			}
		}()
		s, err := v.deps.Analytics.CompositeInsight(ctx, strike, outcomes)
		done <- result{score: s, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, res.err
		}
		if !finite(res.score) {
			return 0, fmt.Errorf("analytics returned non-finite score %v", res.score)
		}
		return contracts.Clamp01(res.score), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("composite insight: %w", contracts.ErrTimeout)
	}
}
