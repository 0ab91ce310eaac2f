package jobs

import (
	"context"

	"github.com/wonny/strikegate/pkg/logger"
)

// DailyResetter safety monitor daily counters
type DailyResetter interface {
	ResetDaily()
	Halted() bool
}

// SafetyResetJob clears the safety monitor's daily PnL and trade counters.
// A tripped breaker stays tripped; only an operator Resume clears it.
type SafetyResetJob struct {
	monitor  DailyResetter
	schedule string
	onHalted func(bool)
	logger   *logger.Logger
}

// NewSafetyResetJob creates a new safety reset job; onHalted (optional) mirrors the breaker state
func NewSafetyResetJob(monitor DailyResetter, schedule string, onHalted func(bool), log *logger.Logger) *SafetyResetJob {
	if schedule == "" {
		schedule = "0 0 0 * * *" // 매일 00:00:00
	}
	return &SafetyResetJob{
		monitor:  monitor,
		schedule: schedule,
		onHalted: onHalted,
		logger:   log,
	}
}

// Name returns the job name
func (j *SafetyResetJob) Name() string {
	return "safety-daily-reset"
}

// Schedule returns the cron schedule
func (j *SafetyResetJob) Schedule() string {
	return j.schedule
}

// Run resets the daily counters
func (j *SafetyResetJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.monitor.ResetDaily()
	halted := j.monitor.Halted()
	if j.onHalted != nil {
		j.onHalted(halted)
	}

	j.logger.WithField("halted", halted).Info("Safety daily counters reset")
	return nil
}
