package brain

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/history"
	"github.com/wonny/strikegate/internal/pipeline"
	"github.com/wonny/strikegate/internal/safety"
	"github.com/wonny/strikegate/pkg/logger"
)

// defaultSideEffectTimeout 검증 이후 기록/저장 작업 상한
const defaultSideEffectTimeout = 3 * time.Second

// ReportSink persists finished reports (audit repository)
type ReportSink interface {
	SaveReport(ctx context.Context, report *contracts.Report) error
}

// Observer receives every finished report (metrics)
type Observer interface {
	ObserveReport(report *contracts.Report)
}

// Broadcaster fans a report out to live subscribers (websocket hub)
type Broadcaster interface {
	Broadcast(report *contracts.Report)
}

// SafetyControl trade lifecycle and kill-switch administration (safety monitor)
type SafetyControl interface {
	RecordTradeOpened(symbol string, size float64)
	RecordTradeResult(symbol string, pnl float64)
	EmergencyStop(reason string)
	Resume()
	Halted() bool
	Status() safety.Status
}

// Orchestrator runs the validator and the post-decision bookkeeping
// ⭐ SSOT: 서비스 경로의 스트라이크 평가는 Evaluate 하나뿐
type Orchestrator struct {
	validator *pipeline.Validator
	history   history.Store

	sink        ReportSink
	observer    Observer
	broadcaster Broadcaster
	safety      SafetyControl
	onHalted    func(halted bool)

	sideEffectTimeout time.Duration
	logger            *logger.Logger
}

// Option orchestrator option
type Option func(*Orchestrator)

// WithAudit persists every report
func WithAudit(sink ReportSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithObserver observes every report
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithBroadcaster streams every report
func WithBroadcaster(b Broadcaster) Option {
	return func(o *Orchestrator) { o.broadcaster = b }
}

// WithSafety feeds opened/closed trades into the safety monitor
func WithSafety(s SafetyControl) Option {
	return func(o *Orchestrator) { o.safety = s }
}

// WithHaltObserver is told the breaker state after every safety mutation (metrics gauge)
func WithHaltObserver(fn func(halted bool)) Option {
	return func(o *Orchestrator) { o.onHalted = fn }
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(validator *pipeline.Validator, store history.Store, log *logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		validator:         validator,
		history:           store,
		sideEffectTimeout: defaultSideEffectTimeout,
		logger:            log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate validates one strike and records the outcome.
// Bookkeeping failures are logged and never change the decision.
func (o *Orchestrator) Evaluate(ctx context.Context, strike contracts.Strike) *contracts.Report {
	report := o.validator.Validate(ctx, strike)

	log := o.logger.WithRun(report.RunID, strike.ID, strike.Symbol).
		WithField("verdict", string(report.Decision.Verdict))

	// 요청 ctx 가 끝나도 기록은 남김
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sideEffectTimeout)
	defer cancel()

	if o.history != nil {
		if err := o.history.RecordReport(sctx, strike, report); err != nil {
			log.WithError(err).Warn("Failed to record validation history")
		}
	}
	if o.sink != nil {
		if err := o.sink.SaveReport(sctx, report); err != nil {
			log.WithError(err).Warn("Failed to save audit report")
		}
	}
	if o.observer != nil {
		o.observer.ObserveReport(report)
	}
	if o.broadcaster != nil {
		o.broadcaster.Broadcast(report)
	}

	log.WithFields(map[string]interface{}{
		"confidence":  report.FinalConfidence,
		"risk":        report.FinalRisk,
		"pass_rate":   report.PassRate,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Strike evaluated")

	return report
}

// RecordTradeClosed feeds a closed trade into history and the safety monitor
func (o *Orchestrator) RecordTradeClosed(ctx context.Context, trade history.TradeRecord, pnl float64) error {
	if trade.Symbol == "" {
		return fmt.Errorf("trade symbol is required")
	}
	if o.safety != nil {
		o.safety.RecordTradeResult(trade.Symbol, pnl)
		o.publishHalted()
	}
	if o.history == nil {
		return nil
	}
	if err := o.history.RecordTrade(ctx, trade); err != nil {
		return fmt.Errorf("record trade %s: %w", trade.Symbol, err)
	}
	return nil
}

// RecordTradeOpened registers an executed entry against the exposure and frequency limits
func (o *Orchestrator) RecordTradeOpened(symbol string, size float64) error {
	if symbol == "" {
		return fmt.Errorf("trade symbol is required")
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return fmt.Errorf("trade size must be positive, got %v", size)
	}
	if o.safety == nil {
		return contracts.ErrUnavailable
	}
	o.safety.RecordTradeOpened(symbol, size)
	return nil
}

// SafetyStatus current kill-switch state
func (o *Orchestrator) SafetyStatus() (safety.Status, error) {
	if o.safety == nil {
		return safety.Status{}, contracts.ErrUnavailable
	}
	return o.safety.Status(), nil
}

// EmergencyStop halts every strike until Resume
func (o *Orchestrator) EmergencyStop(reason string) error {
	if o.safety == nil {
		return contracts.ErrUnavailable
	}
	if reason == "" {
		reason = "manual"
	}
	o.safety.EmergencyStop(reason)
	o.publishHalted()
	o.logger.WithField("reason", reason).Warn("Emergency stop requested")
	return nil
}

// Resume clears the safety breaker
func (o *Orchestrator) Resume() error {
	if o.safety == nil {
		return contracts.ErrUnavailable
	}
	o.safety.Resume()
	o.publishHalted()
	return nil
}

func (o *Orchestrator) publishHalted() {
	if o.onHalted != nil {
		o.onHalted(o.safety.Halted())
	}
}

// Stats validation history aggregate
func (o *Orchestrator) Stats(ctx context.Context) (history.Stats, error) {
	if o.history == nil {
		return history.Stats{}, contracts.ErrUnavailable
	}
	return o.history.Stats(ctx)
}

// SafetyHalted reports whether the safety breaker is tripped
func (o *Orchestrator) SafetyHalted() bool {
	return o.safety != nil && o.safety.Halted()
}

// =============================================================================
// Check catalogue
// =============================================================================

// CheckInfo static description of a registered check
type CheckInfo struct {
	ID        contracts.CheckID   `json:"id"`
	Name      string              `json:"name"`
	Category  contracts.Category  `json:"category"`
	Severity  contracts.Severity  `json:"severity"`
	Required  bool                `json:"required"`
	DependsOn []contracts.CheckID `json:"depends_on,omitempty"`
	Wave      int                 `json:"wave"`
}

// Checks lists registered checks in execution order
func (o *Orchestrator) Checks() []CheckInfo {
	reg := o.validator.Registry()
	infos := make([]CheckInfo, 0, reg.Len())
	for wave, ids := range reg.Waves() {
		for _, id := range ids {
			c, ok := reg.Get(id)
			if !ok {
				continue
			}
			infos = append(infos, CheckInfo{
				ID:        c.ID(),
				Name:      c.Name(),
				Category:  c.Category(),
				Severity:  c.Severity(),
				Required:  c.Required(),
				DependsOn: c.DependsOn(),
				Wave:      wave,
			})
		}
	}
	return infos
}
