package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/strikegate/pkg/logger"
)

// Kill-switch reasons; CheckTradeAllowed wraps one of these
var (
	ErrHalted        = errors.New("trading halted")
	ErrPositionLimit = errors.New("position limit exceeded")
	ErrExposureLimit = errors.New("exposure limit exceeded")
	ErrTradeRate     = errors.New("trade rate exceeded")
	ErrTradeInterval = errors.New("minimum trade interval not elapsed")
	ErrDailyLoss     = errors.New("daily loss limit exceeded")
)

// Limits 안전 한도
type Limits struct {
	MaxPositionSize      float64       `yaml:"max_position_size"`  // USD per symbol
	MaxTotalExposure     float64       `yaml:"max_total_exposure"` // USD
	MaxDailyLoss         float64       `yaml:"max_daily_loss"`     // USD
	MaxTradesPerHour     int           `yaml:"max_trades_per_hour"`
	MinTradeInterval     time.Duration `yaml:"min_trade_interval"`
	MaxConsecutiveLosses int           `yaml:"max_consecutive_losses"`
	MaxLossPct           float64       `yaml:"max_loss_pct"` // of MaxTotalExposure
}

// DefaultLimits returns production defaults
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:      10_000,
		MaxTotalExposure:     50_000,
		MaxDailyLoss:         1_000,
		MaxTradesPerHour:     60,
		MinTradeInterval:     5 * time.Second,
		MaxConsecutiveLosses: 5,
		MaxLossPct:           0.10,
	}
}

// Status current safety state
type Status struct {
	Halted            bool      `json:"halted"`
	HaltReason        string    `json:"halt_reason,omitempty"`
	DailyPnL          float64   `json:"daily_pnl"`
	TradesLastHour    int       `json:"trades_last_hour"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	TotalExposure     float64   `json:"total_exposure"`
	LastTrade         time.Time `json:"last_trade,omitempty"`
}

// Monitor trading kill switch
// ⭐ SSOT: CheckTradeAllowed는 읽기 전용, 상태 변경은 Record*/Reset/EmergencyStop/Resume만
type Monitor struct {
	limits Limits
	logger *logger.Logger
	now    func() time.Time

	mu                sync.RWMutex
	halted            bool
	haltReason        string
	dailyPnL          float64
	consecutiveLosses int
	trades            []time.Time
	lastTrade         time.Time
	positions         map[string]float64
}

// NewMonitor creates a safety monitor; now may be nil (time.Now)
func NewMonitor(limits Limits, log *logger.Logger, now func() time.Time) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		limits:    limits,
		logger:    log,
		now:       now,
		positions: make(map[string]float64),
	}
}

// Limits returns the configured limits
func (m *Monitor) Limits() Limits {
	return m.limits
}

// CheckTradeAllowed implements contracts.SafetyMonitor
func (m *Monitor) CheckTradeAllowed(_ context.Context, size float64, symbol string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.halted {
		return fmt.Errorf("%w: %s", ErrHalted, m.haltReason)
	}

	if size > m.limits.MaxPositionSize {
		return fmt.Errorf("%w: %s size $%.2f > $%.2f", ErrPositionLimit, symbol, size, m.limits.MaxPositionSize)
	}

	if exposure := m.exposure(); exposure+size > m.limits.MaxTotalExposure {
		return fmt.Errorf("%w: $%.2f + $%.2f > $%.2f", ErrExposureLimit, exposure, size, m.limits.MaxTotalExposure)
	}

	now := m.now()
	if n := m.tradesSince(now.Add(-time.Hour)); n >= m.limits.MaxTradesPerHour {
		return fmt.Errorf("%w: %d trades in the last hour (limit %d)", ErrTradeRate, n, m.limits.MaxTradesPerHour)
	}

	if !m.lastTrade.IsZero() {
		if elapsed := now.Sub(m.lastTrade); elapsed < m.limits.MinTradeInterval {
			return fmt.Errorf("%w: %v since last trade (minimum %v)", ErrTradeInterval, elapsed, m.limits.MinTradeInterval)
		}
	}

	if m.dailyPnL < -m.limits.MaxDailyLoss {
		return fmt.Errorf("%w: $%.2f (limit $%.2f)", ErrDailyLoss, -m.dailyPnL, m.limits.MaxDailyLoss)
	}

	return nil
}

func (m *Monitor) exposure() float64 {
	var sum float64
	for _, v := range m.positions {
		sum += v
	}
	return sum
}

func (m *Monitor) tradesSince(cutoff time.Time) int {
	n := 0
	for _, t := range m.trades {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// RecordTradeOpened registers an executed entry
func (m *Monitor) RecordTradeOpened(symbol string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.lastTrade = now
	m.positions[symbol] += size

	// 1시간 지난 기록 정리
	cutoff := now.Add(-time.Hour)
	kept := m.trades[:0]
	for _, t := range m.trades {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.trades = append(kept, now)
}

// RecordTradeResult closes the symbol's position and books its PnL.
// Trips the breaker on consecutive losses or a daily loss above MaxLossPct of exposure.
func (m *Monitor) RecordTradeResult(symbol string, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.positions, symbol)
	m.dailyPnL += pnl

	if pnl > 0 {
		m.consecutiveLosses = 0
	} else {
		m.consecutiveLosses++
		if m.consecutiveLosses >= m.limits.MaxConsecutiveLosses {
			m.haltLocked(fmt.Sprintf("%d consecutive losses", m.consecutiveLosses))
		}
	}

	if m.dailyPnL < 0 && m.limits.MaxTotalExposure > 0 {
		lossPct := -m.dailyPnL / m.limits.MaxTotalExposure
		if lossPct > m.limits.MaxLossPct {
			m.haltLocked(fmt.Sprintf("%.1f%% portfolio loss", lossPct*100))
		}
	}
}

// ResetDaily clears daily PnL, loss streak and trade history
func (m *Monitor) ResetDaily() {
	m.mu.Lock()
	m.dailyPnL = 0
	m.consecutiveLosses = 0
	m.trades = nil
	m.mu.Unlock()

	m.logger.Info("Daily safety statistics reset")
}

// EmergencyStop halts all trading until Resume
func (m *Monitor) EmergencyStop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.haltLocked("emergency stop: " + reason)
}

func (m *Monitor) haltLocked(reason string) {
	if !m.halted {
		m.logger.WithField("reason", reason).Error("Circuit breaker tripped, trading halted")
	}
	m.halted = true
	m.haltReason = reason
}

// Resume clears the breaker and the loss streak
func (m *Monitor) Resume() {
	m.mu.Lock()
	m.halted = false
	m.haltReason = ""
	m.consecutiveLosses = 0
	m.mu.Unlock()

	m.logger.Info("Trading resumed, circuit breaker cleared")
}

// Halted reports whether the breaker is active
func (m *Monitor) Halted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.halted
}

// Status returns a snapshot of the safety state
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Halted:            m.halted,
		HaltReason:        m.haltReason,
		DailyPnL:          m.dailyPnL,
		TradesLastHour:    m.tradesSince(m.now().Add(-time.Hour)),
		ConsecutiveLosses: m.consecutiveLosses,
		TotalExposure:     m.exposure(),
		LastTrade:         m.lastTrade,
	}
}
