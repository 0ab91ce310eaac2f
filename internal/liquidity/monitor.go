package liquidity

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/logger"
	"github.com/wonny/strikegate/pkg/redis"
)

const (
	// DefaultCacheTTL 지표 캐시 유효 시간
	DefaultCacheTTL = 5 * time.Minute
	// bookDepth levels fetched per side when building metrics
	bookDepth = 25
)

// Monitor scores symbols against liquidity requirements
// ⭐ SSOT: 지표 캐시는 Monitor가 소유하고 잠금도 Monitor가 관리
type Monitor struct {
	market contracts.MarketData
	books  contracts.OrderBookSource
	logger *logger.Logger

	req       Requirements
	approved  map[string]bool // 비어 있으면 blacklist 외 전부 허용
	blacklist map[string]bool
	ttl       time.Duration
	remote    *redis.Cache // optional
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]Metrics
}

// Option configures a Monitor
type Option func(*Monitor)

// WithRequirements overrides the default requirements
func WithRequirements(r Requirements) Option {
	return func(m *Monitor) { m.req = r }
}

// WithApproved restricts scoring to the given symbols
func WithApproved(symbols ...string) Option {
	return func(m *Monitor) {
		for _, s := range symbols {
			m.approved[s] = true
		}
	}
}

// WithBlacklist marks symbols as never liquid
func WithBlacklist(symbols ...string) Option {
	return func(m *Monitor) {
		for _, s := range symbols {
			m.blacklist[s] = true
		}
	}
}

// WithCache adds a shared Redis layer behind the in-process cache
func WithCache(c *redis.Cache) Option {
	return func(m *Monitor) { m.remote = c }
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTTL overrides the metrics cache TTL
func WithTTL(ttl time.Duration) Option {
	return func(m *Monitor) { m.ttl = ttl }
}

// NewMonitor creates a liquidity monitor
func NewMonitor(market contracts.MarketData, books contracts.OrderBookSource, log *logger.Logger, opts ...Option) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	m := &Monitor{
		market:    market,
		books:     books,
		logger:    log,
		req:       DefaultRequirements(),
		approved:  make(map[string]bool),
		blacklist: make(map[string]bool),
		ttl:       DefaultCacheTTL,
		now:       time.Now,
		cache:     make(map[string]Metrics),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Requirements returns the configured requirements
func (m *Monitor) Requirements() Requirements {
	return m.req
}

// Allowed reports whether the symbol may be traded at all
func (m *Monitor) Allowed(symbol string) bool {
	if m.blacklist[symbol] {
		return false
	}
	return len(m.approved) == 0 || m.approved[symbol]
}

// Metrics returns cached metrics or fetches fresh ones
func (m *Monitor) Metrics(ctx context.Context, symbol string) (Metrics, error) {
	now := m.now()

	m.mu.RLock()
	cached, ok := m.cache[symbol]
	m.mu.RUnlock()
	if ok && now.Sub(cached.UpdatedAt) < m.ttl {
		return cached, nil
	}

	if m.remote != nil {
		var remote Metrics
		found, err := m.remote.Get(ctx, redis.LiquidityMetricsKey(symbol), &remote)
		if err != nil {
			m.logger.WithError(err).WithField("symbol", symbol).Warn("Liquidity cache read failed")
		}
		if found && now.Sub(remote.UpdatedAt) < m.ttl {
			m.store(remote)
			return remote, nil
		}
	}

	fresh, err := m.fetch(ctx, symbol, now)
	if err != nil {
		return Metrics{}, err
	}
	m.store(fresh)

	if m.remote != nil {
		if err := m.remote.Set(ctx, redis.LiquidityMetricsKey(symbol), fresh, m.ttl); err != nil {
			m.logger.WithError(err).WithField("symbol", symbol).Warn("Liquidity cache write failed")
		}
	}
	return fresh, nil
}

func (m *Monitor) fetch(ctx context.Context, symbol string, now time.Time) (Metrics, error) {
	if m.market == nil {
		return Metrics{}, fmt.Errorf("market data: %w", contracts.ErrUnavailable)
	}
	ticker, err := m.market.Ticker(ctx, symbol)
	if err != nil {
		return Metrics{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	var book contracts.OrderBook
	if m.books != nil {
		book, err = m.books.OrderBook(ctx, symbol, bookDepth)
		if err != nil {
			return Metrics{}, fmt.Errorf("order book %s: %w", symbol, err)
		}
	}

	ticker.Symbol = symbol
	return FromMarket(ticker, book, now), nil
}

func (m *Monitor) store(metrics Metrics) {
	m.mu.Lock()
	m.cache[metrics.Symbol] = metrics
	m.mu.Unlock()
}

// Invalidate drops cached metrics for a symbol, including the shared snapshot
func (m *Monitor) Invalidate(ctx context.Context, symbol string) {
	m.mu.Lock()
	delete(m.cache, symbol)
	m.mu.Unlock()

	if m.remote != nil {
		if err := m.remote.Evict(ctx, redis.LiquidityMetricsKey(symbol)); err != nil {
			m.logger.WithError(err).WithField("symbol", symbol).Warn("Liquidity cache evict failed")
		}
	}
}

// LiquidityScore implements contracts.LiquidityMonitor
// 블랙리스트/미승인 심볼은 0
func (m *Monitor) LiquidityScore(ctx context.Context, symbol string) (float64, error) {
	if !m.Allowed(symbol) {
		return 0, nil
	}
	metrics, err := m.Metrics(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return Score(metrics), nil
}

// VerifyLiquidity checks the symbol against every requirement
func (m *Monitor) VerifyLiquidity(ctx context.Context, symbol string) (bool, error) {
	if !m.Allowed(symbol) {
		m.logger.WithField("symbol", symbol).Warn("Symbol not allowed for trading")
		return false, nil
	}

	metrics, err := m.Metrics(ctx, symbol)
	if err != nil {
		return false, err
	}

	volumeOK, depthOK, spreadOK, makersOK := m.req.Meets(metrics)
	liquid := volumeOK && depthOK && spreadOK && makersOK
	if !liquid {
		m.logger.WithFields(map[string]interface{}{
			"symbol":    symbol,
			"volume_ok": volumeOK,
			"depth_ok":  depthOK,
			"spread_ok": spreadOK,
			"makers_ok": makersOK,
		}).Warn("Liquidity requirements not met")
	}
	return liquid, nil
}

// SafePositionSize caps a desired size at 1% of the thinner book side
// and 0.1% of daily volume
func (m *Monitor) SafePositionSize(ctx context.Context, symbol string, desiredUSD float64) (float64, error) {
	metrics, err := m.Metrics(ctx, symbol)
	if err != nil {
		return 0, err
	}

	maxFromDepth := math.Min(metrics.BidDepthUSD, metrics.AskDepthUSD) * 0.01
	maxFromVolume := metrics.Volume24hUSD * 0.001

	return math.Max(0, math.Min(desiredUSD, math.Min(maxFromDepth, maxFromVolume))), nil
}
