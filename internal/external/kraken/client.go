package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/config"
	"github.com/wonny/strikegate/pkg/httputil"
	"github.com/wonny/strikegate/pkg/logger"
	"github.com/wonny/strikegate/pkg/redis"
)

// DefaultBaseURL Kraken public REST endpoint
const DefaultBaseURL = "https://api.kraken.com"

// maxDepth Kraken Depth count 상한
const maxDepth = 500

// Client Kraken public market data client
// ⭐ SSOT: Kraken API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
	baseURL    string
	now        func() time.Time

	tickerCache *redis.Cache
	tickerTTL   time.Duration
}

// Option client option
type Option func(*Client)

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSharedLimiter adds a Redis sliding-window limit shared by every process
func WithSharedLimiter(rl *redis.RateLimiter, perSecond int) Option {
	return func(c *Client) {
		c.httpClient = c.httpClient.WithRateLimiter(rl, redis.RateLimitConfig{
			Key:    "kraken",
			Limit:  perSecond,
			Window: time.Second,
		})
	}
}

// WithTickerCache caches tickers in Redis for ttl
func WithTickerCache(cache *redis.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.tickerCache = cache
		c.tickerTTL = ttl
	}
}

// NewClient creates a Kraken client from config
func NewClient(cfg config.KrakenConfig, log *logger.Logger, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := httputil.NewWithTimeout(log, cfg.Timeout).
		WithRetry(cfg.MaxRetries, 200*time.Millisecond)
	if cfg.RatePerSec > 0 {
		httpClient = httpClient.WithLimiter(rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1))
	}

	c := &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		now:        time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kraken",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// unknown pair 은 업스트림 장애가 아님
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, contracts.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState current circuit breaker state
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// =============================================================================
// Wire types
// =============================================================================

type envelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

type tickerInfo struct {
	Ask    []string `json:"a"` // price, whole lot volume, lot volume
	Bid    []string `json:"b"`
	Last   []string `json:"c"` // price, lot volume
	Volume []string `json:"v"` // today, last 24h
}

type depthInfo struct {
	Asks [][]json.RawMessage `json:"asks"` // price, volume, timestamp
	Bids [][]json.RawMessage `json:"bids"`
}

// =============================================================================
// MarketData / OrderBookSource
// =============================================================================

// Ticker returns the top of book for a pair, through the ticker cache when configured
func (c *Client) Ticker(ctx context.Context, symbol string) (contracts.Ticker, error) {
	if c.tickerCache == nil {
		return c.fetchTicker(ctx, symbol)
	}

	var cached contracts.Ticker
	found, err := c.tickerCache.Get(ctx, redis.TickerKey(symbol), &cached)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Ticker cache read failed")
	}
	if found {
		return cached, nil
	}

	t, err := c.fetchTicker(ctx, symbol)
	if err != nil {
		return contracts.Ticker{}, err
	}
	if err := c.tickerCache.Set(ctx, redis.TickerKey(symbol), t, c.tickerTTL); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Ticker cache write failed")
	}
	return t, nil
}

func (c *Client) fetchTicker(ctx context.Context, symbol string) (contracts.Ticker, error) {
	raw, err := c.call(ctx, "/0/public/Ticker", url.Values{"pair": {symbol}})
	if err != nil {
		return contracts.Ticker{}, fmt.Errorf("kraken ticker %s: %w", symbol, err)
	}

	var info tickerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return contracts.Ticker{}, fmt.Errorf("kraken ticker %s: decode: %w", symbol, err)
	}

	t := contracts.Ticker{Symbol: symbol, Timestamp: c.now()}
	if t.Ask, err = field(info.Ask, 0); err != nil {
		return contracts.Ticker{}, fmt.Errorf("kraken ticker %s: ask: %w", symbol, err)
	}
	if t.Bid, err = field(info.Bid, 0); err != nil {
		return contracts.Ticker{}, fmt.Errorf("kraken ticker %s: bid: %w", symbol, err)
	}
	if t.Last, err = field(info.Last, 0); err != nil {
		return contracts.Ticker{}, fmt.Errorf("kraken ticker %s: last: %w", symbol, err)
	}
	if t.Volume24h, err = field(info.Volume, 1); err != nil {
		return contracts.Ticker{}, fmt.Errorf("kraken ticker %s: volume: %w", symbol, err)
	}
	return t, nil
}

// OrderBook fetches up to depth levels per side
func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (contracts.OrderBook, error) {
	if depth <= 0 || depth > maxDepth {
		depth = maxDepth
	}

	raw, err := c.call(ctx, "/0/public/Depth", url.Values{
		"pair":  {symbol},
		"count": {strconv.Itoa(depth)},
	})
	if err != nil {
		return contracts.OrderBook{}, fmt.Errorf("kraken depth %s: %w", symbol, err)
	}

	var info depthInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return contracts.OrderBook{}, fmt.Errorf("kraken depth %s: decode: %w", symbol, err)
	}

	book := contracts.OrderBook{Symbol: symbol, Timestamp: c.now()}
	if book.Bids, err = levels(info.Bids); err != nil {
		return contracts.OrderBook{}, fmt.Errorf("kraken depth %s: bids: %w", symbol, err)
	}
	if book.Asks, err = levels(info.Asks); err != nil {
		return contracts.OrderBook{}, fmt.Errorf("kraken depth %s: asks: %w", symbol, err)
	}
	return book, nil
}

// call runs one public request through the breaker and returns the first result entry
func (c *Client) call(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var env envelope
		if err := c.httpClient.GetJSON(ctx, fullURL, &env); err != nil {
			return nil, classify(ctx, err)
		}
		if len(env.Error) > 0 {
			return nil, apiError(env.Error)
		}
		// 결과 키는 Kraken 내부 pair 이름 (예: XXBTZUSD)
		for _, v := range env.Result {
			return v, nil
		}
		return nil, fmt.Errorf("empty result: %w", contracts.ErrNotFound)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%v: %w", err, contracts.ErrUnavailable)
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

// =============================================================================
// Error mapping
// =============================================================================

func apiError(msgs []string) error {
	joined := strings.Join(msgs, "; ")
	for _, m := range msgs {
		switch {
		case strings.HasPrefix(m, "EQuery:Unknown asset pair"):
			return fmt.Errorf("%s: %w", joined, contracts.ErrNotFound)
		case strings.Contains(m, "Rate limit exceeded"), strings.HasPrefix(m, "EAPI:Too many requests"):
			return fmt.Errorf("%s: %w", joined, contracts.ErrRateLimited)
		case strings.HasPrefix(m, "EService:Unavailable"), strings.HasPrefix(m, "EService:Busy"):
			return fmt.Errorf("%s: %w", joined, contracts.ErrUnavailable)
		}
	}
	return errors.New(joined)
}

func classify(ctx context.Context, err error) error {
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%v: %w", err, contracts.ErrRateLimited)
		case statusErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%v: %w", err, contracts.ErrNotFound)
		case statusErr.StatusCode >= 500:
			return fmt.Errorf("%v: %w", err, contracts.ErrUnavailable)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%v: %w", err, contracts.ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%v: %w", err, contracts.ErrTimeout)
	}
	return err
}

// =============================================================================
// Parsing helpers
// =============================================================================

func field(values []string, idx int) (float64, error) {
	if idx >= len(values) {
		return 0, fmt.Errorf("missing field %d", idx)
	}
	return strconv.ParseFloat(values[idx], 64)
}

func levels(rows [][]json.RawMessage) ([]contracts.BookLevel, error) {
	out := make([]contracts.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("malformed level %v", row)
		}
		price, err := number(row[0])
		if err != nil {
			return nil, err
		}
		volume, err := number(row[1])
		if err != nil {
			return nil, err
		}
		out = append(out, contracts.BookLevel{Price: price, Volume: volume})
	}
	return out, nil
}

// number accepts "123.4" or 123.4
func number(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("invalid number %s", string(raw))
	}
	return f, nil
}
