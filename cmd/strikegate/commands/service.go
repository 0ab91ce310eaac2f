package commands

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/wonny/strikegate/internal/analytics"
	"github.com/wonny/strikegate/internal/api/handlers"
	"github.com/wonny/strikegate/internal/audit"
	"github.com/wonny/strikegate/internal/brain"
	"github.com/wonny/strikegate/internal/checks"
	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/external/kraken"
	"github.com/wonny/strikegate/internal/gatecfg"
	"github.com/wonny/strikegate/internal/history"
	"github.com/wonny/strikegate/internal/liquidity"
	"github.com/wonny/strikegate/internal/marketdata"
	"github.com/wonny/strikegate/internal/metrics"
	"github.com/wonny/strikegate/internal/pipeline"
	"github.com/wonny/strikegate/internal/safety"
	"github.com/wonny/strikegate/pkg/config"
	"github.com/wonny/strikegate/pkg/database"
	"github.com/wonny/strikegate/pkg/logger"
	"github.com/wonny/strikegate/pkg/redis"
)

const keyPrefix = "strikegate"

// market sources
const (
	marketKraken = "kraken"
	marketStatic = "static"
)

// marketSource ticker + order book
type marketSource interface {
	contracts.MarketData
	contracts.OrderBookSource
}

// serviceOptions selects optional layers
type serviceOptions struct {
	market    string // kraken | static
	withAudit bool   // DATABASE_URL 있을 때 감사 로그 저장
	withHub   bool   // websocket decision stream
	logStderr bool   // CLI 출력과 로그 분리
}

// service fully wired gate
// ⭐ SSOT: 컴포넌트 조립은 여기서만
type service struct {
	cfg        *config.Config
	policy     *gatecfg.Config
	policyHash string
	log        *logger.Logger

	market    marketSource
	static    *marketdata.Static // market == static 일 때만
	liquidity *liquidity.Monitor
	predictor *liquidity.Predictor
	safety    *safety.Monitor
	history   history.Store

	validator    *pipeline.Validator
	orchestrator *brain.Orchestrator
	metrics      *metrics.Registry
	hub          *handlers.Hub
	auditRepo    *audit.Repository

	db    *database.DB
	redis *redis.Client
}

func loadConfig() (*config.Config, *gatecfg.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.PolicyFile
	if policyFile != "" {
		path = policyFile
	}
	policy, err := gatecfg.LoadOrDefault(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy: %w", err)
	}
	return cfg, policy, nil
}

func newLogger(cfg *config.Config, stderr bool) *logger.Logger {
	if !stderr {
		return logger.New(cfg)
	}
	if !verbose {
		return logger.Nop()
	}
	c := *cfg
	c.LogLevel = "debug"
	return logger.NewForOutput(os.Stderr, &c)
}

func newService(ctx context.Context, opts serviceOptions) (_ *service, err error) {
	cfg, policy, err := loadConfig()
	if err != nil {
		return nil, err
	}
	hash, err := gatecfg.Hash(policy)
	if err != nil {
		return nil, fmt.Errorf("hash policy: %w", err)
	}

	log := newLogger(cfg, opts.logStderr)
	s := &service{cfg: cfg, policy: policy, policyHash: hash, log: log}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// 1. Redis (optional)
	s.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without it")
		s.redis = redis.Wrap(nil)
	}

	// 2. Market data
	switch opts.market {
	case "", marketKraken:
		krakenOpts := []kraken.Option{}
		if s.redis.Enabled() {
			krakenOpts = append(krakenOpts,
				kraken.WithSharedLimiter(redis.NewRateLimiter(s.redis, keyPrefix), int(math.Ceil(cfg.Kraken.RatePerSec))),
				kraken.WithTickerCache(redis.NewCache(s.redis, keyPrefix), 2*time.Second),
			)
		}
		s.market = kraken.NewClient(cfg.Kraken, log, krakenOpts...)
	case marketStatic:
		s.static = marketdata.NewStatic()
		s.market = s.static
	default:
		return nil, fmt.Errorf("unknown market source %q (valid: kraken, static)", opts.market)
	}

	// 3. Collaborators
	liqOpts := policy.LiquidityOptions()
	if s.redis.Enabled() {
		liqOpts = append(liqOpts, liquidity.WithCache(redis.NewCache(s.redis, keyPrefix)))
	}
	s.liquidity = liquidity.NewMonitor(s.market, s.market, log, liqOpts...)
	s.predictor = liquidity.NewPredictor(policy.Liquidity.Predictor, time.Now)
	s.safety = safety.NewMonitor(policy.Safety, log, time.Now)

	if s.redis.Enabled() {
		s.history, err = history.NewRedisStore(s.redis, keyPrefix, time.Now)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
	} else {
		s.history = history.NewMemoryStore(time.Now)
	}

	deps := contracts.Collaborators{
		MarketData: s.market,
		OrderBooks: s.market,
		Liquidity:  s.liquidity,
		Forecaster: s.predictor,
		Safety:     s.safety,
		History:    s.history,
		Analytics:  analytics.NewInsightEngine(s.history),
	}

	// 4. Validator
	s.validator, err = pipeline.New(policy.PipelineConfig(), deps, log, checks.Defaults(policy.Checks)...)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	// 5. Orchestrator + side effects
	s.metrics = metrics.New()
	brainOpts := []brain.Option{
		brain.WithObserver(s.metrics),
		brain.WithSafety(s.safety),
		brain.WithHaltObserver(s.metrics.SetSafetyHalted),
	}
	if opts.withAudit && cfg.Database.Enabled() {
		s.db, err = database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err = s.db.Migrate(ctx, audit.Schema...); err != nil {
			return nil, fmt.Errorf("migrate audit schema: %w", err)
		}
		s.auditRepo = audit.NewRepository(s.db.Pool)
		brainOpts = append(brainOpts, brain.WithAudit(s.auditRepo))
	}
	if opts.withHub {
		s.hub = handlers.NewHub(log, func(n int) { s.metrics.WSClients.Set(float64(n)) })
		brainOpts = append(brainOpts, brain.WithBroadcaster(s.hub))
	}
	s.orchestrator = brain.NewOrchestrator(s.validator, s.history, log, brainOpts...)

	log.WithFields(map[string]interface{}{
		"policy_id":   policy.Meta.PolicyID,
		"policy_hash": hash[:12],
		"market":      opts.market,
		"redis":       s.redis.Enabled(),
		"audit":       s.auditRepo != nil,
		"checks":      s.validator.Registry().Len(),
	}).Info("Strike gate initialized")

	return s, nil
}

// seedStatic installs a synthetic market around mid (static market only)
func (s *service) seedStatic(symbol string, mid float64) {
	if s.static == nil || mid <= 0 {
		return
	}
	tick := mid * 0.0001
	// 24h 거래량: 요구 최소치의 5배 (quote 기준)
	volume24h := s.policy.Liquidity.Requirements.MinDailyVolume * 5 / mid
	levelVolume := s.policy.Liquidity.Requirements.MinBookDepth / mid
	tk, book := marketdata.Synthetic(symbol, mid, tick, levelVolume, s.policy.Checks.BookDepth, volume24h)
	s.static.SetTicker(tk)
	s.static.SetOrderBook(book)
}

// warmPredictor seeds a flat liquidity history from the current metrics so the
// predictor has a model before the sampler has run long enough
func (s *service) warmPredictor(ctx context.Context, symbol string) error {
	m, err := s.liquidity.Metrics(ctx, symbol)
	if err != nil {
		return err
	}
	n := s.policy.Liquidity.Predictor.MinHistoryPoints
	now := time.Now()
	score := liquidity.Score(m)
	for i := n; i > 0; i-- {
		s.predictor.RecordScore(symbol, score, now.Add(-time.Duration(i)*time.Minute))
	}
	return nil
}

// Close releases connections
func (s *service) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
