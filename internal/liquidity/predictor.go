package liquidity

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

// PredictorConfig 유동성 예측 설정
type PredictorConfig struct {
	MinHistoryPoints  int           `yaml:"min_history_points"`
	MaxHistoryPoints  int           `yaml:"max_history_points"` // 1 per minute for 24h
	Horizon           time.Duration `yaml:"horizon"`
	MinLiquidityScore float64       `yaml:"min_liquidity_score"`
	OptimalThreshold  float64       `yaml:"optimal_threshold"`
	WarningThreshold  float64       `yaml:"warning_threshold"`
	CriticalThreshold float64       `yaml:"critical_threshold"`
	AbortThreshold    float64       `yaml:"abort_threshold"`
}

// DefaultPredictorConfig returns production defaults
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		MinHistoryPoints:  100,
		MaxHistoryPoints:  1440,
		Horizon:           30 * time.Minute,
		MinLiquidityScore: 0.7,
		OptimalThreshold:  0.85,
		WarningThreshold:  0.7,
		CriticalThreshold: 0.5,
		AbortThreshold:    0.3,
	}
}

// Sample one scored observation
type Sample struct {
	Score float64   `json:"score"`
	At    time.Time `json:"at"`
}

// Model per-symbol prediction model rebuilt on every recorded sample
type Model struct {
	MA5        float64     `json:"ma_5"`
	MA15       float64     `json:"ma_15"`
	MA60       float64     `json:"ma_60"`
	Volatility float64     `json:"volatility"`
	Mean       float64     `json:"mean"`
	Hourly     [24]float64 `json:"hourly"` // 0 = no samples in that UTC hour
	Daily      [7]float64  `json:"daily"`  // 0 = Sunday
	Samples    int         `json:"samples"`
}

// hourFactor hour-of-day pattern relative to the overall mean (1.0 when unseen)
func (m Model) hourFactor(t time.Time) float64 {
	return relative(m.Hourly[t.UTC().Hour()], m.Mean)
}

func (m Model) dayFactor(t time.Time) float64 {
	return relative(m.Daily[int(t.UTC().Weekday())], m.Mean)
}

func relative(v, mean float64) float64 {
	if v <= 0 || mean <= 0 {
		return 1
	}
	return v / mean
}

// Predictor forecasts liquidity from recorded samples
// ⭐ SSOT: 히스토리/모델은 Predictor 내부 잠금으로만 접근
type Predictor struct {
	cfg PredictorConfig
	now func() time.Time

	mu      sync.RWMutex
	history map[string][]Sample
	models  map[string]Model
}

// NewPredictor creates a predictor; now may be nil (time.Now)
func NewPredictor(cfg PredictorConfig, now func() time.Time) *Predictor {
	if now == nil {
		now = time.Now
	}
	return &Predictor{
		cfg:     cfg,
		now:     now,
		history: make(map[string][]Sample),
		models:  make(map[string]Model),
	}
}

// Record scores metrics and appends them to the symbol's history
func (p *Predictor) Record(symbol string, m Metrics) {
	at := m.UpdatedAt
	if at.IsZero() {
		at = p.now()
	}
	p.RecordScore(symbol, Score(m), at)
}

// RecordScore appends a raw score
func (p *Predictor) RecordScore(symbol string, score float64, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := append(p.history[symbol], Sample{Score: score, At: at})
	if over := len(h) - p.cfg.MaxHistoryPoints; p.cfg.MaxHistoryPoints > 0 && over > 0 {
		h = append([]Sample(nil), h[over:]...)
	}
	p.history[symbol] = h

	if len(h) >= p.cfg.MinHistoryPoints {
		p.models[symbol] = buildModel(h)
	}
}

// Model returns the current model for a symbol
func (p *Predictor) Model(symbol string) (Model, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.models[symbol]
	return m, ok
}

// HistoryLen number of recorded samples for a symbol
func (p *Predictor) HistoryLen(symbol string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.history[symbol])
}

func buildModel(h []Sample) Model {
	m := Model{
		MA5:     tailMean(h, 5),
		MA15:    tailMean(h, 15),
		MA60:    tailMean(h, 60),
		Samples: len(h),
	}

	var sum float64
	var hourSum [24]float64
	var hourN [24]int
	var daySum [7]float64
	var dayN [7]int
	for _, s := range h {
		sum += s.Score
		hr, wd := s.At.UTC().Hour(), int(s.At.UTC().Weekday())
		hourSum[hr] += s.Score
		hourN[hr]++
		daySum[wd] += s.Score
		dayN[wd]++
	}
	m.Mean = sum / float64(len(h))

	var variance float64
	for _, s := range h {
		variance += (s.Score - m.Mean) * (s.Score - m.Mean)
	}
	m.Volatility = math.Sqrt(variance / float64(len(h)))

	for i := range hourSum {
		if hourN[i] > 0 {
			m.Hourly[i] = hourSum[i] / float64(hourN[i])
		}
	}
	for i := range daySum {
		if dayN[i] > 0 {
			m.Daily[i] = daySum[i] / float64(dayN[i])
		}
	}
	return m
}

func tailMean(h []Sample, n int) float64 {
	if len(h) == 0 {
		return 0
	}
	if n > len(h) {
		n = len(h)
	}
	var sum float64
	for _, s := range h[len(h)-n:] {
		sum += s.Score
	}
	return sum / float64(n)
}

// Predict implements contracts.LiquidityPredictor
// 모델이 없으면 에러 대신 abort 예측을 반환
func (p *Predictor) Predict(_ context.Context, symbol string, horizon time.Duration) (contracts.LiquidityForecast, error) {
	if horizon <= 0 {
		horizon = p.cfg.Horizon
	}

	p.mu.RLock()
	h := p.history[symbol]
	model, ok := p.models[symbol]
	p.mu.RUnlock()

	var current float64
	if len(h) > 0 {
		current = h[len(h)-1].Score
	}

	if !ok {
		return contracts.LiquidityForecast{
			Symbol:            symbol,
			CurrentScore:      current,
			PredictedScore:    current,
			State:             contracts.LiquidityInsufficient,
			RecommendedAction: contracts.RecommendAbort,
			RiskFactors:       []string{"No prediction model available"},
		}, nil
	}

	at := p.now().Add(horizon)
	hourly := model.hourFactor(at)
	trend := model.MA5 - model.MA60

	predicted := (current+trend*0.3)*hourly*model.dayFactor(at) - model.Volatility*2
	predicted = math.Max(0, math.Min(1, predicted))

	confidence := 0.5
	if len(h) > 500 {
		confidence = math.Max(0, 0.9-model.Volatility)
	}

	var factors []string
	if model.Volatility > 0.2 {
		factors = append(factors, "High liquidity volatility")
	}
	if predicted < current*0.8 {
		factors = append(factors, "Declining liquidity trend")
	}
	if hourly < 0.7 {
		factors = append(factors, "Low liquidity hour")
	}
	if model.MA5 < model.MA15 {
		factors = append(factors, "Short-term liquidity drop")
	}

	state, action := p.classify(predicted)
	return contracts.LiquidityForecast{
		Symbol:            symbol,
		CurrentScore:      current,
		PredictedScore:    predicted,
		Confidence:        confidence,
		State:             state,
		RecommendedAction: action,
		RiskFactors:       factors,
	}, nil
}

func (p *Predictor) classify(score float64) (contracts.LiquidityState, contracts.TradeRecommendation) {
	switch {
	case score >= p.cfg.OptimalThreshold:
		return contracts.LiquidityOptimal, contracts.RecommendExecute
	case score >= p.cfg.WarningThreshold:
		return contracts.LiquidityGood, contracts.RecommendExecute
	case score >= p.cfg.CriticalThreshold:
		return contracts.LiquidityWarning, contracts.RecommendReduceSize
	case score >= p.cfg.AbortThreshold:
		return contracts.LiquidityCritical, contracts.RecommendWaitForLiquidity
	default:
		return contracts.LiquidityInsufficient, contracts.RecommendAbort
	}
}

// ShouldExecute applies the size penalty on top of the forecast
func (p *Predictor) ShouldExecute(ctx context.Context, symbol string, sizeUSD float64) (bool, contracts.LiquidityForecast, error) {
	fc, err := p.Predict(ctx, symbol, p.cfg.Horizon)
	if err != nil {
		return false, fc, err
	}
	adjusted := fc.PredictedScore / (1 + math.Min(sizeUSD/100_000, 2)*0.1)
	ok := adjusted >= p.cfg.MinLiquidityScore && fc.RecommendedAction == contracts.RecommendExecute
	return ok, fc, nil
}

// NextOptimalTime earliest hour in the next 24h whose pattern reaches the optimal threshold
func (p *Predictor) NextOptimalTime(symbol string) (time.Time, bool) {
	model, ok := p.Model(symbol)
	if !ok {
		return time.Time{}, false
	}
	now := p.now()
	for hours := 1; hours < 24; hours++ {
		at := now.Add(time.Duration(hours) * time.Hour)
		if model.Hourly[at.UTC().Hour()]*model.dayFactor(at) >= p.cfg.OptimalThreshold {
			return at, true
		}
	}
	return time.Time{}, false
}
