package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/strikegate/internal/liquidity"
	"github.com/wonny/strikegate/pkg/logger"
)

// MetricsSource fresh liquidity metrics per symbol (liquidity.Monitor)
type MetricsSource interface {
	Invalidate(ctx context.Context, symbol string)
	Metrics(ctx context.Context, symbol string) (liquidity.Metrics, error)
}

// SampleRecorder liquidity history sink (liquidity.Predictor)
type SampleRecorder interface {
	Record(symbol string, m liquidity.Metrics)
}

// LiquiditySamplerJob feeds fresh liquidity metrics into the predictor's history
type LiquiditySamplerJob struct {
	source    MetricsSource
	predictor SampleRecorder
	symbols   []string
	schedule  string
	onSample  func(status string)
	logger    *logger.Logger
}

// NewLiquiditySamplerJob creates a new liquidity sampler; onSample (optional) observes "ok"/"error"
func NewLiquiditySamplerJob(source MetricsSource, predictor SampleRecorder, symbols []string, schedule string, onSample func(string), log *logger.Logger) *LiquiditySamplerJob {
	if schedule == "" {
		schedule = "0 * * * * *" // 매분
	}
	if onSample == nil {
		onSample = func(string) {}
	}
	return &LiquiditySamplerJob{
		source:    source,
		predictor: predictor,
		symbols:   append([]string(nil), symbols...),
		schedule:  schedule,
		onSample:  onSample,
		logger:    log,
	}
}

// Name returns the job name
func (j *LiquiditySamplerJob) Name() string {
	return "liquidity-sampler"
}

// Schedule returns the cron schedule
func (j *LiquiditySamplerJob) Schedule() string {
	return j.schedule
}

// Run samples every symbol once. Fails only when no symbol could be sampled.
func (j *LiquiditySamplerJob) Run(ctx context.Context) error {
	var sampled int
	var lastErr error

	for _, sym := range j.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}

		// 캐시를 건너뛰고 새 샘플 수집
		j.source.Invalidate(ctx, sym)
		m, err := j.source.Metrics(ctx, sym)
		if err != nil {
			lastErr = err
			j.onSample("error")
			j.logger.WithError(err).WithField("symbol", sym).Warn("Liquidity sample failed")
			continue
		}

		j.predictor.Record(sym, m)
		j.onSample("ok")
		sampled++
	}

	if sampled == 0 && lastErr != nil {
		return fmt.Errorf("no liquidity samples collected: %w", lastErr)
	}

	j.logger.WithFields(map[string]interface{}{
		"sampled": sampled,
		"symbols": len(j.symbols),
	}).Debug("Liquidity sampling completed")
	return nil
}
