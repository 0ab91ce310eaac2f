package pipeline

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/logger"
)

// Timeout substitution values
const (
	TimeoutConfidenceMultiplier = 0.9
	TimeoutRiskContribution     = 0.1
)

// Policy scheduler execution policy
type Policy struct {
	Concurrency      int           // 웨이브 내 동시 실행 상한
	CheckTimeout     time.Duration // 체크별 타임아웃
	FailFast         bool
	FailureThreshold int // FailFast 시 누적 실패 임계값
}

// DefaultPolicy returns the default execution policy
func DefaultPolicy() Policy {
	return Policy{
		Concurrency:      8,
		CheckTimeout:     5 * time.Second,
		FailFast:         false,
		FailureThreshold: 2,
	}
}

// Validate checks policy values
func (p Policy) Validate() error {
	if p.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", p.Concurrency)
	}
	if p.CheckTimeout <= 0 {
		return fmt.Errorf("check timeout must be > 0, got %v", p.CheckTimeout)
	}
	if p.FailFast && p.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be >= 1 when fail-fast is on, got %d", p.FailureThreshold)
	}
	return nil
}

// runResult scheduler output for one strike
type runResult struct {
	results          []contracts.CheckResult
	skipped          []contracts.CheckID
	earlyTermination bool
}

// scheduler runs registered checks wave by wave
// ⭐ 웨이브 내부는 병렬, 웨이브 간은 순차. fold 순서는 항상 id 오름차순
type scheduler struct {
	registry *Registry
	policy   Policy
}

// run executes every wave against the run context; log carries the run fields
func (s *scheduler) run(ctx context.Context, log *logger.Logger, strike contracts.Strike, deps contracts.Collaborators, rc *RunContext) runResult {
	var out runResult
	failures := 0

	waves := s.registry.Waves()
	for i, wave := range waves {
		if err := ctx.Err(); err != nil {
			out.earlyTermination = true
			out.skipped = appendRemaining(out.skipped, waves[i:])
			log.WithError(err).WithField("wave", i).Warn("Run cancelled, skipping remaining waves")
			break
		}

		results, queued := s.runWave(ctx, log, strike, deps, rc.Snapshot(), wave, failures)

		// wave 결과는 id 오름차순으로 fold (wave가 이미 정렬됨)
		for _, res := range results {
			rc.Fold(res.Outcome)
			out.results = append(out.results, res)
			if !res.Outcome.Passed {
				failures++
			}
		}

		remaining := i < len(waves)-1
		if len(queued) > 0 || (s.failFastReached(failures) && remaining) {
			out.earlyTermination = true
			out.skipped = append(out.skipped, queued...)
			out.skipped = appendRemaining(out.skipped, waves[i+1:])
			log.WithFields(map[string]interface{}{
				"wave":      i,
				"failures":  failures,
				"threshold": s.policy.FailureThreshold,
				"skipped":   len(out.skipped),
			}).Info("Fail-fast threshold reached")
			break
		}
	}

	return out
}

func (s *scheduler) failFastReached(failures int) bool {
	return s.policy.FailFast && failures >= s.policy.FailureThreshold
}

// runWave evaluates one wave with bounded concurrency.
// Results come back in wave order regardless of completion order.
//
// The first Concurrency checks always launch together. Checks queued behind the
// ceiling launch in id order and are not launched once fail-fast is reached;
// those ids are returned as queued.
func (s *scheduler) runWave(ctx context.Context, log *logger.Logger, strike contracts.Strike, deps contracts.Collaborators, snap contracts.Snapshot, wave []contracts.CheckID, priorFailures int) ([]contracts.CheckResult, []contracts.CheckID) {
	results := make([]contracts.CheckResult, len(wave))
	launched := len(wave)

	var (
		g        errgroup.Group
		failures atomic.Int64
	)
	sem := semaphore.NewWeighted(int64(s.policy.Concurrency))

	for idx, id := range wave {
		// 슬롯 대기 (Background: 호출자 취소와 무관하게 슬롯은 반드시 반환됨)
		_ = sem.Acquire(context.Background(), 1)
		if idx >= s.policy.Concurrency && s.failFastReached(priorFailures+int(failures.Load())) {
			sem.Release(1)
			launched = idx
			break
		}

		idx, check := idx, s.registry.checks[id]
		g.Go(func() error {
			defer sem.Release(1)
			res := s.evaluate(ctx, log.WithCheck(int(check.ID()), check.Name()), check, strike, deps, snap)
			if !res.Outcome.Passed {
				failures.Add(1)
			}
			results[idx] = res
			return nil
		})
	}
	_ = g.Wait()

	var queued []contracts.CheckID
	if launched < len(wave) {
		queued = append(queued, wave[launched:]...)
	}
	return results[:launched], queued
}

// evaluate runs a single check under its own deadline
func (s *scheduler) evaluate(parent context.Context, log *logger.Logger, check contracts.Check, strike contracts.Strike, deps contracts.Collaborators, snap contracts.Snapshot) contracts.CheckResult {
	ctx, cancel := context.WithTimeout(parent, s.policy.CheckTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan contracts.Outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("Check panicked")
				done <- failedOutcome(fmt.Sprintf("check panicked: %v", r))
			}
		}()
		done <- check.Evaluate(ctx, strike, snap, deps)
	}()

	var outcome contracts.Outcome
	select {
	case outcome = <-done:
		outcome = normalize(outcome)
	case <-ctx.Done():
		// 체크 고루틴은 버퍼 채널에 쓰고 종료 (누수 없음)
		outcome = timeoutOutcome(s.policy.CheckTimeout, ctx.Err())
		log.WithField("timeout", s.policy.CheckTimeout.String()).Warn("Check timed out")
	}

	stamp(&outcome, check)

	return contracts.CheckResult{
		Outcome:  outcome,
		Duration: time.Since(start),
	}
}

// stamp copies the check's declared identity onto its outcome.
// A halt is always a required Critical failure.
func stamp(o *contracts.Outcome, check contracts.Check) {
	o.CheckID = check.ID()
	o.Name = check.Name()
	o.Category = check.Category()
	o.Severity = check.Severity()
	o.Required = check.Required()

	if o.Halt {
		o.Passed = false
		o.Severity = contracts.SeverityCritical
		o.Required = true
	}
}

// normalize fails an outcome carrying non-finite scores
func normalize(o contracts.Outcome) contracts.Outcome {
	if !finite(o.ConfidenceMultiplier) || !finite(o.RiskContribution) {
		o.Passed = false
		o.Diagnostics.Explanation = fmt.Sprintf("non-finite score (multiplier=%v, risk=%v): %s",
			o.ConfidenceMultiplier, o.RiskContribution, o.Diagnostics.Explanation)
		o.ConfidenceMultiplier = 0
		o.RiskContribution = 1
	}
	if o.ConfidenceMultiplier < 0 {
		o.ConfidenceMultiplier = 0
	}
	return o
}

func timeoutOutcome(limit time.Duration, cause error) contracts.Outcome {
	explanation := fmt.Sprintf("timed out after %v", limit)
	if cause == context.Canceled {
		explanation = "cancelled before completion"
	}
	return contracts.Outcome{
		Passed:               false,
		ConfidenceMultiplier: TimeoutConfidenceMultiplier,
		RiskContribution:     TimeoutRiskContribution,
		TimedOut:             true,
		Diagnostics: contracts.Diagnostics{
			Explanation:     explanation,
			Recommendations: []string{"Retry once upstream latency recovers"},
		},
	}
}

func failedOutcome(explanation string) contracts.Outcome {
	return contracts.Outcome{
		Passed:               false,
		ConfidenceMultiplier: 0.5,
		RiskContribution:     0.2,
		Diagnostics: contracts.Diagnostics{
			Explanation: explanation,
		},
	}
}

func appendRemaining(dst []contracts.CheckID, waves [][]contracts.CheckID) []contracts.CheckID {
	for _, w := range waves {
		dst = append(dst, w...)
	}
	return dst
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
