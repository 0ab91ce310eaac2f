package scheduler

import (
	"context"
	"time"
)

// maxResults per-job results kept in memory
const maxResults = 100

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job; ctx is bounded by the scheduler's run timeout
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression, seconds field first
	// ("0 0 0 * * *" = 매일 자정, "0 * * * * *" = 매분) or a descriptor ("@every 30s")
	Schedule() string
}

// JobResult represents the result of a job execution (all attempts)
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory recent results plus lifetime counters.
// Results is capped at maxResults; the counters are not.
type JobHistory struct {
	Results     []JobResult `json:"results"`
	Runs        int         `json:"runs"`
	Failures    int         `json:"failures"`
	LastSuccess time.Time   `json:"last_success,omitempty"`
	LastFailure time.Time   `json:"last_failure,omitempty"`
}

// Add records a result
func (h *JobHistory) Add(result JobResult) {
	h.Runs++
	if result.Success {
		h.LastSuccess = result.StartTime
	} else {
		h.Failures++
		h.LastFailure = result.StartTime
	}

	h.Results = append(h.Results, result)
	if over := len(h.Results) - maxResults; over > 0 {
		h.Results = append([]JobResult(nil), h.Results[over:]...)
	}
}

// Latest returns up to n most recent results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return append([]JobResult(nil), h.Results[len(h.Results)-n:]...)
}

// Failed returns the retained failed results
func (h *JobHistory) Failed() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// SuccessRate lifetime success rate (0.0 - 1.0)
func (h *JobHistory) SuccessRate() float64 {
	if h.Runs == 0 {
		return 0
	}
	return float64(h.Runs-h.Failures) / float64(h.Runs)
}

// clone deep copy for readers outside the scheduler lock
func (h *JobHistory) clone() JobHistory {
	c := *h
	c.Results = append([]JobResult(nil), h.Results...)
	return c
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// stats summarises the history of one job
func (h *JobHistory) stats(name, schedule string) JobStats {
	st := JobStats{
		JobName:      name,
		Schedule:     schedule,
		TotalRuns:    h.Runs,
		SuccessCount: h.Runs - h.Failures,
		FailureCount: h.Failures,
		SuccessRate:  h.SuccessRate(),
	}
	if latest := h.Latest(1); len(latest) == 1 {
		t := latest[0].StartTime
		st.LastRun = &t
	}
	if !h.LastSuccess.IsZero() {
		t := h.LastSuccess
		st.LastSuccess = &t
	}
	if !h.LastFailure.IsZero() {
		t := h.LastFailure
		st.LastFailure = &t
	}
	return st
}
