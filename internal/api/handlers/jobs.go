package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/strikegate/internal/scheduler"
)

// JobSource scheduler surface exposed over HTTP
type JobSource interface {
	GetJobStats() map[string]scheduler.JobStats
	GetJobHistory(jobName string) (scheduler.JobHistory, error)
}

// JobsHandler background job status endpoints
type JobsHandler struct {
	jobs JobSource
}

// NewJobsHandler creates a jobs handler
func NewJobsHandler(jobs JobSource) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// List GET /api/v1/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.GetJobStats()
	out := make([]scheduler.JobStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  out,
		"count": len(out),
	})
}

// History GET /api/v1/jobs/{name}/history
func (h *JobsHandler) History(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	hist, err := h.jobs.GetJobHistory(name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, hist)
}
