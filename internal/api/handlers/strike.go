package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/strikegate/internal/brain"
	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/history"
	"github.com/wonny/strikegate/internal/safety"
	"github.com/wonny/strikegate/pkg/logger"
)

// maxBodyBytes request body 상한
const maxBodyBytes = 64 << 10

// probeTimeout per-dependency health probe budget
const probeTimeout = 2 * time.Second

// Probe dependency health check (redis, postgres)
type Probe func(ctx context.Context) error

// Evaluator service surface used by the handlers (brain.Orchestrator)
type Evaluator interface {
	Evaluate(ctx context.Context, strike contracts.Strike) *contracts.Report
	Checks() []brain.CheckInfo
	Stats(ctx context.Context) (history.Stats, error)
	RecordTradeClosed(ctx context.Context, trade history.TradeRecord, pnl float64) error
	RecordTradeOpened(symbol string, size float64) error
	SafetyHalted() bool
	SafetyStatus() (safety.Status, error)
	EmergencyStop(reason string) error
	Resume() error
}

// StrikeHandler handles strike validation endpoints
// ⭐ SSOT: 스트라이크 API 핸들러는 여기서만
type StrikeHandler struct {
	evaluator Evaluator
	logger    *logger.Logger
	now       func() time.Time
	probes    map[string]Probe
}

// HandlerOption configures a StrikeHandler
type HandlerOption func(*StrikeHandler)

// WithProbe reports a named dependency on /health
func WithProbe(name string, probe Probe) HandlerOption {
	return func(h *StrikeHandler) { h.probes[name] = probe }
}

// NewStrikeHandler creates a new strike handler
func NewStrikeHandler(evaluator Evaluator, log *logger.Logger, opts ...HandlerOption) *StrikeHandler {
	h := &StrikeHandler{
		evaluator: evaluator,
		logger:    log,
		now:       time.Now,
		probes:    make(map[string]Probe),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ValidateResponse report plus a one-line summary
type ValidateResponse struct {
	Summary string            `json:"summary"`
	Report  *contracts.Report `json:"report"`
}

// Validate POST /api/v1/strikes/validate
// Malformed JSON is a 400; a well-formed but invalid strike is a rejected report (200).
func (h *StrikeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var strike contracts.Strike
	if err := decodeBody(w, r, &strike); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := h.evaluator.Evaluate(r.Context(), strike)
	respondJSON(w, http.StatusOK, ValidateResponse{
		Summary: report.Decision.String(),
		Report:  report,
	})
}

// ListChecks GET /api/v1/checks
func (h *StrikeHandler) ListChecks(w http.ResponseWriter, r *http.Request) {
	checks := h.evaluator.Checks()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"checks": checks,
		"count":  len(checks),
	})
}

// HistoryStats GET /api/v1/history/stats
func (h *StrikeHandler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.evaluator.Stats(r.Context())
	if errors.Is(err, contracts.ErrUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load history stats")
		respondError(w, http.StatusInternalServerError, "failed to load history stats")
		return
	}

	totals := stats.Totals()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"totals":        totals,
		"approval_rate": totals.ApprovalRate(),
		"by_type":       stats.ByType,
		"checks":        stats.Checks,
	})
}

// TradeClosedRequest closed trade report
type TradeClosedRequest struct {
	Symbol   string               `json:"symbol"`
	Type     contracts.StrikeType `json:"type"`
	Return   float64              `json:"return"`
	PnL      float64              `json:"pnl"`
	ClosedAt *time.Time           `json:"closed_at,omitempty"`
}

// TradeClosed POST /api/v1/trades/closed
func (h *StrikeHandler) TradeClosed(w http.ResponseWriter, r *http.Request) {
	var req TradeClosedRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	closedAt := h.now()
	if req.ClosedAt != nil {
		closedAt = *req.ClosedAt
	}

	trade := history.TradeRecord{Symbol: req.Symbol, Type: req.Type, Return: req.Return, ClosedAt: closedAt}
	if err := h.evaluator.RecordTradeClosed(r.Context(), trade, req.PnL); err != nil {
		h.logger.WithError(err).Error("Failed to record closed trade")
		respondError(w, http.StatusInternalServerError, "failed to record trade")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"recorded":      true,
		"safety_halted": h.evaluator.SafetyHalted(),
	})
}

// TradeOpenedRequest executed entry report
type TradeOpenedRequest struct {
	Symbol string  `json:"symbol"`
	Size   float64 `json:"size"` // quote currency
}

// TradeOpened POST /api/v1/trades/opened
func (h *StrikeHandler) TradeOpened(w http.ResponseWriter, r *http.Request) {
	var req TradeOpenedRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.evaluator.RecordTradeOpened(req.Symbol, req.Size)
	switch {
	case errors.Is(err, contracts.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "safety monitor not configured")
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondSafety(w, http.StatusAccepted)
}

// SafetyStatus GET /api/v1/safety
func (h *StrikeHandler) SafetyStatus(w http.ResponseWriter, r *http.Request) {
	h.respondSafety(w, http.StatusOK)
}

// EmergencyStopRequest optional halt reason
type EmergencyStopRequest struct {
	Reason string `json:"reason"`
}

// EmergencyStop POST /api/v1/safety/stop
func (h *StrikeHandler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req EmergencyStopRequest
	// 빈 본문 허용
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.evaluator.EmergencyStop(req.Reason); err != nil {
		respondError(w, http.StatusServiceUnavailable, "safety monitor not configured")
		return
	}
	h.respondSafety(w, http.StatusOK)
}

// Resume POST /api/v1/safety/resume
func (h *StrikeHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.evaluator.Resume(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "safety monitor not configured")
		return
	}
	h.respondSafety(w, http.StatusOK)
}

func (h *StrikeHandler) respondSafety(w http.ResponseWriter, code int) {
	status, err := h.evaluator.SafetyStatus()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "safety monitor not configured")
		return
	}
	respondJSON(w, code, status)
}

// Health GET /health
// 의존성 실패는 503 "degraded"; 킬스위치 정지는 게이트가 동작 중이므로 200 "halted"
func (h *StrikeHandler) Health(w http.ResponseWriter, r *http.Request) {
	code, status := http.StatusOK, "ok"
	if h.evaluator.SafetyHalted() {
		status = "halted"
	}

	deps := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := probe(ctx)
		cancel()
		if err != nil {
			deps[name] = err.Error()
			code, status = http.StatusServiceUnavailable, "degraded"
			h.logger.WithError(err).WithField("dependency", name).Warn("Health probe failed")
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  status,
		"service": "strikegate-api",
		"checks":  len(h.evaluator.Checks()),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	respondJSON(w, code, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
