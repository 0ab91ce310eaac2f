package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/strikegate/internal/api/handlers"
	"github.com/wonny/strikegate/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
// hub, jobs and metricsHandler are optional.
func NewRouter(strikes *handlers.StrikeHandler, hub *handlers.Hub, jobs *handlers.JobsHandler, metricsHandler http.Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", strikes.Health).Methods("GET")

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}
	if hub != nil {
		r.HandleFunc("/ws/decisions", hub.ServeWS).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/strikes/validate", strikes.Validate).Methods("POST")
	api.HandleFunc("/checks", strikes.ListChecks).Methods("GET")
	api.HandleFunc("/history/stats", strikes.HistoryStats).Methods("GET")
	api.HandleFunc("/trades/opened", strikes.TradeOpened).Methods("POST")
	api.HandleFunc("/trades/closed", strikes.TradeClosed).Methods("POST")
	api.HandleFunc("/safety", strikes.SafetyStatus).Methods("GET")
	api.HandleFunc("/safety/stop", strikes.EmergencyStop).Methods("POST")
	api.HandleFunc("/safety/resume", strikes.Resume).Methods("POST")
	if jobs != nil {
		api.HandleFunc("/jobs", jobs.List).Methods("GET")
		api.HandleFunc("/jobs/{name}/history", jobs.History).Methods("GET")
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "Not found")
	})

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// statusRecorder captures the response status for logging.
// Hijack is forwarded so websocket upgrades still work behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// websocket 업그레이드는 원본 writer 필요 (Hijacker)
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
