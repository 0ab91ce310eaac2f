package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/strikegate/internal/api"
	"github.com/wonny/strikegate/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `Strike gate REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작 (검증/통계/체크 목록)
- 판정 websocket 스트림 제공
- 백그라운드 작업 (safety reset, liquidity sampler) 실행

Endpoints:
  GET  /health                   - Health check
  GET  /metrics                  - Prometheus metrics
  GET  /ws/decisions             - 판정 스트림 (websocket)
  POST /api/v1/strikes/validate  - Strike 검증
  GET  /api/v1/checks            - 체크 목록
  GET  /api/v1/history/stats     - 판정 통계
  POST /api/v1/trades/opened     - 진입 체결 보고 (노출/빈도 한도)
  POST /api/v1/trades/closed     - 청산 결과 보고
  GET  /api/v1/safety            - 킬스위치 상태
  POST /api/v1/safety/stop       - 긴급 정지
  POST /api/v1/safety/resume     - 정지 해제
  GET  /api/v1/jobs              - 백그라운드 작업 통계
  GET  /api/v1/jobs/{name}/history - 작업 실행 이력

Example:
  go run ./cmd/strikegate api
  go run ./cmd/strikegate api --port 8089 --market static`,
	RunE: runAPIServer,
}

var (
	apiPort    string
	apiNoJobs  bool
	apiNoAudit bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&apiNoJobs, "no-jobs", false, "백그라운드 작업 비활성화")
	apiCmd.Flags().BoolVar(&apiNoAudit, "no-audit", false, "감사 로그 저장 비활성화")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Strike Gate API Server ===")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 1. Wire the gate
	svc, err := newService(ctx, serviceOptions{
		market:    marketFlag,
		withAudit: !apiNoAudit,
		withHub:   true,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	// Override port if flag is set
	if apiPort != "" {
		svc.cfg.Port = apiPort
	}

	// 2. Decision stream
	go svc.hub.Run(ctx)

	// 3. Background jobs
	var jobsHandler *handlers.JobsHandler
	if !apiNoJobs {
		sched, err := newJobScheduler(svc)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		jobsHandler = handlers.NewJobsHandler(sched)
	}

	// 4. Router + server
	var metricsHandler = svc.metrics.Handler()
	if !svc.cfg.MetricsEnabled {
		metricsHandler = nil
	}
	var probes []handlers.HandlerOption
	if svc.redis.Enabled() {
		probes = append(probes, handlers.WithProbe("redis", svc.redis.Ping))
	}
	if svc.db != nil {
		probes = append(probes, handlers.WithProbe("postgres", svc.db.Ping))
	}
	strikeHandler := handlers.NewStrikeHandler(svc.orchestrator, svc.log, probes...)
	router := api.NewRouter(strikeHandler, svc.hub, jobsHandler, metricsHandler, svc.log)
	server := api.New(svc.cfg, svc.log, router)

	// 5. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			svc.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	svc.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", svc.cfg.Port)
	fmt.Printf("   policy=%s hash=%s market=%s\n", svc.policy.Meta.PolicyID, svc.policyHash[:12], marketFlag)
	fmt.Println("\nAvailable endpoints:")
	PrintList([]string{
		"GET  /health",
		"GET  /metrics",
		"GET  /ws/decisions",
		"POST /api/v1/strikes/validate",
		"GET  /api/v1/checks",
		"GET  /api/v1/history/stats",
		"POST /api/v1/trades/opened",
		"POST /api/v1/trades/closed",
		"GET  /api/v1/safety",
		"POST /api/v1/safety/stop",
		"POST /api/v1/safety/resume",
		"GET  /api/v1/jobs",
		"GET  /api/v1/jobs/{name}/history",
	})
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	svc.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	svc.log.Info("Server stopped")
	return nil
}
