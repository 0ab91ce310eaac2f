package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/strikegate/internal/scheduler"
	"github.com/wonny/strikegate/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `게이트 보조 작업 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/strikegate scheduler start
  go run ./cmd/strikegate scheduler list
  go run ./cmd/strikegate scheduler run liquidity-sampler`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- safety-daily-reset: 매일 00:00 (일일 손익/halt 초기화)
- liquidity-sampler: 매분 (유동성 예측기 히스토리 적재)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newJobScheduler registers the gate's background jobs
func newJobScheduler(svc *service) (*scheduler.Scheduler, error) {
	sched := scheduler.New(svc.log, scheduler.WithRetry(1, 5*time.Second), scheduler.WithRunTimeout(30*time.Second))

	reset := jobs.NewSafetyResetJob(svc.safety, svc.policy.Jobs.SafetyResetSchedule, svc.metrics.SetSafetyHalted, svc.log)
	sampler := jobs.NewLiquiditySamplerJob(
		svc.liquidity,
		svc.predictor,
		svc.policy.Jobs.SamplerSymbols,
		svc.policy.Jobs.SamplerSchedule,
		func(status string) { svc.metrics.LiquiditySamples.WithLabelValues(status).Inc() },
		svc.log,
	)

	for _, job := range []scheduler.Job{reset, sampler} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Strike Gate Scheduler ===")

	svc, err := newService(cmd.Context(), serviceOptions{market: marketFlag})
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := newJobScheduler(svc)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	PrintList(sched.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd.Context(), serviceOptions{market: marketStatic, logStderr: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := newJobScheduler(svc)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	widths := []int{22, 16}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	svc, err := newService(cmd.Context(), serviceOptions{market: marketFlag, logStderr: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := newJobScheduler(svc)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJob(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration))
	return nil
}
