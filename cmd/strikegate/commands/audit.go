package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/strikegate/internal/audit"
	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/database"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "판정 감사 로그 조회",
	Long: `PostgreSQL에 저장된 판정 감사 로그를 관리/조회합니다 (DATABASE_URL 필요).

Subcommands:
  migrate  - audit 스키마 생성
  stats    - 기간별 판정 통계
  recent   - 최근 판정 목록
  show     - run id 로 리포트 조회

Example:
  go run ./cmd/strikegate audit migrate
  go run ./cmd/strikegate audit stats --from 2026-10-01 --to 2026-10-15
  go run ./cmd/strikegate audit recent --limit 20
  go run ./cmd/strikegate audit show 6f1c...`,
}

var (
	auditMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "audit 스키마 생성",
		RunE:  runAuditMigrate,
	}

	auditStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "기간별 판정 통계",
		RunE:  runAuditStats,
	}

	auditRecentCmd = &cobra.Command{
		Use:   "recent",
		Short: "최근 판정 목록",
		RunE:  runAuditRecent,
	}

	auditShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "리포트 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  runAuditShow,
	}

	auditFrom  string
	auditTo    string
	auditLimit int
	auditJSON  bool
)

const dateLayout = "2006-01-02"

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditMigrateCmd)
	auditCmd.AddCommand(auditStatsCmd)
	auditCmd.AddCommand(auditRecentCmd)
	auditCmd.AddCommand(auditShowCmd)

	auditStatsCmd.Flags().StringVar(&auditFrom, "from", "", "start date YYYY-MM-DD (default: 7 days ago)")
	auditStatsCmd.Flags().StringVar(&auditTo, "to", "", "end date YYYY-MM-DD, exclusive (default: tomorrow)")
	auditRecentCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of rows")
	auditShowCmd.Flags().BoolVar(&auditJSON, "json", false, "print the report as JSON")
}

// openAudit connects to the audit database
func openAudit(ctx context.Context) (*database.DB, *audit.Repository, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(ctx, cfg)
	if errors.Is(err, database.ErrNotConfigured) {
		return nil, nil, fmt.Errorf("audit requires DATABASE_URL: %w", err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, audit.NewRepository(db.Pool), nil
}

// statsWindow resolves --from/--to into [from, to)
func statsWindow(now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -7)
	to := today.AddDate(0, 0, 1)

	var err error
	if auditFrom != "" {
		if from, err = time.Parse(dateLayout, auditFrom); err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if auditTo != "" {
		if to, err = time.Parse(dateLayout, auditTo); err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return from, to, nil
}

func runAuditMigrate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, audit.Schema...); err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess("audit schema ready")
	return nil
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	from, to, err := statsWindow(time.Now().UTC())
	if err != nil {
		return err
	}

	db, repo, err := openAudit(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := repo.DecisionStats(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Decisions %s ~ %s", from.Format(dateLayout), to.Format(dateLayout)))
	PrintKeyValue("Total", fmt.Sprintf("%d", stats.Total), 14)
	PrintKeyValue("Approval rate", fmt.Sprintf("%.1f%%", stats.ApprovalRate()*100), 14)
	PrintKeyValue("Early stops", fmt.Sprintf("%d", stats.EarlyTerminations), 14)
	PrintSeparator()

	widths := []int{24, 8, 10, 10}
	PrintTableHeader([]string{"Verdict", "Count", "Avg conf", "Avg risk"}, widths)
	for _, v := range []contracts.Verdict{
		contracts.VerdictApproved,
		contracts.VerdictConditionallyApproved,
		contracts.VerdictRejected,
	} {
		s := stats.ByVerdict[v]
		PrintTableRow([]string{
			string(v),
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.3f", s.AvgConfidence),
			fmt.Sprintf("%.3f", s.AvgRisk),
		}, widths)
	}
	PrintDoubleSeparator()
	return nil
}

func runAuditRecent(cmd *cobra.Command, args []string) error {
	db, repo, err := openAudit(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repo.Recent(cmd.Context(), auditLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		PrintInfo("no decisions recorded")
		return nil
	}

	widths := []int{19, 10, 10, 24, 7, 7}
	PrintTableHeader([]string{"Started", "Strike", "Symbol", "Verdict", "Conf", "Risk"}, widths)
	for _, r := range records {
		PrintTableRow([]string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", r.StrikeID),
			r.Symbol,
			string(r.Verdict),
			fmt.Sprintf("%.3f", r.FinalConfidence),
			fmt.Sprintf("%.3f", r.FinalRisk),
		}, widths)
	}
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	db, repo, err := openAudit(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := repo.GetReport(cmd.Context(), args[0])
	if errors.Is(err, contracts.ErrNotFound) {
		PrintError(fmt.Sprintf("run %s not found", args[0]))
		return err
	}
	if err != nil {
		return err
	}
	if auditJSON {
		return PrintJSON(report)
	}
	PrintReport(report)
	return nil
}
