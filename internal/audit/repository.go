package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/strikegate/internal/contracts"
)

// Schema idempotent DDL for the decision audit log
var Schema = []string{
	`CREATE SCHEMA IF NOT EXISTS audit`,
	`CREATE TABLE IF NOT EXISTS audit.strike_decisions (
		run_id            TEXT PRIMARY KEY,
		strike_id         BIGINT NOT NULL,
		symbol            TEXT NOT NULL,
		strike_type       TEXT NOT NULL,
		verdict           TEXT NOT NULL,
		final_confidence  DOUBLE PRECISION NOT NULL,
		final_risk        DOUBLE PRECISION NOT NULL,
		pass_rate         DOUBLE PRECISION NOT NULL,
		early_termination BOOLEAN NOT NULL,
		started_at        TIMESTAMPTZ NOT NULL,
		duration_ms       DOUBLE PRECISION NOT NULL,
		report            JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_strike_decisions_started_at
		ON audit.strike_decisions (started_at)`,
}

// DBTX subset of pgxpool.Pool used by the repository
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles audit data persistence
// ⭐ SSOT: 판정 감사 로그 저장/조회는 여기서만
type Repository struct {
	db DBTX
}

// NewRepository creates a new audit repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Record one persisted decision row
type Record struct {
	RunID            string               `json:"run_id"`
	StrikeID         uint64               `json:"strike_id"`
	Symbol           string               `json:"symbol"`
	StrikeType       contracts.StrikeType `json:"strike_type"`
	Verdict          contracts.Verdict    `json:"verdict"`
	FinalConfidence  float64              `json:"final_confidence"`
	FinalRisk        float64              `json:"final_risk"`
	PassRate         float64              `json:"pass_rate"`
	EarlyTermination bool                 `json:"early_termination"`
	StartedAt        time.Time            `json:"started_at"`
	DurationMs       float64              `json:"duration_ms"`
}

// RecordOf flattens a report into its audit row
func RecordOf(r *contracts.Report) Record {
	return Record{
		RunID:            r.RunID,
		StrikeID:         r.StrikeID,
		Symbol:           r.Symbol,
		StrikeType:       r.StrikeType,
		Verdict:          r.Decision.Verdict,
		FinalConfidence:  r.FinalConfidence,
		FinalRisk:        r.FinalRisk,
		PassRate:         r.PassRate,
		EarlyTermination: r.EarlyTermination,
		StartedAt:        r.StartedAt,
		DurationMs:       float64(r.Duration) / float64(time.Millisecond),
	}
}

// SaveReport persists a finished report; re-saving the same run is a no-op
func (r *Repository) SaveReport(ctx context.Context, report *contracts.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("report without run id")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	rec := RecordOf(report)
	query := `
		INSERT INTO audit.strike_decisions (
			run_id, strike_id, symbol, strike_type, verdict,
			final_confidence, final_risk, pass_rate, early_termination,
			started_at, duration_ms, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id) DO NOTHING
	`

	_, err = r.db.Exec(ctx, query,
		rec.RunID, int64(rec.StrikeID), rec.Symbol, string(rec.StrikeType), string(rec.Verdict),
		rec.FinalConfidence, rec.FinalRisk, rec.PassRate, rec.EarlyTermination,
		rec.StartedAt, rec.DurationMs, reportJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", rec.RunID, err)
	}
	return nil
}

// GetReport loads the full report of a run
func (r *Repository) GetReport(ctx context.Context, runID string) (*contracts.Report, error) {
	var reportJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT report FROM audit.strike_decisions WHERE run_id = $1`, runID,
	).Scan(&reportJSON)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", runID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report contracts.Report
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// Recent returns the latest decisions, newest first
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, strike_id, symbol, strike_type, verdict,
		       final_confidence, final_risk, pass_rate, early_termination,
		       started_at, duration_ms
		FROM audit.strike_decisions
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var strikeID int64
		var strikeType, verdict string
		if err := rows.Scan(
			&rec.RunID, &strikeID, &rec.Symbol, &strikeType, &verdict,
			&rec.FinalConfidence, &rec.FinalRisk, &rec.PassRate, &rec.EarlyTermination,
			&rec.StartedAt, &rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.StrikeID = uint64(strikeID)
		rec.StrikeType = contracts.StrikeType(strikeType)
		rec.Verdict = contracts.Verdict(verdict)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// =============================================================================
// Stats
// =============================================================================

// VerdictStats aggregate for one verdict
type VerdictStats struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgRisk       float64 `json:"avg_risk"`
}

// DecisionStats aggregate over a time window
type DecisionStats struct {
	From              time.Time                          `json:"from"`
	To                time.Time                          `json:"to"`
	Total             int                                `json:"total"`
	EarlyTerminations int                                `json:"early_terminations"`
	ByVerdict         map[contracts.Verdict]VerdictStats `json:"by_verdict"`
}

// ApprovalRate executable share of all decisions
func (s DecisionStats) ApprovalRate() float64 {
	if s.Total == 0 {
		return 0
	}
	ok := s.ByVerdict[contracts.VerdictApproved].Count + s.ByVerdict[contracts.VerdictConditionallyApproved].Count
	return float64(ok) / float64(s.Total)
}

func (s *DecisionStats) add(verdict contracts.Verdict, v VerdictStats, early int) {
	s.ByVerdict[verdict] = v
	s.Total += v.Count
	s.EarlyTerminations += early
}

// DecisionStats aggregates decisions with started_at in [from, to)
func (r *Repository) DecisionStats(ctx context.Context, from, to time.Time) (*DecisionStats, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid window: from %s must be before to %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	query := `
		SELECT verdict,
		       COUNT(*),
		       COALESCE(AVG(final_confidence), 0),
		       COALESCE(AVG(final_risk), 0),
		       COUNT(*) FILTER (WHERE early_termination)
		FROM audit.strike_decisions
		WHERE started_at >= $1 AND started_at < $2
		GROUP BY verdict
		ORDER BY verdict
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision stats: %w", err)
	}
	defer rows.Close()

	stats := &DecisionStats{
		From:      from,
		To:        to,
		ByVerdict: make(map[contracts.Verdict]VerdictStats),
	}
	for rows.Next() {
		var verdict string
		var v VerdictStats
		var early int
		if err := rows.Scan(&verdict, &v.Count, &v.AvgConfidence, &v.AvgRisk, &early); err != nil {
			return nil, fmt.Errorf("failed to scan decision stats: %w", err)
		}
		stats.add(contracts.Verdict(verdict), v, early)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return stats, nil
}
