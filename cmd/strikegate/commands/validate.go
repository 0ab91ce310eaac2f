package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/strikegate/internal/contracts"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Strike 1건 검증",
	Long: `Strike 1건을 7개 체크로 검증하고 판정 리포트를 출력합니다.

입력:
- --file: JSON 파일 ("-" 이면 stdin)
- 또는 --symbol/--entry/--target/--stop 등 개별 플래그

시장 데이터:
- kraken: Kraken public REST (기본)
- static: entry 가격 기준 합성 호가 (오프라인)

Example:
  go run ./cmd/strikegate validate --symbol XBTUSD --entry 60000 --target 63000 --stop 58500
  go run ./cmd/strikegate validate --market static --file strike.json --json
  cat strike.json | go run ./cmd/strikegate validate --file -`,
	RunE: runValidate,
}

var (
	validateFile         string
	validateJSON         bool
	validateAudit        bool
	validateWarmup       bool
	validateFailOnReject bool
	validateStrike       contracts.Strike
	validateType         string
	validateTimeout      time.Duration
)

func init() {
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringVar(&validateFile, "file", "", "strike JSON file (- for stdin)")
	f.BoolVar(&validateJSON, "json", false, "print the full report as JSON")
	f.BoolVar(&validateAudit, "audit", false, "persist the report to the audit table (DATABASE_URL)")
	f.BoolVar(&validateWarmup, "warmup", true, "seed the liquidity predictor from current metrics")
	f.BoolVar(&validateFailOnReject, "fail-on-reject", false, "exit non-zero when the strike is rejected")
	f.DurationVar(&validateTimeout, "timeout", 30*time.Second, "overall validation timeout")

	f.Uint64Var(&validateStrike.ID, "id", 0, "strike id (default: random)")
	f.StringVar(&validateStrike.Symbol, "symbol", "", "symbol (예: XBTUSD)")
	f.StringVar(&validateType, "type", string(contracts.StrikeMacroMomentum), "strike type")
	f.Float64Var(&validateStrike.EntryPrice, "entry", 0, "entry price")
	f.Float64Var(&validateStrike.TargetPrice, "target", 0, "target price")
	f.Float64Var(&validateStrike.StopLoss, "stop", 0, "stop loss price")
	f.Float64Var(&validateStrike.Confidence, "confidence", 0.95, "base confidence (0~1)")
	f.Float64Var(&validateStrike.ExpectedReturn, "expected-return", 0, "expected return (0.02 = 2%, default: from target)")
	f.Float64Var(&validateStrike.PositionSize, "size", 1000, "position size (USD)")
}

// readStrike reads the strike from --file or the individual flags
func readStrike(in io.Reader) (contracts.Strike, error) {
	var s contracts.Strike
	if validateFile != "" {
		var r io.Reader = in
		if validateFile != "-" {
			f, err := os.Open(validateFile)
			if err != nil {
				return s, fmt.Errorf("open strike file: %w", err)
			}
			defer f.Close()
			r = f
		}
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return s, fmt.Errorf("decode strike: %w", err)
		}
	} else {
		s = validateStrike
		s.Type = contracts.StrikeType(validateType)
		if s.ExpectedReturn == 0 && s.EntryPrice > 0 {
			s.ExpectedReturn = (s.TargetPrice - s.EntryPrice) / s.EntryPrice
		}
	}
	if s.ID == 0 {
		s.ID = uint64(uuid.New().ID())
	}
	return s, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	strike, err := readStrike(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), validateTimeout)
	defer cancel()

	svc, err := newService(ctx, serviceOptions{
		market:    marketFlag,
		withAudit: validateAudit,
		logStderr: true,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.seedStatic(strike.Symbol, strike.EntryPrice)
	if validateWarmup && strike.Symbol != "" {
		if err := svc.warmPredictor(ctx, strike.Symbol); err != nil {
			svc.log.WithError(err).WithField("symbol", strike.Symbol).Warn("Predictor warmup failed")
		}
	}

	report := svc.orchestrator.Evaluate(ctx, strike)

	if validateJSON {
		if err := PrintJSON(report); err != nil {
			return err
		}
	} else {
		PrintReport(report)
	}

	if validateFailOnReject && !report.Decision.Executable() {
		return fmt.Errorf("strike rejected: %s", report.Decision)
	}
	return nil
}
