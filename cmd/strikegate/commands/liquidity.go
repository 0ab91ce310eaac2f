package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/internal/liquidity"
)

// liquidityCmd represents the liquidity command
var liquidityCmd = &cobra.Command{
	Use:   "liquidity [symbol]",
	Short: "심볼 유동성 점검",
	Long: `심볼의 현재 유동성 지표, 요건 충족 여부, 안전 포지션 크기와
예측기의 실행 권고를 출력합니다.

static 마켓은 --mid 가격 기준의 합성 호가를 사용합니다.

Example:
  go run ./cmd/strikegate liquidity XBTUSD --size 25000
  go run ./cmd/strikegate liquidity XBTUSD --market static --mid 60000 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runLiquidity,
}

var (
	liquiditySize    float64
	liquidityMid     float64
	liquidityJSON    bool
	liquidityTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(liquidityCmd)

	f := liquidityCmd.Flags()
	f.Float64Var(&liquiditySize, "size", 1000, "desired position size (USD)")
	f.Float64Var(&liquidityMid, "mid", 0, "mid price for the static market")
	f.BoolVar(&liquidityJSON, "json", false, "print as JSON")
	f.DurationVar(&liquidityTimeout, "timeout", 30*time.Second, "overall timeout")
}

// liquidityReport everything the command prints
type liquidityReport struct {
	Metrics      liquidity.Metrics           `json:"metrics"`
	Score        float64                     `json:"score"`
	Liquid       bool                        `json:"meets_requirements"`
	DesiredSize  float64                     `json:"desired_size"`
	SafeSize     float64                     `json:"safe_size"`
	Execute      bool                        `json:"execute"`
	Forecast     contracts.LiquidityForecast `json:"forecast"`
	NextOptimal  *time.Time                  `json:"next_optimal,omitempty"`
	WarmedSample bool                        `json:"warmed_samples"`
}

func runLiquidity(cmd *cobra.Command, args []string) error {
	symbol := args[0]

	ctx, cancel := context.WithTimeout(cmd.Context(), liquidityTimeout)
	defer cancel()

	svc, err := newService(ctx, serviceOptions{market: marketFlag, logStderr: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	if svc.static != nil && liquidityMid <= 0 {
		return fmt.Errorf("--mid is required with the static market")
	}
	svc.seedStatic(symbol, liquidityMid)

	rep, err := inspectLiquidity(ctx, svc, symbol, liquiditySize)
	if err != nil {
		return err
	}

	if liquidityJSON {
		return PrintJSON(rep)
	}
	printLiquidity(symbol, rep)
	return nil
}

// inspectLiquidity gathers monitor and predictor views of one symbol
func inspectLiquidity(ctx context.Context, svc *service, symbol string, size float64) (liquidityReport, error) {
	rep := liquidityReport{DesiredSize: size}

	m, err := svc.liquidity.Metrics(ctx, symbol)
	if err != nil {
		return rep, fmt.Errorf("liquidity metrics: %w", err)
	}
	rep.Metrics = m
	rep.Score = liquidity.Score(m)

	if rep.Liquid, err = svc.liquidity.VerifyLiquidity(ctx, symbol); err != nil {
		return rep, err
	}
	if rep.SafeSize, err = svc.liquidity.SafePositionSize(ctx, symbol, size); err != nil {
		return rep, err
	}

	// 샘플러가 아직 충분히 돌지 않았으면 현재 지표로 예열
	if svc.predictor.HistoryLen(symbol) < svc.policy.Liquidity.Predictor.MinHistoryPoints {
		if err := svc.warmPredictor(ctx, symbol); err != nil {
			return rep, err
		}
		rep.WarmedSample = true
	}

	if rep.Execute, rep.Forecast, err = svc.predictor.ShouldExecute(ctx, symbol, size); err != nil {
		return rep, err
	}
	if at, ok := svc.predictor.NextOptimalTime(symbol); ok {
		rep.NextOptimal = &at
	}
	return rep, nil
}

func printLiquidity(symbol string, r liquidityReport) {
	PrintHeader(fmt.Sprintf("Liquidity %s", symbol))
	PrintKeyValue("Score", fmt.Sprintf("%.3f", r.Score), 18)
	PrintKeyValue("24h volume", fmt.Sprintf("$%.0f", r.Metrics.Volume24hUSD), 18)
	PrintKeyValue("Depth bid/ask", fmt.Sprintf("$%.0f / $%.0f", r.Metrics.BidDepthUSD, r.Metrics.AskDepthUSD), 18)
	PrintKeyValue("Spread", fmt.Sprintf("%.4f%%", r.Metrics.SpreadPct), 18)
	PrintKeyValue("Makers", fmt.Sprintf("%d", r.Metrics.Makers), 18)
	PrintSeparator()

	if r.Liquid {
		PrintSuccess("liquidity requirements met")
	} else {
		PrintWarning("liquidity requirements not met")
	}
	PrintKeyValue("Safe size", fmt.Sprintf("$%.2f of $%.2f", r.SafeSize, r.DesiredSize), 18)
	PrintKeyValue("Forecast", fmt.Sprintf("%.3f (%s, %s)", r.Forecast.PredictedScore, r.Forecast.State, r.Forecast.RecommendedAction), 18)
	if r.WarmedSample {
		PrintInfo("predictor warmed with flat samples; forecast reflects current metrics only")
	}
	if len(r.Forecast.RiskFactors) > 0 {
		PrintList(r.Forecast.RiskFactors)
	}
	if r.NextOptimal != nil {
		PrintKeyValue("Next optimal", r.NextOptimal.UTC().Format(time.RFC3339), 18)
	}

	if r.Execute {
		PrintSuccess("execute")
	} else {
		PrintError("hold: predicted liquidity too low for this size")
	}
	PrintDoubleSeparator()
}
