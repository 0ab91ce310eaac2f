package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	policyFile string
	verbose    bool
	marketFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "strikegate",
	Short: "Strike gating pipeline - 주문 전 go/no-go 판정",
	Long: `Strike gate CLI

트레이드 제안(strike)을 7개 체크로 검증하고
Approved / Conditionally approved / Rejected 판정과 감사 리포트를 생성합니다.

Usage:
  go run ./cmd/strikegate [command]

Examples:
  go run ./cmd/strikegate validate --symbol XBTUSD --entry 60000 --target 63000 --stop 58500
  go run ./cmd/strikegate checks
  go run ./cmd/strikegate policy show
  go run ./cmd/strikegate api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "policy YAML (default: POLICY_FILE or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs to stderr)")
	rootCmd.PersistentFlags().StringVar(&marketFlag, "market", "kraken", "market data source (kraken|static)")
}
