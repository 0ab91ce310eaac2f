package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/strikegate/internal/gatecfg"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "게이트 정책 조회/검증",
	Long: `게이트 정책(YAML)을 조회하거나 검증합니다.

Subcommands:
  show      - 적용되는 정책 전체 출력 (기본값 병합 후)
  hash      - 정책 SHA-256 (감사용)
  validate  - 정책 파일 검증

Example:
  go run ./cmd/strikegate policy show
  go run ./cmd/strikegate policy hash --policy config/policy.example.yaml
  go run ./cmd/strikegate policy validate config/policy.example.yaml`,
}

var (
	policyShowCmd = &cobra.Command{
		Use:   "show",
		Short: "정책 출력",
		RunE:  runPolicyShow,
	}

	policyHashCmd = &cobra.Command{
		Use:   "hash",
		Short: "정책 해시",
		RunE:  runPolicyHash,
	}

	policyValidateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "정책 파일 검증",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicyValidate,
	}
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyHashCmd)
	policyCmd.AddCommand(policyValidateCmd)
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	_, policy, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := gatecfg.Marshal(policy)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func runPolicyHash(cmd *cobra.Command, args []string) error {
	_, policy, err := loadConfig()
	if err != nil {
		return err
	}
	hash, err := gatecfg.Hash(policy)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	policy, _, err := gatecfg.Load(args[0])
	if err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess(fmt.Sprintf("policy %q (version %s) is valid", policy.Meta.PolicyID, policy.Meta.Version))
	return nil
}
