package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// checksCmd represents the checks command
var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "등록된 체크 목록",
	Long: `등록된 체크와 실행 wave를 출력합니다.

같은 wave의 체크는 병렬로 실행되고, wave는 의존성 순서대로 실행됩니다.

Example:
  go run ./cmd/strikegate checks
  go run ./cmd/strikegate checks --json`,
	RunE: runChecks,
}

var checksJSON bool

func init() {
	rootCmd.AddCommand(checksCmd)
	checksCmd.Flags().BoolVar(&checksJSON, "json", false, "print as JSON")
}

func runChecks(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd.Context(), serviceOptions{market: marketStatic, logStderr: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	infos := svc.orchestrator.Checks()
	if checksJSON {
		return PrintJSON(infos)
	}

	PrintHeader(fmt.Sprintf("Checks (policy=%s)", svc.policy.Meta.PolicyID))
	widths := []int{4, 26, 18, 9, 8, 10, 4}
	PrintTableHeader([]string{"ID", "Name", "Category", "Severity", "Required", "Depends", "Wave"}, widths)
	for _, c := range infos {
		deps := make([]string, 0, len(c.DependsOn))
		for _, d := range c.DependsOn {
			deps = append(deps, d.String())
		}
		required := "no"
		if c.Required {
			required = "yes"
		}
		PrintTableRow([]string{
			c.ID.String(),
			c.Name,
			string(c.Category),
			c.Severity.String(),
			required,
			strings.Join(deps, ","),
			fmt.Sprintf("%d", c.Wave),
		}, widths)
	}
	PrintDoubleSeparator()
	return nil
}
