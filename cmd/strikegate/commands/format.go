package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wonny/strikegate/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a titled block header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintJSON writes v as indented JSON to stdout
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// verdictIcon maps a verdict to its status icon
func verdictIcon(v contracts.Verdict) string {
	switch v {
	case contracts.VerdictApproved:
		return "✅"
	case contracts.VerdictConditionallyApproved:
		return "⚠️ "
	default:
		return "❌"
	}
}

// PrintReport prints a decision report with a per-check table
func PrintReport(r *contracts.Report) {
	PrintHeader(fmt.Sprintf("Strike #%d  %s  (%s)", r.StrikeID, r.Symbol, r.StrikeType))
	PrintKeyValue("Run ID", r.RunID, 12)
	PrintKeyValue("Duration", r.Duration.String(), 12)
	PrintSeparator()

	widths := []int{4, 26, 9, 6, 8, 8, 10}
	PrintTableHeader([]string{"ID", "Check", "Severity", "Pass", "Mult", "Risk", "Time"}, widths)
	for _, res := range r.Results {
		o := res.Outcome
		pass := "✓"
		switch {
		case o.TimedOut:
			pass = "T/O"
		case o.Halt:
			pass = "HALT"
		case !o.Passed:
			pass = "✗"
		}
		PrintTableRow([]string{
			o.CheckID.String(),
			o.Name,
			o.Severity.String(),
			pass,
			fmt.Sprintf("%.3f", o.ConfidenceMultiplier),
			fmt.Sprintf("%.3f", o.RiskContribution),
			res.Duration.Round(time.Microsecond).String(),
		}, widths)
	}
	for _, id := range r.Skipped {
		PrintTableRow([]string{id.String(), "(skipped)", "", "", "", "", ""}, widths)
	}

	PrintSeparator()
	PrintKeyValue("Confidence", fmt.Sprintf("%.4f", r.FinalConfidence), 12)
	PrintKeyValue("Risk", fmt.Sprintf("%.4f", r.FinalRisk), 12)
	PrintKeyValue("Pass rate", fmt.Sprintf("%.1f%%", r.PassRate*100), 12)
	if r.CompositeInsight != nil {
		PrintKeyValue("Insight", fmt.Sprintf("%.4f", *r.CompositeInsight), 12)
	}
	if r.EarlyTermination {
		PrintKeyValue("Early stop", "yes", 12)
	}
	PrintSeparator()
	fmt.Printf("%s %s\n", verdictIcon(r.Decision.Verdict), r.Decision)

	if adj := r.Decision.Adjustments; adj != nil {
		PrintKeyValue("Size x", fmt.Sprintf("%.2f", adj.SizeMultiplier), 12)
		PrintKeyValue("Stop x", fmt.Sprintf("%.2f", adj.StopMultiplier), 12)
	}
	if len(r.Decision.Conditions) > 0 {
		fmt.Println("\nConditions:")
		PrintList(r.Decision.Conditions)
	}
	if len(r.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		PrintList(r.Recommendations)
	}
	PrintDoubleSeparator()
}
