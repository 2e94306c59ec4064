package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kuhlman-labs/collab-report/internal/audit"
)

// summaryLines flattens a run into label/value pairs shared by both summaries
func summaryLines(result *audit.Result, published []Published) [][]string {
	lines := [][]string{
		{"Organization", result.Organization},
		{"Variant", string(result.Variant)},
		{"Window", result.From.Format(time.DateOnly) + " to " + result.To.Format(time.DateOnly)},
		{"Repositories", strconv.Itoa(result.Repositories)},
		{"Rows", strconv.Itoa(len(result.Rows))},
		{"Skipped repositories", strconv.Itoa(len(result.Skipped))},
		{"SAML SSO", strconv.FormatBool(result.SSOEnabled)},
		{"Linked identities", strconv.Itoa(result.SSOIdentities)},
	}
	if result.Variant.Extended() {
		lines = append(lines, []string{"Organization members", strconv.Itoa(result.Members)})
	}
	for _, p := range published {
		action := "created"
		if p.Updated {
			action = "updated"
		}
		lines = append(lines, []string{"Report (" + action + ")", p.Location + ":" + p.Path})
	}
	lines = append(lines, []string{"Duration", result.Duration.Round(time.Second).String()})
	return lines
}

// WriteSummary prints the run summary and any skipped repositories as tables
func WriteSummary(w io.Writer, result *audit.Result, published []Published) {
	fmt.Fprintf(w, "\nCollaborator report: %s\n\n", result.Organization)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.AppendBulk(summaryLines(result, published))
	table.Render()

	if len(result.Skipped) == 0 {
		return
	}

	fmt.Fprintf(w, "\nSkipped repositories\n\n")
	skipped := tablewriter.NewWriter(w)
	skipped.SetHeader([]string{"Repository", "Reason"})
	skipped.SetAutoWrapText(false)
	for _, s := range result.Skipped {
		skipped.Append([]string{s.Name, s.Reason})
	}
	skipped.Render()
}

// WriteStepSummary appends a markdown summary to the GitHub Actions step summary file
func WriteStepSummary(path string, result *audit.Result, published []Published) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step summary: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "## Collaborator report: %s\n\n", result.Organization)
	b.WriteString("| Metric | Value |\n| --- | --- |\n")
	for _, line := range summaryLines(result, published) {
		fmt.Fprintf(&b, "| %s | %s |\n", line[0], escapeCell(line[1]))
	}
	if len(result.Skipped) > 0 {
		b.WriteString("\n### Skipped repositories\n\n| Repository | Reason |\n| --- | --- |\n")
		for _, s := range result.Skipped {
			fmt.Fprintf(&b, "| %s | %s |\n", s.Name, escapeCell(s.Reason))
		}
	}
	b.WriteString("\n")

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write step summary: %w", err)
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
