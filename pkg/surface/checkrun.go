package surface

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/runner"
)

// CheckRunRenderer produces GitHub Check Run data from a RunReport.
type CheckRunRenderer struct{}

func (r *CheckRunRenderer) Render(w io.Writer, report *RunReport) error {
	data := r.BuildCheckRunData(report)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// BuildCheckRunData creates the CheckRunData struct from a RunReport.
func (r *CheckRunRenderer) BuildCheckRunData(report *RunReport) CheckRunData {
	sel := report.Selection
	title := fmt.Sprintf("Testscope: %d of %d test(s) selected",
		len(sel.AffectedTests), totalTests(report))
	if report.Outcome != nil {
		title = fmt.Sprintf("Testscope: %d test(s) %s", len(sel.AffectedTests), report.Outcome.Status)
	}

	return CheckRunData{
		Title:      title,
		Summary:    buildMarkdownSummary(report),
		Conclusion: conclusionFor(report),
	}
}

// conclusionFor maps the run to a check conclusion. With no test run, the
// selection itself concludes: HIGH findings come back neutral so reviewers
// look at the report without the check blocking the merge.
func conclusionFor(report *RunReport) string {
	if report.Outcome != nil {
		switch report.Outcome.Status {
		case runner.StatusPassed:
			return "success"
		default:
			return "failure"
		}
	}
	if report.Review != nil && report.Review.Severity == advisor.SeverityHigh {
		return "neutral"
	}
	return "success"
}

func totalTests(report *RunReport) int {
	if report.Review != nil {
		return report.Review.RunStats.TotalTests
	}
	return len(report.Selection.AffectedTests)
}

func buildMarkdownSummary(report *RunReport) string {
	sel := report.Selection
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Testscope: %d affected test(s) from %d changed file(s)\n\n",
		len(sel.AffectedTests), len(sel.ChangedFiles)))

	// Run stats
	sb.WriteString("### Run Stats\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Changed Files | %d |\n", len(sel.ChangedFiles)))
	sb.WriteString(fmt.Sprintf("| Affected Tests | %d |\n", len(sel.AffectedTests)))
	sb.WriteString(fmt.Sprintf("| Uncovered Files | %d |\n", len(sel.NoCoverage)))
	if report.Review != nil {
		sb.WriteString(fmt.Sprintf("| Total Tests | %d |\n", report.Review.RunStats.TotalTests))
		sb.WriteString(fmt.Sprintf("| Graph Files | %d |\n", report.Review.RunStats.GraphFiles))
	}
	sb.WriteString("\n")

	// Affected tests (max 20)
	if len(sel.AffectedTests) > 0 {
		sb.WriteString("### Affected Tests\n\n")
		maxTests := 20
		if len(sel.AffectedTests) < maxTests {
			maxTests = len(sel.AffectedTests)
		}
		for i := 0; i < maxTests; i++ {
			sb.WriteString(fmt.Sprintf("- `%s`\n", sel.AffectedTests[i]))
		}
		if len(sel.AffectedTests) > maxTests {
			sb.WriteString(fmt.Sprintf("_... and %d more_\n", len(sel.AffectedTests)-maxTests))
		}
		sb.WriteString("\n")
	}

	// Findings (max 5)
	if report.Review != nil {
		count := 0
		for _, f := range report.Review.Findings {
			if f.Severity == advisor.SeverityInfo {
				continue
			}
			if count == 0 {
				sb.WriteString("### Findings\n\n")
			}
			if count >= 5 {
				sb.WriteString("_... and more findings_\n")
				break
			}
			sb.WriteString(fmt.Sprintf("- %s **%s** — %s\n", severityIcon(f.Severity), f.Name, f.Summary))

			// Show top 3 evidence items
			maxEv := 3
			if len(f.Evidence) < maxEv {
				maxEv = len(f.Evidence)
			}
			for i := 0; i < maxEv; i++ {
				sb.WriteString(fmt.Sprintf("  - %s\n", f.Evidence[i].Summary))
			}
			count++
		}
		if count > 0 {
			sb.WriteString("\n")
		}

		// Suggestions (max 3)
		if len(report.Review.Advice) > 0 {
			sb.WriteString("### Suggestions\n\n")
			maxAdvice := 3
			if len(report.Review.Advice) < maxAdvice {
				maxAdvice = len(report.Review.Advice)
			}
			for i := 0; i < maxAdvice; i++ {
				sa := report.Review.Advice[i]
				sb.WriteString(fmt.Sprintf("- **%s**: %s\n", sa.Title, sa.Description))
			}
			sb.WriteString("\n")
		}
	}

	if report.Outcome != nil {
		sb.WriteString("### Result\n\n")
		sb.WriteString(fmt.Sprintf("`%s`\n\n", report.Outcome.Command))
		sb.WriteString(fmt.Sprintf("**%s** in %s (exit %d)\n",
			strings.ToUpper(string(report.Outcome.Status)),
			report.Outcome.Duration.Round(time.Millisecond), report.Outcome.ExitCode))
	}

	return sb.String()
}

func severityIcon(sev advisor.Severity) string {
	switch sev {
	case advisor.SeverityHigh:
		return ":red_circle:"
	case advisor.SeverityMedium:
		return ":orange_circle:"
	case advisor.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":blue_circle:"
	}
}
