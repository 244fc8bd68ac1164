package surface

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/runner"
)

// TerminalRenderer renders a RunReport as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func severityColor(sev advisor.Severity) string {
	if noColor() {
		return ""
	}
	switch sev {
	case advisor.SeverityHigh:
		return colorRed
	case advisor.SeverityMedium:
		return colorYellow
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, report *RunReport) error {
	sel := report.Selection

	// Header
	fmt.Fprintf(w, "%s\n\n",
		bold(fmt.Sprintf("Testscope: %d affected test(s) from %d changed file(s)",
			len(sel.AffectedTests), len(sel.ChangedFiles))))

	if len(sel.ChangedFiles) == 0 {
		fmt.Fprintln(w, "No Python files changed.")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintln(w, "Changed files:")
	for _, f := range sel.ChangedFiles {
		fmt.Fprintf(w, "  %s\n", f)
	}
	fmt.Fprintln(w)

	if len(sel.AffectedTests) > 0 {
		fmt.Fprintln(w, "Affected tests:")
		for _, t := range sel.AffectedTests {
			fmt.Fprintf(w, "  %s\n", t)
		}
	} else {
		fmt.Fprintln(w, "No affected tests found.")
	}
	fmt.Fprintln(w)

	if len(sel.NoCoverage) > 0 {
		fmt.Fprintln(w, colored(
			fmt.Sprintf("Warning: %d changed file(s) have no test coverage:", len(sel.NoCoverage)),
			colorYellow))
		for _, f := range sel.NoCoverage {
			fmt.Fprintf(w, "  %s\n", f)
		}
		fmt.Fprintln(w)
	}

	// Per-file explanations, when the caller asked for them
	for _, ex := range report.Explanations {
		fmt.Fprintf(w, "%s\n", bold(ex.File))
		printFileList(w, "depends on", ex.Dependencies)
		printFileList(w, "depended on by", ex.Dependents)
		printFileList(w, "direct tests", ex.DirectTests)
		fmt.Fprintln(w)
	}

	if report.Review != nil {
		renderReview(w, report.Review)
	}

	if report.Outcome != nil {
		renderOutcome(w, report.Outcome)
	}

	return nil
}

func printFileList(w io.Writer, label string, files []string) {
	if len(files) == 0 {
		fmt.Fprintf(w, "  %s: %s\n", label, dim("(none)"))
		return
	}
	fmt.Fprintf(w, "  %s:\n", label)
	for _, f := range files {
		fmt.Fprintf(w, "    %s\n", f)
	}
}

func renderReview(w io.Writer, review *advisor.Report) {
	hasFindings := false
	for _, f := range review.Findings {
		if f.Severity == advisor.SeverityInfo {
			continue
		}
		if !hasFindings {
			fmt.Fprintln(w, "Findings:")
			hasFindings = true
		}

		sc := severityColor(f.Severity)
		fmt.Fprintf(w, "  %s %s — %s\n",
			colored("["+string(f.Severity)+"]", sc), bold(f.Name), f.Summary)

		// Show evidence (up to 5)
		maxEvidence := 5
		if len(f.Evidence) < maxEvidence {
			maxEvidence = len(f.Evidence)
		}
		for i := 0; i < maxEvidence; i++ {
			fmt.Fprintf(w, "         %s\n", dim(f.Evidence[i].Summary))
		}
		if len(f.Evidence) > 5 {
			fmt.Fprintf(w, "         %s\n", dim(fmt.Sprintf("... and %d more", len(f.Evidence)-5)))
		}
	}
	if hasFindings {
		fmt.Fprintln(w)
	}

	if len(review.Advice) > 0 {
		fmt.Fprintln(w, "Suggested actions:")
		for _, sa := range review.Advice {
			fmt.Fprintf(w, "  • %s\n", sa.Title)
			if sa.Description != "" {
				for _, line := range wrapText(sa.Description, 70) {
					fmt.Fprintf(w, "    %s\n", dim(line))
				}
			}
		}
		fmt.Fprintln(w)
	}
}

func renderOutcome(w io.Writer, oc *runner.Outcome) {
	fmt.Fprintf(w, "%s\n", dim("$ "+oc.Command))
	line := fmt.Sprintf("Run %s in %s", oc.Status, oc.Duration.Round(time.Millisecond))
	switch oc.Status {
	case runner.StatusPassed:
		fmt.Fprintln(w, colored(line, colorGreen))
	case runner.StatusFailed:
		fmt.Fprintln(w, colored(fmt.Sprintf("%s (exit %d)", line, oc.ExitCode), colorRed))
	default:
		fmt.Fprintln(w, colored(line, colorRed))
	}
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
