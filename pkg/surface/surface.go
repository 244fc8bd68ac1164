// Package surface defines output rendering for testscope selection runs.
// Implementations handle different output targets: terminal, GitHub Check Run, JSON.
package surface

import (
	"io"

	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/impact"
	"github.com/testscope/testscope/pkg/runner"
)

// RunReport bundles everything a renderer may show about one selection run.
// Selection is always set; the other fields are filled when available.
type RunReport struct {
	Selection    *impact.Result      `json:"selection"`
	Review       *advisor.Report     `json:"review,omitempty"`
	Explanations []impact.FileReport `json:"explanations,omitempty"`
	Outcome      *runner.Outcome     `json:"outcome,omitempty"`
}

// Renderer produces formatted output from a RunReport.
type Renderer interface {
	// Render writes the formatted report to the writer.
	Render(w io.Writer, report *RunReport) error
}

// CheckRunData holds the data needed to create a GitHub Check Run.
type CheckRunData struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`    // Markdown body
	Conclusion string `json:"conclusion"` // success, neutral, failure
}
