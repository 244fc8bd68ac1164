// Package advisor reviews selection runs and produces explainable,
// evidence-backed findings about gaps in the import analysis.
package advisor

// Report is the complete output of reviewing a selection run.
// Immutable once computed.
type Report struct {
	RunID    string            `json:"run_id,omitempty"`
	Severity Severity          `json:"severity"` // worst severity across findings
	Findings []Finding         `json:"findings"`
	Advice   []SuggestedAction `json:"advice,omitempty"`
	RunStats RunStatsView      `json:"run_stats"`
}

// RunStatsView is a read-only summary of the run for display purposes.
type RunStatsView struct {
	ChangedFiles   int `json:"changed_files"`
	AffectedTests  int `json:"affected_tests"`
	UncoveredFiles int `json:"uncovered_files"`
	TotalTests     int `json:"total_tests"`
	GraphFiles     int `json:"graph_files"`
	GraphEdges     int `json:"graph_edges"`
}

// Finding is the output of a single advisory check.
type Finding struct {
	Key      string         `json:"key"`  // machine key: "no_coverage"
	Name     string         `json:"name"` // human name: "Changed files without coverage"
	Severity Severity       `json:"severity"`
	Summary  string         `json:"summary"`
	Evidence []EvidenceItem `json:"evidence,omitempty"`
}

// Severity indicates how concerning a finding is.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
	SeverityInfo   Severity = "INFO"
)

// EvidenceItem is a single piece of concrete evidence backing a finding.
type EvidenceItem struct {
	Type    EvidenceType `json:"type"`
	Summary string       `json:"summary"`         // human-readable explanation
	File    string       `json:"file,omitempty"`  // repo-relative path
	Line    int          `json:"line,omitempty"`  // 1-based, when the evidence points at a call site
	Value   float64      `json:"value,omitempty"` // numeric value (count, ratio, etc.)
}

// EvidenceType classifies what kind of evidence this is.
type EvidenceType string

const (
	EvidenceNoCoverage    EvidenceType = "NO_COVERAGE"
	EvidenceParseFailure  EvidenceType = "PARSE_FAILURE"
	EvidenceDynamicImport EvidenceType = "DYNAMIC_IMPORT"
	EvidenceBlastRadius   EvidenceType = "BLAST_RADIUS"
)

// SuggestedAction is a human- and machine-readable recommendation.
type SuggestedAction struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Files       []string `json:"files,omitempty"` // affected file paths
	Addresses   []string `json:"addresses"`       // check keys this addresses
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// worstSeverity returns the highest severity present among the findings.
func worstSeverity(findings []Finding) Severity {
	worst := SeverityInfo
	for _, f := range findings {
		if severityRank(f.Severity) > severityRank(worst) {
			worst = f.Severity
		}
	}
	return worst
}
