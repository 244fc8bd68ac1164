package advisor

import "fmt"

// NoCoverageCheck (C1) flags changed files that selected no tests at all.
type NoCoverageCheck struct {
	HighCount   int // uncovered count at or above which severity is HIGH
	MaxEvidence int // cap on evidence items
}

func (c *NoCoverageCheck) Key() string  { return "no_coverage" }
func (c *NoCoverageCheck) Name() string { return "Changed files without coverage" }

func (c *NoCoverageCheck) Evaluate(in *Input) Finding {
	finding := Finding{
		Key:      c.Key(),
		Name:     c.Name(),
		Severity: SeverityInfo,
	}

	uncovered := in.Selection.NoCoverage
	if len(uncovered) == 0 {
		finding.Summary = "Every changed file reached at least one test"
		return finding
	}

	for _, file := range uncovered {
		if c.MaxEvidence > 0 && len(finding.Evidence) >= c.MaxEvidence {
			break
		}
		finding.Evidence = append(finding.Evidence, EvidenceItem{
			Type:    EvidenceNoCoverage,
			Summary: fmt.Sprintf("%s reaches no test through the import graph", file),
			File:    file,
		})
	}

	finding.Severity = SeverityMedium
	if c.HighCount > 0 && len(uncovered) >= c.HighCount {
		finding.Severity = SeverityHigh
	}
	finding.Summary = fmt.Sprintf("%d changed file(s) selected no tests", len(uncovered))

	return finding
}
