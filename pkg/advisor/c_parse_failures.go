package advisor

import "fmt"

// ParseFailureCheck (C2) flags files the extractor skipped over syntax errors.
// Skipped files contribute no import edges, so tests that depend on them can
// be missed.
type ParseFailureCheck struct {
	MaxEvidence int // cap on evidence items
}

func (c *ParseFailureCheck) Key() string  { return "parse_failures" }
func (c *ParseFailureCheck) Name() string { return "Files skipped by the parser" }

func (c *ParseFailureCheck) Evaluate(in *Input) Finding {
	finding := Finding{
		Key:      c.Key(),
		Name:     c.Name(),
		Severity: SeverityInfo,
	}

	if len(in.Warnings) == 0 {
		finding.Summary = "All scanned files parsed cleanly"
		return finding
	}

	for _, w := range in.Warnings {
		if c.MaxEvidence > 0 && len(finding.Evidence) >= c.MaxEvidence {
			break
		}
		finding.Evidence = append(finding.Evidence, EvidenceItem{
			Type:    EvidenceParseFailure,
			Summary: w,
		})
	}

	finding.Severity = SeverityMedium
	finding.Summary = fmt.Sprintf("%d file(s) were skipped and contributed no import edges", len(in.Warnings))

	return finding
}
