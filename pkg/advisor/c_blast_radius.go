package advisor

import (
	"fmt"
	"sort"

	"github.com/testscope/testscope/pkg/impact"
)

// BlastRadiusCheck (C4) measures how much of the test suite the change
// drags in. A wide selection is not wrong, but it means the change sits on
// heavily depended-on files and the run saves little time.
type BlastRadiusCheck struct {
	WideRatio   float64 // selected/total ratio at or above which the selection counts as wide
	FullRatio   float64 // ratio at or above which the run is effectively the full suite
	MaxEvidence int     // top changed files listed as evidence
}

func (c *BlastRadiusCheck) Key() string  { return "blast_radius" }
func (c *BlastRadiusCheck) Name() string { return "Selection blast radius" }

func (c *BlastRadiusCheck) Evaluate(in *Input) Finding {
	finding := Finding{
		Key:      c.Key(),
		Name:     c.Name(),
		Severity: SeverityInfo,
	}

	total := impact.CountTests(in.Graph.Files())
	selected := len(in.Selection.AffectedTests)
	if total == 0 || selected == 0 {
		finding.Summary = "No tests were selected"
		return finding
	}

	ratio := float64(selected) / float64(total)
	finding.Summary = fmt.Sprintf("Selection covers %d of %d test files (%.0f%%)", selected, total, 100*ratio)

	// Evidence: top changed files by the number of test files they reach.
	type fileReach struct {
		file  string
		reach int
	}
	var reaches []fileReach
	for _, file := range in.Selection.ChangedFiles {
		reach := 0
		for dep := range in.Graph.Dependents(file) {
			if impact.IsTestFile(dep) {
				reach++
			}
		}
		if impact.IsTestFile(file) {
			reach++ // a changed test always selects itself
		}
		reaches = append(reaches, fileReach{file: file, reach: reach})
	}
	sort.Slice(reaches, func(i, j int) bool {
		if reaches[i].reach != reaches[j].reach {
			return reaches[i].reach > reaches[j].reach
		}
		return reaches[i].file < reaches[j].file
	})

	top := c.MaxEvidence
	if top <= 0 || top > len(reaches) {
		top = len(reaches)
	}
	for i := 0; i < top; i++ {
		r := reaches[i]
		finding.Evidence = append(finding.Evidence, EvidenceItem{
			Type:    EvidenceBlastRadius,
			Summary: fmt.Sprintf("%s reaches %d test file(s)", r.file, r.reach),
			File:    r.file,
			Value:   float64(r.reach),
		})
	}

	switch {
	case c.FullRatio > 0 && ratio >= c.FullRatio:
		finding.Severity = SeverityMedium
	case c.WideRatio > 0 && ratio >= c.WideRatio:
		finding.Severity = SeverityLow
	}

	return finding
}
