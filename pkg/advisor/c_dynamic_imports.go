package advisor

import (
	"fmt"
	"sort"
)

// DynamicImportCheck (C3) reports __import__ and importlib.import_module
// call sites. Modules loaded that way never become graph edges.
type DynamicImportCheck struct {
	MaxEvidence int // cap on evidence items
}

func (c *DynamicImportCheck) Key() string  { return "dynamic_imports" }
func (c *DynamicImportCheck) Name() string { return "Dynamic import call sites" }

func (c *DynamicImportCheck) Evaluate(in *Input) Finding {
	finding := Finding{
		Key:      c.Key(),
		Name:     c.Name(),
		Severity: SeverityInfo,
	}

	var files []string
	total := 0
	for file, calls := range in.Dynamic {
		if len(calls) == 0 {
			continue
		}
		files = append(files, file)
		total += len(calls)
	}
	if total == 0 {
		finding.Summary = "No dynamic imports detected"
		return finding
	}
	sort.Strings(files)

	for _, file := range files {
		if c.MaxEvidence > 0 && len(finding.Evidence) >= c.MaxEvidence {
			break
		}
		for _, call := range in.Dynamic[file] {
			if c.MaxEvidence > 0 && len(finding.Evidence) >= c.MaxEvidence {
				break
			}
			finding.Evidence = append(finding.Evidence, EvidenceItem{
				Type:    EvidenceDynamicImport,
				Summary: fmt.Sprintf("%s:%d calls %s", file, call.Line, call.Call),
				File:    file,
				Line:    call.Line,
			})
		}
	}

	finding.Severity = SeverityLow
	finding.Summary = fmt.Sprintf("%d dynamic import call site(s) across %d file(s)", total, len(files))

	return finding
}
