package advisor

// DefaultChecks returns the standard set of advisory checks with default thresholds.
func DefaultChecks() []Check {
	t := Defaults()
	return []Check{
		&NoCoverageCheck{
			HighCount:   t.NoCoverageHighCount,
			MaxEvidence: t.MaxEvidence,
		},
		&ParseFailureCheck{
			MaxEvidence: t.MaxEvidence,
		},
		&DynamicImportCheck{
			MaxEvidence: t.MaxEvidence,
		},
		&BlastRadiusCheck{
			WideRatio:   t.BlastRadiusWideRatio,
			FullRatio:   t.BlastRadiusFullRatio,
			MaxEvidence: t.BlastRadiusMaxEvidence,
		},
	}
}
