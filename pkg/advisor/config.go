package advisor

// DefaultThresholds holds the default thresholds for all checks.
type DefaultThresholds struct {
	// Cap on evidence items attached to any single finding.
	MaxEvidence int

	// C1: No coverage
	NoCoverageHighCount int // uncovered file count at or above which severity is HIGH

	// C4: Blast radius
	BlastRadiusWideRatio   float64 // selected/total ratio at or above which the selection counts as wide
	BlastRadiusFullRatio   float64 // ratio at or above which the run is effectively the full suite
	BlastRadiusMaxEvidence int     // top changed files listed as evidence
}

// Defaults returns the default check thresholds.
func Defaults() DefaultThresholds {
	return DefaultThresholds{
		MaxEvidence: 10,

		// C1
		NoCoverageHighCount: 3,

		// C4
		BlastRadiusWideRatio:   0.5,
		BlastRadiusFullRatio:   0.9,
		BlastRadiusMaxEvidence: 3,
	}
}
