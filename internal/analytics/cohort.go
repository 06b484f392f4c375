// Package analytics holds the derived figures behind the call-center
// dashboards that are not queue memberships.
package analytics

// CohortLoss is the number of leads a cohort lost over its observation window.
type CohortLoss struct {
	Lost int `json:"lostCount"`
	// Approximate is set when Lost was inferred rather than reported. The
	// inference assumes every lead missing from the last period was lost,
	// which double counts leads that were merely paused or reassigned.
	Approximate bool `json:"approximate"`
}

// EstimateCohortLoss prefers an explicit lost figure. Without one it falls
// back to cohortSize minus the last period's retained value, clamped to the
// range [0, cohortSize], and flags the result as approximate.
func EstimateCohortLoss(cohortSize int, periods []int, explicitLost *int) CohortLoss {
	if explicitLost != nil {
		return CohortLoss{Lost: clamp(*explicitLost, 0, max(cohortSize, *explicitLost))}
	}

	if cohortSize <= 0 {
		return CohortLoss{Approximate: true}
	}

	retained := cohortSize
	if len(periods) > 0 {
		retained = periods[len(periods)-1]
	}

	return CohortLoss{
		Lost:        clamp(cohortSize-retained, 0, cohortSize),
		Approximate: true,
	}
}

// RetentionRate returns the share of the cohort still present in the last
// period, in the range [0, 1].
func RetentionRate(cohortSize int, periods []int) float64 {
	if cohortSize <= 0 || len(periods) == 0 {
		return 0
	}
	retained := clamp(periods[len(periods)-1], 0, cohortSize)
	return float64(retained) / float64(cohortSize)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
