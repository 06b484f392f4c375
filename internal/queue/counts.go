package queue

import "intake-crm-workers/internal/models"

// Counts maps every known queue to the number of leads it holds.
type Counts map[ID]int

// ComputeCounts classifies each lead once and tallies its memberships. The
// result always carries every queue ID, zero when nothing matched.
func ComputeCounts(leads []models.Lead) Counts {
	counts := make(Counts, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}

	for _, lead := range leads {
		m := Classify(lead)
		if m.Empty() {
			continue
		}
		for _, id := range ids {
			if m.Has(id) {
				counts[id]++
			}
		}
	}

	return counts
}

// Get returns the count for id, zero for unknown IDs.
func (c Counts) Get(id ID) int {
	return c[id]
}

// AsStrings keys the counts by plain strings for JSON job variables.
func (c Counts) AsStrings() map[string]int {
	out := make(map[string]int, len(c))
	for id, n := range c {
		out[string(id)] = n
	}
	return out
}
