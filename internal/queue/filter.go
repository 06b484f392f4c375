package queue

import "intake-crm-workers/internal/models"

// FilterByQueue returns the leads belonging to id, keeping input order.
//
// The completed queue is selected from the whole list; every other queue is
// selected from the active set. An unknown id yields the active set, the same
// as All. Use Resolve to learn which queue was actually applied.
func FilterByQueue(leads []models.Lead, id ID) []models.Lead {
	target := Resolve(id)

	out := make([]models.Lead, 0)
	for _, lead := range leads {
		if Classify(lead).Has(target) {
			out = append(out, lead)
		}
	}
	return out
}

// Resolve maps unknown queue IDs onto All.
func Resolve(id ID) ID {
	if !id.IsKnown() {
		return All
	}
	return id
}
