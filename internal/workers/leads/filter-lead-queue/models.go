// internal/workers/leads/filter-lead-queue/models.go
package filterleadqueue

import "intake-crm-workers/internal/models"

type Input struct {
	QueueID string        `json:"queueId"`
	Leads   []models.Lead `json:"leads,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// Output publishes the subset as queueLeads so later jobs reading "leads"
// from the process scope keep using the full snapshot.
type Output struct {
	QueueID         string        `json:"queueId"`
	ResolvedQueueID string        `json:"resolvedQueueId"`
	QueueLeads      []models.Lead `json:"queueLeads"`
	Count           int           `json:"count"`
	Truncated       bool          `json:"truncated"`
}
