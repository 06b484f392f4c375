// internal/workers/leads/compute-queue-counts/models.go
package computequeuecounts

import "intake-crm-workers/internal/models"

// Input carries an optional leads list. Without one the shared snapshot is counted.
type Input struct {
	Leads   []models.Lead `json:"leads,omitempty"`
	Refresh bool          `json:"refresh,omitempty"`
}

type Output struct {
	QueueCounts map[string]int `json:"queueCounts"`
	TotalLeads  int            `json:"totalLeads"`
	Source      string         `json:"source"`
	ComputedAt  string         `json:"computedAt"` // RFC3339
}
