// internal/workers/leads/index-lead-queues/models.go
package indexleadqueues

import (
	"time"

	"intake-crm-workers/internal/models"
)

type Input struct {
	Leads []models.Lead `json:"leads,omitempty"`
	// IncludeInactive also indexes leads that belong to no queue.
	IncludeInactive bool `json:"includeInactive,omitempty"`
}

type Output struct {
	BatchID string `json:"batchId"`
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// LeadDocument is one lead's queue membership as stored in the search index.
type LeadDocument struct {
	LeadID            string    `json:"leadId"`
	Name              string    `json:"name,omitempty"`
	Status            string    `json:"status"`
	ContactOutcome    string    `json:"contactOutcome"`
	FollowUpReason    string    `json:"followUpReason,omitempty"`
	Priority          string    `json:"priority,omitempty"`
	Source            string    `json:"source,omitempty"`
	ReferringProvider string    `json:"referringProvider,omitempty"`
	Queues            []string  `json:"queues"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
	BatchID           string    `json:"batchId"`
	IndexedAt         time.Time `json:"indexedAt"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "leadId":            {"type": "keyword"},
      "name":              {"type": "text"},
      "status":            {"type": "keyword"},
      "contactOutcome":    {"type": "keyword"},
      "followUpReason":    {"type": "keyword"},
      "priority":          {"type": "keyword"},
      "source":            {"type": "keyword"},
      "referringProvider": {"type": "keyword"},
      "queues":            {"type": "keyword"},
      "active":            {"type": "boolean"},
      "createdAt":         {"type": "date"},
      "batchId":           {"type": "keyword"},
      "indexedAt":         {"type": "date"}
    }
  }
}`

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
