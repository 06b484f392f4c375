// internal/workers/leads/notify-queue-backlog/models.go
package notifyqueuebacklog

import "intake-crm-workers/internal/models"

const (
	StatusSent     = "sent"
	StatusNone     = "none"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

type Input struct {
	Leads      []models.Lead  `json:"leads,omitempty"`
	Thresholds map[string]int `json:"thresholds,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"`
	Breaches       []Breach `json:"breaches"`
	EmailSent      bool     `json:"emailSent"`
	SMSSent        bool     `json:"smsSent"`
	CheckedAt      string   `json:"checkedAt"`
}

// Breach is a queue whose count exceeds its threshold.
type Breach struct {
	QueueID   string `json:"queueId"`
	Label     string `json:"label"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
}
