// internal/workers/leads/notify-queue-backlog/config.go
package notifyqueuebacklog

import (
	"time"

	"intake-crm-workers/internal/common/observability"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	Recipients   []string
	PhoneNumbers []string
	// Thresholds maps queue IDs to the largest count that is not a backlog.
	Thresholds    map[string]int
	Timeout       time.Duration
	Observability *observability.Observability
}

func LoadConfig() *Config {
	return &Config{
		Thresholds: map[string]int{},
		Timeout:    30 * time.Second,
	}
}
