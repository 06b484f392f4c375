// internal/workers/leads/filter-lead-queue/config.go
package filterleadqueue

import (
	"time"

	"intake-crm-workers/internal/common/observability"
)

type Config struct {
	// MaxLeads caps the leads returned when the job sets no limit. Zero means unbounded.
	MaxLeads      int
	Timeout       time.Duration
	Observability *observability.Observability
}

func LoadConfig() *Config {
	return &Config{
		MaxLeads: 500,
		Timeout:  30 * time.Second,
	}
}
