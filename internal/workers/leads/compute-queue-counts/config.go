// internal/workers/leads/compute-queue-counts/config.go
package computequeuecounts

import (
	"time"

	"intake-crm-workers/internal/common/observability"
)

type Config struct {
	Timeout       time.Duration
	Observability *observability.Observability
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
