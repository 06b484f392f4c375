// internal/workers/leads/index-lead-queues/config.go
package indexleadqueues

import (
	"time"

	"intake-crm-workers/internal/common/observability"
)

type Config struct {
	Index         string
	BatchSize     int
	Timeout       time.Duration
	Observability *observability.Observability
}

func LoadConfig() *Config {
	return &Config{
		Index:     "lead-queues",
		BatchSize: 500,
		Timeout:   60 * time.Second,
	}
}
