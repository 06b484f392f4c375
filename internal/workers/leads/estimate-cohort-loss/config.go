// internal/workers/leads/estimate-cohort-loss/config.go
package estimatecohortloss

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
		Timeout: 10 * time.Second,
	}
}
