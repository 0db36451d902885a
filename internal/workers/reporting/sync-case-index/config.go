// internal/workers/reporting/sync-case-index/config.go
package synccaseindex

import (
	"time"

	"dca-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// BatchSize caps the documents sent in one bulk request.
	BatchSize int
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Config{Timeout: timeout, BatchSize: 500}
}
