// internal/workers/cases/import-cases/config.go
package importcases

import (
	"time"

	"dca-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Config{Timeout: timeout}
}
