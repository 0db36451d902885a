// internal/workers/cases/classify-cases/config.go
package classifycases

import (
	"time"

	"dca-workers/internal/common/config"
)

// Config bounds a whole classification batch; each prediction has its own
// timeout in the model config.
type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Config{Timeout: timeout}
}
