// internal/workers/agencies/notify-agency/config.go
package notifyagency

import (
	"time"

	"dca-workers/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	AWSRegion    string
	Timeout      time.Duration
}

func LoadConfig(cfg config.NotificationConfig, wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		EmailEnabled: cfg.Email.Enabled,
		SMSEnabled:   cfg.SMS.Enabled,
		FromEmail:    cfg.Email.FromEmail,
		AWSRegion:    cfg.AWS.Region,
		Timeout:      timeout,
	}
}
