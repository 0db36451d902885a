package risk

import (
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"dca-workers/internal/collections"
	"dca-workers/internal/common/config"
	"dca-workers/internal/common/logger"
)

// FromConfig picks the model: the HTTP server when base_url is set, otherwise
// the coefficient file at path. It returns a nil model, without error, when
// neither is configured or the file does not exist, which the classifier
// reports as MODEL_UNAVAILABLE. rdb may be nil to disable caching.
func FromConfig(cfg config.ModelConfig, rdb redis.Cmdable, log logger.Logger) (collections.Model, error) {
	var model VersionedModel
	switch {
	case cfg.BaseURL != "":
		model = NewHTTPModel(cfg.BaseURL, config.GetDuration(cfg.Timeout), cfg.MaxRetries)
	case cfg.Path != "":
		fm, err := LoadFileModel(cfg.Path)
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("risk model file not found, running without a model", map[string]interface{}{
				"path": cfg.Path,
			})
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		model = fm
	default:
		log.Warn("no risk model configured", nil)
		return nil, nil
	}

	log.Info("risk model loaded", map[string]interface{}{"version": model.Version()})

	if rdb != nil && cfg.CacheTTL > 0 {
		return NewCachedModel(model, rdb, time.Duration(cfg.CacheTTL)*time.Second, log), nil
	}
	return model, nil
}
