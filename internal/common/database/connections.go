// internal/common/database/connections.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dca-workers/internal/common/config"
	"dca-workers/internal/common/logger"
)

// RetryPolicy bounds how long startup waits for a store to come up.
// Delay doubles after every failed attempt.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 15, Delay: 2 * time.Second}

// Connections holds the stores the workers run against. Postgres is always
// set; Redis and Elasticsearch are nil unless configured.
type Connections struct {
	Postgres      *PostgresClient
	Redis         *RedisClient
	Elasticsearch *ElasticsearchClient
}

// Connect dials every configured store, retrying each per policy. Postgres is
// required. Redis is used only when an address is set and Elasticsearch only
// when a URL or address list is set.
func Connect(ctx context.Context, cfg config.DatabaseConfig, policy RetryPolicy, log logger.Logger) (*Connections, error) {
	conns := &Connections{}

	err := withRetry(ctx, policy, "postgres", log, func() error {
		pg, err := NewPostgres(cfg.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		conns.Postgres = pg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Address != "" {
		err = withRetry(ctx, policy, "redis", log, func() error {
			rc, err := NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				rc.Close()
				return err
			}
			conns.Redis = rc
			return nil
		})
		if err != nil {
			conns.Close()
			return nil, err
		}
	}

	if cfg.Elasticsearch.Enabled() {
		err = withRetry(ctx, policy, "elasticsearch", log, func() error {
			es, err := NewElasticsearch(cfg.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			conns.Elasticsearch = es
			return nil
		})
		if err != nil {
			conns.Close()
			return nil, err
		}
	}

	log.Info("stores connected", map[string]interface{}{
		"redis":         conns.Redis != nil,
		"elasticsearch": conns.Elasticsearch != nil,
	})
	return conns, nil
}

// Cache returns the Redis client as a redis.Cmdable, or an untyped nil when
// Redis is not configured.
func (c *Connections) Cache() redis.Cmdable {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Client
}

// Check pings every connected store. The result has one entry per store,
// nil when healthy.
func (c *Connections) Check(ctx context.Context) map[string]error {
	results := map[string]error{}
	if c.Postgres != nil {
		results["postgres"] = c.Postgres.Ping(ctx)
	}
	if c.Redis != nil {
		results["redis"] = c.Redis.Ping(ctx)
	}
	if c.Elasticsearch != nil {
		results["elasticsearch"] = c.Elasticsearch.Ping(ctx)
	}
	return results
}

func (c *Connections) Close() error {
	var firstErr error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func withRetry(ctx context.Context, policy RetryPolicy, name string, log logger.Logger, op func() error) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := policy.Delay

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		log.Warn("store not reachable, retrying", map[string]interface{}{
			"store":       name,
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxAttempts": attempts,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s unreachable after %d attempts: %w", name, attempts, err)
}
