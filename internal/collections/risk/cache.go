package risk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"dca-workers/internal/collections"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
)

// VersionedModel is a model that can name the parameters it predicts with.
type VersionedModel interface {
	collections.Model
	Version() string
}

// CachedModel memoises predictions in Redis per (model version, amount, days).
// Redis failures fall through to the wrapped model.
type CachedModel struct {
	next   VersionedModel
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedModel(next VersionedModel, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedModel {
	return &CachedModel{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "risk-cache"}),
	}
}

func (m *CachedModel) cacheKey(amountDue decimal.Decimal, daysOverdue int) string {
	return fmt.Sprintf("risk:p:%s:%s:%d", m.next.Version(), amountDue.String(), daysOverdue)
}

func (m *CachedModel) PredictPayProbability(ctx context.Context, amountDue decimal.Decimal, daysOverdue int) (float64, error) {
	key := m.cacheKey(amountDue, daysOverdue)

	val, err := m.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if p, perr := strconv.ParseFloat(val, 64); perr == nil {
			metrics.ModelCacheLookups.WithLabelValues("hit").Inc()
			return p, nil
		}
		metrics.ModelCacheLookups.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.ModelCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.ModelCacheLookups.WithLabelValues("error").Inc()
		m.logger.Warn("prediction cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	p, err := m.next.PredictPayProbability(ctx, amountDue, daysOverdue)
	if err != nil {
		return 0, err
	}

	if err := m.rdb.Set(ctx, key, strconv.FormatFloat(p, 'g', -1, 64), m.ttl).Err(); err != nil {
		m.logger.Warn("prediction cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return p, nil
}

func (m *CachedModel) Version() string {
	return m.next.Version()
}
