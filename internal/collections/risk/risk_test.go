package risk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-workers/internal/common/config"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type countingModel struct {
	p     float64
	err   error
	calls int
}

func (m *countingModel) PredictPayProbability(context.Context, decimal.Decimal, int) (float64, error) {
	m.calls++
	return m.p, m.err
}

func (m *countingModel) Version() string { return "test-v1" }

// ==========================
// HTTPModel
// ==========================

func TestHTTPModel_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1500.25", req["amount_due"])
		assert.Equal(t, float64(120), req["days_overdue"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pay_probability": 0.21, "model_version": "rf-3"}`))
	}))
	defer server.Close()

	m := NewHTTPModel(server.URL+"/", time.Second, 0)
	p, err := m.PredictPayProbability(context.Background(), decimal.RequireFromString("1500.25"), 120)
	require.NoError(t, err)
	assert.InDelta(t, 0.21, p, 1e-9)
	assert.Equal(t, "http:"+server.URL, m.Version())
}

func TestHTTPModel_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"pay_probability": 0.8}`))
	}))
	defer server.Close()

	m := NewHTTPModel(server.URL, time.Second, 2)
	p, err := m.PredictPayProbability(context.Background(), decimal.NewFromInt(10), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.8, p)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPModel_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode apperr.ErrorCode
	}{
		{
			name: "bad request is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantCode: apperr.ErrCodePredictionFailed,
		},
		{
			name: "missing probability",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			wantCode: apperr.ErrCodePredictionFailed,
		},
		{
			name: "slow server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte(`{"pay_probability": 0.5}`))
			},
			wantCode: apperr.ErrCodeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			m := NewHTTPModel(server.URL, 50*time.Millisecond, 0)
			_, err := m.PredictPayProbability(context.Background(), decimal.NewFromInt(1), 1)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
		})
	}
}

// ==========================
// FileModel
// ==========================

func writeModelFile(t *testing.T, coef Coefficients) string {
	path := filepath.Join(t.TempDir(), "model.json")
	data, err := json.Marshal(coef)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileModel_Logistic(t *testing.T) {
	path := writeModelFile(t, Coefficients{Version: "2026-01", Intercept: 2, Amount: -0.001, Days: -0.02})

	m, err := LoadFileModel(path)
	require.NoError(t, err)
	assert.Equal(t, "file:2026-01", m.Version())

	ctx := context.Background()
	p0, err := m.PredictPayProbability(ctx, decimal.Zero, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.8808, p0, 1e-4)

	fresh, _ := m.PredictPayProbability(ctx, decimal.NewFromInt(100), 5)
	stale, _ := m.PredictPayProbability(ctx, decimal.NewFromInt(100), 300)
	assert.Greater(t, fresh, stale)
	assert.True(t, stale >= 0 && fresh <= 1)
}

func TestLoadFileModel_Errors(t *testing.T) {
	_, err := LoadFileModel(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))
	_, err = LoadFileModel(bad)
	assert.Error(t, err)
}

// ==========================
// CachedModel
// ==========================

func TestCachedModel_MissThenHit(t *testing.T) {
	mr, rdb := setupRedis(t)
	inner := &countingModel{p: 0.42}
	m := NewCachedModel(inner, rdb, time.Minute, &testLogger{t})

	ctx := context.Background()
	amount := decimal.RequireFromString("99.90")

	p, err := m.PredictPayProbability(ctx, amount, 12)
	require.NoError(t, err)
	assert.Equal(t, 0.42, p)

	p, err = m.PredictPayProbability(ctx, amount, 12)
	require.NoError(t, err)
	assert.Equal(t, 0.42, p)
	assert.Equal(t, 1, inner.calls)

	key := "risk:p:test-v1:99.9:12"
	assert.True(t, mr.Exists(key))
	ttl := mr.TTL(key)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestCachedModel_ErrorsAreNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	inner := &countingModel{err: errors.New("model down")}
	m := NewCachedModel(inner, rdb, time.Minute, &testLogger{t})

	_, err := m.PredictPayProbability(context.Background(), decimal.NewFromInt(1), 1)
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCachedModel_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingModel{p: 0.1}
	m := NewCachedModel(inner, db, time.Minute, &testLogger{t})

	key := "risk:p:test-v1:5:3"
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, "0.1", time.Minute).SetErr(errors.New("connection refused"))

	p, err := m.PredictPayProbability(context.Background(), decimal.NewFromInt(5), 3)
	require.NoError(t, err)
	assert.Equal(t, 0.1, p)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedModel_CorruptEntryIsRecomputed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingModel{p: 0.9}
	m := NewCachedModel(inner, db, time.Minute, &testLogger{t})

	key := "risk:p:test-v1:5:3"
	mock.ExpectGet(key).SetVal("garbage")
	mock.ExpectSet(key, "0.9", time.Minute).SetVal("OK")

	p, err := m.PredictPayProbability(context.Background(), decimal.NewFromInt(5), 3)
	require.NoError(t, err)
	assert.Equal(t, 0.9, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// FromConfig
// ==========================

func TestFromConfig(t *testing.T) {
	log := &testLogger{t}

	m, err := FromConfig(config.ModelConfig{}, nil, log)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = FromConfig(config.ModelConfig{Path: filepath.Join(t.TempDir(), "none.json")}, nil, log)
	require.NoError(t, err)
	assert.Nil(t, m)

	path := writeModelFile(t, Coefficients{Version: "x"})
	m, err = FromConfig(config.ModelConfig{Path: path}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &FileModel{}, m)

	_, rdb := setupRedis(t)
	m, err = FromConfig(config.ModelConfig{Path: path, CacheTTL: 60}, rdb, log)
	require.NoError(t, err)
	assert.IsType(t, &CachedModel{}, m)

	m, err = FromConfig(config.ModelConfig{BaseURL: "http://model:8000", Path: path, Timeout: 500}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &HTTPModel{}, m)
}
