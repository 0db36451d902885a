// Package risk provides the pay-probability models behind the classifier:
// a model-serving HTTP client, a local coefficient file and a Redis cache
// in front of either.
package risk

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperr "dca-workers/internal/common/errors"
	apihttp "dca-workers/internal/common/http"
	"dca-workers/internal/common/metrics"
)

type predictRequest struct {
	AmountDue   decimal.Decimal `json:"amount_due"`
	DaysOverdue int             `json:"days_overdue"`
}

type predictResponse struct {
	PayProbability *float64 `json:"pay_probability"`
	ModelVersion   string   `json:"model_version,omitempty"`
}

// HTTPModel asks a model server for predictions at POST {baseURL}/predict.
type HTTPModel struct {
	client  *apihttp.Client
	baseURL string
}

func NewHTTPModel(baseURL string, timeout time.Duration, maxRetries int) *HTTPModel {
	return &HTTPModel{
		client:  apihttp.NewClient(timeout, apihttp.WithRetries(maxRetries, 100*time.Millisecond)),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (m *HTTPModel) PredictPayProbability(ctx context.Context, amountDue decimal.Decimal, daysOverdue int) (float64, error) {
	start := time.Now()
	defer func() {
		metrics.ModelPredictionDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	}()

	var resp predictResponse
	err := m.client.PostJSON(ctx, m.baseURL+"/predict", predictRequest{
		AmountDue:   amountDue,
		DaysOverdue: daysOverdue,
	}, &resp)
	if err != nil {
		if apihttp.IsTimeout(err) {
			return 0, apperr.NewTimeoutError("risk-model", err)
		}
		return 0, apperr.NewPredictionFailedError(err)
	}
	if resp.PayProbability == nil {
		return 0, apperr.NewPredictionFailedError(errMissingProbability)
	}
	return *resp.PayProbability, nil
}

// Version is the cache namespace for this model.
func (m *HTTPModel) Version() string {
	return "http:" + m.baseURL
}
