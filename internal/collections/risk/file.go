package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"dca-workers/internal/common/metrics"
)

var errMissingProbability = errors.New("response has no pay_probability")

// Coefficients are the parameters of a logistic pay-probability model:
// p = 1 / (1 + e^-(intercept + amount*amountDue + days*daysOverdue)).
type Coefficients struct {
	Version   string  `json:"version"`
	Intercept float64 `json:"intercept"`
	Amount    float64 `json:"amount_due"`
	Days      float64 `json:"days_overdue"`
}

// FileModel evaluates Coefficients loaded from disk.
type FileModel struct {
	coef Coefficients
}

func NewFileModel(coef Coefficients) *FileModel {
	return &FileModel{coef: coef}
}

// LoadFileModel reads a coefficient file. A missing file is reported with an
// error wrapping os.ErrNotExist.
func LoadFileModel(path string) (*FileModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	var coef Coefficients
	if err := json.Unmarshal(data, &coef); err != nil {
		return nil, fmt.Errorf("parse model file %s: %w", path, err)
	}
	for _, v := range []float64{coef.Intercept, coef.Amount, coef.Days} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("model file %s has a non-finite coefficient", path)
		}
	}
	if coef.Version == "" {
		coef.Version = "unversioned"
	}
	return &FileModel{coef: coef}, nil
}

func (m *FileModel) PredictPayProbability(ctx context.Context, amountDue decimal.Decimal, daysOverdue int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() {
		metrics.ModelPredictionDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	}()

	amount, _ := amountDue.Float64()
	z := m.coef.Intercept + m.coef.Amount*amount + m.coef.Days*float64(daysOverdue)
	return 1 / (1 + math.Exp(-z)), nil
}

func (m *FileModel) Version() string {
	return "file:" + m.coef.Version
}
