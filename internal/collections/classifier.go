package collections

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	LowRiskThreshold  = 0.70 // p above this is Low Risk
	HighRiskThreshold = 0.30 // p below this is High Risk
)

// defaultCommitReserve is the share of the job deadline kept for writing labels.
const defaultCommitReserve = 5 * time.Second

// Model predicts the probability that a debtor pays.
type Model interface {
	PredictPayProbability(ctx context.Context, amountDue decimal.Decimal, daysOverdue int) (float64, error)
}

// LabelFor maps a pay probability to a risk label. Both thresholds resolve to Moderate.
func LabelFor(p float64) (models.RiskLabel, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return "", fmt.Errorf("probability %v outside [0,1]", p)
	}
	switch {
	case p > LowRiskThreshold:
		return models.RiskLow, nil
	case p < HighRiskThreshold:
		return models.RiskHigh, nil
	default:
		return models.RiskModerate, nil
	}
}

type ClassifyResult struct {
	Updated        int                      `json:"updated"`
	Skipped        int                      `json:"skipped"`
	ModelAvailable bool                     `json:"modelAvailable"`
	Labels         map[models.RiskLabel]int `json:"labels,omitempty"`
}

// Classifier scores New cases. A nil model is the "no model loaded" state.
type Classifier struct {
	store          Store
	audit          *AuditLog
	model          Model
	predictTimeout time.Duration
	commitReserve  time.Duration
	logger         logger.Logger
}

func NewClassifier(store Store, audit *AuditLog, model Model, predictTimeout time.Duration, log logger.Logger) *Classifier {
	if predictTimeout <= 0 {
		predictTimeout = 2 * time.Second
	}
	return &Classifier{
		store:          store,
		audit:          audit,
		model:          model,
		predictTimeout: predictTimeout,
		commitReserve:  defaultCommitReserve,
		logger:         log.WithFields(map[string]interface{}{"component": "classifier"}),
	}
}

// ModelAvailable reports whether a model was configured.
func (c *Classifier) ModelAvailable() bool {
	return c.model != nil
}

// ClassifyNewCases labels every New case. Without a model it changes nothing and
// returns a zero result together with a MODEL_UNAVAILABLE error.
// Predictions run before the write transaction opens; a case whose prediction
// fails or times out is skipped. Predictions stop short of ctx's deadline, or
// when ctx is cancelled, and the labels gathered so far are still
// written. Cases never reached count as skipped.
func (c *Classifier) ClassifyNewCases(ctx context.Context, actor models.Actor) (*ClassifyResult, error) {
	if err := Authorize(actor, ActionClassifyCases); err != nil {
		return nil, err
	}

	result := &ClassifyResult{Labels: map[models.RiskLabel]int{}}
	if c.model == nil {
		c.logger.Warn("risk model unavailable, classification skipped", nil)
		return result, apperr.NewModelUnavailableError("no model configured")
	}
	result.ModelAvailable = true

	cases, err := c.store.ListCases(ctx, CaseFilter{Status: models.StatusNew})
	if err != nil {
		return nil, err
	}

	predictCtx, cancel := c.predictionWindow(ctx)
	defer cancel()

	labels := make(map[int64]models.RiskLabel, len(cases))
	order := make([]int64, 0, len(cases))
	for i, cs := range cases {
		if predictCtx.Err() != nil {
			left := len(cases) - i
			result.Skipped += left
			metrics.CasesSkipped.WithLabelValues("deadline").Add(float64(left))
			c.logger.Warn("prediction window closed, remaining cases skipped", map[string]interface{}{
				"scored":  len(order),
				"skipped": left,
			})
			break
		}

		label, err := c.predict(predictCtx, cs)
		if err != nil {
			result.Skipped++
			c.logger.Warn("case skipped", map[string]interface{}{
				"caseId": cs.ID,
				"error":  err.Error(),
			})
			continue
		}
		labels[cs.ID] = label
		order = append(order, cs.ID)
	}

	if len(order) == 0 {
		return result, nil
	}

	writeCtx := ctx
	if ctx.Err() != nil {
		var cancelWrite context.CancelFunc
		writeCtx, cancelWrite = context.WithTimeout(context.WithoutCancel(ctx), c.commitReserve)
		defer cancelWrite()
	}

	err = c.store.InTx(writeCtx, func(ctx context.Context, repo Repository) error {
		updated := 0
		counts := map[models.RiskLabel]int{}
		for _, id := range order {
			ok, err := repo.SetRiskLabel(ctx, id, labels[id])
			if err != nil {
				return err
			}
			if ok {
				updated++
				counts[labels[id]]++
			}
		}
		if updated == 0 {
			return nil
		}

		desc := fmt.Sprintf("Scored %d new cases", updated)
		if _, err := c.audit.Record(ctx, repo, nil, actor.ID, models.ActionRiskScoring, desc); err != nil {
			return err
		}
		result.Updated = updated
		result.Labels = counts
		return nil
	})
	if err != nil {
		return nil, err
	}

	for label, n := range result.Labels {
		metrics.CasesClassified.WithLabelValues(string(label)).Add(float64(n))
	}
	c.logger.Info("classification finished", map[string]interface{}{
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
	return result, nil
}

// predictionWindow ends before ctx's deadline, if it has one, leaving
// commitReserve or a quarter of the remaining time, whichever is smaller.
func (c *Classifier) predictionWindow(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	reserve := c.commitReserve
	if quarter := time.Until(deadline) / 4; quarter < reserve {
		reserve = quarter
	}
	return context.WithDeadline(ctx, deadline.Add(-reserve))
}

func (c *Classifier) predict(ctx context.Context, cs models.Case) (models.RiskLabel, error) {
	ctx, cancel := context.WithTimeout(ctx, c.predictTimeout)
	defer cancel()

	p, err := c.model.PredictPayProbability(ctx, cs.AmountDue, cs.DaysOverdue)
	if err != nil {
		metrics.CasesSkipped.WithLabelValues("prediction_failed").Inc()
		return "", err
	}

	label, err := LabelFor(p)
	if err != nil {
		metrics.CasesSkipped.WithLabelValues("invalid_probability").Inc()
		return "", err
	}
	return label, nil
}
