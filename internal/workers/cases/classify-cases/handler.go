// internal/workers/cases/classify-cases/handler.go
package classifycases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dca-workers/internal/collections"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	TaskType = "classify-cases"
)

type CaseClassifier interface {
	ClassifyNewCases(ctx context.Context, actor models.Actor) (*collections.ClassifyResult, error)
}

type Handler struct {
	config     *Config
	classifier CaseClassifier
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, classifier CaseClassifier, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		classifier: classifier,
		errHandler: apperr.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperr.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// execute reports a missing model in the output so the process can branch on
// modelAvailable instead of treating it as an incident.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.classifier.ClassifyNewCases(ctx, input.Actor)
	if errors.Is(err, apperr.ErrModelUnavailable) {
		h.logger.Warn("risk model unavailable, cases left unscored", nil)
		return &Output{ModelAvailable: false, Labels: map[string]int{}}, nil
	}
	if err != nil {
		return nil, err
	}

	labels := make(map[string]int, len(result.Labels))
	for label, n := range result.Labels {
		labels[string(label)] = n
	}

	return &Output{
		Updated:        result.Updated,
		Skipped:        result.Skipped,
		ModelAvailable: result.ModelAvailable,
		Labels:         labels,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperr.CodeOf(err))).Inc()
	h.errHandler.HandleJobError(context.Background(), client, job, err)
}
