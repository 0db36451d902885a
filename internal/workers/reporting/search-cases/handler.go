// internal/workers/reporting/search-cases/handler.go
package searchcases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dca-workers/internal/collections"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/common/search"
	"dca-workers/internal/models"
)

const (
	TaskType = "search-cases"
)

type CaseSearcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Handler struct {
	config     *Config
	searcher   CaseSearcher
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, searcher CaseSearcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		searcher:   searcher,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := collections.Authorize(input.Actor, collections.ActionSearchCases); err != nil {
		return nil, err
	}

	q, err := buildQuery(input)
	if err != nil {
		return nil, err
	}

	result, err := h.searcher.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("case search", map[string]interface{}{
		"total": result.Total,
		"took":  result.Took,
	})
	return &Output{Total: result.Total, Cases: result.Cases, Took: result.Took}, nil
}

// buildQuery scopes agencies to their own cases whatever agencyId they send.
func buildQuery(input *Input) (search.Query, error) {
	if input.Status != "" && !models.CaseStatus(input.Status).Valid() {
		return search.Query{}, apperr.NewInvalidInputError(fmt.Sprintf("unknown status %q", input.Status))
	}
	switch models.RiskLabel(input.Risk) {
	case "", models.RiskLow, models.RiskModerate, models.RiskHigh:
	default:
		return search.Query{}, apperr.NewInvalidInputError(fmt.Sprintf("unknown risk label %q", input.Risk))
	}

	q := search.Query{
		Text:     input.Query,
		Status:   input.Status,
		Risk:     input.Risk,
		AgencyID: input.AgencyID,
		From:     input.From,
		Size:     input.Size,
	}
	if input.Actor.IsAgency() {
		q.AgencyID = input.Actor.ID
	}
	return q, nil
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
