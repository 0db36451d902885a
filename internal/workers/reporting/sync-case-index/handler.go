// internal/workers/reporting/sync-case-index/handler.go
package synccaseindex

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
	"dca-workers/internal/models"
)

const (
	TaskType = "sync-case-index"
)

type CaseLister interface {
	ListCases(ctx context.Context, filter collections.CaseFilter) ([]models.Case, error)
}

type CaseIndexer interface {
	IndexCases(ctx context.Context, cases []models.Case) (int, error)
	Index() string
}

type Handler struct {
	config     *Config
	cases      CaseLister
	index      CaseIndexer
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, cases CaseLister, index CaseIndexer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		cases:      cases,
		index:      index,
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
	if err := collections.Authorize(input.Actor, collections.ActionIndexCases); err != nil {
		return nil, err
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, apperr.NewInvalidInputError(fmt.Sprintf("unknown status %q", input.Status))
	}

	cases, err := h.cases.ListCases(ctx, collections.CaseFilter{Status: input.Status})
	if err != nil {
		return nil, err
	}

	indexed := 0
	for start := 0; start < len(cases); start += h.config.BatchSize {
		end := start + h.config.BatchSize
		if end > len(cases) {
			end = len(cases)
		}
		n, err := h.index.IndexCases(ctx, cases[start:end])
		if err != nil {
			return nil, err
		}
		indexed += n
	}

	if indexed < len(cases) {
		h.logger.Warn("some cases were not indexed", map[string]interface{}{
			"indexed": indexed,
			"total":   len(cases),
		})
	}

	return &Output{Indexed: indexed, Total: len(cases), Index: h.index.Index()}, nil
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
