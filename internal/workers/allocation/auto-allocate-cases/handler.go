// internal/workers/allocation/auto-allocate-cases/handler.go
package autoallocatecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dca-workers/internal/collections"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	TaskType = "auto-allocate-cases"
)

type AutoAllocator interface {
	AutoAllocate(ctx context.Context, actor models.Actor) (*collections.AllocationResult, error)
}

type Handler struct {
	config     *Config
	allocator  AutoAllocator
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, allocator AutoAllocator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		allocator:  allocator,
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
	result, err := h.allocator.AutoAllocate(ctx, input.Actor)
	if err != nil {
		return nil, err
	}

	return &Output{
		Assigned:     result.Assigned,
		AgenciesUsed: result.AgenciesUsed,
		Batches:      groupByAgency(result.Assignments),
	}, nil
}

// groupByAgency orders batches by agency id and keeps case order within each.
func groupByAgency(assignments []collections.Assignment) []AgencyBatch {
	index := make(map[int64]int)
	batches := []AgencyBatch{}
	for _, a := range assignments {
		i, ok := index[a.AgencyID]
		if !ok {
			i = len(batches)
			index[a.AgencyID] = i
			batches = append(batches, AgencyBatch{AgencyID: a.AgencyID})
		}
		batches[i].CaseIDs = append(batches[i].CaseIDs, a.CaseID)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].AgencyID < batches[j].AgencyID })
	return batches
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
