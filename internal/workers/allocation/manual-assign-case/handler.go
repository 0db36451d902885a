// internal/workers/allocation/manual-assign-case/handler.go
package manualassigncase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	TaskType = "manual-assign-case"
)

type CaseAssigner interface {
	ManualAssign(ctx context.Context, actor models.Actor, caseID, agencyID int64) (*models.Case, error)
}

type Handler struct {
	config     *Config
	assigner   CaseAssigner
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, assigner CaseAssigner, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		assigner:   assigner,
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
	if input.CaseID <= 0 || input.AgencyID <= 0 {
		return nil, apperr.NewInvalidInputError("caseId and agencyId are required")
	}

	cs, err := h.assigner.ManualAssign(ctx, input.Actor, input.CaseID, input.AgencyID)
	if err != nil {
		return nil, err
	}

	return &Output{
		Case:     *cs,
		AgencyID: input.AgencyID,
		CaseIDs:  []int64{cs.ID},
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
