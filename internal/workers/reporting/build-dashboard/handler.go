// internal/workers/reporting/build-dashboard/handler.go
package builddashboard

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
	TaskType = "build-dashboard"
)

type DashboardBuilder interface {
	Admin(ctx context.Context, actor models.Actor) (*collections.AdminDashboard, error)
	Agency(ctx context.Context, actor models.Actor) (*collections.AgencyDashboard, error)
}

type Handler struct {
	config     *Config
	dashboards DashboardBuilder
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, dashboards DashboardBuilder, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		dashboards: dashboards,
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

// execute picks the view from the actor's role; authorization stays in Dashboards.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	switch {
	case input.Actor.IsAdmin():
		view, err := h.dashboards.Admin(ctx, input.Actor)
		if err != nil {
			return nil, err
		}
		h.logger.Debug("admin dashboard built", map[string]interface{}{
			"cases":    len(view.Cases),
			"agencies": len(view.Agencies),
		})
		return &Output{View: ViewAdmin, Admin: view}, nil

	case input.Actor.IsAgency():
		view, err := h.dashboards.Agency(ctx, input.Actor)
		if err != nil {
			return nil, err
		}
		return &Output{View: ViewAgency, Agency: view}, nil

	default:
		return nil, apperr.NewUnauthorizedError(string(input.Actor.Role), input.Actor.ID, "dashboard")
	}
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
