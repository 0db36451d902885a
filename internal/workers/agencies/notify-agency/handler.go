// internal/workers/agencies/notify-agency/handler.go
package notifyagency

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dca-workers/internal/collections"
	"dca-workers/internal/common/aws"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	TaskType = "notify-agency"
)

type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, agency models.Agency, caseIDs []int64) ([]models.Notification, error)
}

type Handler struct {
	config     *Config
	reader     collections.Reader
	notifier   AssignmentNotifier
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, reader collections.Reader, notifier AssignmentNotifier, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		reader:     reader,
		notifier:   notifier,
		errHandler: apperr.NewErrorHandler(l),
		logger:     l,
	}
}

// NewSESNotifier builds the AWS backed notifier with the channels enabled in config.
func NewSESNotifier(ctx context.Context, config *Config, log logger.Logger) (*aws.Notifier, error) {
	if !config.EmailEnabled && !config.SMSEnabled {
		return aws.NewNotifier(nil, nil, log), nil
	}

	sesClient, snsClient, err := aws.NewClients(ctx, config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var email *aws.EmailSender
	if config.EmailEnabled {
		email = aws.NewEmailSender(sesClient, config.FromEmail)
	}
	var sms *aws.SMSSender
	if config.SMSEnabled {
		sms = aws.NewSMSSender(snsClient)
	}
	return aws.NewNotifier(email, sms, log), nil
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
	if err := collections.Authorize(input.Actor, collections.ActionNotifyAgency); err != nil {
		return nil, err
	}

	agency, err := h.reader.GetAgency(ctx, input.AgencyID)
	if err != nil {
		return nil, err
	}

	caseIDs := input.CaseIDs
	if len(caseIDs) == 0 {
		cases, err := h.reader.ListCases(ctx, collections.CaseFilter{
			AgencyID: agency.ID,
			Status:   models.StatusAssigned,
		})
		if err != nil {
			return nil, err
		}
		for _, cs := range cases {
			caseIDs = append(caseIDs, cs.ID)
		}
	}

	if len(caseIDs) == 0 {
		h.logger.Info("nothing to notify", map[string]interface{}{"agencyId": agency.ID})
		return &Output{Notifications: []models.Notification{}}, nil
	}

	notes, err := h.notifier.NotifyAssignment(ctx, *agency, caseIDs)
	if err != nil {
		return nil, err
	}

	sent := 0
	for _, n := range notes {
		if n.Status == models.NotificationSent {
			sent++
		}
	}
	return &Output{Notifications: notes, Sent: sent}, nil
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
