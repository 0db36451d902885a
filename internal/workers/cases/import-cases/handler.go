// internal/workers/cases/import-cases/handler.go
package importcases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dca-workers/internal/collections"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	TaskType = "import-cases"
)

type CaseImporter interface {
	Import(ctx context.Context, actor models.Actor, source string, rows []collections.Row) (*collections.ImportResult, error)
}

type Handler struct {
	config     *Config
	importer   CaseImporter
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, importer CaseImporter, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		importer:   importer,
		errHandler: apperr.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job.Variables)
	if err != nil {
		h.failJob(client, job, apperr.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// parseInput keeps numeric cells as written so amounts are not rounded through float64.
func parseInput(variables string) (*Input, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(variables)))
	dec.UseNumber()

	var input Input
	if err := dec.Decode(&input); err != nil {
		return nil, err
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// execute completes with the failure fields set when a row is malformed: the
// valid prefix is already committed and the process decides what to do next.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	rows, err := decodeRows(input)
	if err != nil {
		return nil, err
	}

	result, err := h.importer.Import(ctx, input.Actor, input.FileName, rows)
	if err != nil && (result == nil || result.Failure == nil) {
		return nil, err
	}

	output := &Output{
		BatchID:   result.BatchID,
		Source:    result.Source,
		Committed: result.Committed,
		CaseIDs:   result.CaseIDs,
	}
	if f := result.Failure; f != nil {
		output.Failed = true
		output.FailedRow = f.Row
		output.FailedColumn = f.Column
		output.FailureReason = f.Reason
	}
	return output, nil
}

func decodeRows(input *Input) ([]collections.Row, error) {
	if input.CSV != "" {
		rows, err := collections.ReadCSV(strings.NewReader(input.CSV))
		if err != nil {
			return nil, apperr.NewInvalidInputError(fmt.Sprintf("read csv: %v", err))
		}
		return rows, nil
	}
	if input.Rows == nil {
		return nil, apperr.NewInvalidInputError("one of csv or rows is required")
	}

	rows := make([]collections.Row, len(input.Rows))
	for i, raw := range input.Rows {
		row := make(collections.Row, len(raw))
		for col, v := range raw {
			if v == nil {
				continue
			}
			row[strings.ToLower(strings.TrimSpace(col))] = cell(v)
		}
		rows[i] = row
	}
	return rows, nil
}

func cell(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
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
