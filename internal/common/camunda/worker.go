package camunda

import (
	"context"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"dca-workers/internal/common/config"
	"dca-workers/internal/common/errors"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/common/observability"
)

// HandlerFunc is the job handler signature every worker package exposes.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// InputValidator checks a job's variables before its handler runs.
type InputValidator interface {
	ValidateJob(taskType, variables string) error
}

// Runner opens job workers against one Zeebe client and closes them together.
type Runner struct {
	client zbc.Client
	obs    *observability.Observability
	logger *zap.Logger

	validator InputValidator
	errs      *errors.ErrorHandler

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewRunner(client zbc.Client, obs *observability.Observability, logger *zap.Logger) *Runner {
	return &Runner{
		client:  client,
		obs:     obs,
		logger:  logger,
		workers: make(map[string]worker.JobWorker),
	}
}

// WithInputValidation rejects jobs whose variables fail validation, reporting
// them through errs instead of calling the handler.
func (r *Runner) WithInputValidation(v InputValidator, errs *errors.ErrorHandler) *Runner {
	r.validator = v
	r.errs = errs
	return r
}

// Start opens a worker for taskType unless it is disabled in config.
func (r *Runner) Start(taskType string, wcfg config.WorkerConfig, handler HandlerFunc) {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	if r.validator != nil {
		handler = Validate(taskType, r.validator, r.errs, handler)
	}

	jw := r.client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, r.obs, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	r.mu.Lock()
	r.workers[taskType] = jw
	r.mu.Unlock()

	r.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

// Count returns the number of open workers.
func (r *Runner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Stop closes every worker and waits for in-flight jobs.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for taskType, jw := range r.workers {
		r.logger.Info("stopping worker", zap.String("taskType", taskType))
		jw.Close()
		jw.AwaitClose()
	}
	r.workers = make(map[string]worker.JobWorker)
}

// outcomeClient notes which command a handler issued for its job.
type outcomeClient struct {
	worker.JobClient
	outcome string
}

func (c *outcomeClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.outcome = observability.OutcomeCompleted
	return c.JobClient.NewCompleteJobCommand()
}

func (c *outcomeClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.outcome = observability.OutcomeFailed
	return c.JobClient.NewFailJobCommand()
}

func (c *outcomeClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.outcome = observability.OutcomeThrown
	return c.JobClient.NewThrowErrorCommand()
}

// Instrument records active jobs, handling latency and the job outcome around
// a handler.
func Instrument(taskType string, obs *observability.Observability, next HandlerFunc) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		ctx := context.Background()
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		obs.JobStarted(ctx, taskType)

		oc := &outcomeClient{JobClient: client, outcome: observability.OutcomeUnanswered}
		defer func() {
			elapsed := time.Since(start)
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			obs.JobFinished(ctx, taskType, oc.outcome, elapsed)
		}()

		next(oc, job)
	}
}

// Validate runs v before next and hands rejected jobs to errs.
func Validate(taskType string, v InputValidator, errs *errors.ErrorHandler, next HandlerFunc) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		if err := v.ValidateJob(taskType, job.Variables); err != nil {
			metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.CodeOf(err))).Inc()
			errs.HandleJobError(context.Background(), client, job, err)
			return
		}
		next(client, job)
	}
}
