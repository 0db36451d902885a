package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"dca-workers/internal/common/logger"
)

// Job outcomes, decided by which command the handler issued for the job.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeThrown     = "error_thrown"
	OutcomeUnanswered = "unanswered"
)

// Observability records job throughput through an OTel meter. By default the
// meter is exported on the Prometheus registry served at /metrics.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	jobsInFlight  otelmetric.Int64UpDownCounter
}

// New builds the meter provider. Passing readers replaces the Prometheus
// exporter, which tests use with a metric.ManualReader. A failed exporter
// leaves a nil-safe Observability that records nothing.
func New(serviceName string, log logger.Logger, readers ...metric.Reader) *Observability {
	if len(readers) == 0 {
		exporter, err := prometheus.New()
		if err != nil {
			log.Error("prometheus exporter unavailable, job metrics disabled", map[string]interface{}{
				"error": err.Error(),
			})
			return &Observability{}
		}
		readers = []metric.Reader{exporter}
	}

	opts := []metric.Option{
		metric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	}
	for _, r := range readers {
		opts = append(opts, metric.WithReader(r))
	}
	provider := metric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	o := &Observability{meterProvider: provider}

	var err error
	if o.jobCounter, err = meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Jobs handled, by task type and outcome"),
	); err != nil {
		log.Warn("jobs.processed instrument unavailable", map[string]interface{}{"error": err.Error()})
	}
	if o.jobDuration, err = meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job handling time"),
		otelmetric.WithUnit("ms"),
	); err != nil {
		log.Warn("jobs.duration instrument unavailable", map[string]interface{}{"error": err.Error()})
	}
	if o.jobsInFlight, err = meter.Int64UpDownCounter("jobs.in_flight",
		otelmetric.WithDescription("Jobs currently being handled"),
	); err != nil {
		log.Warn("jobs.in_flight instrument unavailable", map[string]interface{}{"error": err.Error()})
	}
	return o
}

// JobStarted marks a job as in flight. Pair it with JobFinished.
func (o *Observability) JobStarted(ctx context.Context, taskType string) {
	if o == nil || o.jobsInFlight == nil {
		return
	}
	o.jobsInFlight.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("task_type", taskType)))
}

// JobFinished records one handled job with its outcome and duration.
func (o *Observability) JobFinished(ctx context.Context, taskType, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("outcome", outcome),
	)
	if o.jobsInFlight != nil {
		o.jobsInFlight.Add(ctx, -1, otelmetric.WithAttributes(attribute.String("task_type", taskType)))
	}
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
