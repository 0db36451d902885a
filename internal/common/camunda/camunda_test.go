package camunda

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dca-workers/internal/common/config"
	"dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/common/observability"
)

func TestInstrument_CallsHandlerAndTracksActiveJobs(t *testing.T) {
	called := false
	var activeDuring float64

	h := Instrument("test-task", nil, func(client worker.JobClient, job entities.Job) {
		called = true
		activeDuring = testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("test-task"))
	})

	h(nil, entities.Job{})

	assert.True(t, called)
	assert.Equal(t, float64(1), activeDuring)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("test-task")))
}

type stubValidator struct {
	seen []string
}

func (v *stubValidator) ValidateJob(taskType, variables string) error {
	v.seen = append(v.seen, taskType+" "+variables)
	return nil
}

func TestValidate_PassesValidJobsThrough(t *testing.T) {
	v := &stubValidator{}
	called := false

	h := Validate("update-case-status", v, nil, func(client worker.JobClient, job entities.Job) {
		called = true
	})
	h(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: `{"caseId":101}`}})

	assert.True(t, called)
	assert.Equal(t, []string{`update-case-status {"caseId":101}`}, v.seen)
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), true},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow gateway"), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"not found", status.Error(codes.NotFound, "no such job"), false},
		{"plain dial error", stderrors.New("dial tcp 10.0.0.4:26500: connection refused"), true},
		{"plain other", stderrors.New("bad config"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(tt.err))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	err := mapZeebeError(context.DeadlineExceeded, "topology", 2)
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = mapZeebeError(status.Error(codes.Unauthenticated, "bad token"), "topology", 0)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))

	err = mapZeebeError(stderrors.New("connection refused"), "topology", 0)
	assert.Equal(t, errors.ErrCodeExternalService, errors.CodeOf(err))
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 5000})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, int64(5000), cfg.ConnectionTimeout.Milliseconds())
}

type fakeJobClient struct {
	worker.JobClient
	calls []string
}

func (f *fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	f.calls = append(f.calls, "complete")
	return nil
}

func (f *fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	f.calls = append(f.calls, "fail")
	return nil
}

func (f *fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	f.calls = append(f.calls, "throw")
	return nil
}

func TestInstrument_RecordsOutcome(t *testing.T) {
	reader := metric.NewManualReader()
	obs := observability.New("camunda-test", logger.NewTestLogger(t), reader)
	defer obs.Shutdown()

	fake := &fakeJobClient{}
	Instrument("manual-assign-case", obs, func(client worker.JobClient, job entities.Job) {
		client.NewThrowErrorCommand()
	})(fake, entities.Job{})
	Instrument("manual-assign-case", obs, func(client worker.JobClient, job entities.Job) {
		client.NewCompleteJobCommand()
	})(fake, entities.Job{})
	Instrument("manual-assign-case", obs, func(client worker.JobClient, job entities.Job) {})(fake, entities.Job{})

	assert.Equal(t, []string{"throw", "complete"}, fake.calls)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "jobs.processed" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("outcome"))
				outcomes[v.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{
		observability.OutcomeThrown:     1,
		observability.OutcomeCompleted:  1,
		observability.OutcomeUnanswered: 1,
	}, outcomes)
}
