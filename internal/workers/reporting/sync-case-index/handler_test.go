// internal/workers/reporting/sync-case-index/handler_test.go
package synccaseindex

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-workers/internal/collections"
	"dca-workers/internal/common/config"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/search"
	"dca-workers/internal/models"
)

type stubLister struct {
	cases  []models.Case
	filter collections.CaseFilter
}

func (s *stubLister) ListCases(ctx context.Context, filter collections.CaseFilter) ([]models.Case, error) {
	s.filter = filter
	var out []models.Case
	for _, cs := range s.cases {
		if filter.Status == "" || cs.Status == filter.Status {
			out = append(out, cs)
		}
	}
	return out, nil
}

// bulkServer acknowledges every action line it receives.
func bulkServer(t *testing.T, requests *int32) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		var items []string
		sc := bufio.NewScanner(r.Body)
		for i := 0; sc.Scan(); i++ {
			if i%2 == 0 {
				items = append(items, `{"index":{"status":201}}`)
			}
		}
		fmt.Fprintf(w, `{"errors":false,"items":[%s]}`, strings.Join(items, ","))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

func sampleCases(n int) []models.Case {
	cases := make([]models.Case, n)
	for i := range cases {
		status := models.StatusNew
		if i%2 == 1 {
			status = models.StatusPaid
		}
		cases[i] = models.Case{ID: int64(i + 1), CustomerName: "Customer", AmountDue: decimal.NewFromInt(100), Status: status}
	}
	return cases
}

var admin = models.Actor{ID: 1, Role: models.RoleAdmin}

func TestHandler_Execute_BatchesBulkRequests(t *testing.T) {
	var requests int32
	index := search.NewCaseIndex(bulkServer(t, &requests), "cases-test", 0)
	lister := &stubLister{cases: sampleCases(5)}

	cfg := LoadConfig(config.WorkerConfig{})
	cfg.BatchSize = 2
	h := NewHandler(cfg, lister, index, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, &Output{Indexed: 5, Total: 5, Index: "cases-test"}, out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestHandler_Execute_StatusFilter(t *testing.T) {
	var requests int32
	index := search.NewCaseIndex(bulkServer(t, &requests), "cases-test", 0)
	lister := &stubLister{cases: sampleCases(5)}
	h := NewHandler(LoadConfig(config.WorkerConfig{}), lister, index, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Actor: admin, Status: models.StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Indexed)
	assert.Equal(t, models.StatusPaid, lister.filter.Status)
}

func TestHandler_Execute_NothingToIndex(t *testing.T) {
	var requests int32
	index := search.NewCaseIndex(bulkServer(t, &requests), "cases-test", 0)
	h := NewHandler(LoadConfig(config.WorkerConfig{}), &stubLister{}, index, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Total)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		wantCode apperr.ErrorCode
	}{
		{
			name:     "agency actor",
			input:    &Input{Actor: models.Actor{ID: 10, Role: models.RoleAgency}},
			wantCode: apperr.ErrCodeUnauthorized,
		},
		{
			name:     "unknown status",
			input:    &Input{Actor: admin, Status: "Closed"},
			wantCode: apperr.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			index := search.NewCaseIndex(bulkServer(t, &requests), "cases-test", 0)
			h := NewHandler(LoadConfig(config.WorkerConfig{}), &stubLister{cases: sampleCases(2)}, index, logger.NewTestLogger(t))

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
			assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
		})
	}
}
