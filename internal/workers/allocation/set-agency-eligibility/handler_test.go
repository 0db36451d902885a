// internal/workers/allocation/set-agency-eligibility/handler_test.go
package setagencyeligibility

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-workers/internal/common/config"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/models"
)

// recordingSetter keeps the last eligible set like the store would.
type recordingSetter struct {
	known    map[int64]bool
	eligible []int64
}

func (r *recordingSetter) SetEligibility(ctx context.Context, actor models.Actor, agencyIDs []int64) ([]int64, error) {
	if !actor.IsAdmin() {
		return nil, apperr.NewUnauthorizedError(string(actor.Role), actor.ID, "set_eligibility")
	}
	for _, id := range agencyIDs {
		if !r.known[id] {
			return nil, apperr.NewNotFoundError("agency", id)
		}
	}
	r.eligible = agencyIDs
	return agencyIDs, nil
}

var admin = models.Actor{ID: 1, Role: models.RoleAdmin}

func newHandler(t *testing.T) (*Handler, *recordingSetter) {
	setter := &recordingSetter{known: map[int64]bool{10: true, 11: true}}
	return NewHandler(LoadConfig(config.WorkerConfig{}), setter, logger.NewTestLogger(t)), setter
}

func TestHandler_Execute_ReplaceThenClear(t *testing.T) {
	h, setter := newHandler(t)
	ctx := context.Background()

	out, err := h.Execute(ctx, &Input{Actor: admin, AgencyIDs: []int64{11}})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, out.EligibleAgencyIDs)

	var input Input
	require.NoError(t, json.Unmarshal([]byte(`{"actor":{"id":1,"role":"admin"}}`), &input))
	out, err = h.Execute(ctx, &input)
	require.NoError(t, err)
	assert.Equal(t, []int64{}, out.EligibleAgencyIDs)
	assert.Empty(t, setter.eligible)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"eligibleAgencyIds":[]}`, string(raw))
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		wantCode apperr.ErrorCode
	}{
		{
			name:     "unknown agency",
			input:    &Input{Actor: admin, AgencyIDs: []int64{10, 42}},
			wantCode: apperr.ErrCodeNotFound,
		},
		{
			name:     "agency actor",
			input:    &Input{Actor: models.Actor{ID: 10, Role: models.RoleAgency}, AgencyIDs: []int64{10}},
			wantCode: apperr.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, setter := newHandler(t)

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
			assert.Nil(t, setter.eligible)
		})
	}
}
