package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/pkg/registry"
)

func loadValidator(t *testing.T) *Validator {
	reg, err := registry.LoadRegistry("../../../configs/activity-registry.json")
	require.NoError(t, err)
	v, err := NewValidator(reg)
	require.NoError(t, err)
	return v
}

func TestValidator_CompilesEveryActivity(t *testing.T) {
	v := loadValidator(t)
	assert.Len(t, v.TaskTypes(), 11)
}

func TestValidateJob(t *testing.T) {
	v := loadValidator(t)

	tests := []struct {
		name      string
		taskType  string
		variables string
		wantErr   bool
	}{
		{
			name:      "status update",
			taskType:  "update-case-status",
			variables: `{"actor":{"id":10,"role":"agency"},"caseId":101,"status":"Contacted","extra":"ignored"}`,
		},
		{
			name:      "unknown status",
			taskType:  "update-case-status",
			variables: `{"actor":{"id":10,"role":"agency"},"caseId":101,"status":"Closed"}`,
			wantErr:   true,
		},
		{
			name:      "missing actor",
			taskType:  "auto-allocate-cases",
			variables: `{}`,
			wantErr:   true,
		},
		{
			name:      "bad role",
			taskType:  "classify-cases",
			variables: `{"actor":{"id":1,"role":"root"}}`,
			wantErr:   true,
		},
		{
			name:      "eligibility ids must be integers",
			taskType:  "set-agency-eligibility",
			variables: `{"actor":{"id":1,"role":"admin"},"agencyIds":["x"]}`,
			wantErr:   true,
		},
		{
			name:      "empty eligibility set is valid",
			taskType:  "set-agency-eligibility",
			variables: `{"actor":{"id":1,"role":"admin"},"agencyIds":[]}`,
		},
		{
			name:      "unregistered task type passes",
			taskType:  "something-else",
			variables: `{}`,
		},
		{
			name:      "not json",
			taskType:  "classify-cases",
			variables: `{`,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJob(tt.taskType, tt.variables)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.ErrCodeInvalidInput, apperr.CodeOf(err))
		})
	}
}

func TestCheck_ReportsFields(t *testing.T) {
	v := loadValidator(t)

	violations, err := v.Check("manual-assign-case", `{"actor":{"id":1,"role":"admin"},"caseId":0}`)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	msgs := Messages(violations)
	assert.Contains(t, msgs[0]+msgs[1], "agencyId")
	assert.Contains(t, msgs[0]+msgs[1], "caseId")
}

func TestContactFormats(t *testing.T) {
	assert.True(t, ValidateEmail("ops@acme.test"))
	assert.False(t, ValidateEmail("not-an-email"))
	assert.True(t, ValidatePhone("+1 (555) 010-0100"))
	assert.False(t, ValidatePhone("12345"))
}
