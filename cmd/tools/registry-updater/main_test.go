package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-workers/internal/common/config"
	"dca-workers/pkg/registry"
)

func TestAddThenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	var out bytes.Buffer

	require.NoError(t, run([]string{"add", "-path", path,
		"-id", "cases.note.add", "-displayName", "Add Case Note",
		"-category", "cases", "-taskType", "add-case-note", "-roles", "agency"}, &out))
	assert.Contains(t, out.String(), "Added activity cases.note.add")

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	act, ok := reg.Find("add-case-note")
	require.True(t, ok)
	assert.Equal(t, []string{"agency"}, act.Roles)
	assert.Equal(t, "planned", act.ImplementationStatus)
	assert.Contains(t, act.InputSchema, "required")

	require.NoError(t, run([]string{"set", "-path", path, "-task", "add-case-note",
		"-field", "errorCodes", "-value", "UNAUTHORIZED, NOT_FOUND"}, &out))
	reg, err = registry.LoadRegistry(path)
	require.NoError(t, err)
	act, _ = reg.Find("add-case-note")
	assert.Equal(t, []string{"UNAUTHORIZED", "NOT_FOUND"}, act.ErrorCodes)

	err = run([]string{"add", "-path", path, "-id", "cases.note.add2", "-displayName", "Again",
		"-category", "cases", "-taskType", "add-case-note"}, &out)
	assert.ErrorContains(t, err, "already registered")
}

func TestSetField_Rejects(t *testing.T) {
	act := &registry.Activity{}
	tests := []struct {
		field, value, want string
	}{
		{"status", "done", "invalid implementation status"},
		{"timeout", "soon", "invalid timeout"},
		{"retries", "-1", "invalid retries"},
		{"roles", "supervisor", "unknown role"},
		{"errorCodes", "UNAUTHORIZED,TOKEN_EXPIRED", "unknown error code"},
		{"taskType", "x", "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.ErrorContains(t, setField(act, tt.field, tt.value), tt.want)
		})
	}
}

func TestCheckRegistry(t *testing.T) {
	reg := &registry.ActivityRegistry{Activities: []registry.Activity{
		{TaskType: "import-cases", Roles: []string{"admin"}, ErrorCodes: []string{"VALIDATION_FAILED"}, Timeout: "60s"},
		{TaskType: "add-case-note", Roles: []string{"agent"}, ErrorCodes: []string{"OOPS"}, Timeout: "1m"},
	}}
	workers := map[string]config.WorkerConfig{
		"import-cases":  {Enabled: true},
		"legacy-worker": {Enabled: true},
	}

	problems := checkRegistry(reg, workers)
	assert.Equal(t, []string{
		`add-case-note: no workers entry in config`,
		`add-case-note: unknown role "agent"`,
		`add-case-note: unknown error code "OOPS"`,
		`legacy-worker: configured but not registered`,
	}, problems)
}

func TestCheck_ShippedFilesAgree(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"check",
		"-path", "../../../configs/activity-registry.json",
		"-config", "../../../configs/config.yaml"}, &out)
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "agree on 11 workers")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"bogus"}, &out))
	assert.Error(t, run(nil, &out))
	assert.NoError(t, run([]string{"help"}, &out))
}
