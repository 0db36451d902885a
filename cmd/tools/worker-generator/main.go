// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"dca-workers/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Category     string
	Description  string
	Timeout      time.Duration
	ErrorCodes   []string
	InputFields  []Field
	OutputFields []Field
}

// Field is one generated struct field.
type Field struct {
	Name     string
	Type     string
	JSONName string
	Optional bool
}

// schemaFields lists the properties of a JSON schema object sorted by name.
// The actor property always maps to models.Actor.
func schemaFields(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if req, ok := schema["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		goType := goTypeFromSchema(details)
		if name == "actor" {
			goType = "models.Actor"
		}
		fields = append(fields, Field{
			Name:     goFieldName(name),
			Type:     goType,
			JSONName: name,
			Optional: !required[name],
		})
	}
	return fields
}

// goTypeFromSchema maps JSON schema types to Go types
func goTypeFromSchema(details map[string]interface{}) string {
	switch details["type"] {
	case "string":
		return "string"
	case "integer":
		return "int64"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		items, _ := details["items"].(map[string]interface{})
		if items != nil {
			return "[]" + goTypeFromSchema(items)
		}
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// goFieldName exports a camelCase or snake_case property, spelling a trailing
// Id or Ids as ID or IDs.
func goFieldName(prop string) string {
	if prop == "" {
		return prop
	}
	var b strings.Builder
	for _, part := range strings.Split(prop, "_") {
		if part != "" {
			b.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	name := b.String()
	switch {
	case strings.HasSuffix(name, "Ids"):
		name = strings.TrimSuffix(name, "Ids") + "IDs"
	case strings.HasSuffix(name, "Id"):
		name = strings.TrimSuffix(name, "Id") + "ID"
	}
	return name
}

func usesModels(fields []Field) bool {
	for _, f := range fields {
		if strings.Contains(f.Type, "models.") {
			return true
		}
	}
	return false
}

const configTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/config.go
package {{ .PackageName }}

import (
	"time"

	"dca-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = {{ printf "%d" .Timeout.Milliseconds }} * time.Millisecond
	}
	return &Config{Timeout: timeout}
}
`

const modelsTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/models.go
package {{ .PackageName }}
{{ if usesModels .InputFields }}
import "dca-workers/internal/models"
{{ end }}
type Input struct {
{{- range .InputFields }}
	{{ .Name }} {{ .Type }} ` + "`" + `json:"{{ .JSONName }}{{ if .Optional }},omitempty{{ end }}"` + "`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .Type }} ` + "`" + `json:"{{ .JSONName }}"` + "`" + `
{{- end }}
}
`

const handlerTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
)

const (
	TaskType = "{{ .TaskType }}"
)

// Handler runs {{ .Name }}. {{ .Description }}
// Errors: {{ join .ErrorCodes ", " }}.
type Handler struct {
	config     *Config
	errHandler *apperr.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	return nil, apperr.NewExternalServiceError(TaskType, fmt.Errorf("not implemented"))
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
`

const testTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler_test.go
package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-workers/internal/common/config"
	"dca-workers/internal/common/logger"
)

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(LoadConfig(config.WorkerConfig{}), logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Nil(t, out)
}
`

var templates = []struct {
	file string
	body string
}{
	{"config.go", configTemplate},
	{"models.go", modelsTemplate},
	{"handler.go", handlerTemplate},
	{"handler_test.go", testTemplate},
}

// newWorkerData builds the template data for one registry activity.
func newWorkerData(act *registry.Activity) (*WorkerData, error) {
	timeout := 30 * time.Second
	if act.Timeout != "" {
		d, err := time.ParseDuration(act.Timeout)
		if err != nil {
			return nil, fmt.Errorf("activity %s: bad timeout %q: %w", act.ID, act.Timeout, err)
		}
		timeout = d
	}
	return &WorkerData{
		Name:         act.DisplayName,
		PackageName:  strings.ReplaceAll(act.TaskType, "-", ""),
		TaskType:     act.TaskType,
		Category:     act.Category,
		Description:  act.Description,
		Timeout:      timeout,
		ErrorCodes:   act.ErrorCodes,
		InputFields:  schemaFields(act.InputSchema),
		OutputFields: schemaFields(act.OutputSchema),
	}, nil
}

// render executes every template and gofmts the result.
func render(data *WorkerData) (map[string][]byte, error) {
	funcs := template.FuncMap{
		"usesModels": usesModels,
		"join":       strings.Join,
	}

	files := make(map[string][]byte, len(templates))
	for _, t := range templates {
		tmpl, err := template.New(t.file).Funcs(funcs).Parse(t.body)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", t.file, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute template %s: %w", t.file, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", t.file, err)
		}
		files[t.file] = src
	}
	return files, nil
}

// write refuses to overwrite an existing worker unless force is set.
func write(dir string, files map[string][]byte, force bool) error {
	if _, err := os.Stat(filepath.Join(dir, "handler.go")); err == nil && !force {
		return fmt.Errorf("%s already has a worker, use -force to overwrite", dir)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return err
		}
		fmt.Printf("✓ Generated %s\n", path)
	}
	return nil
}

func main() {
	taskType := flag.String("task", "", "Task type from the registry (e.g., update-case-status)")
	outputDir := flag.String("output", "./internal/workers/", "Root directory for generated workers")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite an existing worker")
	flag.Parse()

	if *taskType == "" {
		fmt.Println("Usage: worker-generator -task <taskType> [-output <dir>] [-registry <path>] [-force]")
		fmt.Println("\nExample:")
		fmt.Println("  go run ./cmd/tools/worker-generator -task write-off-case")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	act, ok := reg.Find(*taskType)
	if !ok {
		fmt.Printf("Task type '%s' not found in registry %s\n", *taskType, *registryPath)
		os.Exit(1)
	}

	data, err := newWorkerData(act)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	files, err := render(data)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	workerDir := filepath.Join(*outputDir, data.Category, data.TaskType)
	if err := write(workerDir, files, *force); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Worker scaffold generated at: %s\n", workerDir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Give the Handler its collections service and implement execute\n")
	fmt.Printf("  2. Replace the placeholder test in handler_test.go\n")
	fmt.Printf("  3. Register the worker in cmd/worker-manager/main.go\n")
	fmt.Printf("  4. Add a workers.%s entry to configs/config.yaml\n", data.TaskType)
}
