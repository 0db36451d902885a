// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dca-workers/internal/common/config"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/validation"
	"dca-workers/pkg/registry"
)

const (
	defaultRegistryPath = "configs/activity-registry.json"
	defaultConfigPath   = "configs/config.yaml"
)

var validRoles = map[string]bool{"admin": true, "agency": true}

var validStatuses = map[string]bool{"planned": true, "in-progress": true, "completed": true, "verified": true}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		help(out)
		return errors.New("no command given")
	}

	switch args[0] {
	case "add":
		return runAdd(args[1:], out)
	case "set":
		return runSet(args[1:], out)
	case "validate":
		return runValidate(args[1:], out)
	case "check":
		return runCheck(args[1:], out)
	case "help", "-h", "--help":
		help(out)
		return nil
	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runAdd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID (e.g., cases.status.update)")
	displayName := fs.String("displayName", "", "Display Name (e.g., Update Case Status)")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "", "Category (cases, allocation, agencies, reporting)")
	taskType := fs.String("taskType", "", "Zeebe job type (e.g., update-case-status)")
	roles := fs.String("roles", "admin", "Comma separated roles allowed to trigger the job")
	timeout := fs.String("timeout", "30s", "Job timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *displayName == "" || *category == "" || *taskType == "" {
		fs.Usage()
		return errors.New("id, displayName, category and taskType are required")
	}

	roleList, err := parseRoles(*roles)
	if err != nil {
		return err
	}
	if _, err := time.ParseDuration(*timeout); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", *timeout, err)
	}

	reg, err := loadOrCreate(*path)
	if err != nil {
		return err
	}
	if _, ok := reg.Find(*taskType); ok {
		return fmt.Errorf("task type %s is already registered", *taskType)
	}

	reg.Activities = append(reg.Activities, registry.Activity{
		ID:                   *id,
		DisplayName:          *displayName,
		Description:          *description,
		Category:             *category,
		Version:              "1.0.0",
		TaskType:             *taskType,
		ImplementationStatus: "planned",
		Roles:                roleList,
		InputSchema:          actorSchema(roleList),
		OutputSchema:         map[string]interface{}{"type": "object"},
		ErrorCodes:           []string{string(apperr.ErrCodeUnauthorized), string(apperr.ErrCodeDatabaseError)},
		Timeout:              *timeout,
		Retries:              3,
		Workflows:            []string{},
		Tags:                 []string{*category},
	})
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := saveRegistry(reg, *path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added activity %s (%s)\n", *id, *taskType)
	return nil
}

func runSet(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	taskType := fs.String("task", "", "Task type of the activity to change")
	field := fs.String("field", "", "Field to change (status, version, description, timeout, retries, roles, errorCodes)")
	value := fs.String("value", "", "New value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *taskType == "" || *field == "" || *value == "" {
		fs.Usage()
		return errors.New("task, field and value are required")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	act, ok := reg.Find(*taskType)
	if !ok {
		return fmt.Errorf("task type %s not found", *taskType)
	}
	if err := setField(act, *field, *value); err != nil {
		return err
	}

	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if err := saveRegistry(reg, *path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Set %s.%s = %s\n", *taskType, *field, *value)
	return nil
}

func setField(act *registry.Activity, field, value string) error {
	switch field {
	case "status":
		if !validStatuses[value] {
			return fmt.Errorf("invalid implementation status %q", value)
		}
		act.ImplementationStatus = value
	case "version":
		act.Version = value
	case "description":
		act.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", value, err)
		}
		act.Timeout = value
	case "retries":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid retries %q", value)
		}
		act.Retries = n
	case "roles":
		roles, err := parseRoles(value)
		if err != nil {
			return err
		}
		act.Roles = roles
	case "errorCodes":
		codes := splitList(value)
		for _, c := range codes {
			if !apperr.IsKnownCode(c) {
				return fmt.Errorf("unknown error code %q", c)
			}
		}
		act.ErrorCodes = codes
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	v, err := validation.NewValidator(reg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Registry OK: %d activities, %d with input schemas.\n", len(reg.Activities), len(v.TaskTypes()))
	return nil
}

// runCheck cross-checks the registry against the worker config and the error
// codes and roles the workers actually use. Every finding is printed before
// the command fails.
func runCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	configPath := fs.String("config", defaultConfigPath, "Path to the worker manager config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	workers, err := config.LoadWorkers(*configPath)
	if err != nil {
		return err
	}

	problems := checkRegistry(reg, workers)
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	fmt.Fprintf(out, "Registry and %s agree on %d workers.\n", *configPath, len(reg.Activities))
	return nil
}

func checkRegistry(reg *registry.ActivityRegistry, workers map[string]config.WorkerConfig) []string {
	var problems []string
	registered := make(map[string]bool, len(reg.Activities))

	for _, act := range reg.Activities {
		registered[act.TaskType] = true
		if _, ok := workers[act.TaskType]; !ok {
			problems = append(problems, fmt.Sprintf("%s: no workers entry in config", act.TaskType))
		}
		if len(act.Roles) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no roles", act.TaskType))
		}
		for _, r := range act.Roles {
			if !validRoles[r] {
				problems = append(problems, fmt.Sprintf("%s: unknown role %q", act.TaskType, r))
			}
		}
		for _, c := range act.ErrorCodes {
			if !apperr.IsKnownCode(c) {
				problems = append(problems, fmt.Sprintf("%s: unknown error code %q", act.TaskType, c))
			}
		}
		if _, err := time.ParseDuration(act.Timeout); err != nil {
			problems = append(problems, fmt.Sprintf("%s: bad timeout %q", act.TaskType, act.Timeout))
		}
	}

	var orphans []string
	for name := range workers {
		if !registered[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		problems = append(problems, fmt.Sprintf("%s: configured but not registered", name))
	}
	return problems
}

// actorSchema is the input schema every new activity starts from.
func actorSchema(roles []string) map[string]interface{} {
	enum := make([]interface{}, len(roles))
	for i, r := range roles {
		enum[i] = r
	}
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"actor"},
		"properties": map[string]interface{}{
			"actor": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "role"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "integer", "minimum": 1},
					"role": map[string]interface{}{"type": "string", "enum": enum},
				},
			},
		},
	}
}

func parseRoles(s string) ([]string, error) {
	roles := splitList(s)
	if len(roles) == 0 {
		return nil, errors.New("at least one role is required")
	}
	for _, r := range roles {
		if !validRoles[r] {
			return nil, fmt.Errorf("unknown role %q (want admin or agency)", r)
		}
	}
	return roles, nil
}

func splitList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}

func loadOrCreate(path string) (*registry.ActivityRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		return &registry.ActivityRegistry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: registry-updater <command> [flags]

Commands:
  add       Register a new job type
  set       Change one field of a registered job type
  validate  Validate the registry file and compile its input schemas
  check     Cross-check the registry against configs/config.yaml and known error codes
  help      Show this help message

Examples:
  registry-updater add -id cases.note.add -displayName "Add Case Note" -category cases -taskType add-case-note -roles agency
  registry-updater set -task update-case-status -field errorCodes -value UNAUTHORIZED,INVALID_TRANSITION,DATABASE_ERROR
  registry-updater check -config configs/config.yaml
`)
}
