// Package validation checks job variables against the activity registry's
// input schemas and holds the contact format checks used by onboarding.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/pkg/registry"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
)

// ValidationError is one schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds a compiled input schema per task type.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the input schema of every registered activity.
// Activities without an input schema are not validated.
func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, activity := range reg.Activities {
		if len(activity.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(activity.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", activity.TaskType, err)
		}
		v.schemas[activity.TaskType] = schema
	}
	return v, nil
}

// TaskTypes lists the task types that carry a schema.
func (v *Validator) TaskTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for t := range v.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Check validates a JSON document against the schema of taskType.
func (v *Validator) Check(taskType, variables string) ([]ValidationError, error) {
	schema, ok := v.schemas[taskType]
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return nil, err
	}

	var violations []ValidationError
	for _, re := range result.Errors() {
		violations = append(violations, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return violations, nil
}

// ValidateJob returns an INVALID_INPUT error when variables break the schema.
func (v *Validator) ValidateJob(taskType, variables string) error {
	violations, err := v.Check(taskType, variables)
	if err != nil {
		return apperr.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	if len(violations) == 0 {
		return nil
	}
	return apperr.NewInvalidInputError(strings.Join(Messages(violations), "; "))
}

// Messages returns "field: message" for each violation.
func Messages(violations []ValidationError) []string {
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return messages
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
