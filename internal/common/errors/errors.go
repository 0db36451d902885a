// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Collection domain errors
const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeNoEligibleAgency  ErrorCode = "NO_ELIGIBLE_AGENCY"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeModelUnavailable  ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
)

// Infrastructure errors
const (
	ErrCodeDatabaseError          ErrorCode = "DATABASE_ERROR"
	ErrCodePredictionFailed       ErrorCode = "PREDICTION_FAILED"
	ErrCodeSearchFailed           ErrorCode = "SEARCH_FAILED"
	ErrCodeIndexFailed            ErrorCode = "INDEX_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalService        ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so the sentinels below
// work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &StandardError{Code: ErrCodeNotFound}
	ErrNoEligibleAgency  = &StandardError{Code: ErrCodeNoEligibleAgency}
	ErrValidation        = &StandardError{Code: ErrCodeValidationFailed}
	ErrModelUnavailable  = &StandardError{Code: ErrCodeModelUnavailable}
	ErrUnauthorized      = &StandardError{Code: ErrCodeUnauthorized}
	ErrInvalidTransition = &StandardError{Code: ErrCodeInvalidTransition}
	ErrInvalidInput      = &StandardError{Code: ErrCodeInvalidInput}
	ErrDatabase          = &StandardError{Code: ErrCodeDatabaseError}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError reports a missing case, agency or actor.
func NewNotFoundError(entity string, id int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("%sId: %d", entity, id),
		Retryable: false,
		Metadata: map[string]interface{}{
			"entity": entity,
			"id":     id,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewNoEligibleAgencyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNoEligibleAgency,
		Message:   "No agency is eligible for high-risk allocation",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRowValidationError reports the first malformed row of an import. Rows are 1-based.
func NewRowValidationError(row int, column, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("Row %d is invalid", row),
		Details:   fmt.Sprintf("row: %d, column: %s, reason: %s", row, column, reason),
		Retryable: false,
		Metadata: map[string]interface{}{
			"row":    row,
			"column": column,
			"reason": reason,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(field, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("Invalid %s", field),
		Details:   reason,
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError is a soft error: callers report it, they do not fail on it.
func NewModelUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "Risk model is not available",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnauthorizedError(role string, actorID int64, action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   fmt.Sprintf("Role %q may not perform %s", role, action),
		Details:   fmt.Sprintf("actorId: %d", actorID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   fmt.Sprintf("Cannot move case from %s to %s", from, to),
		Retryable: false,
		Metadata: map[string]interface{}{
			"from": from,
			"to":   to,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseError creates a retryable store error.
func NewDatabaseError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseError,
		Message:   fmt.Sprintf("Database error during %s", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewPredictionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionFailed,
		Message:   "Risk model prediction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSearchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchFailed,
		Message:   "Case search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexFailed,
		Message:   "Case indexing failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   fmt.Sprintf("Failed to send %s notification", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseError,
		ErrCodeSearchFailed,
		ErrCodeIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout,
		ErrCodePredictionFailed:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN error codes are the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to the first StandardError in its chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

var knownCodes = map[ErrorCode]bool{
	ErrCodeNotFound: true, ErrCodeNoEligibleAgency: true, ErrCodeValidationFailed: true,
	ErrCodeModelUnavailable: true, ErrCodeUnauthorized: true, ErrCodeInvalidTransition: true,
	ErrCodeInvalidInput: true, ErrCodeDatabaseError: true, ErrCodePredictionFailed: true,
	ErrCodeSearchFailed: true, ErrCodeIndexFailed: true, ErrCodeNotificationSendFailed: true,
	ErrCodeExternalService: true, ErrCodeTimeout: true, ErrCodeInternal: true,
}

// IsKnownCode reports whether code is one a worker can throw.
func IsKnownCode(code string) bool {
	return knownCodes[ErrorCode(code)]
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthorized:
		return "AUTHORIZATION"
	case code == ErrCodeNoEligibleAgency || code == ErrCodeInvalidTransition || code == ErrCodeNotFound:
		return "BUSINESS_RULE"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "PREDICTION"):
		return "MODEL"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "EXTERNAL"):
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}
