// Package errors provides standardized error handling shared by the HTTP gateway and the BPMN job workers.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidCategory ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidRank     ErrorCode = "INVALID_RANK"
	ErrCodeInvalidPage     ErrorCode = "INVALID_PAGE"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"

	ErrCodeDatasetUnavailable ErrorCode = "DATASET_UNAVAILABLE"
	ErrCodeQueryTimeout       ErrorCode = "QUERY_TIMEOUT"

	ErrCodeExportRenderFailed ErrorCode = "EXPORT_RENDER_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

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

// NewInvalidCategoryError creates a non-retryable validation error for an unknown ranking category.
func NewInvalidCategoryError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCategory,
		Message:   "Unknown ranking category",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRankError creates a non-retryable validation error.
func NewInvalidRankError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRank,
		Message:   "Rank must be a positive integer",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPageError creates a non-retryable validation error.
func NewInvalidPageError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPage,
		Message:   "Page number must be a positive integer",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable error for malformed request or job input.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetUnavailableError creates a retryable infrastructure error.
func NewDatasetUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatasetUnavailable,
		Message:   "Cutoff dataset is unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable timeout error.
func NewQueryTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Cutoff query timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExportRenderError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExportRenderFailed,
		Message:   "Failed to render export document",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidCategory:    "INVALID_CATEGORY",
	ErrCodeInvalidRank:        "INVALID_RANK",
	ErrCodeInvalidPage:        "INVALID_PAGE",
	ErrCodeInvalidInput:       "INVALID_INPUT",
	ErrCodeDatasetUnavailable: "DATASET_UNAVAILABLE",
	ErrCodeQueryTimeout:       "QUERY_TIMEOUT",
	ErrCodeExportRenderFailed: "EXPORT_RENDER_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatasetUnavailable:
		return 3
	case ErrCodeQueryTimeout:
		return 2
	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// HTTPStatus maps an error code to the status the gateway responds with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidCategory, ErrCodeInvalidRank, ErrCodeInvalidPage, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeDatasetUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATASET") || strings.Contains(codeStr, "QUERY"):
		return "DATASET"
	case strings.Contains(codeStr, "EXPORT"):
		return "EXPORT"
	default:
		return "OTHER"
	}
}
