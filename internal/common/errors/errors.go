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

const (
	ErrCodeCSVParseFailed ErrorCode = "CSV_PARSE_FAILED"

	ErrCodeDraftNotFound    ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodeDraftStoreFailed ErrorCode = "DRAFT_STORE_FAILED"

	ErrCodeStepIncomplete   ErrorCode = "STEP_INCOMPLETE"
	ErrCodeSignatureInvalid ErrorCode = "SIGNATURE_INVALID"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeCRMAPIError      ErrorCode = "CRM_API_ERROR"
	ErrCodeCRMNotConfigured ErrorCode = "CRM_NOT_CONFIGURED"

	ErrCodeBatchSubmissionFailed ErrorCode = "BATCH_SUBMISSION_FAILED"
	ErrCodeSubmissionCancelled   ErrorCode = "SUBMISSION_CANCELLED"

	ErrCodeAuditLogFailed         ErrorCode = "AUDIT_LOG_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeIndexingFailed         ErrorCode = "INDEXING_FAILED"

	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
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

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err looking for a StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewCSVParseFailedError creates a non-retryable CSV import error.
func NewCSVParseFailedError(err error) *StandardError {
	return newError(ErrCodeCSVParseFailed, "Client CSV could not be parsed", err.Error(), false)
}

func NewDraftNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeDraftNotFound, "Wizard draft not found", fmt.Sprintf("sessionId: %s", sessionID), false)
}

// NewDraftStoreFailedError creates a retryable draft persistence error.
func NewDraftStoreFailedError(err error) *StandardError {
	return newError(ErrCodeDraftStoreFailed, "Wizard draft store operation failed", err.Error(), true)
}

func NewStepIncompleteError(step int, missing []string) *StandardError {
	stdErr := newError(ErrCodeStepIncomplete, fmt.Sprintf("Wizard step %d is incomplete", step),
		strings.Join(missing, ", "), false)
	return stdErr.WithMetadata("step", step)
}

func NewSignatureInvalidError(err error) *StandardError {
	return newError(ErrCodeSignatureInvalid, "Attestation signature is invalid", err.Error(), false)
}

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

// NewCRMAPIError creates a retryable HighLevel API error.
func NewCRMAPIError(operation string, err error) *StandardError {
	return newError(ErrCodeCRMAPIError, fmt.Sprintf("CRM operation '%s' failed", operation), err.Error(), true)
}

func NewCRMNotConfiguredError(details string) *StandardError {
	return newError(ErrCodeCRMNotConfigured, "CRM integration is not configured", details, false)
}

// NewBatchSubmissionFailedError is raised when every client of a batch failed.
func NewBatchSubmissionFailedError(total int, firstError string) *StandardError {
	return newError(ErrCodeBatchSubmissionFailed, "All clients in the batch failed to submit",
		fmt.Sprintf("total: %d, first error: %s", total, firstError), false)
}

func NewSubmissionCancelledError(err error) *StandardError {
	return newError(ErrCodeSubmissionCancelled, "Batch submission was cancelled", err.Error(), true)
}

func NewAuditLogFailedError(err error) *StandardError {
	return newError(ErrCodeAuditLogFailed, "Audit log write failed", err.Error(), true)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Search indexing failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

// Generic constructors

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError("AUTHENTICATION_ERROR", "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by the
// bulk filing process boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeCSVParseFailed:         "CSV_PARSE_FAILED",
	ErrCodeDraftNotFound:          "DRAFT_NOT_FOUND",
	ErrCodeDraftStoreFailed:       "DRAFT_STORE_FAILED",
	ErrCodeStepIncomplete:         "STEP_INCOMPLETE",
	ErrCodeSignatureInvalid:       "SIGNATURE_INVALID",
	ErrCodeValidationFailed:       "VALIDATION_FAILED",
	ErrCodeCRMAPIError:            "CRM_API_ERROR",
	ErrCodeCRMNotConfigured:       "CRM_NOT_CONFIGURED",
	ErrCodeBatchSubmissionFailed:  "BATCH_SUBMISSION_FAILED",
	ErrCodeSubmissionCancelled:    "SUBMISSION_CANCELLED",
	ErrCodeAuditLogFailed:         "AUDIT_LOG_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeIndexingFailed:         "INDEXING_FAILED",
	ErrCodeInputParsingFailed:     "INPUT_PARSING_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDraftStoreFailed,
		ErrCodeCRMAPIError,
		ErrCodeAuditLogFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeIndexingFailed:
		return 3

	case ErrCodeSubmissionCancelled,
		"TIMEOUT_ERROR",
		"EXTERNAL_SERVICE_ERROR":
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

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CSV"):
		return "INTAKE"
	case strings.Contains(codeStr, "DRAFT"):
		return "DRAFT"
	case strings.Contains(codeStr, "CRM"):
		return "CRM"
	case strings.Contains(codeStr, "SUBMISSION"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "AUDIT") || strings.Contains(codeStr, "INDEXING"):
		return "RECORDS"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "STEP") || strings.Contains(codeStr, "SIGNATURE") ||
		strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}
