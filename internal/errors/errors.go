// Package errors defines the service error taxonomy and the structured
// API error responses rendered by the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Domain sentinel errors. Handlers translate these to APIError responses;
// everything else in the codebase compares against them with errors.Is.
var (
	// ErrAlreadyRunning is returned by Start when another harvest
	// operation holds the run guard.
	ErrAlreadyRunning = errors.New("a harvest operation is already running")

	// ErrOperationNotFound is returned when an operation ID matches
	// neither a live operation nor a persisted log entry.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrInvalidCron is returned when a cron expression fails validation.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrUnknownSource is returned when a requested source name is not in
	// the known source set.
	ErrUnknownSource = errors.New("unknown source")

	// ErrTaskNotFound is returned for operations on absent scheduled tasks.
	ErrTaskNotFound = errors.New("scheduled task not found")

	// ErrEntryNotFound is returned for operations on absent geocode
	// cache entries.
	ErrEntryNotFound = errors.New("geocode cache entry not found")
)

// PersistenceError wraps a store failure severe enough to fail a whole
// operation: without a persisted log the run's outcome is unobservable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err as a PersistenceError for operation op
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined responses for common scenarios
var (
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrNotFound         = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrConflict         = New(http.StatusConflict, "CONFLICT", "Resource conflict")
	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// NotFoundError creates a not found error naming the missing resource
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// FromDomain maps a domain error to an APIError response
func FromDomain(err error) *APIError {
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		return NewWithDetails(http.StatusConflict, "OPERATION_ALREADY_RUNNING", err.Error(), nil)
	case errors.Is(err, ErrOperationNotFound):
		return New(http.StatusNotFound, "OPERATION_NOT_FOUND", err.Error())
	case errors.Is(err, ErrTaskNotFound):
		return New(http.StatusNotFound, "TASK_NOT_FOUND", err.Error())
	case errors.Is(err, ErrEntryNotFound):
		return New(http.StatusNotFound, "ENTRY_NOT_FOUND", err.Error())
	case errors.Is(err, ErrInvalidCron):
		return NewWithDetails(http.StatusBadRequest, "INVALID_CRON_EXPRESSION", "Invalid cron expression", err.Error())
	case errors.Is(err, ErrUnknownSource):
		return NewWithDetails(http.StatusBadRequest, "UNKNOWN_SOURCE", "Unknown source name", err.Error())
	default:
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return NewWithDetails(http.StatusInternalServerError, "PERSISTENCE_ERROR", "Persistence failure", pe.Error())
		}
		return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", err.Error())
	}
}

// ErrorResponse represents a standard error response envelope
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
