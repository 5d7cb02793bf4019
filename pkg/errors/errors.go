package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound             = errors.New("resource not found")
	ErrValidation           = errors.New("validation error")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotAvailable         = errors.New("license plate not available")
	ErrQANotPassed          = errors.New("qa status not passed")
	ErrExpired              = errors.New("license plate expired")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidState         = errors.New("order state does not allow this operation")
	ErrCrossWarehouse       = errors.New("location belongs to a different warehouse")
	ErrToleranceExceeded    = errors.New("over-receipt tolerance exceeded")
	ErrBatchRequired        = errors.New("batch number required")
	ErrExpiryRequired       = errors.New("expiry date required")
	ErrConflict             = errors.New("resource conflict")
	ErrInternal             = errors.New("internal server error")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// ValidationMessage creates a validation error with a single message instead of
// per-field details, for failures that concern the request as a whole.
func ValidationMessage(message string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// InvalidTransition signals an operation that is illegal for the entity's
// current status, e.g. mutating a consumed license plate.
func InvalidTransition(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_TRANSITION",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NotAvailable signals a license plate whose status precondition failed for
// consumption or merge.
func NotAvailable(message string) *AppError {
	return &AppError{
		Err:        ErrNotAvailable,
		Code:       "NOT_AVAILABLE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func QANotPassed(message string) *AppError {
	return &AppError{
		Err:        ErrQANotPassed,
		Code:       "QA_NOT_PASSED",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Expired(message string) *AppError {
	return &AppError{
		Err:        ErrExpired,
		Code:       "EXPIRED",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func InsufficientQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInsufficientQuantity,
		Code:       "INSUFFICIENT_QUANTITY",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// InvalidState signals an order whose status blocks goods receipt.
func InvalidState(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Code:       "INVALID_STATE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func CrossWarehouse(message string) *AppError {
	return &AppError{
		Err:        ErrCrossWarehouse,
		Code:       "CROSS_WAREHOUSE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func ToleranceExceeded(message string) *AppError {
	return &AppError{
		Err:        ErrToleranceExceeded,
		Code:       "TOLERANCE_EXCEEDED",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func BatchRequired(message string) *AppError {
	return &AppError{
		Err:        ErrBatchRequired,
		Code:       "BATCH_REQUIRED",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func ExpiryRequired(message string) *AppError {
	return &AppError{
		Err:        ErrExpiryRequired,
		Code:       "EXPIRY_REQUIRED",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
