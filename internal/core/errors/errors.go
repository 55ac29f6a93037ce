package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations
var (
	// Authentication & Authorization
	ErrInvalidInitData = errors.New("invalid telegram init data")
	ErrInitDataExpired = errors.New("telegram init data is stale")
	ErrUserExists      = errors.New("user already registered")
	ErrForbidden       = errors.New("action forbidden")
	ErrUnauthorized    = errors.New("unauthorized")

	// User validation
	ErrUserNotFound       = errors.New("user not found")
	ErrFullNameRequired   = errors.New("full name is required")
	ErrFullNameTooLong    = errors.New("full name exceeds maximum length")
	ErrInvalidRole        = errors.New("invalid user role")
	ErrDepartmentRequired = errors.New("department ID is required")
	ErrDepartmentNotFound = errors.New("department not found")

	// Appeal validation
	ErrAppealNotFound          = errors.New("appeal not found")
	ErrSubjectRequired         = errors.New("subject is required")
	ErrSubjectTooLong          = errors.New("subject exceeds maximum length of 255 characters")
	ErrDescriptionTooLong      = errors.New("description exceeds maximum length")
	ErrInvalidStatus           = errors.New("invalid appeal status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCreatorRequired         = errors.New("creator ID is required")
	ErrAppealCompleted         = errors.New("appeal is already completed")

	// Message validation
	ErrMessageNotFound    = errors.New("message not found")
	ErrMessageEmpty       = errors.New("message needs text content or a file attachment")
	ErrMessageTooLong     = errors.New("message content exceeds maximum length")
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
	ErrAppealIDRequired   = errors.New("appeal ID is required")
	ErrSenderIDRequired   = errors.New("sender ID is required")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrInternal    = errors.New("internal server error")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		StatusCode: 403,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: 404,
	}
}

func NewConflictError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "CONFLICT",
		StatusCode: 409,
	}
}

func NewValidationError(err error, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		StatusCode: 422,
		Details:    details,
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many requests. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: 429,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
