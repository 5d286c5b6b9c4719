package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ===============================
// ERROR TYPES
// ===============================

// ServiceError represents a structured service error
type ServiceError struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// ===============================
// ERROR CONSTRUCTORS
// ===============================

// NewValidationError creates a validation error. Details carries the
// offending values so callers see which inputs failed, not just "invalid".
func NewValidationError(message string, details map[string]any) *ServiceError {
	return &ServiceError{
		Type:       "VALIDATION_ERROR",
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message, code string, details map[string]any) *ServiceError {
	return &ServiceError{
		Type:       "CONFLICT",
		Message:    message,
		Code:       code,
		Details:    details,
		StatusCode: http.StatusConflict,
	}
}

// NewAuthorizationError creates an authorization error
func NewAuthorizationError(message string) *ServiceError {
	return &ServiceError{
		Type:       "AUTHORIZATION_ERROR",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       "NOT_FOUND",
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ===============================
// ERROR INSPECTION
// ===============================

// AsServiceError extracts a *ServiceError from an error chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	serviceErr, ok := AsServiceError(err)
	return ok && serviceErr.Type == "CONFLICT"
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	serviceErr, ok := AsServiceError(err)
	return ok && serviceErr.Type == "VALIDATION_ERROR"
}

// IsAuthorization reports whether err is an authorization error.
func IsAuthorization(err error) bool {
	serviceErr, ok := AsServiceError(err)
	return ok && serviceErr.Type == "AUTHORIZATION_ERROR"
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	serviceErr, ok := AsServiceError(err)
	return ok && serviceErr.Type == "NOT_FOUND"
}

// Error codes for machine-readable conflict handling.
const (
	CodeTradeNotPending   = "TRADE_NOT_PENDING"
	CodeOwnershipConflict = "OWNERSHIP_CONFLICT"
	CodeDuplicateBadge    = "DUPLICATE_BADGE"
)
