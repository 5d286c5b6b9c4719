package response

import (
	"encoding/json"
	"net/http"
	"time"

	"planandgo/internal/middleware"
	"planandgo/internal/services"

	"go.uber.org/zap"
)

// APIResponse represents a standardized API response
type APIResponse struct {
	Success   bool         `json:"success"`
	Data      any          `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp int64        `json:"timestamp,omitempty"`
}

// ErrorDetail represents error information in API responses
type ErrorDetail struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder writes consistent API responses.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a response builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// WriteSuccess writes a 200 response with data.
func (b *Builder) WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	b.write(w, r, http.StatusOK, &APIResponse{Success: true, Data: data})
}

// WriteCreated writes a 201 response with data.
func (b *Builder) WriteCreated(w http.ResponseWriter, r *http.Request, data any) {
	b.write(w, r, http.StatusCreated, &APIResponse{Success: true, Data: data})
}

// WriteError maps a service error onto the response envelope. Unknown error
// types are masked as internal errors so their details never leak.
func (b *Builder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr, ok := services.AsServiceError(err)
	if !ok {
		b.logger.Error("Unhandled error at API boundary",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		serviceErr = services.NewInternalError("internal server error", nil)
	}

	b.write(w, r, serviceErr.GetStatusCode(), &APIResponse{
		Success: false,
		Error: &ErrorDetail{
			Type:    serviceErr.Type,
			Message: serviceErr.Message,
			Code:    serviceErr.Code,
			Details: serviceErr.Details,
		},
	})
}

// WriteUnauthorized writes a 401 response.
func (b *Builder) WriteUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	b.write(w, r, http.StatusUnauthorized, &APIResponse{
		Success: false,
		Error:   &ErrorDetail{Type: "AUTHENTICATION_ERROR", Message: message},
	})
}

// WriteForbidden writes a 403 response.
func (b *Builder) WriteForbidden(w http.ResponseWriter, r *http.Request, message string) {
	b.write(w, r, http.StatusForbidden, &APIResponse{
		Success: false,
		Error:   &ErrorDetail{Type: "AUTHORIZATION_ERROR", Message: message},
	})
}

// WriteBadRequest writes a 400 response.
func (b *Builder) WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	b.write(w, r, http.StatusBadRequest, &APIResponse{
		Success: false,
		Error:   &ErrorDetail{Type: "VALIDATION_ERROR", Message: message},
	})
}

// WriteNotFound writes a 404 response.
func (b *Builder) WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	b.write(w, r, http.StatusNotFound, &APIResponse{
		Success: false,
		Error:   &ErrorDetail{Type: "NOT_FOUND", Message: message},
	})
}

func (b *Builder) write(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	resp.RequestID = middleware.GetRequestID(r.Context())
	resp.Timestamp = time.Now().Unix()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		b.logger.Error("Failed to encode response", zap.Error(err))
	}
}
