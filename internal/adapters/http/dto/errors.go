// Package dto holds the JSON shapes written by the HTTP adapter.
package dto

import "net/http"

// ErrorResponse is the envelope of every error response.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is machine readable, e.g. "MISDIRECTED_REQUEST".
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes.
const (
	ErrorCodeNotFound   = "NOT_FOUND"
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeBadRequest = "BAD_REQUEST"
	ErrorCodeTimeout    = "TIMEOUT"
	ErrorCodeInternal   = "INTERNAL_ERROR"

	// ErrorCodeMisdirected means the request's host does not match the
	// application's canonical server name.
	ErrorCodeMisdirected = "MISDIRECTED_REQUEST"
)

// NewErrorResponse creates an error response with the given code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// NewErrorResponseWithDetails creates an error response with field details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}}
}

// WithTraceID sets the trace ID. An empty ID leaves the field out of the JSON.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode maps an error code to its HTTP status.
func HTTPStatusFromCode(code string) int {
	switch code {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeValidation, ErrorCodeBadRequest:
		return http.StatusBadRequest
	case ErrorCodeMisdirected:
		return http.StatusMisdirectedRequest
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
