package admin

import (
	"encoding/json"
	"net/http"
)

// API error codes returned in the response envelope
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeNotFound        = "NOT_FOUND"
	CodeValidationError = "VALIDATION_ERROR"
	CodeDeleteFailed    = "DELETE_FAILED"
	CodeRollbackFailed  = "ROLLBACK_FAILED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// envelope is the uniform response shape for every admin endpoint
type envelope struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    *apiError              `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}, metadata map[string]interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data, Metadata: metadata})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: message}})
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeEnvelope(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: message, Details: details}})
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
