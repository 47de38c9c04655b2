package handlers

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes clients can branch on.
const (
	CodeAPIKeyMissing      = "api_key_missing"
	CodeAPIKeyInvalid      = "api_key_invalid"
	CodeAPIKeyExpired      = "api_key_expired"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeNotFound           = "not_found"
	CodeValidationError    = "validation_error"
	CodeUnauthorized       = "unauthorized"
	CodeInternalError      = "internal_error"
	CodeServiceUnavailable = "service_unavailable"
)

type errorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the fixed error envelope. Raw store errors and stack
// traces never reach clients; only the stable code and message do.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeErrorDetail(w http.ResponseWriter, status int, code, message string, detail interface{}) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Detail: detail}})
}
