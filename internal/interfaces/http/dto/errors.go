package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an action's guard rejects the order's current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeNotConnected is used when the store has no commerce credentials
	ErrCodeNotConnected = "ERR_STORE_NOT_CONNECTED"
	// ErrCodeSyncInProgress is used when the store is already being synced
	ErrCodeSyncInProgress = "ERR_SYNC_IN_PROGRESS"
)

// Commerce platform error codes
const (
	// ErrCodeRemoteRejected is used when the platform answered success=false
	ErrCodeRemoteRejected = "ERR_REMOTE_REJECTED"
	// ErrCodeRemoteUnavailable is used when the platform could not be reached or failed
	ErrCodeRemoteUnavailable = "ERR_REMOTE_UNAVAILABLE"
)

// Capacity error codes
const (
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
	ErrCodeSchedulerBusy    = "ERR_SCHEDULER_BUSY"
	ErrCodeServiceUnhealthy = "ERR_SERVICE_UNHEALTHY"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
	ErrCodeNotConnected:   http.StatusUnprocessableEntity,
	ErrCodeSyncInProgress: http.StatusConflict,

	// The platform sits behind us, so its failures are gateway errors
	ErrCodeRemoteRejected:    http.StatusBadGateway,
	ErrCodeRemoteUnavailable: http.StatusBadGateway,

	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeSchedulerBusy:    http.StatusServiceUnavailable,
	ErrCodeServiceUnhealthy: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to API error codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
