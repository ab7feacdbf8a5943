package dto

import "net/http"

// Error codes returned in the error envelope. Codes are stable API surface;
// messages are not.
const (
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeConflict         = "ERR_CONFLICT"
	ErrCodeUnprocessable    = "ERR_UNPROCESSABLE"
	ErrCodeTooManyRequests  = "ERR_TOO_MANY_REQUESTS"
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeUnavailable      = "ERR_UNAVAILABLE"

	// Domain-specific codes
	ErrCodeInvalidTransition  = "ERR_INVALID_TRANSITION"
	ErrCodeJobAlreadyRunning  = "ERR_JOB_ALREADY_RUNNING"
	ErrCodeSignatureInvalid   = "ERR_SIGNATURE_INVALID"
	ErrCodeCarrierUnavailable = "ERR_CARRIER_UNAVAILABLE"
	ErrCodeUnknownStatusCode  = "ERR_UNKNOWN_STATUS_CODE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeValidationFailed: http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeUnprocessable:    http.StatusUnprocessableEntity,
	ErrCodeTooManyRequests:  http.StatusTooManyRequests,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,

	ErrCodeInvalidTransition:  http.StatusUnprocessableEntity,
	ErrCodeJobAlreadyRunning:  http.StatusConflict,
	ErrCodeSignatureInvalid:   http.StatusUnauthorized,
	ErrCodeCarrierUnavailable: http.StatusBadGateway,
	ErrCodeUnknownStatusCode:  http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code,
// defaulting to 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
