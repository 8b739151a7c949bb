package telegram

import (
	"errors"
	"fmt"
	"time"
)

// APIError is an ok=false response from the Bot API.
// Callers can use errors.As to extract it:
//
//	var apiErr *telegram.APIError
//	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 { ... }
type APIError struct {
	// Method is the Bot API method that failed.
	Method string
	// Code is the error_code field, usually mirroring the HTTP status.
	Code int
	// Description is the human-readable reason.
	Description string
	// RetryAfter is set on flood-control (429) responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %s: %d %s (retry after %s)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

// IsAPIError reports whether err is an *APIError with the given code.
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
