package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form TD-<AREA>-<NNNN>; the last four digits follow HTTP
// status semantics so operators can group them.
type DomainError struct {
	Code    string // Error code (e.g., "TD-TOKN-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Token errors (TOKN).
var (
	// ErrTokenMalformed indicates the transport string could not be decoded.
	ErrTokenMalformed = NewDomainError("TD-TOKN-4000", "malformed token")

	// ErrTokenMissing indicates no token argument was supplied.
	ErrTokenMissing = NewDomainError("TD-TOKN-4001", "missing token")

	// ErrTokenInvalid indicates the token did not decode or names no record.
	// Its cause is ErrTokenMalformed or ErrTokenNotFound.
	ErrTokenInvalid = NewDomainError("TD-TOKN-4010", "invalid token")

	// ErrTokenExpired indicates the token exists but is past its delivery window.
	ErrTokenExpired = NewDomainError("TD-TOKN-4011", "token expired")

	// ErrTokenNotFound indicates no record exists for a token id.
	ErrTokenNotFound = NewDomainError("TD-TOKN-4040", "token not found")

	// ErrTokenConflict indicates a freshly generated id already has a record.
	ErrTokenConflict = NewDomainError("TD-TOKN-4090", "token id conflict")
)

// Batch errors (BTCH).
var (
	// ErrNoOpenBatch indicates the conversation has no batch in progress.
	ErrNoOpenBatch = NewDomainError("TD-BTCH-4040", "no batch in progress")
)

// Delivery errors (DLVR).
var (
	// ErrFileUnavailable indicates a stored file could not be opened.
	ErrFileUnavailable = NewDomainError("TD-DLVR-4040", "file unavailable")

	// ErrSendFailed indicates the messaging platform rejected a send.
	ErrSendFailed = NewDomainError("TD-DLVR-5020", "send failed")
)

// Authorization errors (AUTH).
var (
	// ErrPermissionDenied indicates the caller is not an operator.
	ErrPermissionDenied = NewDomainError("TD-AUTH-4030", "permission denied")
)

// System errors (SYS).
var (
	// ErrInternalServer indicates an internal error.
	ErrInternalServer = NewDomainError("TD-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("TD-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates an external collaborator is unavailable.
	ErrServiceUnavailable = NewDomainError("TD-SYS-5030", "service unavailable")
)

// Argument errors (ARG).
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TD-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TD-ARG-1002", "missing required argument")
)
