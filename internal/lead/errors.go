package lead

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure code returned to clients.
type Code string

// Failure codes. Lock and purchase conflicts use distinct codes so clients
// can tell "someone else is reviewing this lead" from "already sold".
const (
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeMissingIdempotencyKey Code = "MISSING_IDEMPOTENCY_KEY"
	CodeLeadNotFound          Code = "LEAD_NOT_FOUND"
	CodeProjectNotFound       Code = "PROJECT_NOT_FOUND"
	CodeProfileNotFound       Code = "PROFILE_NOT_FOUND"
	CodeLeadAlreadyPurchased  Code = "LEAD_ALREADY_PURCHASED"
	CodeLeadLocked            Code = "LEAD_LOCKED"
	CodePaymentsLiveMode      Code = "PAYMENTS_LIVE_MODE"
	CodeLeadNotLocked         Code = "LEAD_NOT_LOCKED"
	CodeNotLockOwner          Code = "NOT_LOCK_OWNER"
	CodeAlreadyPurchased      Code = "ALREADY_PURCHASED"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
)

// Error is a precondition, authorization or lookup failure detected before
// any mutation.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lead: %s: %s", e.Code, e.Message)
}

// Errorf builds an Error for packages that share the lead failure codes.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return errorf(code, format, args...)
}

func errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the Code carried by err, or "" for store and other
// unclassified failures.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
