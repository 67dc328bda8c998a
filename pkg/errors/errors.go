package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error represents a typed domain error with HTTP awareness. Details carries
// structured data the caller needs to resynchronize (lock owner, current
// record, current status).
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
)

// Lifecycle error codes. Constructors below attach the structured details
// each failure must carry back to the caller.
const (
	CodeLockHeld          = "LOCK_HELD"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidPayload    = "INVALID_PAYLOAD"
)

// LockHeldDetails reports who holds the lock and when it lapses.
type LockHeldDetails struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LockHeld signals that a different operator holds a non-expired lock.
func LockHeld(owner string, expiresAt time.Time) *Error {
	return &Error{
		Code:    CodeLockHeld,
		Status:  http.StatusLocked,
		Message: fmt.Sprintf("record is being edited by %s", owner),
		Details: LockHeldDetails{Owner: owner, ExpiresAt: expiresAt},
	}
}

// VersionConflictDetails carries the committed record so the caller can
// refresh its view before retrying.
type VersionConflictDetails struct {
	CurrentRecord interface{} `json:"currentRecord"`
}

// VersionConflict signals a stale-read-then-write race.
func VersionConflict(current interface{}) *Error {
	return &Error{
		Code:    CodeVersionConflict,
		Status:  http.StatusConflict,
		Message: "record changed since last read",
		Details: VersionConflictDetails{CurrentRecord: current},
	}
}

// InvalidTransitionDetails names the status the record actually holds.
type InvalidTransitionDetails struct {
	CurrentStatus string `json:"currentStatus"`
}

// InvalidTransition rejects an action the transition table does not allow
// from the current status.
func InvalidTransition(action, currentStatus string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Status:  http.StatusUnprocessableEntity,
		Message: fmt.Sprintf("action %s is not allowed from status %s", action, currentStatus),
		Details: InvalidTransitionDetails{CurrentStatus: currentStatus},
	}
}

// InvalidPayload rejects a transition whose payload fails a precondition.
func InvalidPayload(reason string) *Error {
	return &Error{
		Code:    CodeInvalidPayload,
		Status:  http.StatusBadRequest,
		Message: reason,
		Details: map[string]string{"reason": reason},
	}
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the given lifecycle code.
func Is(err error, code string) bool {
	e := FromError(err)
	return e != nil && e.Code == code
}
