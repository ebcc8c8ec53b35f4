package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a distinct ledger failure condition. Every mutating
// operation either fully succeeds or fails with exactly one Kind.
type Kind string

const (
	KindInvalidToken        Kind = "invalid_token"
	KindInvalidPrizePool    Kind = "invalid_prize_pool"
	KindInvalidAddress      Kind = "invalid_address"
	KindArrayLengthMismatch Kind = "array_length_mismatch"
	KindExceedsPrizePool    Kind = "exceeds_prize_pool"
	KindHackathonNotFound   Kind = "hackathon_not_found"
	KindHackathonNotActive  Kind = "hackathon_not_active"
	KindNoPrizeAllocated    Kind = "no_prize_allocated"
	KindAlreadyClaimed      Kind = "already_claimed"
	KindContractPaused      Kind = "contract_paused"
	KindUnauthorized        Kind = "unauthorized"
	KindAuthentication      Kind = "authentication"
	KindValidation          Kind = "validation"
	KindTransferFailed      Kind = "transfer_failed"
	KindInternal            Kind = "internal"
)

// statusForKind maps each failure kind to its HTTP status.
var statusForKind = map[Kind]int{
	KindInvalidToken:        http.StatusBadRequest,
	KindInvalidPrizePool:    http.StatusBadRequest,
	KindInvalidAddress:      http.StatusBadRequest,
	KindArrayLengthMismatch: http.StatusBadRequest,
	KindExceedsPrizePool:    http.StatusUnprocessableEntity,
	KindHackathonNotFound:   http.StatusNotFound,
	KindHackathonNotActive:  http.StatusConflict,
	KindNoPrizeAllocated:    http.StatusNotFound,
	KindAlreadyClaimed:      http.StatusConflict,
	KindContractPaused:      http.StatusServiceUnavailable,
	KindUnauthorized:        http.StatusForbidden,
	KindAuthentication:      http.StatusUnauthorized,
	KindValidation:          http.StatusBadRequest,
	KindTransferFailed:      http.StatusBadGateway,
	KindInternal:            http.StatusInternalServerError,
}

// AppError is a structured application error carrying the failure kind,
// a caller-facing message and an optional wrapped internal error.
type AppError struct {
	Kind     Kind           `json:"kind"`
	Message  string         `json:"message"`
	Internal error          `json:"-"`
	Details  map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// StatusCode returns the HTTP status mapped to the error kind.
func (e *AppError) StatusCode() int {
	if code, ok := statusForKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Is matches AppErrors by kind so callers can compare with errors.Is.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Kind == appErr.Kind
	}
	return false
}

// New creates an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap creates an AppError of the given kind wrapping an internal error.
func Wrap(kind Kind, message string, internal error) *AppError {
	return &AppError{Kind: kind, Message: message, Internal: internal}
}

// KindOf extracts the Kind from err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// ErrorResponse is the JSON error envelope written to clients.
type ErrorResponse struct {
	Error struct {
		Kind      Kind           `json:"kind"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details,omitempty"`
		RequestID string         `json:"request_id,omitempty"`
		Timestamp string         `json:"timestamp"`
	} `json:"error"`
}
