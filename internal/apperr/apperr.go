// Package apperr holds the closed set of failure kinds returned by the
// ledger services. Callers branch on Kind instead of error text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindAlreadyConsumed     Kind = "already_consumed"
	KindAlreadyApplied      Kind = "already_applied"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindAdvantageInactive   Kind = "advantage_inactive"
	KindAdvantageLocked     Kind = "advantage_locked"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindInvalidAmount       Kind = "invalid_amount"
	KindInvalidInput        Kind = "invalid_input"
	KindExpired             Kind = "expired"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindConnectionFailure   Kind = "connection_failure"
	KindInternal            Kind = "internal"
)

var kinds = []Kind{
	KindNotFound,
	KindAlreadyConsumed,
	KindAlreadyApplied,
	KindInsufficientBalance,
	KindAdvantageInactive,
	KindAdvantageLocked,
	KindUnauthorized,
	KindForbidden,
	KindInvalidAmount,
	KindInvalidInput,
	KindExpired,
	KindConflict,
	KindRateLimited,
	KindConnectionFailure,
	KindInternal,
}

// Kinds lists every known kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind maps a wire value back to a Kind. Unknown values become KindInternal.
func ParseKind(value string) Kind {
	for _, k := range kinds {
		if string(k) == value {
			return k
		}
	}
	return KindInternal
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// holds for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	ErrNotFound            = New(KindNotFound, "not found")
	ErrAlreadyConsumed     = New(KindAlreadyConsumed, "voucher already used")
	ErrAlreadyApplied      = New(KindAlreadyApplied, "payment link already used")
	ErrInsufficientBalance = New(KindInsufficientBalance, "insufficient balance")
	ErrAdvantageInactive   = New(KindAdvantageInactive, "advantage is not active")
	ErrAdvantageLocked     = New(KindAdvantageLocked, "advantage already has redemptions")
	ErrUnauthorized        = New(KindUnauthorized, "unauthorized")
	ErrForbidden           = New(KindForbidden, "forbidden")
	ErrInvalidAmount       = New(KindInvalidAmount, "invalid amount")
	ErrInvalidInput        = New(KindInvalidInput, "invalid input")
	ErrExpired             = New(KindExpired, "expired")
	ErrConflict            = New(KindConflict, "conflict")
	ErrRateLimited         = New(KindRateLimited, "too many attempts")
	ErrConnectionFailure   = New(KindConnectionFailure, "could not reach server")
)

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message. Internal errors never expose
// their text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal error"
}
