package client

import (
	"virtus/internal/apperr"
	"virtus/internal/models"
)

// Kind names a failure reported by the server. APIError.Is matches the Err
// values below by kind, so callers outside this module can write
// errors.Is(err, client.ErrAlreadyConsumed).
type Kind = apperr.Kind

const (
	KindNotFound            = apperr.KindNotFound
	KindAlreadyConsumed     = apperr.KindAlreadyConsumed
	KindAlreadyApplied      = apperr.KindAlreadyApplied
	KindInsufficientBalance = apperr.KindInsufficientBalance
	KindAdvantageInactive   = apperr.KindAdvantageInactive
	KindAdvantageLocked     = apperr.KindAdvantageLocked
	KindUnauthorized        = apperr.KindUnauthorized
	KindForbidden           = apperr.KindForbidden
	KindInvalidAmount       = apperr.KindInvalidAmount
	KindInvalidInput        = apperr.KindInvalidInput
	KindExpired             = apperr.KindExpired
	KindConflict            = apperr.KindConflict
	KindRateLimited         = apperr.KindRateLimited
	KindConnectionFailure   = apperr.KindConnectionFailure
	KindInternal            = apperr.KindInternal
)

var (
	ErrNotFound            = apperr.ErrNotFound
	ErrAlreadyConsumed     = apperr.ErrAlreadyConsumed
	ErrAlreadyApplied      = apperr.ErrAlreadyApplied
	ErrInsufficientBalance = apperr.ErrInsufficientBalance
	ErrAdvantageInactive   = apperr.ErrAdvantageInactive
	ErrAdvantageLocked     = apperr.ErrAdvantageLocked
	ErrUnauthorized        = apperr.ErrUnauthorized
	ErrForbidden           = apperr.ErrForbidden
	ErrInvalidAmount       = apperr.ErrInvalidAmount
	ErrInvalidInput        = apperr.ErrInvalidInput
	ErrExpired             = apperr.ErrExpired
	ErrConflict            = apperr.ErrConflict
	ErrRateLimited         = apperr.ErrRateLimited
	ErrConnectionFailure   = apperr.ErrConnectionFailure
)

// UserKind selects which collection Balance and Statement address.
type UserKind = models.UserKind

const (
	Student   = models.KindStudent
	Professor = models.KindProfessor
	Company   = models.KindCompany
)
