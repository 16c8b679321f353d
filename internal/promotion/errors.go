package promotion

import (
	"errors"

	"github.com/hungtruong03/SAPromotion/internal/codes"
)

// Errors returned by the promotion service. Callers match them with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrAlreadyRedeemed      = errors.New("promotion has already been redeemed")
	ErrOwnershipMismatch    = errors.New("promotion is not assigned to this user")
	ErrExpired              = errors.New("promotion type has expired")
	ErrConflict             = errors.New("promotion was modified concurrently")
	ErrExhausted            = errors.New("no unassigned promotion left for this type")
	ErrUpstreamFailure      = errors.New("partner redeem api failed")
	ErrValidation           = errors.New("validation error")

	// ErrCodeSpaceExhausted is returned when no free short code could be found.
	ErrCodeSpaceExhausted = codes.ErrCodeSpaceExhausted
)

// validationError wraps ErrValidation with a field-specific message.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(msg string) error {
	return &validationError{msg: msg}
}
