package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrBusy                    = errors.New("ledger busy, retry later")
	ErrSoldOut                 = errors.New("sold out")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrInvariantViolation      = errors.New("ledger invariant violation")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrTrainNotFound           = errors.New("train not found")
	ErrStationNotFound         = errors.New("station not found")
	ErrInvalidStatusTransition = errors.New("invalid booking status transition")
	ErrInternalServerError     = errors.New("internal server error")
)

// InvalidRequest wraps ErrInvalidRequest with a caller-facing reason.
func InvalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// InvariantError carries the ledger context of a violated invariant.
type InvariantError struct {
	Key    string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s (key %s)", ErrInvariantViolation, e.Detail, e.Key)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}
