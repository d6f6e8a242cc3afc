package occasion

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest covers malformed purchase input. Nothing has happened
// yet when it is returned: no capacity read, no charge.
var ErrInvalidRequest = errors.New("invalid request")

// ErrOccasionNotFound is returned when a share token resolves to nothing, or
// to an occasion that is not open for purchases (cancelled, pending,
// completed). Callers cannot distinguish the two cases; that is deliberate.
var ErrOccasionNotFound = errors.New("invalid or inactive occasion")

// ErrTokenCollision reports a unique-index violation on a generated token or
// reference code. The probability is negligible but not zero; callers retry
// with fresh tokens.
var ErrTokenCollision = errors.New("token collision")

// CapacityError is returned when a request asks for more tickets than
// remain. Remaining is the fresh count at decision time, so the caller can
// offer the buyer what is actually left.
type CapacityError struct {
	Remaining int
	Requested int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("only %d spots remaining, requested %d", e.Remaining, e.Requested)
}

// PaymentError is a gateway failure before any booking exists. Unknown
// distinguishes a timeout or transport failure (the charge may have gone
// through) from a definite decline.
type PaymentError struct {
	Detail  string
	Unknown bool
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "payment processing failed"
}

func (e *PaymentError) Unwrap() error { return e.Err }

// ReconciliationError is the loudest class: the charge succeeded but the
// booking does not exist (persist failed, or a post-charge capacity loss
// whose refund also failed). Money has moved with no matching record.
type ReconciliationError struct {
	OccasionID string
	PaymentID  string
	Err        error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("booking not recorded for successful payment %s: %v", e.PaymentID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
