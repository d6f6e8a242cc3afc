// Package payment wraps the card-charge providers behind a single Gateway
// interface. One admission attempt makes exactly one Charge call, keyed by a
// fresh idempotency key.
package payment

import (
	"context"
	"errors"
	"fmt"

	"gm-occasions/internal/models"
)

// Gateway is the capability the admission service depends on. Adapters must
// honour the request's idempotency key and the context deadline.
type Gateway interface {
	Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error)
	Refund(ctx context.Context, paymentID string, amountCents int, idempotencyKey string) error
}

// ErrUnknownOutcome means the charge may or may not have gone through
// (timeout, transport failure after the request was sent). Callers must not
// blindly retry with the same intent; a fresh attempt is a deliberate,
// caller-initiated decision with a new idempotency key.
var ErrUnknownOutcome = errors.New("payment outcome unknown")

// DeclineError is a definite gateway refusal: no money moved.
type DeclineError struct {
	Code   string
	Detail string
}

func (e *DeclineError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "payment processing failed"
}

// statuses reported by adapters
const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
)

func validateChargeRequest(req models.ChargeRequest) error {
	if req.SourceToken == "" {
		return &DeclineError{Detail: "missing payment token"}
	}
	if req.AmountCents <= 0 {
		return &DeclineError{Detail: fmt.Sprintf("invalid charge amount: %d", req.AmountCents)}
	}
	if req.IdempotencyKey == "" {
		return &DeclineError{Detail: "missing idempotency key"}
	}
	return nil
}
