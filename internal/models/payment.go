package models

import "time"

// ChargeRequest is a single attempt against the payment gateway. The
// idempotency key is generated fresh for each admission attempt; a
// caller-initiated retry is a new attempt with a new key.
type ChargeRequest struct {
	SourceToken    string
	AmountCents    int
	Currency       string
	IdempotencyKey string
	ReferenceID    string
	Note           string
}

type ChargeResult struct {
	PaymentID  string
	Status     string
	ReceiptURL string
	CreatedAt  time.Time
}

// BookingEvent is the kafka payload published after booking state changes.
type BookingEvent struct {
	BookingID       string    `json:"booking_id"`
	ParentBookingID string    `json:"parent_booking_id,omitempty"`
	Venue           string    `json:"venue"`
	TicketQuantity  int       `json:"ticket_quantity"`
	ReferenceCode   string    `json:"reference_code,omitempty"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurred_at"`
}
