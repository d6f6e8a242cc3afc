package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Venues. Every booking belongs to one of the two sites.
const (
	VenueManor  = "manor"
	VenueHippie = "hippie"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Payment statuses.
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

const BookingTypeOccasion = "occasion"

// Booking is one row of the bookings table. Occasions are stored as organiser
// bookings (IsOccasionOrganiser true, TicketQuantity 0) and every ticket
// purchase is a child row pointing back via ParentBookingID.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                  string    `bun:"id,pk" json:"id"`
	BookingType         string    `bun:"booking_type" json:"booking_type"`
	IsOccasionOrganiser bool      `bun:"is_occasion_organiser" json:"is_occasion_organiser"`
	ParentBookingID     string    `bun:"parent_booking_id,nullzero" json:"parent_booking_id,omitempty"`
	Venue               string    `bun:"venue" json:"venue"`
	OccasionName        string    `bun:"occasion_name,nullzero" json:"occasion_name,omitempty"`
	BookingDate         string    `bun:"booking_date" json:"booking_date"`
	Capacity            int       `bun:"capacity" json:"capacity"`
	TicketPriceCents    int       `bun:"ticket_price_cents" json:"ticket_price_cents"`
	TicketQuantity      int       `bun:"ticket_quantity" json:"ticket_quantity"`
	CustomerName        string    `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	CustomerEmail       string    `bun:"customer_email,nullzero" json:"customer_email,omitempty"`
	CustomerPhone       string    `bun:"customer_phone,nullzero" json:"customer_phone,omitempty"`
	OrganiserToken      string    `bun:"organiser_token,nullzero,unique" json:"organiser_token,omitempty"`
	ShareToken          string    `bun:"share_token,nullzero,unique" json:"share_token,omitempty"`
	GuestListToken      string    `bun:"guest_list_token,nullzero,unique" json:"guest_list_token,omitempty"`
	ReferenceCode       string    `bun:"reference_code,nullzero,unique" json:"reference_code,omitempty"`
	Status              string    `bun:"status" json:"status"`
	PaymentStatus       string    `bun:"payment_status" json:"payment_status"`
	PaymentID           string    `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	IdempotencyKey      string    `bun:"idempotency_key,nullzero" json:"-"`
	TotalAmountCents    int       `bun:"total_amount_cents" json:"total_amount_cents"`
	PaymentCompletedAt  time.Time `bun:"payment_completed_at,nullzero" json:"payment_completed_at,omitempty"`
	BookingSource       string    `bun:"booking_source,nullzero" json:"booking_source,omitempty"`
	StaffNotes          string    `bun:"staff_notes,nullzero" json:"staff_notes,omitempty"`
	CheckedIn           bool      `bun:"checked_in" json:"checked_in"`
	CheckedInTime       time.Time `bun:"checked_in_time,nullzero" json:"checked_in_time,omitempty"`
	CreatedBy           string    `bun:"created_by,nullzero" json:"created_by,omitempty"`
	CreatedAt           time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt           time.Time `bun:"updated_at" json:"updated_at"`
}

// OccasionStat holds the child-booking aggregates for one occasion.
type OccasionStat struct {
	TotalBookings int
	TotalGuests   int
}

// OccasionWithStats decorates an organiser booking with aggregates over its
// non-cancelled children, for the dashboard list and detail views.
type OccasionWithStats struct {
	Booking
	TotalBookings     int `json:"total_bookings"`
	TotalGuests       int `json:"total_guests"`
	RemainingCapacity int `json:"remaining_capacity"`
}

// BookingWithGuests is one child booking together with its ordered guest list.
type BookingWithGuests struct {
	Booking
	Guests []BookingGuest `json:"guests"`
}
