package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BookingGuest is a named guest on a booking's list. Exactly one entry per
// occasion carries IsOrganiser; purchased guests never do.
type BookingGuest struct {
	bun.BaseModel `bun:"table:booking_guests"`

	ID          string    `bun:"id,pk" json:"id"`
	BookingID   string    `bun:"booking_id" json:"booking_id"`
	GuestName   string    `bun:"guest_name" json:"guest_name"`
	IsOrganiser bool      `bun:"is_organiser" json:"is_organiser"`
	CreatedAt   time.Time `bun:"created_at" json:"created_at"`
}
