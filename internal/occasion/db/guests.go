package db

import (
	"context"

	"gm-occasions/internal/models"
)

// ---------------- GUEST ENTRIES ----------------

// GuestsForBooking returns a booking's guest list, organiser first, then by
// creation order. The dashboard and guest-list pages both rely on this
// ordering.
func (d *DB) GuestsForBooking(ctx context.Context, bookingID string) ([]models.BookingGuest, error) {
	var guests []models.BookingGuest
	err := d.Bun.NewSelect().
		Model(&guests).
		Where("booking_id = ?", bookingID).
		Order("is_organiser DESC", "created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return guests, nil
}

// InsertGuest → add one guest entry
func (d *DB) InsertGuest(ctx context.Context, guest *models.BookingGuest) error {
	_, err := d.Bun.NewInsert().Model(guest).Exec(ctx)
	return err
}

// RenameGuest updates a guest's name in place.
func (d *DB) RenameGuest(ctx context.Context, guestID, name string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.BookingGuest)(nil)).
		Set("guest_name = ?", name).
		Where("id = ?", guestID).
		Exec(ctx)
	return err
}
