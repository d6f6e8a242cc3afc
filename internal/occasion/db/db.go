package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gm-occasions/internal/models"
	"gm-occasions/internal/occasion"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- OCCASIONS ----------------

// GetOccasionByID → fetch one organiser booking by its ID
func (d *DB) GetOccasionByID(ctx context.Context, id string) (*models.Booking, error) {
	var occ models.Booking
	err := d.Bun.NewSelect().
		Model(&occ).
		Where("id = ?", id).
		Where("booking_type = ?", models.BookingTypeOccasion).
		Where("is_occasion_organiser = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, occasion.ErrOccasionNotFound
		}
		return nil, err
	}
	return &occ, nil
}

// GetActiveOccasionByShareToken resolves a public share token to its
// occasion. Only confirmed occasions are purchasable; anything else looks
// identical to a missing token from the outside.
func (d *DB) GetActiveOccasionByShareToken(ctx context.Context, shareToken string) (*models.Booking, error) {
	var occ models.Booking
	err := d.Bun.NewSelect().
		Model(&occ).
		Where("share_token = ?", shareToken).
		Where("booking_type = ?", models.BookingTypeOccasion).
		Where("is_occasion_organiser = ?", true).
		Where("status = ?", models.StatusConfirmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, occasion.ErrOccasionNotFound
		}
		return nil, err
	}
	return &occ, nil
}

// GetOccasionByOrganiserToken resolves the private organiser token.
func (d *DB) GetOccasionByOrganiserToken(ctx context.Context, organiserToken string) (*models.Booking, error) {
	var occ models.Booking
	err := d.Bun.NewSelect().
		Model(&occ).
		Where("organiser_token = ?", organiserToken).
		Where("booking_type = ?", models.BookingTypeOccasion).
		Where("is_occasion_organiser = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, occasion.ErrOccasionNotFound
		}
		return nil, err
	}
	return &occ, nil
}

// CreateOccasion → insert a new organiser booking plus its organiser guest
// entry, the single is_organiser row every occasion carries. A unique-index
// violation on either token is surfaced as ErrTokenCollision so the caller
// can regenerate and retry; the rollback takes the guest row with it.
func (d *DB) CreateOccasion(ctx context.Context, occ *models.Booking) error {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(occ).Exec(ctx); err != nil {
			return err
		}

		name := occ.CustomerName
		if name == "" {
			name = occ.OccasionName
		}
		organiser := &models.BookingGuest{
			ID:          uuid.NewString(),
			BookingID:   occ.ID,
			GuestName:   name,
			IsOrganiser: true,
			CreatedAt:   occ.CreatedAt,
		}
		_, err := tx.NewInsert().Model(organiser).Exec(ctx)
		return err
	})
	if isUniqueViolation(err) {
		return occasion.ErrTokenCollision
	}
	return err
}

// UpdateOccasion → update allowed fields on an organiser booking
func (d *DB) UpdateOccasion(ctx context.Context, occ *models.Booking) error {
	occ.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(occ).
		Column("occasion_name", "booking_date", "capacity", "ticket_price_cents",
			"customer_name", "customer_email", "customer_phone",
			"status", "staff_notes", "updated_at").
		Where("id = ?", occ.ID).
		Where("booking_type = ?", models.BookingTypeOccasion).
		Where("is_occasion_organiser = ?", true).
		Exec(ctx)
	return err
}

// ListOccasions → organiser bookings newest occasion date first, filtered
func (d *DB) ListOccasions(ctx context.Context, filters models.OccasionFilters) ([]models.Booking, error) {
	q := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("booking_type = ?", models.BookingTypeOccasion).
		Where("is_occasion_organiser = ?", true).
		Order("booking_date DESC")

	if filters.Venue != "" && filters.Venue != "all" {
		q = q.Where("venue = ?", filters.Venue)
	}
	if filters.Status != "" && filters.Status != "all" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.DateFrom != "" {
		q = q.Where("booking_date >= ?", filters.DateFrom)
	}
	if filters.DateTo != "" {
		q = q.Where("booking_date <= ?", filters.DateTo)
	}

	var occs []models.Booking
	if err := q.Scan(ctx, &occs); err != nil {
		return nil, err
	}
	return occs, nil
}

// ---------------- CHILD BOOKINGS ----------------

// ChildBookings → all ticket bookings for an occasion, newest first
func (d *DB) ChildBookings(ctx context.Context, occasionID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("parent_booking_id = ?", occasionID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ChildBookingsWithGuests attaches each child booking's ordered guest list.
func (d *DB) ChildBookingsWithGuests(ctx context.Context, occasionID string) ([]models.BookingWithGuests, error) {
	bookings, err := d.ChildBookings(ctx, occasionID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []models.BookingWithGuests{}, nil
	}

	bookingIDs := make([]string, len(bookings))
	for i, b := range bookings {
		bookingIDs[i] = b.ID
	}

	var guests []models.BookingGuest
	err = d.Bun.NewSelect().
		Model(&guests).
		Where("booking_id IN (?)", bun.In(bookingIDs)).
		Order("is_organiser DESC", "created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	guestsByBooking := make(map[string][]models.BookingGuest)
	for _, g := range guests {
		guestsByBooking[g.BookingID] = append(guestsByBooking[g.BookingID], g)
	}

	result := make([]models.BookingWithGuests, len(bookings))
	for i, b := range bookings {
		result[i] = models.BookingWithGuests{Booking: b, Guests: guestsByBooking[b.ID]}
		if result[i].Guests == nil {
			result[i].Guests = []models.BookingGuest{}
		}
	}
	return result, nil
}

// GetBookingByID → fetch one booking (organiser or child) by ID
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, occasion.ErrOccasionNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// GetBookingByReferenceCode → human-facing lookup used at the door
func (d *DB) GetBookingByReferenceCode(ctx context.Context, code string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("reference_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, occasion.ErrOccasionNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// GetBookingByGuestListToken → per-booking guest-list access
func (d *DB) GetBookingByGuestListToken(ctx context.Context, token string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("guest_list_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, occasion.ErrOccasionNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// SetBookingCheckedIn stamps a booking as arrived.
func (d *DB) SetBookingCheckedIn(ctx context.Context, bookingID string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("checked_in = ?", true).
		Set("checked_in_time = ?", at).
		Where("id = ?", bookingID).
		Exec(ctx)
	return err
}

// CancelBooking marks a child booking cancelled; its quantity immediately
// stops counting against the occasion's capacity.
func (d *DB) CancelBooking(ctx context.Context, bookingID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.StatusCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Exec(ctx)
	return err
}

// isUniqueViolation recognises unique-index errors from both postgres and
// the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
