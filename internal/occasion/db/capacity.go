package db

import (
	"context"
	"database/sql"
	"errors"

	"gm-occasions/internal/models"
	"gm-occasions/internal/occasion"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// RemainingCapacity computes capacity - sum(ticket_quantity) over the
// occasion's non-cancelled child bookings, read fresh from the store. The
// result can be negative if the invariant has ever been violated; callers
// report that rather than crash.
func (d *DB) RemainingCapacity(ctx context.Context, occasionID string) (int, error) {
	occ, err := d.GetOccasionByID(ctx, occasionID)
	if err != nil {
		return 0, err
	}

	sold, err := d.ticketsSold(ctx, d.Bun, occasionID)
	if err != nil {
		return 0, err
	}
	return occ.Capacity - sold, nil
}

// AdmitBooking inserts a paid child booking and its purchaser guest entry in
// one transaction that re-validates the capacity invariant. The read-time
// capacity check in the admission service is only an optimisation; this
// commit is the safety mechanism.
//
// On postgres the organiser row is locked with SELECT ... FOR UPDATE, which
// serialises concurrent admissions for the same occasion (the sqlite test
// driver serialises writers on its own, so the lock clause is gated to
// postgres).
func (d *DB) AdmitBooking(ctx context.Context, booking *models.Booking, guest *models.BookingGuest) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var occ models.Booking
		q := tx.NewSelect().
			Model(&occ).
			Where("id = ?", booking.ParentBookingID).
			Where("booking_type = ?", models.BookingTypeOccasion).
			Where("is_occasion_organiser = ?", true)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return occasion.ErrOccasionNotFound
			}
			return err
		}

		if occ.Status != models.StatusConfirmed {
			return occasion.ErrOccasionNotFound
		}

		sold, err := d.ticketsSold(ctx, tx, booking.ParentBookingID)
		if err != nil {
			return err
		}
		if sold+booking.TicketQuantity > occ.Capacity {
			return &occasion.CapacityError{
				Remaining: occ.Capacity - sold,
				Requested: booking.TicketQuantity,
			}
		}

		if _, err := tx.NewInsert().Model(booking).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return occasion.ErrTokenCollision
			}
			return err
		}
		if _, err := tx.NewInsert().Model(guest).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

// ticketsSold sums ticket_quantity over non-cancelled child bookings using
// whichever query runner it is handed (pool or open transaction).
func (d *DB) ticketsSold(ctx context.Context, idb bun.IDB, occasionID string) (int, error) {
	var sold sql.NullInt64
	err := idb.NewSelect().
		ColumnExpr("SUM(ticket_quantity)").
		Table("bookings").
		Where("parent_booking_id = ?", occasionID).
		Where("status != ?", models.StatusCancelled).
		Scan(ctx, &sold)
	if err != nil {
		return 0, err
	}
	return int(sold.Int64), nil
}

// OccasionStats aggregates child-booking counts for a batch of occasions,
// for the dashboard list view.
func (d *DB) OccasionStats(ctx context.Context, occasionIDs []string) (map[string]models.OccasionStat, error) {
	stats := make(map[string]models.OccasionStat, len(occasionIDs))
	if len(occasionIDs) == 0 {
		return stats, nil
	}

	var rows []struct {
		ParentBookingID string `bun:"parent_booking_id"`
		TotalBookings   int    `bun:"total_bookings"`
		TotalGuests     int    `bun:"total_guests"`
	}
	err := d.Bun.NewSelect().
		ColumnExpr("parent_booking_id").
		ColumnExpr("COUNT(*) AS total_bookings").
		ColumnExpr("SUM(ticket_quantity) AS total_guests").
		Table("bookings").
		Where("parent_booking_id IN (?)", bun.In(occasionIDs)).
		Where("status != ?", models.StatusCancelled).
		GroupExpr("parent_booking_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		stats[r.ParentBookingID] = models.OccasionStat{
			TotalBookings: r.TotalBookings,
			TotalGuests:   r.TotalGuests,
		}
	}
	return stats, nil
}
