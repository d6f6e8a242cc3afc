// Package roster manages the named guest list attached to each booking.
// A purchaser with N tickets gets N positions on the door list; the first
// is filled with their own name at purchase time.
package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/occasion"
)

type Store interface {
	GetBookingByGuestListToken(ctx context.Context, token string) (*models.Booking, error)
	GuestsForBooking(ctx context.Context, bookingID string) ([]models.BookingGuest, error)
	InsertGuest(ctx context.Context, guest *models.BookingGuest) error
	RenameGuest(ctx context.Context, guestID, name string) error
}

type Service struct {
	DB  Store
	log *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{DB: store, log: log}
}

// Get resolves a guest list link to its booking and current names.
func (s *Service) Get(ctx context.Context, guestListToken string) (*models.BookingWithGuests, error) {
	booking, err := s.DB.GetBookingByGuestListToken(ctx, guestListToken)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return nil, occasion.ErrOccasionNotFound
	}

	guests, err := s.DB.GuestsForBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	return &models.BookingWithGuests{Booking: *booking, Guests: guests}, nil
}

// SetGuestName fills or renames one position on the list. Positions are
// 1-based and capped at the ticket quantity; naming position 3 on a
// 2-ticket booking is rejected, not padded.
func (s *Service) SetGuestName(ctx context.Context, guestListToken string, position int, name string) (*models.BookingWithGuests, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: guest name is required", occasion.ErrInvalidRequest)
	}

	booking, err := s.DB.GetBookingByGuestListToken(ctx, guestListToken)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return nil, occasion.ErrOccasionNotFound
	}
	if position < 1 || position > booking.TicketQuantity {
		return nil, fmt.Errorf("%w: position must be between 1 and %d", occasion.ErrInvalidRequest, booking.TicketQuantity)
	}

	guests, err := s.DB.GuestsForBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	if position <= len(guests) {
		if err := s.DB.RenameGuest(ctx, guests[position-1].ID, name); err != nil {
			return nil, err
		}
	} else {
		// Positions are filled in order; a gap just appends.
		if err := s.DB.InsertGuest(ctx, &models.BookingGuest{
			ID:        uuid.NewString(),
			BookingID: booking.ID,
			GuestName: name,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
	}

	s.log.Info("ROSTER", fmt.Sprintf("booking %s position %d set to %q", booking.ID, position, name))
	return s.Get(ctx, guestListToken)
}
