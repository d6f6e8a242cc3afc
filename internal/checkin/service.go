// Package checkin handles door-side arrival: looking a booking up by its
// reference code, marking it arrived and rendering the code as a QR image
// staff can scan from the run sheet.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/occasion"
	"gm-occasions/internal/occasion/db"
)

var ErrAlreadyCheckedIn = errors.New("booking already checked in")

type Service struct {
	db  *db.DB
	log *logger.Logger
}

func NewService(database *db.DB, log *logger.Logger) *Service {
	return &Service{db: database, log: log}
}

// CheckIn marks the booking with the given reference code as arrived.
// Checking in twice is rejected so the door count stays honest.
func (s *Service) CheckIn(ctx context.Context, referenceCode string) (*models.Booking, error) {
	booking, err := s.db.GetBookingByReferenceCode(ctx, referenceCode)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return nil, occasion.ErrOccasionNotFound
	}
	if booking.CheckedIn {
		return booking, ErrAlreadyCheckedIn
	}

	now := time.Now().UTC()
	if err := s.db.SetBookingCheckedIn(ctx, booking.ID, now); err != nil {
		return nil, err
	}
	booking.CheckedIn = true
	booking.CheckedInTime = now

	s.log.Info("CHECKIN", fmt.Sprintf("booking %s (%s) checked in", booking.ID, referenceCode))
	return booking, nil
}

// QRCodePNG renders a booking's reference code as a PNG for the run sheet.
func (s *Service) QRCodePNG(ctx context.Context, bookingID string) ([]byte, error) {
	booking, err := s.db.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ReferenceCode == "" {
		return nil, fmt.Errorf("booking %s has no reference code", bookingID)
	}
	return qrcode.Encode(booking.ReferenceCode, qrcode.Medium, 256)
}
