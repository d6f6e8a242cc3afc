package occasion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/tokens"
)

// Store is the database surface the occasion CRUD service uses.
type Store interface {
	CreateOccasion(ctx context.Context, occ *models.Booking) error
	GetOccasionByID(ctx context.Context, id string) (*models.Booking, error)
	GetOccasionByOrganiserToken(ctx context.Context, organiserToken string) (*models.Booking, error)
	UpdateOccasion(ctx context.Context, occ *models.Booking) error
	ListOccasions(ctx context.Context, filters models.OccasionFilters) ([]models.Booking, error)
	OccasionStats(ctx context.Context, occasionIDs []string) (map[string]models.OccasionStat, error)
	ChildBookingsWithGuests(ctx context.Context, occasionID string) ([]models.BookingWithGuests, error)
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) error
}

type Notifier interface {
	OccasionCreated(ctx context.Context, occasion *models.Booking) error
}

type Publisher interface {
	PublishOccasionCreated(occasion models.Booking) error
	PublishBookingCancelled(booking models.Booking) error
}

// Service manages the organiser side of occasions: creating them with
// their token pair, listing them for the dashboard with sales aggregates,
// and partial updates.
type Service struct {
	DB       Store
	Notifier Notifier
	Kafka    Publisher
	links    config.LinkConfig
	log      *logger.Logger
}

func NewService(store Store, notifier Notifier, publisher Publisher, links config.LinkConfig, log *logger.Logger) *Service {
	return &Service{DB: store, Notifier: notifier, Kafka: publisher, links: links, log: log}
}

const createRetries = 3

// Create sets up a new occasion with a fresh organiser/share token pair.
// Token collisions against the unique indexes are retried with new draws.
func (s *Service) Create(ctx context.Context, req models.CreateOccasionRequest, createdBy string) (*models.Booking, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	occ := &models.Booking{
		ID:                  uuid.NewString(),
		BookingType:         models.BookingTypeOccasion,
		IsOccasionOrganiser: true,
		Venue:               req.Venue,
		OccasionName:        req.Name,
		BookingDate:         req.OccasionDate,
		Capacity:            req.Capacity,
		TicketPriceCents:    req.TicketPriceCents,
		CustomerName:        req.OrganiserName,
		CustomerEmail:       req.OrganiserEmail,
		CustomerPhone:       req.OrganiserPhone,
		Status:              models.StatusConfirmed,
		PaymentStatus:       models.PaymentStatusUnpaid,
		BookingSource:       "staff-dashboard",
		StaffNotes:          req.Notes,
		CreatedBy:           createdBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var err error
	for i := 0; i < createRetries; i++ {
		occ.OrganiserToken = tokens.Generate(tokens.PrefixOrganiser)
		occ.ShareToken = tokens.Generate(tokens.PrefixShare)
		err = s.DB.CreateOccasion(ctx, occ)
		if !errors.Is(err, ErrTokenCollision) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("OCCASION", fmt.Sprintf("created %s %q at %s for %d guests", occ.ID, occ.OccasionName, occ.Venue, occ.Capacity))

	if req.SendEmail && occ.CustomerEmail != "" && s.Notifier != nil {
		if err := s.Notifier.OccasionCreated(ctx, occ); err != nil {
			s.log.Warn("OCCASION", fmt.Sprintf("organiser email for %s: %v", occ.ID, err))
		}
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishOccasionCreated(*occ); err != nil {
			s.log.Warn("OCCASION", fmt.Sprintf("publish occasion %s: %v", occ.ID, err))
		}
	}
	return occ, nil
}

func validateCreate(req *models.CreateOccasionRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Venue != models.VenueManor && req.Venue != models.VenueHippie:
		return fmt.Errorf("%w: venue must be %q or %q", ErrInvalidRequest, models.VenueManor, models.VenueHippie)
	case req.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case req.OccasionDate == "":
		return fmt.Errorf("%w: occasion_date is required", ErrInvalidRequest)
	case req.Capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1", ErrInvalidRequest)
	case req.TicketPriceCents < 0:
		return fmt.Errorf("%w: ticket_price_cents cannot be negative", ErrInvalidRequest)
	}
	if _, err := time.Parse("2006-01-02", req.OccasionDate); err != nil {
		return fmt.Errorf("%w: occasion_date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return nil
}

// List returns dashboard rows with per-occasion sales aggregates.
func (s *Service) List(ctx context.Context, filters models.OccasionFilters) ([]models.OccasionWithStats, error) {
	occasions, err := s.DB.ListOccasions(ctx, filters)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(occasions))
	for i := range occasions {
		ids[i] = occasions[i].ID
	}
	stats, err := s.DB.OccasionStats(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.OccasionWithStats, len(occasions))
	for i := range occasions {
		out[i] = s.withStats(occasions[i], stats[occasions[i].ID])
	}
	return out, nil
}

// Get returns one occasion with aggregates, by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.OccasionWithStats, error) {
	occ, err := s.DB.GetOccasionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.statsFor(ctx, occ)
}

// GetByOrganiserToken resolves the organiser's private link.
func (s *Service) GetByOrganiserToken(ctx context.Context, organiserToken string) (*models.OccasionWithStats, error) {
	occ, err := s.DB.GetOccasionByOrganiserToken(ctx, organiserToken)
	if err != nil {
		return nil, err
	}
	return s.statsFor(ctx, occ)
}

func (s *Service) statsFor(ctx context.Context, occ *models.Booking) (*models.OccasionWithStats, error) {
	stats, err := s.DB.OccasionStats(ctx, []string{occ.ID})
	if err != nil {
		return nil, err
	}
	result := s.withStats(*occ, stats[occ.ID])
	return &result, nil
}

// withStats clamps remaining capacity at zero for display. A negative value
// means the invariant was violated at some point; that is worth a warning,
// not a broken dashboard.
func (s *Service) withStats(occ models.Booking, stat models.OccasionStat) models.OccasionWithStats {
	remaining := occ.Capacity - stat.TotalGuests
	if remaining < 0 {
		s.log.Warn("OCCASION", fmt.Sprintf("occasion %s is oversold: capacity %d, sold %d", occ.ID, occ.Capacity, stat.TotalGuests))
		remaining = 0
	}
	return models.OccasionWithStats{
		Booking:           occ,
		TotalBookings:     stat.TotalBookings,
		TotalGuests:       stat.TotalGuests,
		RemainingCapacity: remaining,
	}
}

// Update applies a partial update. Tokens are never touched.
func (s *Service) Update(ctx context.Context, id string, req models.UpdateOccasionRequest) (*models.Booking, error) {
	occ, err := s.DB.GetOccasionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		occ.OccasionName = strings.TrimSpace(*req.Name)
	}
	if req.OccasionDate != nil {
		if _, err := time.Parse("2006-01-02", *req.OccasionDate); err != nil {
			return nil, fmt.Errorf("%w: occasion_date must be YYYY-MM-DD", ErrInvalidRequest)
		}
		occ.BookingDate = *req.OccasionDate
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, fmt.Errorf("%w: capacity must be at least 1", ErrInvalidRequest)
		}
		occ.Capacity = *req.Capacity
	}
	if req.TicketPriceCents != nil {
		if *req.TicketPriceCents < 0 {
			return nil, fmt.Errorf("%w: ticket_price_cents cannot be negative", ErrInvalidRequest)
		}
		occ.TicketPriceCents = *req.TicketPriceCents
	}
	if req.OrganiserName != nil {
		occ.CustomerName = *req.OrganiserName
	}
	if req.OrganiserEmail != nil {
		occ.CustomerEmail = *req.OrganiserEmail
	}
	if req.OrganiserPhone != nil {
		occ.CustomerPhone = *req.OrganiserPhone
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *req.Status)
		}
		occ.Status = *req.Status
	}
	if req.Notes != nil {
		occ.StaffNotes = *req.Notes
	}
	occ.UpdatedAt = time.Now().UTC()

	if err := s.DB.UpdateOccasion(ctx, occ); err != nil {
		return nil, err
	}
	return occ, nil
}

func validStatus(status string) bool {
	switch status {
	case models.StatusPending, models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted:
		return true
	}
	return false
}

// Bookings returns the occasion's run sheet: every child booking with its
// ordered guest names.
func (s *Service) Bookings(ctx context.Context, occasionID string) ([]models.BookingWithGuests, error) {
	if _, err := s.DB.GetOccasionByID(ctx, occasionID); err != nil {
		return nil, err
	}
	return s.DB.ChildBookingsWithGuests(ctx, occasionID)
}

// CancelBooking releases a child booking's tickets back to the pool.
// Refunds are handled out of band by staff.
func (s *Service) CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.IsOccasionOrganiser {
		return nil, fmt.Errorf("%w: cannot cancel the organiser booking, cancel the occasion instead", ErrInvalidRequest)
	}
	if booking.Status == models.StatusCancelled {
		return booking, nil
	}

	if err := s.DB.CancelBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled

	s.log.Info("OCCASION", fmt.Sprintf("cancelled booking %s, released %d ticket(s)", booking.ID, booking.TicketQuantity))
	if s.Kafka != nil {
		if err := s.Kafka.PublishBookingCancelled(*booking); err != nil {
			s.log.Warn("OCCASION", fmt.Sprintf("publish cancellation %s: %v", booking.ID, err))
		}
	}
	return booking, nil
}

// ShareURL is the public purchase link for an occasion.
func (s *Service) ShareURL(occ *models.Booking) string {
	return s.links.ShareURL(occ.Venue, occ.ShareToken)
}

// OrganiserURL is the organiser's private management link.
func (s *Service) OrganiserURL(occ *models.Booking) string {
	return s.links.OrganiserURL(occ.Venue, occ.OrganiserToken)
}
