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
	"gm-occasions/internal/payment"
	"gm-occasions/internal/tokens"
)

// AdmissionStore is the slice of the database layer the admission flow
// needs. AdmitBooking must enforce the capacity invariant atomically; the
// RemainingCapacity read here is only an optimisation to avoid charging a
// card for a booking that cannot fit.
type AdmissionStore interface {
	GetActiveOccasionByShareToken(ctx context.Context, shareToken string) (*models.Booking, error)
	RemainingCapacity(ctx context.Context, occasionID string) (int, error)
	AdmitBooking(ctx context.Context, booking *models.Booking, guest *models.BookingGuest) error
}

// AdmissionLock is the per-occasion advisory lock. It narrows the window
// for concurrent purchases to collide on the same occasion; the database
// commit stays correct without it.
type AdmissionLock interface {
	LockOccasion(ctx context.Context, occasionID, attemptID string) (bool, error)
	UnlockOccasion(ctx context.Context, occasionID, attemptID string) error
}

type AdmissionNotifier interface {
	TicketConfirmed(ctx context.Context, booking, occasion *models.Booking) error
}

type AdmissionPublisher interface {
	PublishBookingCreated(booking models.Booking) error
}

type AdmissionService struct {
	DB       AdmissionStore
	Lock     AdmissionLock
	Gateway  payment.Gateway
	Notifier AdmissionNotifier
	Kafka    AdmissionPublisher
	cfg      config.PaymentConfig
	log      *logger.Logger
}

func NewAdmissionService(db AdmissionStore, lock AdmissionLock, gateway payment.Gateway,
	notifier AdmissionNotifier, publisher AdmissionPublisher,
	cfg config.PaymentConfig, log *logger.Logger) *AdmissionService {
	return &AdmissionService{
		DB:       db,
		Lock:     lock,
		Gateway:  gateway,
		Notifier: notifier,
		Kafka:    publisher,
		cfg:      cfg,
		log:      log,
	}
}

const (
	lockRetries   = 3
	lockRetryWait = 200 * time.Millisecond

	persistRetries = 3

	maxTicketQuantity = 50
)

// Admit runs one purchase attempt end to end: validate, resolve the share
// token, check capacity, charge the card, persist the booking atomically,
// then notify out of band. Failure classes map onto the error types in
// errors.go; everything before the charge leaves no trace.
func (s *AdmissionService) Admit(ctx context.Context, req models.PayAndBookRequest) (*models.Booking, error) {
	if err := validateAdmission(&req); err != nil {
		return nil, err
	}

	occ, err := s.DB.GetActiveOccasionByShareToken(ctx, req.ShareToken)
	if err != nil {
		return nil, err
	}

	attemptID := uuid.NewString()
	s.log.LogAdmission("START", occ.ID, fmt.Sprintf("attempt %s: %d ticket(s) for %q", attemptID, req.TicketQuantity, req.CustomerName))

	locked := s.acquireLock(ctx, occ.ID, attemptID)
	if locked {
		defer func() {
			if err := s.Lock.UnlockOccasion(context.Background(), occ.ID, attemptID); err != nil {
				s.log.Warn("ADMISSION", fmt.Sprintf("unlock occasion %s: %v", occ.ID, err))
			}
		}()
	}

	// Fresh read before money moves. The commit below re-checks under the
	// row lock, so a stale read here can only cost us a refund, never an
	// oversold occasion.
	remaining, err := s.DB.RemainingCapacity(ctx, occ.ID)
	if err != nil {
		return nil, err
	}
	if remaining < req.TicketQuantity {
		s.log.LogAdmission("REJECT", occ.ID, fmt.Sprintf("attempt %s: %d remaining, %d requested", attemptID, remaining, req.TicketQuantity))
		return nil, &CapacityError{Remaining: remaining, Requested: req.TicketQuantity}
	}

	booking := s.newChildBooking(occ, req)

	charge, err := s.charge(ctx, occ, booking, req.PaymentToken)
	if err != nil {
		return nil, err
	}
	if charge != nil {
		booking.PaymentID = charge.PaymentID
		if booking.PaymentStatus == models.PaymentStatusPaid {
			booking.PaymentCompletedAt = time.Now().UTC()
		}
	}

	if err := s.persist(ctx, occ, booking); err != nil {
		return nil, err
	}

	s.log.LogAdmission("CONFIRMED", occ.ID, fmt.Sprintf("booking %s (%s) for %d ticket(s)", booking.ID, booking.ReferenceCode, booking.TicketQuantity))
	s.notifyAsync(booking, occ)
	return booking, nil
}

func validateAdmission(req *models.PayAndBookRequest) error {
	req.ShareToken = strings.TrimSpace(req.ShareToken)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)

	switch {
	case req.ShareToken == "":
		return fmt.Errorf("%w: shareToken is required", ErrInvalidRequest)
	case req.CustomerName == "":
		return fmt.Errorf("%w: customerName is required", ErrInvalidRequest)
	case req.CustomerEmail == "" && req.CustomerPhone == "":
		return fmt.Errorf("%w: customerEmail or customerPhone is required", ErrInvalidRequest)
	case req.TicketQuantity < 1:
		return fmt.Errorf("%w: ticketQuantity must be at least 1", ErrInvalidRequest)
	case req.TicketQuantity > maxTicketQuantity:
		return fmt.Errorf("%w: ticketQuantity too large", ErrInvalidRequest)
	case req.PaymentToken == "":
		return fmt.Errorf("%w: paymentToken is required", ErrInvalidRequest)
	case req.CustomerEmail != "" && !strings.Contains(req.CustomerEmail, "@"):
		return fmt.Errorf("%w: customerEmail is not a valid address", ErrInvalidRequest)
	}
	return nil
}

// acquireLock takes the advisory lock with a short retry, then gives up and
// lets the attempt proceed. Contention is expected around popular
// occasions; redis being down must not block sales.
func (s *AdmissionService) acquireLock(ctx context.Context, occasionID, attemptID string) bool {
	for i := 0; i < lockRetries; i++ {
		ok, err := s.Lock.LockOccasion(ctx, occasionID, attemptID)
		if err != nil {
			s.log.Warn("ADMISSION", fmt.Sprintf("lock occasion %s: %v", occasionID, err))
			return false
		}
		if ok {
			return true
		}
		select {
		case <-time.After(lockRetryWait):
		case <-ctx.Done():
			return false
		}
	}
	s.log.Warn("ADMISSION", fmt.Sprintf("occasion %s lock contended, proceeding without it", occasionID))
	return false
}

func (s *AdmissionService) newChildBooking(occ *models.Booking, req models.PayAndBookRequest) *models.Booking {
	now := time.Now().UTC()
	return &models.Booking{
		ID:               uuid.NewString(),
		BookingType:      models.BookingTypeOccasion,
		ParentBookingID:  occ.ID,
		Venue:            occ.Venue,
		OccasionName:     occ.OccasionName,
		BookingDate:      occ.BookingDate,
		TicketPriceCents: occ.TicketPriceCents,
		TicketQuantity:   req.TicketQuantity,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		GuestListToken:   tokens.GenerateGuestListToken(),
		ReferenceCode:    tokens.GenerateReferenceCode(now),
		Status:           models.StatusConfirmed,
		PaymentStatus:    models.PaymentStatusUnpaid,
		TotalAmountCents: occ.TicketPriceCents * req.TicketQuantity,
		BookingSource:    "occasion-share-link",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// charge runs the card payment. A free occasion skips the gateway entirely.
// The idempotency key is minted fresh for this attempt and recorded on the
// booking row for support lookups.
func (s *AdmissionService) charge(ctx context.Context, occ *models.Booking, booking *models.Booking, sourceToken string) (*models.ChargeResult, error) {
	if booking.TotalAmountCents <= 0 {
		// Nothing owed; the ticket is settled up front.
		booking.PaymentStatus = models.PaymentStatusPaid
		return nil, nil
	}

	booking.IdempotencyKey = uuid.NewString()

	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.ChargeTimeout)
	defer cancel()

	result, err := s.Gateway.Charge(chargeCtx, models.ChargeRequest{
		SourceToken:    sourceToken,
		AmountCents:    booking.TotalAmountCents,
		Currency:       s.cfg.Currency,
		IdempotencyKey: booking.IdempotencyKey,
		ReferenceID:    booking.ReferenceCode,
		Note:           fmt.Sprintf("%s x%d", occ.OccasionName, booking.TicketQuantity),
	})
	if err != nil {
		var decline *payment.DeclineError
		if errors.As(err, &decline) {
			s.log.LogAdmission("DECLINED", occ.ID, decline.Error())
			return nil, &PaymentError{Detail: decline.Detail, Err: err}
		}
		if errors.Is(err, payment.ErrUnknownOutcome) {
			s.log.LogAdmission("UNKNOWN", occ.ID, err.Error())
			return nil, &PaymentError{Detail: "payment status unknown, please contact the venue before retrying", Unknown: true, Err: err}
		}
		return nil, &PaymentError{Err: err}
	}

	// A processor can accept the charge without settling it yet; that state
	// is recorded as pending, not paid.
	booking.PaymentStatus = models.PaymentStatusPaid
	if result.Status == payment.StatusPending {
		booking.PaymentStatus = models.PaymentStatusPending
	}
	return result, nil
}

// persist commits the booking. The card has already been charged, so every
// failure from here on is handled from the customer's point of view: a
// capacity loss triggers a refund, anything else becomes a reconciliation
// incident for staff to chase.
func (s *AdmissionService) persist(ctx context.Context, occ *models.Booking, booking *models.Booking) error {
	guest := &models.BookingGuest{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		GuestName: booking.CustomerName,
		CreatedAt: booking.CreatedAt,
	}

	var err error
	for i := 0; i < persistRetries; i++ {
		err = s.DB.AdmitBooking(ctx, booking, guest)
		if !errors.Is(err, ErrTokenCollision) {
			break
		}
		// Fresh identifiers, same payment.
		booking.ID = uuid.NewString()
		booking.GuestListToken = tokens.GenerateGuestListToken()
		booking.ReferenceCode = tokens.GenerateReferenceCode(time.Now().UTC())
		guest.ID = uuid.NewString()
		guest.BookingID = booking.ID
	}
	if err == nil {
		return nil
	}

	var capErr *CapacityError
	if errors.As(err, &capErr) {
		return s.refundAfterCapacityLoss(ctx, occ, booking, capErr)
	}

	if booking.PaymentID != "" {
		s.log.LogReconcile(occ.ID, booking.PaymentID, fmt.Sprintf("booking persist failed: %v", err))
		return &ReconciliationError{OccasionID: occ.ID, PaymentID: booking.PaymentID, Err: err}
	}
	return err
}

// refundAfterCapacityLoss handles losing the capacity race between the
// fresh read and the commit: someone else's booking landed first. The
// charge is reversed; if even the refund fails the money is stranded and
// the incident is logged at the highest severity.
func (s *AdmissionService) refundAfterCapacityLoss(ctx context.Context, occ *models.Booking, booking *models.Booking, capErr *CapacityError) error {
	if booking.PaymentID == "" {
		return capErr
	}

	s.log.LogAdmission("RACE_LOST", occ.ID, fmt.Sprintf("capacity taken after charge %s, refunding", booking.PaymentID))

	refundCtx, cancel := context.WithTimeout(ctx, s.cfg.ChargeTimeout)
	defer cancel()

	if err := s.Gateway.Refund(refundCtx, booking.PaymentID, booking.TotalAmountCents, uuid.NewString()); err != nil {
		s.log.LogReconcile(occ.ID, booking.PaymentID, fmt.Sprintf("refund after capacity loss failed: %v", err))
		return &ReconciliationError{OccasionID: occ.ID, PaymentID: booking.PaymentID, Err: err}
	}
	return capErr
}

// notifyAsync fires the confirmation email and the kafka event without
// holding up the response. A paid, committed booking is never failed
// because of either.
func (s *AdmissionService) notifyAsync(booking, occ *models.Booking) {
	b := *booking
	o := *occ
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if s.Notifier != nil {
			if err := s.Notifier.TicketConfirmed(ctx, &b, &o); err != nil {
				s.log.Warn("ADMISSION", fmt.Sprintf("confirmation email for booking %s: %v", b.ID, err))
			}
		}
		if s.Kafka != nil {
			if err := s.Kafka.PublishBookingCreated(b); err != nil {
				s.log.Warn("ADMISSION", fmt.Sprintf("publish booking %s: %v", b.ID, err))
			}
		}
	}()
}
