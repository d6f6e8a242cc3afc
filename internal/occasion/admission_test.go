package occasion_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/occasion"
	"gm-occasions/internal/payment"
)

// Mock implementations for testing

type MockAdmissionStore struct {
	mu         sync.Mutex
	occ        *models.Booking
	sold       int
	admitted   []*models.Booking
	guests     []*models.BookingGuest
	admitCalls int
	// forcedAdmitErrs is consumed one per AdmitBooking call before the
	// capacity check runs, to simulate races and collisions.
	forcedAdmitErrs []error
	capacityErr     error
}

func NewMockAdmissionStore(occ *models.Booking) *MockAdmissionStore {
	return &MockAdmissionStore{occ: occ}
}

func (m *MockAdmissionStore) GetActiveOccasionByShareToken(ctx context.Context, shareToken string) (*models.Booking, error) {
	if m.occ == nil || m.occ.ShareToken != shareToken || m.occ.Status != models.StatusConfirmed {
		return nil, occasion.ErrOccasionNotFound
	}
	copied := *m.occ
	return &copied, nil
}

func (m *MockAdmissionStore) RemainingCapacity(ctx context.Context, occasionID string) (int, error) {
	if m.capacityErr != nil {
		return 0, m.capacityErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occ.Capacity - m.sold, nil
}

func (m *MockAdmissionStore) AdmitBooking(ctx context.Context, booking *models.Booking, guest *models.BookingGuest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.admitCalls++
	if len(m.forcedAdmitErrs) > 0 {
		err := m.forcedAdmitErrs[0]
		m.forcedAdmitErrs = m.forcedAdmitErrs[1:]
		if err != nil {
			return err
		}
	}

	if m.sold+booking.TicketQuantity > m.occ.Capacity {
		return &occasion.CapacityError{
			Remaining: m.occ.Capacity - m.sold,
			Requested: booking.TicketQuantity,
		}
	}

	m.sold += booking.TicketQuantity
	copied := *booking
	guestCopied := *guest
	m.admitted = append(m.admitted, &copied)
	m.guests = append(m.guests, &guestCopied)
	return nil
}

type MockAdmissionLock struct {
	mu        sync.Mutex
	held      map[string]string
	contended bool
	lockErr   error
	locks     int
	unlocks   int
}

func NewMockAdmissionLock() *MockAdmissionLock {
	return &MockAdmissionLock{held: make(map[string]string)}
}

func (m *MockAdmissionLock) LockOccasion(ctx context.Context, occasionID, attemptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks++
	if m.lockErr != nil {
		return false, m.lockErr
	}
	if m.contended {
		return false, nil
	}
	if _, taken := m.held[occasionID]; taken {
		return false, nil
	}
	m.held[occasionID] = attemptID
	return true, nil
}

func (m *MockAdmissionLock) UnlockOccasion(ctx context.Context, occasionID, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocks++
	if m.held[occasionID] == attemptID {
		delete(m.held, occasionID)
	}
	return nil
}

type MockGateway struct {
	mu        sync.Mutex
	charges   []models.ChargeRequest
	refunds   []string
	chargeErr error
	refundErr error
	status    string
	nextID    int
	// byKey replays prior results the way a real processor honours an
	// idempotency key: same key, same charge, no new money moved.
	byKey map[string]*models.ChargeResult
}

func (m *MockGateway) Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.byKey[req.IdempotencyKey]; ok {
		return prior, nil
	}
	m.charges = append(m.charges, req)
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	status := m.status
	if status == "" {
		status = payment.StatusCompleted
	}
	m.nextID++
	result := &models.ChargeResult{
		PaymentID: fmt.Sprintf("pay_%d", m.nextID),
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if m.byKey == nil {
		m.byKey = make(map[string]*models.ChargeResult)
	}
	m.byKey[req.IdempotencyKey] = result
	return result, nil
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amountCents int, idempotencyKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunds = append(m.refunds, paymentID)
	return nil
}

func (m *MockGateway) chargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charges)
}

type MockNotifier struct {
	confirmed chan string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{confirmed: make(chan string, 32)}
}

func (m *MockNotifier) TicketConfirmed(ctx context.Context, booking, occ *models.Booking) error {
	m.confirmed <- booking.ID
	return nil
}

type MockPublisher struct {
	created chan models.Booking
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{created: make(chan models.Booking, 32)}
}

func (m *MockPublisher) PublishBookingCreated(booking models.Booking) error {
	m.created <- booking
	return nil
}

func activeOccasion(capacity, priceCents int) *models.Booking {
	now := time.Now().UTC()
	return &models.Booking{
		ID:                  "occ-1",
		BookingType:         models.BookingTypeOccasion,
		IsOccasionOrganiser: true,
		Venue:               models.VenueManor,
		OccasionName:        "Dana's 30th",
		BookingDate:         "2026-09-12",
		Capacity:            capacity,
		TicketPriceCents:    priceCents,
		CustomerName:        "Dana",
		CustomerEmail:       "dana@example.com",
		OrganiserToken:      "ORG-DANA1234",
		ShareToken:          "OCC-DANA1234",
		Status:              models.StatusConfirmed,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func purchaseRequest(quantity int) models.PayAndBookRequest {
	return models.PayAndBookRequest{
		ShareToken:     "OCC-DANA1234",
		CustomerName:   "Alex",
		CustomerEmail:  "alex@example.com",
		TicketQuantity: quantity,
		PaymentToken:   "cnon:card-nonce-ok",
	}
}

func newAdmissionService(store *MockAdmissionStore, lock *MockAdmissionLock, gateway *MockGateway,
	notifier *MockNotifier, publisher *MockPublisher) *occasion.AdmissionService {
	cfg := config.PaymentConfig{Currency: "AUD", ChargeTimeout: 2 * time.Second}
	return occasion.NewAdmissionService(store, lock, gateway, notifier, publisher, cfg, logger.NewLogger())
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestAdmitSuccess(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	lock := NewMockAdmissionLock()
	gateway := &MockGateway{}
	notifier := NewMockNotifier()
	publisher := NewMockPublisher()
	svc := newAdmissionService(store, lock, gateway, notifier, publisher)

	booking, err := svc.Admit(context.Background(), purchaseRequest(2))
	require.NoError(t, err)

	assert.Equal(t, "occ-1", booking.ParentBookingID)
	assert.Equal(t, 2, booking.TicketQuantity)
	assert.Equal(t, 5000, booking.TotalAmountCents)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	assert.Equal(t, "pay_1", booking.PaymentID)
	assert.NotEmpty(t, booking.ReferenceCode)
	assert.NotEmpty(t, booking.GuestListToken)

	require.Len(t, gateway.charges, 1)
	assert.Equal(t, 5000, gateway.charges[0].AmountCents)
	assert.Equal(t, "AUD", gateway.charges[0].Currency)
	assert.Equal(t, "cnon:card-nonce-ok", gateway.charges[0].SourceToken)
	assert.NotEmpty(t, gateway.charges[0].IdempotencyKey)
	assert.Equal(t, booking.ReferenceCode, gateway.charges[0].ReferenceID)

	require.Len(t, store.admitted, 1)
	assert.Equal(t, 2, store.sold)
	// The purchaser's own name fills the first guest position.
	require.Len(t, store.guests, 1)
	assert.Equal(t, "Alex", store.guests[0].GuestName)
	assert.Equal(t, booking.ID, store.guests[0].BookingID)

	assert.Equal(t, booking.ID, waitFor(t, notifier.confirmed, "confirmation email"))
	event := waitFor(t, publisher.created, "booking created event")
	assert.Equal(t, booking.ID, event.ID)

	// The advisory lock was taken and released.
	assert.Equal(t, 1, lock.locks)
	assert.Equal(t, 1, lock.unlocks)
	assert.Empty(t, lock.held)
}

func TestAdmitValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.PayAndBookRequest)
	}{
		{"missing share token", func(r *models.PayAndBookRequest) { r.ShareToken = "  " }},
		{"missing customer name", func(r *models.PayAndBookRequest) { r.CustomerName = "" }},
		{"no contact details", func(r *models.PayAndBookRequest) { r.CustomerEmail = "" }},
		{"whitespace contact details", func(r *models.PayAndBookRequest) { r.CustomerEmail = " "; r.CustomerPhone = "\t" }},
		{"zero quantity", func(r *models.PayAndBookRequest) { r.TicketQuantity = 0 }},
		{"negative quantity", func(r *models.PayAndBookRequest) { r.TicketQuantity = -3 }},
		{"excessive quantity", func(r *models.PayAndBookRequest) { r.TicketQuantity = 51 }},
		{"missing payment token", func(r *models.PayAndBookRequest) { r.PaymentToken = "" }},
		{"malformed email", func(r *models.PayAndBookRequest) { r.CustomerEmail = "not-an-email" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMockAdmissionStore(activeOccasion(40, 2500))
			gateway := &MockGateway{}
			svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

			req := purchaseRequest(2)
			tc.mutate(&req)

			_, err := svc.Admit(context.Background(), req)
			assert.ErrorIs(t, err, occasion.ErrInvalidRequest)
			// Rejected input must never reach the card gateway.
			assert.Zero(t, gateway.chargeCount())
			assert.Zero(t, store.admitCalls)
		})
	}
}

func TestAdmitPhoneOnlyContact(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	req := purchaseRequest(1)
	req.CustomerEmail = ""
	req.CustomerPhone = "0411 222 333"

	booking, err := svc.Admit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0411 222 333", booking.CustomerPhone)
	assert.Empty(t, booking.CustomerEmail)
}

func TestAdmitUnknownShareToken(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	req := purchaseRequest(1)
	req.ShareToken = "OCC-NOPE1234"

	_, err := svc.Admit(context.Background(), req)
	assert.ErrorIs(t, err, occasion.ErrOccasionNotFound)
	assert.Zero(t, gateway.chargeCount())
}

func TestAdmitInactiveOccasion(t *testing.T) {
	occ := activeOccasion(40, 2500)
	occ.Status = models.StatusCancelled
	store := NewMockAdmissionStore(occ)
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(1))
	assert.ErrorIs(t, err, occasion.ErrOccasionNotFound)
	assert.Zero(t, gateway.chargeCount())
}

func TestAdmitCapacityRejectedBeforeCharge(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(5, 2500))
	store.sold = 4
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(3))

	var capErr *occasion.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 1, capErr.Remaining)
	assert.Equal(t, 3, capErr.Requested)
	assert.Zero(t, gateway.chargeCount())
}

func TestAdmitDeclinedCard(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	gateway := &MockGateway{chargeErr: &payment.DeclineError{Code: "CARD_DECLINED", Detail: "card declined"}}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(1))

	var payErr *occasion.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.False(t, payErr.Unknown)
	assert.Equal(t, "card declined", payErr.Detail)
	// No booking exists for a declined card.
	assert.Empty(t, store.admitted)
	assert.Zero(t, store.sold)
}

func TestAdmitUnknownPaymentOutcome(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	gateway := &MockGateway{chargeErr: fmt.Errorf("%w: request timed out", payment.ErrUnknownOutcome)}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(1))

	var payErr *occasion.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.True(t, payErr.Unknown)
	assert.Empty(t, store.admitted)
}

func TestAdmitFreeOccasionSkipsGateway(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 0))
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	booking, err := svc.Admit(context.Background(), purchaseRequest(2))
	require.NoError(t, err)

	assert.Zero(t, gateway.chargeCount())
	assert.Empty(t, booking.PaymentID)
	// Nothing owed means nothing outstanding.
	assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	assert.Zero(t, booking.TotalAmountCents)
	require.Len(t, store.admitted, 1)
}

func TestAdmitPendingChargeRecordedAsPending(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	gateway := &MockGateway{status: payment.StatusPending}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	booking, err := svc.Admit(context.Background(), purchaseRequest(1))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	assert.Equal(t, "pay_1", booking.PaymentID)
	// An unsettled charge has no completion time yet.
	assert.True(t, booking.PaymentCompletedAt.IsZero())
	require.Len(t, store.admitted, 1)
	assert.Equal(t, models.PaymentStatusPending, store.admitted[0].PaymentStatus)
}

func TestAdmitCapacityLostAfterCharge(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	store.forcedAdmitErrs = []error{&occasion.CapacityError{Remaining: 0, Requested: 2}}
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(2))

	var capErr *occasion.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 0, capErr.Remaining)

	// The charge went through and was refunded in full.
	require.Len(t, gateway.charges, 1)
	require.Len(t, gateway.refunds, 1)
	assert.Equal(t, "pay_1", gateway.refunds[0])
	assert.Empty(t, store.admitted)
}

func TestAdmitRefundFailureBecomesReconciliation(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	store.forcedAdmitErrs = []error{&occasion.CapacityError{Remaining: 0, Requested: 2}}
	gateway := &MockGateway{refundErr: errors.New("refund rejected")}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(2))

	var recErr *occasion.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "occ-1", recErr.OccasionID)
	assert.Equal(t, "pay_1", recErr.PaymentID)
}

func TestAdmitPersistFailureAfterCharge(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	store.forcedAdmitErrs = []error{errors.New("connection reset")}
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(1))

	var recErr *occasion.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "pay_1", recErr.PaymentID)
	assert.Empty(t, gateway.refunds)
}

func TestAdmitRetriesTokenCollision(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	store.forcedAdmitErrs = []error{occasion.ErrTokenCollision, occasion.ErrTokenCollision}
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	booking, err := svc.Admit(context.Background(), purchaseRequest(1))
	require.NoError(t, err)

	assert.Equal(t, 3, store.admitCalls)
	// Retries mint fresh identifiers but never charge twice.
	assert.Equal(t, 1, gateway.chargeCount())
	require.Len(t, store.admitted, 1)
	assert.Equal(t, booking.ID, store.admitted[0].ID)
	assert.Equal(t, booking.ID, store.guests[0].BookingID)
}

func TestChargeReplayedForSameIdempotencyKey(t *testing.T) {
	gateway := &MockGateway{}
	req := models.ChargeRequest{
		SourceToken:    "cnon:card-nonce-ok",
		AmountCents:    5000,
		Currency:       "AUD",
		IdempotencyKey: "attempt-1",
	}

	first, err := gateway.Charge(context.Background(), req)
	require.NoError(t, err)
	second, err := gateway.Charge(context.Background(), req)
	require.NoError(t, err)

	// Same key, same payment, exactly one charge on the wire.
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, 1, gateway.chargeCount())

	req.IdempotencyKey = "attempt-2"
	third, err := gateway.Charge(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.PaymentID, third.PaymentID)
	assert.Equal(t, 2, gateway.chargeCount())
}

func TestAdmitMintsFreshKeyPerAttempt(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	first, err := svc.Admit(context.Background(), purchaseRequest(1))
	require.NoError(t, err)
	second, err := svc.Admit(context.Background(), purchaseRequest(1))
	require.NoError(t, err)

	require.Len(t, gateway.charges, 2)
	assert.NotEqual(t, gateway.charges[0].IdempotencyKey, gateway.charges[1].IdempotencyKey)
	assert.NotEqual(t, first.PaymentID, second.PaymentID)
}

func TestAdmitExhaustedCollisionRetries(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	store.forcedAdmitErrs = []error{occasion.ErrTokenCollision, occasion.ErrTokenCollision, occasion.ErrTokenCollision}
	gateway := &MockGateway{}
	svc := newAdmissionService(store, NewMockAdmissionLock(), gateway, NewMockNotifier(), NewMockPublisher())

	_, err := svc.Admit(context.Background(), purchaseRequest(1))

	// The charge already happened, so exhaustion is a reconciliation case.
	var recErr *occasion.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 3, store.admitCalls)
}

func TestAdmitProceedsWhenLockUnavailable(t *testing.T) {
	store := NewMockAdmissionStore(activeOccasion(40, 2500))
	lock := NewMockAdmissionLock()
	lock.lockErr = errors.New("redis: connection refused")
	gateway := &MockGateway{}
	svc := newAdmissionService(store, lock, gateway, NewMockNotifier(), NewMockPublisher())

	booking, err := svc.Admit(context.Background(), purchaseRequest(1))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	// Nothing was held, so nothing gets released.
	assert.Zero(t, lock.unlocks)
}

func TestAdmitConcurrentNeverOversells(t *testing.T) {
	const attempts = 20
	const capacity = 10

	store := NewMockAdmissionStore(activeOccasion(capacity, 2500))
	lock := NewMockAdmissionLock()
	lock.contended = true // force every attempt through the same window
	gateway := &MockGateway{}
	svc := newAdmissionService(store, lock, gateway, NewMockNotifier(), NewMockPublisher())

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), purchaseRequest(1))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var confirmed, capacityRejected int
	for err := range results {
		switch {
		case err == nil:
			confirmed++
		default:
			var capErr *occasion.CapacityError
			require.ErrorAs(t, err, &capErr)
			capacityRejected++
		}
	}

	assert.Equal(t, capacity, confirmed)
	assert.Equal(t, attempts-capacity, capacityRejected)
	assert.Equal(t, capacity, store.sold)

	// Every charge that lost the race was refunded: money out equals seats sold.
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	assert.Equal(t, capacity, len(gateway.charges)-len(gateway.refunds))
}
