package publicapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/notify"
	"gm-occasions/internal/occasion"
	"gm-occasions/internal/payment"
	"gm-occasions/internal/publicapi"
	"gm-occasions/internal/roster"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockStore backs both the admission flow and the occasion service.
type mockStore struct {
	occ       *models.Booking
	sold      int
	admitErr  error
	admitted  []*models.Booking
	guestsFor map[string][]models.BookingGuest
	renamed   map[string]string
}

func newMockStore(occ *models.Booking) *mockStore {
	return &mockStore{
		occ:       occ,
		guestsFor: make(map[string][]models.BookingGuest),
		renamed:   make(map[string]string),
	}
}

func (m *mockStore) GetActiveOccasionByShareToken(ctx context.Context, token string) (*models.Booking, error) {
	if m.occ == nil || m.occ.ShareToken != token {
		return nil, occasion.ErrOccasionNotFound
	}
	copied := *m.occ
	return &copied, nil
}

func (m *mockStore) RemainingCapacity(ctx context.Context, occasionID string) (int, error) {
	return m.occ.Capacity - m.sold, nil
}

func (m *mockStore) AdmitBooking(ctx context.Context, booking *models.Booking, guest *models.BookingGuest) error {
	if m.admitErr != nil {
		return m.admitErr
	}
	if m.sold+booking.TicketQuantity > m.occ.Capacity {
		return &occasion.CapacityError{Remaining: m.occ.Capacity - m.sold, Requested: booking.TicketQuantity}
	}
	m.sold += booking.TicketQuantity
	copied := *booking
	m.admitted = append(m.admitted, &copied)
	return nil
}

func (m *mockStore) CreateOccasion(ctx context.Context, occ *models.Booking) error { return nil }

func (m *mockStore) GetOccasionByID(ctx context.Context, id string) (*models.Booking, error) {
	if m.occ == nil || m.occ.ID != id {
		return nil, occasion.ErrOccasionNotFound
	}
	copied := *m.occ
	return &copied, nil
}

func (m *mockStore) GetOccasionByOrganiserToken(ctx context.Context, token string) (*models.Booking, error) {
	if m.occ == nil || m.occ.OrganiserToken != token {
		return nil, occasion.ErrOccasionNotFound
	}
	copied := *m.occ
	return &copied, nil
}

func (m *mockStore) UpdateOccasion(ctx context.Context, occ *models.Booking) error { return nil }

func (m *mockStore) ListOccasions(ctx context.Context, filters models.OccasionFilters) ([]models.Booking, error) {
	return []models.Booking{*m.occ}, nil
}

func (m *mockStore) OccasionStats(ctx context.Context, ids []string) (map[string]models.OccasionStat, error) {
	return map[string]models.OccasionStat{m.occ.ID: {TotalBookings: len(m.admitted), TotalGuests: m.sold}}, nil
}

func (m *mockStore) ChildBookingsWithGuests(ctx context.Context, occasionID string) ([]models.BookingWithGuests, error) {
	out := make([]models.BookingWithGuests, len(m.admitted))
	for i, b := range m.admitted {
		out[i] = models.BookingWithGuests{Booking: *b, Guests: []models.BookingGuest{}}
	}
	return out, nil
}

func (m *mockStore) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	for _, b := range m.admitted {
		if b.ID == id {
			copied := *b
			return &copied, nil
		}
	}
	return nil, occasion.ErrOccasionNotFound
}

func (m *mockStore) CancelBooking(ctx context.Context, bookingID string) error { return nil }

func (m *mockStore) GetBookingByGuestListToken(ctx context.Context, token string) (*models.Booking, error) {
	for _, b := range m.admitted {
		if b.GuestListToken == token {
			copied := *b
			return &copied, nil
		}
	}
	return nil, occasion.ErrOccasionNotFound
}

func (m *mockStore) GuestsForBooking(ctx context.Context, bookingID string) ([]models.BookingGuest, error) {
	return m.guestsFor[bookingID], nil
}

func (m *mockStore) InsertGuest(ctx context.Context, guest *models.BookingGuest) error {
	m.guestsFor[guest.BookingID] = append(m.guestsFor[guest.BookingID], *guest)
	return nil
}

func (m *mockStore) RenameGuest(ctx context.Context, guestID, name string) error {
	m.renamed[guestID] = name
	for id, guests := range m.guestsFor {
		for i := range guests {
			if guests[i].ID == guestID {
				m.guestsFor[id][i].GuestName = name
			}
		}
	}
	return nil
}

type mockLock struct{}

func (mockLock) LockOccasion(ctx context.Context, occasionID, attemptID string) (bool, error) {
	return true, nil
}
func (mockLock) UnlockOccasion(ctx context.Context, occasionID, attemptID string) error { return nil }

type mockGateway struct {
	chargeErr error
}

func (m *mockGateway) Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	return &models.ChargeResult{PaymentID: "pay_1", Status: payment.StatusCompleted}, nil
}

func (m *mockGateway) Refund(ctx context.Context, paymentID string, amountCents int, idempotencyKey string) error {
	return nil
}

type noopNotifier struct{}

func (noopNotifier) TicketConfirmed(ctx context.Context, booking, occ *models.Booking) error {
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishBookingCreated(booking models.Booking) error { return nil }

func shareableOccasion() *models.Booking {
	return &models.Booking{
		ID:                  "occ-1",
		BookingType:         models.BookingTypeOccasion,
		IsOccasionOrganiser: true,
		Venue:               models.VenueManor,
		OccasionName:        "Dana's 30th",
		BookingDate:         "2026-09-12",
		Capacity:            40,
		TicketPriceCents:    2500,
		CustomerName:        "Dana",
		CustomerEmail:       "dana@example.com",
		OrganiserToken:      "ORG-DANA1234",
		ShareToken:          "OCC-DANA1234",
		Status:              models.StatusConfirmed,
	}
}

func setupRouter(store *mockStore, gateway *mockGateway) *gin.Engine {
	log := logger.NewLogger()
	payCfg := config.PaymentConfig{Currency: "AUD", ChargeTimeout: 2 * time.Second}
	links := config.LinkConfig{ManorBaseURL: "https://manorleederville.com", HippieBaseURL: "https://hippie-club.com", GuestListBaseURL: "https://manorleederville.com"}
	emailCfg := config.EmailConfig{DefaultFrom: "Manor Perth <phil@manorleederville.com>"}

	admission := occasion.NewAdmissionService(store, mockLock{}, gateway, noopNotifier{}, noopPublisher{}, payCfg, log)
	occasions := occasion.NewService(store, nil, nil, links, log)
	rosterSvc := roster.NewService(store, log)
	mailer := notify.NewService(notify.NewResendClient(emailCfg, nil, log), emailCfg, links, log)

	return publicapi.NewHandler(admission, occasions, rosterSvc, mailer, log).Router()
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func payBody(quantity int) models.PayAndBookRequest {
	return models.PayAndBookRequest{
		ShareToken:     "OCC-DANA1234",
		CustomerName:   "Alex",
		CustomerEmail:  "alex@example.com",
		TicketQuantity: quantity,
		PaymentToken:   "cnon:card-nonce-ok",
	}
}

func TestHealthAndCORS(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "x-api-key")
}

func TestPreflight(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	req := httptest.NewRequest(http.MethodOptions, "/occasion-pay-and-book", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestMethodNotAllowed(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	w := doJSON(router, http.MethodGet, "/occasion-pay-and-book", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPayAndBook(t *testing.T) {
	store := newMockStore(shareableOccasion())
	router := setupRouter(store, &mockGateway{})

	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", payBody(2))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.PayAndBookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.BookingID)
	assert.NotEmpty(t, resp.ReferenceCode)
	assert.NotEmpty(t, resp.GuestListToken)
	assert.Equal(t, "pay_1", resp.PaymentID)
	assert.Equal(t, 2, store.sold)
}

func TestPayAndBookBadBody(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	req := httptest.NewRequest(http.MethodPost, "/occasion-pay-and-book", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayAndBookValidation(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	body := payBody(0)
	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayAndBookUnknownToken(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	body := payBody(1)
	body.ShareToken = "OCC-NOPE0000"
	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid or inactive occasion")
}

func TestPayAndBookCapacityConflict(t *testing.T) {
	store := newMockStore(shareableOccasion())
	store.sold = 39
	router := setupRouter(store, &mockGateway{})

	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", payBody(4))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Only 1 spots remaining")
}

func TestPayAndBookDeclined(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()),
		&mockGateway{chargeErr: &payment.DeclineError{Code: "CARD_DECLINED", Detail: "card declined"}})

	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", payBody(1))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "card declined")
}

func TestPayAndBookUnknownOutcome(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()),
		&mockGateway{chargeErr: payment.ErrUnknownOutcome})

	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", payBody(1))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPayAndBookReconciliationIncident(t *testing.T) {
	store := newMockStore(shareableOccasion())
	store.admitErr = errors.New("connection reset")
	router := setupRouter(store, &mockGateway{})

	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", payBody(1))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "do not pay again")
}

func TestOccasionInfo(t *testing.T) {
	store := newMockStore(shareableOccasion())
	store.sold = 15
	router := setupRouter(store, &mockGateway{})

	w := doJSON(router, http.MethodGet, "/occasion-info?shareToken=OCC-DANA1234", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Dana")
	assert.Contains(t, body, `"remaining_capacity":25`)
	// The purchase page never sees tokens or the organiser's contact details.
	assert.NotContains(t, body, "ORG-DANA1234")
	assert.NotContains(t, body, "dana@example.com")

	w = doJSON(router, http.MethodGet, "/occasion-info", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/occasion-info?shareToken=OCC-NOPE0000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrganiserView(t *testing.T) {
	store := newMockStore(shareableOccasion())
	router := setupRouter(store, &mockGateway{})

	w := doJSON(router, http.MethodGet, "/organiser?token=ORG-DANA1234", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://manorleederville.com/occasion/buy/OCC-DANA1234")

	w = doJSON(router, http.MethodGet, "/organiser?token=ORG-WRONG000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGuestListFlow(t *testing.T) {
	store := newMockStore(shareableOccasion())
	router := setupRouter(store, &mockGateway{})

	// Buy two tickets first so a guest list exists.
	w := doJSON(router, http.MethodPost, "/occasion-pay-and-book", payBody(2))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PayAndBookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	booking := store.admitted[0]
	store.guestsFor[booking.ID] = []models.BookingGuest{
		{ID: "g1", BookingID: booking.ID, GuestName: "Alex"},
	}

	w = doJSON(router, http.MethodGet, "/guest-list?token="+resp.GuestListToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alex")

	w = doJSON(router, http.MethodPost, "/guest-list?token="+resp.GuestListToken,
		models.RenameGuestRequest{Position: 2, Name: "Sam"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sam")

	// Position past the ticket quantity is rejected.
	w = doJSON(router, http.MethodPost, "/guest-list?token="+resp.GuestListToken,
		models.RenameGuestRequest{Position: 5, Name: "Taylor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/guest-list?token=unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/guest-list", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendEmailMissingRecipient(t *testing.T) {
	router := setupRouter(newMockStore(shareableOccasion()), &mockGateway{})

	w := doJSON(router, http.MethodPost, "/send-email", models.SendEmailRequest{
		Template: "occasion-ticket-confirmation",
		Data:     map[string]interface{}{"customerName": "Alex"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing recipient email")
}
