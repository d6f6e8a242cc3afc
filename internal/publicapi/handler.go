// Package publicapi is the customer-facing service: ticket purchases,
// guest list management via token links and transactional email. It is
// reachable from the venue sites without authentication, so every input is
// treated as hostile and error bodies never distinguish a missing occasion
// from an inactive one.
package publicapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/notify"
	"gm-occasions/internal/occasion"
	"gm-occasions/internal/roster"
)

type Handler struct {
	Admission *occasion.AdmissionService
	Occasions *occasion.Service
	Roster    *roster.Service
	Mailer    *notify.Service
	Logger    *logger.Logger
}

func NewHandler(admission *occasion.AdmissionService, occasions *occasion.Service,
	rosterSvc *roster.Service, mailer *notify.Service, log *logger.Logger) *Handler {
	return &Handler{
		Admission: admission,
		Occasions: occasions,
		Roster:    rosterSvc,
		Mailer:    mailer,
		Logger:    log,
	}
}

// PayAndBook handles POST /occasion-pay-and-book, the single entry point
// for buying tickets through a share link.
func (h *Handler) PayAndBook(c *gin.Context) {
	var req models.PayAndBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.PayAndBookResponse{Success: false, Error: "Invalid request body"})
		return
	}

	booking, err := h.Admission.Admit(c.Request.Context(), req)
	if err != nil {
		h.writeAdmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PayAndBookResponse{
		Success:        true,
		BookingID:      booking.ID,
		ReferenceCode:  booking.ReferenceCode,
		GuestListToken: booking.GuestListToken,
		PaymentID:      booking.PaymentID,
	})
}

func (h *Handler) writeAdmissionError(c *gin.Context, err error) {
	var (
		capErr *occasion.CapacityError
		payErr *occasion.PaymentError
		recErr *occasion.ReconciliationError
	)

	switch {
	case errors.Is(err, occasion.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, models.PayAndBookResponse{Success: false, Error: err.Error()})

	case errors.Is(err, occasion.ErrOccasionNotFound):
		c.JSON(http.StatusNotFound, models.PayAndBookResponse{Success: false, Error: "Invalid or inactive occasion"})

	case errors.As(err, &capErr):
		remaining := capErr.Remaining
		if remaining < 0 {
			remaining = 0
		}
		c.JSON(http.StatusConflict, models.PayAndBookResponse{
			Success: false,
			Error:   fmt.Sprintf("Only %d spots remaining", remaining),
		})

	case errors.As(err, &payErr):
		status := http.StatusPaymentRequired
		if payErr.Unknown {
			status = http.StatusBadGateway
		}
		c.JSON(status, models.PayAndBookResponse{Success: false, Error: payErr.Error()})

	case errors.As(err, &recErr):
		h.Logger.Error("API", fmt.Sprintf("PayAndBook reconciliation incident: %v", recErr))
		c.JSON(http.StatusInternalServerError, models.PayAndBookResponse{
			Success: false,
			Error:   "Your payment was received but the booking could not be recorded. Please contact the venue; do not pay again.",
		})

	default:
		h.Logger.Error("API", fmt.Sprintf("PayAndBook: %v", err))
		c.JSON(http.StatusInternalServerError, models.PayAndBookResponse{Success: false, Error: "Internal error"})
	}
}

// OccasionInfo handles GET /occasion-info?shareToken=..., the purchase
// page's view of an occasion. It never exposes organiser contact details
// or the organiser token.
func (h *Handler) OccasionInfo(c *gin.Context) {
	shareToken := c.Query("shareToken")
	if shareToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "shareToken is required"})
		return
	}

	occ, err := h.Admission.DB.GetActiveOccasionByShareToken(c.Request.Context(), shareToken)
	if err != nil {
		if errors.Is(err, occasion.ErrOccasionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid or inactive occasion"})
			return
		}
		h.Logger.Error("API", fmt.Sprintf("OccasionInfo: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal error"})
		return
	}

	remaining, err := h.Admission.DB.RemainingCapacity(c.Request.Context(), occ.ID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("OccasionInfo: remaining capacity: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal error"})
		return
	}
	if remaining < 0 {
		remaining = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"occasion": gin.H{
			"name":               occ.OccasionName,
			"venue":              occ.Venue,
			"occasion_date":      occ.BookingDate,
			"ticket_price_cents": occ.TicketPriceCents,
			"organiser_name":     occ.CustomerName,
			"remaining_capacity": remaining,
		},
	})
}

// OrganiserView handles GET /organiser?token=..., the organiser's private
// management page resolved by their ORG token.
func (h *Handler) OrganiserView(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token is required"})
		return
	}

	occ, err := h.Occasions.GetByOrganiserToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, occasion.ErrOccasionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid or inactive occasion"})
			return
		}
		h.Logger.Error("API", fmt.Sprintf("OrganiserView: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal error"})
		return
	}

	bookings, err := h.Occasions.Bookings(c.Request.Context(), occ.ID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("OrganiserView: bookings: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"occasion":  occ,
		"bookings":  bookings,
		"share_url": h.Occasions.ShareURL(&occ.Booking),
	})
}

// GuestList handles GET /guest-list?token=..., a purchaser's view of their
// named positions.
func (h *Handler) GuestList(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token is required"})
		return
	}

	booking, err := h.Roster.Get(c.Request.Context(), token)
	if err != nil {
		h.writeRosterError(c, "GuestList", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

// SetGuestName handles POST /guest-list?token=..., filling or renaming one
// position on the booking's list.
func (h *Handler) SetGuestName(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token is required"})
		return
	}

	var req models.RenameGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	booking, err := h.Roster.SetGuestName(c.Request.Context(), token, req.Position, req.Name)
	if err != nil {
		h.writeRosterError(c, "SetGuestName", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

func (h *Handler) writeRosterError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, occasion.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, occasion.ErrOccasionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid or inactive booking"})
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal error"})
	}
}

// SendEmail handles POST /send-email, the generic transactional template
// endpoint used by the venue sites and the staff portal.
func (h *Handler) SendEmail(c *gin.Context) {
	var req models.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	result, err := h.Mailer.SendTemplated(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, notify.ErrMissingRecipient) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing recipient email"})
			return
		}
		h.Logger.Error("API", fmt.Sprintf("SendEmail: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"id": result.MessageID}, "internal": result.Internal})
}
