// Package api is the staff dashboard HTTP surface. Every route sits behind
// the OIDC middleware; the customer-facing purchase endpoints live in the
// separate public API service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gm-occasions/internal/auth"
	"gm-occasions/internal/checkin"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
	"gm-occasions/internal/occasion"
	"gm-occasions/internal/utils"
)

type Handler struct {
	Occasions *occasion.Service
	CheckIn   *checkin.Service
	Logger    *logger.Logger
}

func NewHandler(occasions *occasion.Service, checkIn *checkin.Service, log *logger.Logger) *Handler {
	return &Handler{
		Occasions: occasions,
		CheckIn:   checkIn,
		Logger:    log,
	}
}

func (h *Handler) CreateOccasion(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOccasionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOccasion: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	occ, err := h.Occasions.Create(r.Context(), req, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "CreateOccasion", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Occasion created", map[string]interface{}{
		"occasion":      occ,
		"organiser_url": h.Occasions.OrganiserURL(occ),
		"share_url":     h.Occasions.ShareURL(occ),
	}))
}

func (h *Handler) ListOccasions(w http.ResponseWriter, r *http.Request) {
	filters := models.OccasionFilters{
		Venue:    r.URL.Query().Get("venue"),
		Status:   r.URL.Query().Get("status"),
		DateFrom: r.URL.Query().Get("date_from"),
		DateTo:   r.URL.Query().Get("date_to"),
	}

	occasions, err := h.Occasions.List(r.Context(), filters)
	if err != nil {
		h.writeError(w, "ListOccasions", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Occasions retrieved", occasions))
}

func (h *Handler) GetOccasion(w http.ResponseWriter, r *http.Request) {
	occasionID := chi.URLParam(r, "occasionId")

	occ, err := h.Occasions.Get(r.Context(), occasionID)
	if err != nil {
		h.writeError(w, "GetOccasion", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Occasion retrieved", map[string]interface{}{
		"occasion":      occ,
		"organiser_url": h.Occasions.OrganiserURL(&occ.Booking),
		"share_url":     h.Occasions.ShareURL(&occ.Booking),
	}))
}

func (h *Handler) UpdateOccasion(w http.ResponseWriter, r *http.Request) {
	occasionID := chi.URLParam(r, "occasionId")

	var req models.UpdateOccasionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateOccasion: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	occ, err := h.Occasions.Update(r.Context(), occasionID, req)
	if err != nil {
		h.writeError(w, "UpdateOccasion", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Occasion updated", occ))
}

// OccasionBookings returns the run sheet: every child booking with its
// guest names, organiser entries first.
func (h *Handler) OccasionBookings(w http.ResponseWriter, r *http.Request) {
	occasionID := chi.URLParam(r, "occasionId")

	bookings, err := h.Occasions.Bookings(r.Context(), occasionID)
	if err != nil {
		h.writeError(w, "OccasionBookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Bookings retrieved", bookings))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	booking, err := h.Occasions.CancelBooking(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, "CancelBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", booking))
}

func (h *Handler) CheckInBooking(w http.ResponseWriter, r *http.Request) {
	referenceCode := chi.URLParam(r, "referenceCode")

	booking, err := h.CheckIn.CheckIn(r.Context(), referenceCode)
	if err != nil {
		if errors.Is(err, checkin.ErrAlreadyCheckedIn) {
			utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Already checked in", err.Error()))
			return
		}
		h.writeError(w, "CheckInBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checked in", booking))
}

// BookingQR serves the booking's reference code as a PNG for the run sheet.
func (h *Handler) BookingQR(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	png, err := h.CheckIn.QRCodePNG(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, "BookingQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("BookingQR: failed to write image: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))

	switch {
	case errors.Is(err, occasion.ErrInvalidRequest):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
	case errors.Is(err, occasion.ErrOccasionNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", err.Error()))
	}
}
