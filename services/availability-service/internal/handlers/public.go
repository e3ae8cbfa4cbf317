package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

type confirmRequest struct {
	Date      civiltime.Date `json:"date"`
	StartTime string         `json:"start_time" validate:"required,timeofday"`
	EndTime   string         `json:"end_time" validate:"required,timeofday"`
	Timezone  string         `json:"timezone"`
	Name      string         `json:"name" validate:"required,max=255"`
	Email     string         `json:"email" validate:"required,email,max=254"`
	Notes     string         `json:"notes" validate:"max=2000"`
}

func (h *Handler) PublicSlots(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	days, err := queryOptionalInt(r, "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	listing, err := h.engine.Slots(r.Context(), r.PathValue("token"), booking.ListingQuery{
		From: from,
		Days: days,
		Zone: queryZone(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	b, err := h.engine.Confirm(r.Context(), r.PathValue("token"), booking.ConfirmRequest{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Zone:      civiltime.ResolveZone(req.Timezone),
		Name:      req.Name,
		Email:     req.Email,
		Notes:     req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"booking": b,
	})
}
