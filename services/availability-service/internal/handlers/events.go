package handlers

import (
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

type eventRequest struct {
	Name            string                `json:"name" validate:"required,max=255"`
	Date            civiltime.Date        `json:"date"`
	StartTime       string                `json:"start_time" validate:"required"`
	EndTime         string                `json:"end_time" validate:"required"`
	Timezone        civiltime.Zone        `json:"timezone" validate:"omitempty,zone"`
	CategoryID      *int64                `json:"category"`
	Color           string                `json:"color" validate:"omitempty,hexcolor"`
	LocationType    model.LocationType    `json:"location_type" validate:"omitempty,oneof=in_person virtual hybrid"`
	Location        string                `json:"location" validate:"max=255"`
	MeetingLink     string                `json:"meeting_link" validate:"omitempty,url"`
	Notes           string                `json:"notes"`
	ReminderMinutes int                   `json:"reminder_minutes" validate:"min=0"`
	IsLocked        bool                  `json:"is_locked"`
	Recurrence      *model.RecurrenceRule `json:"recurrence_rule"`
	Force           bool                  `json:"force"`
}

func (req eventRequest) event() model.Event {
	return model.Event{
		Name:            req.Name,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Timezone:        req.Timezone,
		CategoryID:      req.CategoryID,
		Color:           req.Color,
		LocationType:    req.LocationType,
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		Notes:           req.Notes,
		ReminderMinutes: req.ReminderMinutes,
		IsLocked:        req.IsLocked,
		Recurrence:      req.Recurrence,
	}
}

type updateEventRequest struct {
	model.EventPatch
	Force bool `json:"force"`
}

func forced(r *http.Request, body bool) bool {
	q, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return body || q
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateBounds(w, r)
	if !ok {
		return
	}
	events, err := h.calendar.ListEvents(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.calendar.CreateEvent(r.Context(), req.event(), forced(r, req.Force))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.calendar.GetEvent(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.calendar.UpdateEvent(r.Context(), id, req.EventPatch, forced(r, req.Force))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.calendar.DeleteEvent(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteUnlockedEvents(w http.ResponseWriter, r *http.Request) {
	n, err := h.calendar.DeleteAllUnlocked(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	today, err := h.calendar.Today(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	events, err := h.calendar.Upcoming(r.Context(), today, days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (h *Handler) EventConflicts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	events, err := h.calendar.CheckConflicts(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (h *Handler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	n, err := h.calendar.DetectAllConflicts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"conflicts_found": n})
}

type recurrenceRequest struct {
	Recurrence *model.RecurrenceRule `json:"recurrence_rule"`
}

func (h *Handler) SetRecurrence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req recurrenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.calendar.SetRecurrence(r.Context(), id, req.Recurrence)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) Instances(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, err := queryDate(r, "start_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "end_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if from.IsZero() {
		if from, err = h.calendar.Today(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if to.IsZero() {
		to = from.AddDays(30)
	}
	occ, err := h.calendar.RecurringInstances(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(occ))
}

func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := civiltime.ParseDate(r.PathValue("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.calendar.DeleteInstance(r.Context(), id, d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) UpdateSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.EventPatch
	if !h.decode(w, r, &patch) {
		return
	}
	today, err := h.calendar.Today(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, n, err := h.calendar.UpdateSeries(r.Context(), id, patch, today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": e, "instances_updated": n})
}

func (h *Handler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	today, err := h.calendar.Today(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.calendar.DeleteSeries(r.Context(), id, today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
