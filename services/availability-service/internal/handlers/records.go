package handlers

import (
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

// dateBounds reads the optional start_date/end_date pair. Both or neither
// must be given.
func (h *Handler) dateBounds(w http.ResponseWriter, r *http.Request) (from, to civiltime.Date, ok bool) {
	from, err := queryDate(r, "start_date")
	if err == nil {
		to, err = queryDate(r, "end_date")
	}
	if err != nil {
		h.fail(w, r, err)
		return from, to, false
	}
	if from.IsZero() != to.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date and end_date go together")
		return from, to, false
	}
	return from, to, true
}

type holidayRequest struct {
	Date        civiltime.Date `json:"date"`
	Description string         `json:"description" validate:"max=255"`
	IsRecurring bool           `json:"is_recurring"`
	IsLocked    bool           `json:"is_locked"`
}

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateBounds(w, r)
	if !ok {
		return
	}
	out, err := h.calendar.ListHolidays(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req holidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.calendar.CreateHoliday(r.Context(), model.CustomHoliday{
		Date:        req.Date,
		Description: req.Description,
		IsRecurring: req.IsRecurring,
		IsLocked:    req.IsLocked,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.calendar.DeleteHoliday(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteUnlockedHolidays(w http.ResponseWriter, r *http.Request) {
	n, err := h.calendar.DeleteUnlockedHolidays(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) FederalHolidays(w http.ResponseWriter, r *http.Request) {
	today, err := h.calendar.Today(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	year, err := queryInt(r, "year", today.Year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if year < 1900 || year > 2200 {
		writeError(w, http.StatusBadRequest, "year out of range")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.calendar.FederalHolidays(year)))
}

type overrideRequest struct {
	Text string `json:"availability_text" validate:"required"`
}

func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateBounds(w, r)
	if !ok {
		return
	}
	out, err := h.calendar.ListOverrides(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	d, err := civiltime.ParseDate(r.PathValue("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req overrideRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.calendar.SetOverride(r.Context(), d, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	d, err := civiltime.ParseDate(r.PathValue("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.calendar.DeleteOverride(r.Context(), d); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsRequest struct {
	WorkStart            *string           `json:"work_start_time" validate:"omitempty,timeofday"`
	WorkEnd              *string           `json:"work_end_time" validate:"omitempty,timeofday"`
	WorkDays             *model.WeekdaySet `json:"work_days"`
	DefaultEventDuration *int              `json:"default_event_duration" validate:"omitempty,min=1,max=1440"`
	BufferTime           *int              `json:"buffer_time" validate:"omitempty,min=0,max=240"`
	PrimaryTimezone      *string           `json:"primary_timezone" validate:"omitempty,zone"`
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.calendar.Settings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.calendar.UpdateSettings(r.Context(), calendar.SettingsPatch{
		WorkStart:            req.WorkStart,
		WorkEnd:              req.WorkEnd,
		WorkDays:             req.WorkDays,
		DefaultEventDuration: req.DefaultEventDuration,
		BufferTime:           req.BufferTime,
		PrimaryTimezone:      req.PrimaryTimezone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	out, err := h.calendar.Alerts(r.Context(), !all)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.calendar.ResolveAlert(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
	Icon  string `json:"icon" validate:"max=50"`
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.calendar.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.calendar.CreateCategory(r.Context(), model.EventCategory{
		Name:  req.Name,
		Color: req.Color,
		Icon:  req.Icon,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "start_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.calendar.Availability(r.Context(), from, queryZone(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

type computeRequest struct {
	Dates    []civiltime.Date `json:"dates" validate:"required,min=1,max=60"`
	Timezone string           `json:"timezone"`
}

func (h *Handler) ComputeAvailability(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.calendar.ComputeAvailability(r.Context(), req.Dates, civiltime.ResolveZone(req.Timezone))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

type shareLinkRequest struct {
	Title        string `json:"title" validate:"max=255"`
	DurationDays *int   `json:"duration_days"`
	BlockMinutes *int   `json:"booking_block_minutes" validate:"omitempty,min=0,max=1440"`
}

func (h *Handler) GenerateShareLink(w http.ResponseWriter, r *http.Request) {
	var req shareLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.links.Generate(r.Context(), booking.GenerateRequest{
		Title:        req.Title,
		DurationDays: req.DurationDays,
		BlockMinutes: req.BlockMinutes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *Handler) CurrentShareLink(w http.ResponseWriter, r *http.Request) {
	link, ok, err := h.links.Current(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": link})
}

func (h *Handler) DeactivateShareLinks(w http.ResponseWriter, r *http.Request) {
	n, err := h.links.Deactivate(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deactivated": n})
}

func (h *Handler) ListShareLinks(w http.ResponseWriter, r *http.Request) {
	out, err := h.links.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	res, err := h.importer.Import(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
