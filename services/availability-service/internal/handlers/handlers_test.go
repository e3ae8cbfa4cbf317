package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/availmgr/libs/httpx"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/conflict"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/holiday"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/importer"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

func newServer(t *testing.T, public ...httpx.Middleware) (http.Handler, *memstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	federal := holiday.NewFederal()
	calc := availability.NewCalculator(store, federal, logger, nil)
	detector := conflict.NewDetector(store, store, logger, nil)

	h := New(
		calendar.NewService(store, detector, calc, federal, logger),
		booking.NewEngine(store, calc, store, logger, nil),
		booking.NewLinks(store, logger),
		importer.New(store, logger),
		logger,
	)
	mux := http.NewServeMux()
	h.Register(mux, public...)
	return mux, store
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rw := httptest.NewRecorder()
	srv.ServeHTTP(rw, req)
	return rw
}

func decodeBody[T any](t *testing.T, rw *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &v), rw.Body.String())
	return v
}

// bookableDate is a weekday a few days out that is not a federal holiday.
func bookableDate() civiltime.Date {
	fed := holiday.NewFederal()
	d := civiltime.Today(time.Now(), civiltime.Pacific.Location()).AddDays(2)
	for {
		wd := d.Weekday()
		skip := wd == time.Saturday || wd == time.Sunday
		for _, h := range fed.ForYear(d.Year) {
			if h.Date == d {
				skip = true
			}
		}
		if !skip {
			return d
		}
		d = d.AddDays(1)
	}
}

func TestEvents_CreateConflictAndForce(t *testing.T) {
	srv, _ := newServer(t)
	standup := map[string]any{"name": "Standup", "date": "2030-01-08", "start_time": "09:00", "end_time": "10:00"}

	rw := do(t, srv, http.MethodPost, "/api/v1/events", standup)
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	created := decodeBody[model.Event](t, rw)
	assert.Equal(t, "09:00:00", created.StartTime)
	assert.Equal(t, civiltime.Pacific, created.Timezone)

	overlap := map[string]any{"name": "Review", "date": "2030-01-08", "start_time": "9:30 AM", "end_time": "10:30 AM"}
	rw = do(t, srv, http.MethodPost, "/api/v1/events", overlap)
	require.Equal(t, http.StatusConflict, rw.Code)
	conflictResp := decodeBody[conflictResponse](t, rw)
	assert.True(t, conflictResp.Conflict)
	assert.Equal(t, []int64{created.ID}, conflictResp.ConflictingEvents)

	overlap["force"] = true
	rw = do(t, srv, http.MethodPost, "/api/v1/events", overlap)
	require.Equal(t, http.StatusCreated, rw.Code)

	rw = do(t, srv, http.MethodGet, "/api/v1/events?start_date=2030-01-08&end_date=2030-01-08", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Len(t, decodeBody[[]model.Event](t, rw), 2)
}

func TestEvents_Validation(t *testing.T) {
	srv, _ := newServer(t)

	rw := do(t, srv, http.MethodPost, "/api/v1/events", map[string]any{"date": "2030-01-08", "start_time": "09:00", "end_time": "10:00"})
	require.Equal(t, http.StatusBadRequest, rw.Code)
	resp := decodeBody[errorResponse](t, rw)
	assert.Equal(t, "name is required", resp.Fields["name"])

	rw = do(t, srv, http.MethodPost, "/api/v1/events", map[string]any{"name": "x", "date": "2030-01-08", "start_time": "09:00", "end_time": "10:00", "timezone": "GMT"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(t, srv, http.MethodPost, "/api/v1/events", map[string]any{"name": "x", "date": "2030-01-08", "start_time": "25:00", "end_time": "10:00"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(t, srv, http.MethodGet, "/api/v1/events/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(t, srv, http.MethodGet, "/api/v1/events/999", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = do(t, srv, http.MethodGet, "/api/v1/events?start_date=2030-01-08", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestEvents_LockedDeleteIsForbidden(t *testing.T) {
	srv, _ := newServer(t)
	rw := do(t, srv, http.MethodPost, "/api/v1/events", map[string]any{
		"name": "Board meeting", "date": "2030-01-08", "start_time": "14:00", "end_time": "15:00", "is_locked": true,
	})
	require.Equal(t, http.StatusCreated, rw.Code)
	e := decodeBody[model.Event](t, rw)

	path := "/api/v1/events/" + strconv.FormatInt(e.ID, 10)
	rw = do(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, rw.Code)

	rw = do(t, srv, http.MethodPatch, path, map[string]any{"is_locked": false})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	rw = do(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)
}

func TestSettings_UpdateAndReject(t *testing.T) {
	srv, _ := newServer(t)

	rw := do(t, srv, http.MethodPut, "/api/v1/settings", map[string]any{"work_start_time": "08:00", "primary_timezone": "ET"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	s := decodeBody[model.UserSettings](t, rw)
	assert.Equal(t, civiltime.Eastern.IANA(), s.PrimaryTimezone)
	assert.Equal(t, 8, s.WorkStart.Hour)

	rw = do(t, srv, http.MethodPut, "/api/v1/settings", map[string]any{"work_start_time": "18:00"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(t, srv, http.MethodPut, "/api/v1/settings", map[string]any{"primary_timezone": "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestAvailability_Compute(t *testing.T) {
	srv, _ := newServer(t)
	rw := do(t, srv, http.MethodPost, "/api/v1/events", map[string]any{"name": "Lunch", "date": "2030-01-08", "start_time": "12:00", "end_time": "13:00"})
	require.Equal(t, http.StatusCreated, rw.Code)

	rw = do(t, srv, http.MethodPost, "/api/v1/availability/compute", map[string]any{"dates": []string{"2030-01-08"}, "timezone": "PT"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	entries := decodeBody[[]availability.Entry](t, rw)
	require.Len(t, entries, 1)
	assert.Equal(t, "9:00 AM - 12:00 PM, 1:00 PM - 5:00 PM", entries[0].Text)

	rw = do(t, srv, http.MethodPost, "/api/v1/availability/compute", map[string]any{"dates": []string{}})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestShareLinks_CurrentIsNullWithoutLink(t *testing.T) {
	srv, _ := newServer(t)
	rw := do(t, srv, http.MethodGet, "/api/v1/share-links/current", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.JSONEq(t, `{"active":null}`, rw.Body.String())
}

func TestPublicBooking_Flow(t *testing.T) {
	srv, store := newServer(t)
	rw := do(t, srv, http.MethodPost, "/api/v1/share-links", map[string]any{"title": "Office hours", "booking_block_minutes": 60})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	link := decodeBody[model.ShareLink](t, rw)

	d := bookableDate()
	base := "/api/v1/public/book/" + link.Token
	rw = do(t, srv, http.MethodGet, base+"/slots?days=1&date="+d.String(), nil)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	listing := decodeBody[booking.Listing](t, rw)
	require.Len(t, listing.Days, 1)
	require.Len(t, listing.Days[0].Slots, 8)
	assert.Equal(t, "09:00:00", listing.Days[0].Slots[0].StartTime)

	confirm := map[string]any{
		"date": d.String(), "start_time": "09:00", "end_time": "10:00",
		"name": "Ada", "email": "ada@example.com",
	}
	rw = do(t, srv, http.MethodPost, base, confirm)
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())

	rw = do(t, srv, http.MethodPost, base, confirm)
	require.Equal(t, http.StatusConflict, rw.Code)
	assert.Equal(t, slotUnavailableMessage, decodeBody[errorResponse](t, rw).Error)

	events, err := store.ListEventsBetween(t.Context(), d, d)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Booking - Ada", events[0].Name)
	assert.True(t, events[0].IsLocked)

	rw = do(t, srv, http.MethodGet, base+"/slots?days=1&date="+d.String(), nil)
	require.Equal(t, http.StatusOK, rw.Code)
	listing = decodeBody[booking.Listing](t, rw)
	assert.Len(t, listing.Days[0].Slots, 7)
}

func TestPublicSlots_DaysParameter(t *testing.T) {
	srv, _ := newServer(t)
	rw := do(t, srv, http.MethodPost, "/api/v1/share-links", map[string]any{"duration_days": 0})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	link := decodeBody[model.ShareLink](t, rw)
	assert.Equal(t, 1, link.DurationDays)

	base := "/api/v1/public/book/" + link.Token + "/slots"
	for _, tc := range []struct {
		query string
		want  int
	}{
		{query: "", want: booking.DefaultListingDays},
		{query: "?days=0", want: 1},
		{query: "?days=-5", want: 1},
		{query: "?days=45", want: booking.MaxListingDays},
	} {
		rw = do(t, srv, http.MethodGet, base+tc.query, nil)
		require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
		assert.Len(t, decodeBody[booking.Listing](t, rw).Days, tc.want, tc.query)
	}
}

func TestPublicBooking_Rejections(t *testing.T) {
	srv, _ := newServer(t)
	rw := do(t, srv, http.MethodGet, "/api/v1/public/book/nope/slots", nil)
	require.Equal(t, http.StatusNotFound, rw.Code)
	assert.Equal(t, "Invalid or expired link", decodeBody[errorResponse](t, rw).Error)

	rw = do(t, srv, http.MethodPost, "/api/v1/share-links", map[string]any{})
	require.Equal(t, http.StatusCreated, rw.Code)
	link := decodeBody[model.ShareLink](t, rw)

	rw = do(t, srv, http.MethodPost, "/api/v1/public/book/"+link.Token, map[string]any{
		"date": bookableDate().String(), "start_time": "09:00", "end_time": "09:30",
		"name": "Ada", "email": "not-an-email",
	})
	require.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rw).Fields, "email")
}

func TestRegister_PublicMiddlewareOnlyWrapsPublicRoutes(t *testing.T) {
	var hits []string
	mark := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	srv, _ := newServer(t, mark)

	do(t, srv, http.MethodGet, "/api/v1/settings", nil)
	do(t, srv, http.MethodGet, "/api/v1/public/book/abc/slots", nil)
	assert.Equal(t, []string{"/api/v1/public/book/abc/slots"}, hits)
}

func TestImport_LegacyUpload(t *testing.T) {
	srv, _ := newServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "calendar.json")
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(`{
		"events": {"2030-01-08": [{"name": "Dentist", "start_time": "14:00", "end_time": "15:00", "timezone": "PT"}]},
		"holidays": ["2030-01-09"]
	}`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rw := httptest.NewRecorder()
	srv.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	res := decodeBody[importer.Result](t, rw)
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, 1, res.Holidays)

	rw = do(t, srv, http.MethodPost, "/api/v1/import", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}
