// Package handlers exposes the owner API and the public booking API over
// HTTP/JSON.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/availmgr/libs/httpx"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/importer"
)

// maxImportBytes caps uploaded import files.
const maxImportBytes = 10 << 20

type Handler struct {
	calendar *calendar.Service
	engine   *booking.Engine
	links    *booking.Links
	importer *importer.Importer
	logger   *slog.Logger
	validate *validator.Validate
}

func New(cal *calendar.Service, engine *booking.Engine, links *booking.Links, imp *importer.Importer, logger *slog.Logger) *Handler {
	return &Handler{
		calendar: cal,
		engine:   engine,
		links:    links,
		importer: imp,
		logger:   logger,
		validate: newValidator(),
	}
}

// Register adds every route to mux. public wraps only the guest-facing
// booking routes, e.g. with rate limiting and CORS.
func (h *Handler) Register(mux *http.ServeMux, public ...httpx.Middleware) {
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("POST /api/v1/events", h.CreateEvent)
	mux.HandleFunc("GET /api/v1/events/upcoming", h.Upcoming)
	mux.HandleFunc("POST /api/v1/events/delete-unlocked", h.DeleteUnlockedEvents)
	mux.HandleFunc("POST /api/v1/events/detect-conflicts", h.DetectConflicts)
	mux.HandleFunc("GET /api/v1/events/{id}", h.GetEvent)
	mux.HandleFunc("PATCH /api/v1/events/{id}", h.UpdateEvent)
	mux.HandleFunc("DELETE /api/v1/events/{id}", h.DeleteEvent)
	mux.HandleFunc("GET /api/v1/events/{id}/conflicts", h.EventConflicts)
	mux.HandleFunc("PUT /api/v1/events/{id}/recurrence", h.SetRecurrence)
	mux.HandleFunc("GET /api/v1/events/{id}/instances", h.Instances)
	mux.HandleFunc("DELETE /api/v1/events/{id}/instances/{date}", h.DeleteInstance)
	mux.HandleFunc("PATCH /api/v1/events/{id}/series", h.UpdateSeries)
	mux.HandleFunc("DELETE /api/v1/events/{id}/series", h.DeleteSeries)

	mux.HandleFunc("GET /api/v1/holidays", h.ListHolidays)
	mux.HandleFunc("POST /api/v1/holidays", h.CreateHoliday)
	mux.HandleFunc("GET /api/v1/holidays/federal", h.FederalHolidays)
	mux.HandleFunc("POST /api/v1/holidays/delete-unlocked", h.DeleteUnlockedHolidays)
	mux.HandleFunc("DELETE /api/v1/holidays/{id}", h.DeleteHoliday)

	mux.HandleFunc("GET /api/v1/overrides", h.ListOverrides)
	mux.HandleFunc("PUT /api/v1/overrides/{date}", h.SetOverride)
	mux.HandleFunc("DELETE /api/v1/overrides/{date}", h.DeleteOverride)

	mux.HandleFunc("GET /api/v1/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/v1/settings", h.UpdateSettings)

	mux.HandleFunc("GET /api/v1/conflicts", h.ListAlerts)
	mux.HandleFunc("POST /api/v1/conflicts/{id}/resolve", h.ResolveAlert)

	mux.HandleFunc("GET /api/v1/categories", h.ListCategories)
	mux.HandleFunc("POST /api/v1/categories", h.CreateCategory)

	mux.HandleFunc("GET /api/v1/availability", h.Availability)
	mux.HandleFunc("POST /api/v1/availability/compute", h.ComputeAvailability)

	mux.HandleFunc("GET /api/v1/share-links", h.ListShareLinks)
	mux.HandleFunc("POST /api/v1/share-links", h.GenerateShareLink)
	mux.HandleFunc("GET /api/v1/share-links/current", h.CurrentShareLink)
	mux.HandleFunc("POST /api/v1/share-links/deactivate", h.DeactivateShareLinks)

	mux.HandleFunc("POST /api/v1/import", h.Import)

	pub := http.NewServeMux()
	pub.HandleFunc("GET /api/v1/public/book/{token}/slots", h.PublicSlots)
	pub.HandleFunc("POST /api/v1/public/book/{token}", h.ConfirmBooking)
	mux.Handle("/api/v1/public/", httpx.Chain(pub, public...))
}
