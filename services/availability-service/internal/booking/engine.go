// Package booking derives guest-facing slots from availability and confirms
// bookings against it.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/availmgr/libs/metrics"
	otelx "github.com/md-rashed-zaman/availmgr/libs/otel"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/interval"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

var (
	// ErrLinkNotFound covers unknown, inactive and expired links alike.
	ErrLinkNotFound = errors.New("booking link is invalid or expired")
	// ErrSlotUnavailable means the requested slot is not bookable any more.
	// Callers may refresh the listing and retry with another slot.
	ErrSlotUnavailable = errors.New("selected slot is no longer available")
	ErrInvalid         = errors.New("invalid share link request")
)

const (
	DefaultListingDays = 14
	MaxListingDays     = 30
)

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetSettings(ctx context.Context) (model.UserSettings, error)
	LockShareLink(ctx context.Context, token string) (model.ShareLink, error)
	SetShareLinkActive(ctx context.Context, id int64, active bool) error
	ListBookings(ctx context.Context, linkID int64, from, to civiltime.Date) ([]model.PublicBooking, error)
	CreateBooking(ctx context.Context, b *model.PublicBooking) error
	CreateEvent(ctx context.Context, e *model.Event) error
}

// AvailabilitySource is satisfied by *availability.Calculator.
type AvailabilitySource interface {
	Compute(ctx context.Context, settings model.UserSettings, dates []civiltime.Date, zone civiltime.Zone) (map[civiltime.Date]availability.Entry, error)
}

// Slot is one bookable block, shown in the guest's zone.
type Slot struct {
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Label     string    `json:"label"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// DaySlots groups slots by the owner's calendar date.
type DaySlots struct {
	Date    civiltime.Date `json:"date"`
	DayName string         `json:"day_name"`
	Label   string         `json:"readable_date"`
	Slots   []Slot         `json:"slots"`
}

type Listing struct {
	Title        string         `json:"title"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Timezone     civiltime.Zone `json:"timezone"`
	BlockMinutes int            `json:"booking_block_minutes"`
	Days         []DaySlots     `json:"days"`
}

// ListingQuery selects the dates to list. Unset fields take defaults: From is
// today in the owner's zone, Days is 14 and Zone is PT. An explicit Days is
// clamped to 1..30.
type ListingQuery struct {
	From civiltime.Date
	Days *int
	Zone civiltime.Zone
}

type ConfirmRequest struct {
	Date      civiltime.Date
	StartTime string
	EndTime   string
	Zone      civiltime.Zone
	Name      string
	Email     string
	Notes     string
}

type Engine struct {
	store   Store
	avail   AvailabilitySource
	outbox  outbox.Writer
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewEngine(store Store, avail AvailabilitySource, ob outbox.Writer, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:   store,
		avail:   avail,
		outbox:  ob,
		logger:  logger,
		metrics: m,
		tracer:  otelx.Tracer("availability/booking"),
		now:     time.Now,
	}
}

// lockLink loads and row-locks the active link for token. An expired link is
// switched off and reported through expired so the caller can commit that
// before failing.
func (e *Engine) lockLink(ctx context.Context, token string) (link model.ShareLink, expired bool, err error) {
	link, err = e.store.LockShareLink(ctx, token)
	if storage.IsNotFound(err) {
		return model.ShareLink{}, false, ErrLinkNotFound
	}
	if err != nil {
		return model.ShareLink{}, false, err
	}
	if link.Expired(e.now()) {
		if err := e.store.SetShareLinkActive(ctx, link.ID, false); err != nil {
			return model.ShareLink{}, false, err
		}
		return model.ShareLink{}, true, nil
	}
	return link, false, nil
}

// Slots lists bookable slots for the link behind token. The link row stays
// locked while availability is computed so a concurrent confirmation cannot
// interleave.
func (e *Engine) Slots(ctx context.Context, token string, q ListingQuery) (Listing, error) {
	ctx, span := e.tracer.Start(ctx, "booking.Slots")
	defer span.End()

	var (
		listing Listing
		expired bool
	)
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		link, exp, err := e.lockLink(ctx, token)
		if err != nil || exp {
			expired = exp
			return err
		}
		settings, err := e.store.GetSettings(ctx)
		if err != nil {
			return err
		}

		q = normalizeQuery(q, settings, e.now())
		days, err := e.slotsFor(ctx, link, settings, civiltime.Range(q.From, *q.Days), q.Zone)
		if err != nil {
			return err
		}
		listing = Listing{
			Title:        link.Title,
			ExpiresAt:    link.ExpiresAt,
			Timezone:     q.Zone,
			BlockMinutes: link.BlockMinutes,
			Days:         days,
		}
		return nil
	})
	if expired {
		err = ErrLinkNotFound
	}
	if err != nil {
		span.RecordError(err)
		return Listing{}, err
	}
	return listing, nil
}

func normalizeQuery(q ListingQuery, settings model.UserSettings, now time.Time) ListingQuery {
	if q.From.IsZero() {
		q.From = civiltime.Today(now, settings.Zone().Location())
	}
	days := clamp(q.Days, DefaultListingDays, 1, MaxListingDays)
	q.Days = &days
	if q.Zone == "" {
		q.Zone = civiltime.DefaultZone
	}
	q.Zone = civiltime.ResolveZone(string(q.Zone))
	return q
}

// slotsFor computes availability in the owner's zone, drops booked and past
// blocks, and converts what is left into guestZone.
func (e *Engine) slotsFor(ctx context.Context, link model.ShareLink, settings model.UserSettings, dates []civiltime.Date, guestZone civiltime.Zone) ([]DaySlots, error) {
	ownerZone := settings.Zone()
	avail, err := e.avail.Compute(ctx, settings, dates, ownerZone)
	if err != nil {
		return nil, err
	}
	first, last := dates[0], dates[len(dates)-1]
	bookings, err := e.store.ListBookings(ctx, link.ID, first, last)
	if err != nil {
		return nil, err
	}
	booked := map[bookedKey]struct{}{}
	for _, b := range bookings {
		booked[bookedKey{b.Date, b.StartTime, b.EndTime}] = struct{}{}
	}

	ownerLoc := ownerZone.Location()
	guestLoc := guestZone.Location()
	block := time.Duration(link.BlockMinutes) * time.Minute
	now := e.now()

	out := make([]DaySlots, 0, len(dates))
	for _, d := range dates {
		day := DaySlots{Date: d, DayName: d.WeekdayName(), Label: d.Label(), Slots: []Slot{}}
		for _, free := range avail[d].Free {
			if isBooked(booked, d, free, ownerLoc) {
				continue
			}
			for _, b := range interval.Split(free, block) {
				if isBooked(booked, d, b, ownerLoc) || b.Start.Before(now) {
					continue
				}
				day.Slots = append(day.Slots, newSlot(b, guestLoc))
			}
		}
		out = append(out, day)
	}
	return out, nil
}

type bookedKey struct {
	date       civiltime.Date
	start, end civiltime.TimeOfDay
}

func isBooked(booked map[bookedKey]struct{}, d civiltime.Date, iv interval.Interval, ownerLoc *time.Location) bool {
	key := bookedKey{d, civiltime.TimeOfDayOf(iv.Start.In(ownerLoc)), civiltime.TimeOfDayOf(iv.End.In(ownerLoc))}
	_, ok := booked[key]
	return ok
}

func newSlot(iv interval.Interval, loc *time.Location) Slot {
	start := civiltime.TimeOfDayOf(iv.Start.In(loc))
	end := civiltime.TimeOfDayOf(iv.End.In(loc))
	return Slot{
		StartTime: start.String(),
		EndTime:   end.String(),
		Label:     start.Kitchen() + " - " + end.Kitchen(),
		StartsAt:  iv.Start.UTC(),
		EndsAt:    iv.End.UTC(),
	}
}

// Confirm books the requested slot if it is still offered right now. The
// listing is recomputed inside the same transaction that writes the booking
// and its locked calendar event. A lost race surfaces as ErrSlotUnavailable.
func (e *Engine) Confirm(ctx context.Context, token string, req ConfirmRequest) (model.PublicBooking, error) {
	ctx, span := e.tracer.Start(ctx, "booking.Confirm", trace.WithAttributes(
		attribute.String("booking.date", req.Date.String()),
	))
	defer span.End()

	start, err := civiltime.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return model.PublicBooking{}, err
	}
	end, err := civiltime.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return model.PublicBooking{}, err
	}
	guestZone := civiltime.ResolveZone(string(req.Zone))

	var (
		booking model.PublicBooking
		expired bool
	)
	err = e.store.InTx(ctx, func(ctx context.Context) error {
		link, exp, err := e.lockLink(ctx, token)
		if err != nil || exp {
			expired = exp
			return err
		}
		settings, err := e.store.GetSettings(ctx)
		if err != nil {
			return err
		}
		days, err := e.slotsFor(ctx, link, settings, []civiltime.Date{req.Date}, guestZone)
		if err != nil {
			return err
		}
		slot, ok := findSlot(days, start.String(), end.String())
		if !ok {
			return ErrSlotUnavailable
		}

		ownerZone := settings.Zone()
		ownerLoc := ownerZone.Location()
		ownerStart := civiltime.TimeOfDayOf(slot.StartsAt.In(ownerLoc))
		ownerEnd := civiltime.TimeOfDayOf(slot.EndsAt.In(ownerLoc))

		event := model.Event{
			Name:         "Booking - " + req.Name,
			Date:         req.Date,
			StartTime:    ownerStart.String(),
			EndTime:      ownerEnd.String(),
			Timezone:     ownerZone,
			LocationType: model.LocationVirtual,
			Notes:        strings.TrimSpace(fmt.Sprintf("Public booking via share link (%s)\n%s", req.Email, req.Notes)),
			IsLocked:     true,
		}
		if err := e.store.CreateEvent(ctx, &event); err != nil {
			return err
		}

		booking = model.PublicBooking{
			ShareLinkID: link.ID,
			Name:        req.Name,
			Email:       req.Email,
			Date:        req.Date,
			StartTime:   ownerStart,
			EndTime:     ownerEnd,
			Timezone:    ownerZone,
			Notes:       req.Notes,
			EventID:     event.ID,
		}
		if err := e.store.CreateBooking(ctx, &booking); err != nil {
			if storage.IsUniqueViolation(err) {
				return ErrSlotUnavailable
			}
			return err
		}

		evt, err := outbox.NewBookingConfirmed(outbox.BookingConfirmed{
			BookingID:   booking.ID,
			ShareLinkID: link.ID,
			EventID:     event.ID,
			Name:        booking.Name,
			Email:       booking.Email,
			Date:        booking.Date.String(),
			StartTime:   booking.StartTime.String(),
			EndTime:     booking.EndTime.String(),
			Timezone:    string(booking.Timezone),
			StartsAt:    slot.StartsAt,
			EndsAt:      slot.EndsAt,
		})
		if err != nil {
			return err
		}
		return e.outbox.Insert(ctx, evt)
	})
	if expired {
		err = ErrLinkNotFound
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotUnavailable):
			e.metrics.BookingRejected("slot_unavailable")
		case errors.Is(err, ErrLinkNotFound):
			e.metrics.BookingRejected("link_not_found")
		default:
			span.SetStatus(codes.Error, err.Error())
		}
		span.RecordError(err)
		return model.PublicBooking{}, err
	}

	e.metrics.BookingConfirmed()
	e.logger.InfoContext(ctx, "public booking confirmed",
		"booking_id", booking.ID,
		"share_link_id", booking.ShareLinkID,
		"date", booking.Date.String(),
		"start", booking.StartTime.String(),
	)
	return booking, nil
}

func findSlot(days []DaySlots, start, end string) (Slot, bool) {
	for _, d := range days {
		for _, s := range d.Slots {
			if s.StartTime == start && s.EndTime == end {
				return s, true
			}
		}
	}
	return Slot{}, false
}
