// Package calendar owns the owner-facing calendar operations: events and
// their series, holidays, overrides, settings, alerts and categories.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/conflict"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/holiday"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

// ErrInvalid wraps input that is well formed but not acceptable.
var ErrInvalid = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ConflictError rejects a write that would overlap stored events. The write
// can be retried with force set.
type ConflictError struct {
	Events []model.Event
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event conflicts with %d existing event(s)", len(e.Events))
}

// IDs lists the conflicting event ids.
func (e *ConflictError) IDs() []int64 {
	ids := make([]int64, 0, len(e.Events))
	for _, ev := range e.Events {
		ids = append(ids, ev.ID)
	}
	return ids
}

// LockedError rejects deleting a locked record.
type LockedError struct {
	Kind string
	ID   int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s %d is locked", e.Kind, e.ID)
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id int64) error
	DeleteUnlockedEvents(ctx context.Context) (int, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListEventsBetween(ctx context.Context, from, to civiltime.Date) ([]model.Event, error)
	ListSeriesParents(ctx context.Context) ([]model.Event, error)
	ListChildren(ctx context.Context, parentID int64, from civiltime.Date) ([]model.Event, error)
	DeleteChildren(ctx context.Context, parentID int64, from civiltime.Date) (int, error)

	CreateHoliday(ctx context.Context, h *model.CustomHoliday) error
	GetHoliday(ctx context.Context, id int64) (model.CustomHoliday, error)
	DeleteHoliday(ctx context.Context, id int64) error
	DeleteUnlockedHolidays(ctx context.Context) (int, error)
	ListHolidaysBetween(ctx context.Context, from, to civiltime.Date) ([]model.CustomHoliday, error)

	UpsertOverride(ctx context.Context, o *model.AvailabilityOverride) error
	DeleteOverride(ctx context.Context, d civiltime.Date) error
	ListOverridesBetween(ctx context.Context, from, to civiltime.Date) ([]model.AvailabilityOverride, error)

	GetSettings(ctx context.Context) (model.UserSettings, error)
	SaveSettings(ctx context.Context, s *model.UserSettings) error

	ListCategories(ctx context.Context) ([]model.EventCategory, error)
	GetCategory(ctx context.Context, id int64) (model.EventCategory, error)
	CreateCategory(ctx context.Context, c *model.EventCategory) error

	ListAlerts(ctx context.Context, unresolvedOnly bool) ([]model.ConflictAlert, error)
	ResolveAlert(ctx context.Context, id int64) error
}

type Service struct {
	store    Store
	detector *conflict.Detector
	calc     *availability.Calculator
	federal  *holiday.Federal
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, detector *conflict.Detector, calc *availability.Calculator, federal *holiday.Federal, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		detector: detector,
		calc:     calc,
		federal:  federal,
		logger:   logger,
		now:      time.Now,
	}
}

// Today is the current date in the owner's zone.
func (s *Service) Today(ctx context.Context) (civiltime.Date, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return civiltime.Date{}, err
	}
	return civiltime.Today(s.now(), settings.Zone().Location()), nil
}
