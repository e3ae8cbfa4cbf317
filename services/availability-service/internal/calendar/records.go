package calendar

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/holiday"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

// AvailabilityWindowDays is how many calendar days an availability request
// covers. Only weekdays inside it are computed.
const AvailabilityWindowDays = 14

func (s *Service) CreateHoliday(ctx context.Context, h model.CustomHoliday) (model.CustomHoliday, error) {
	if h.Date.IsZero() {
		return model.CustomHoliday{}, invalid("date is required")
	}
	h.ID = 0
	h.Description = strings.TrimSpace(h.Description)
	if err := s.store.CreateHoliday(ctx, &h); err != nil {
		return model.CustomHoliday{}, err
	}
	return h, nil
}

func (s *Service) DeleteHoliday(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		h, err := s.store.GetHoliday(ctx, id)
		if err != nil {
			return err
		}
		if h.IsLocked {
			return &LockedError{Kind: "holiday", ID: id}
		}
		return s.store.DeleteHoliday(ctx, id)
	})
}

func (s *Service) DeleteUnlockedHolidays(ctx context.Context) (int, error) {
	return s.store.DeleteUnlockedHolidays(ctx)
}

func (s *Service) ListHolidays(ctx context.Context, from, to civiltime.Date) ([]model.CustomHoliday, error) {
	return s.store.ListHolidaysBetween(ctx, from, to)
}

func (s *Service) FederalHolidays(year int) []holiday.Holiday {
	return s.federal.ForYear(year)
}

// SetOverride stores text as the availability for d, replacing any previous
// override.
func (s *Service) SetOverride(ctx context.Context, d civiltime.Date, text string) (model.AvailabilityOverride, error) {
	text = strings.TrimSpace(text)
	if d.IsZero() {
		return model.AvailabilityOverride{}, invalid("date is required")
	}
	if text == "" {
		return model.AvailabilityOverride{}, invalid("availability text is required")
	}
	o := model.AvailabilityOverride{Date: d, Text: text}
	if err := s.store.UpsertOverride(ctx, &o); err != nil {
		return model.AvailabilityOverride{}, err
	}
	return o, nil
}

func (s *Service) DeleteOverride(ctx context.Context, d civiltime.Date) error {
	return s.store.DeleteOverride(ctx, d)
}

func (s *Service) ListOverrides(ctx context.Context, from, to civiltime.Date) ([]model.AvailabilityOverride, error) {
	return s.store.ListOverridesBetween(ctx, from, to)
}

func (s *Service) Settings(ctx context.Context) (model.UserSettings, error) {
	return s.store.GetSettings(ctx)
}

// SettingsPatch changes the owner's settings. Nil fields are kept.
type SettingsPatch struct {
	WorkStart            *string
	WorkEnd              *string
	WorkDays             *model.WeekdaySet
	DefaultEventDuration *int
	BufferTime           *int
	PrimaryTimezone      *string
}

func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (model.UserSettings, error) {
	var out model.UserSettings
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.GetSettings(ctx)
		if err != nil {
			return err
		}
		if patch.WorkStart != nil {
			if cur.WorkStart, err = civiltime.ParseTimeOfDay(*patch.WorkStart); err != nil {
				return err
			}
		}
		if patch.WorkEnd != nil {
			if cur.WorkEnd, err = civiltime.ParseTimeOfDay(*patch.WorkEnd); err != nil {
				return err
			}
		}
		if !cur.WorkStart.Before(cur.WorkEnd) {
			return invalid("work end must be after work start")
		}
		if patch.WorkDays != nil {
			cur.WorkDays = *patch.WorkDays
		}
		if patch.DefaultEventDuration != nil {
			if *patch.DefaultEventDuration <= 0 {
				return invalid("default event duration must be positive")
			}
			cur.DefaultEventDuration = *patch.DefaultEventDuration
		}
		if patch.BufferTime != nil {
			if *patch.BufferTime < 0 {
				return invalid("buffer time must not be negative")
			}
			cur.BufferTime = *patch.BufferTime
		}
		if patch.PrimaryTimezone != nil {
			z, err := civiltime.ParseZone(*patch.PrimaryTimezone)
			if err != nil {
				return err
			}
			cur.PrimaryTimezone = z.IANA()
		}
		if err := s.store.SaveSettings(ctx, &cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}

func (s *Service) Alerts(ctx context.Context, unresolvedOnly bool) ([]model.ConflictAlert, error) {
	return s.store.ListAlerts(ctx, unresolvedOnly)
}

func (s *Service) ResolveAlert(ctx context.Context, id int64) error {
	return s.store.ResolveAlert(ctx, id)
}

func (s *Service) Categories(ctx context.Context) ([]model.EventCategory, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, c model.EventCategory) (model.EventCategory, error) {
	c.ID = 0
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return model.EventCategory{}, invalid("name is required")
	}
	if c.Color == "" {
		c.Color = "#3498db"
	}
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return model.EventCategory{}, err
	}
	return c, nil
}

// ComputeAvailability computes availability for dates with the stored
// settings.
func (s *Service) ComputeAvailability(ctx context.Context, dates []civiltime.Date, zone civiltime.Zone) ([]availability.Entry, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.calc.Compute(ctx, settings, dates, zone)
	if err != nil {
		return nil, err
	}
	return availability.Sorted(entries), nil
}

// Availability covers the weekdays of the two weeks starting at from. A zero
// from means today.
func (s *Service) Availability(ctx context.Context, from civiltime.Date, zone civiltime.Zone) ([]availability.Entry, error) {
	if from.IsZero() {
		var err error
		if from, err = s.Today(ctx); err != nil {
			return nil, err
		}
	}
	return s.ComputeAvailability(ctx, availability.NextWeekdays(from, AvailabilityWindowDays), zone)
}
