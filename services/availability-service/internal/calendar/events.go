package calendar

import (
	"context"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/conflict"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/recurrence"
)

const DefaultUpcomingDays = 7

// normalizeEvent validates user supplied fields and rewrites times into their
// canonical form.
func (s *Service) normalizeEvent(ctx context.Context, e *model.Event) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return invalid("name is required")
	}
	if e.Date.IsZero() {
		return invalid("date is required")
	}
	start, err := civiltime.ParseTimeOfDay(e.StartTime)
	if err != nil {
		return err
	}
	end, err := civiltime.ParseTimeOfDay(e.EndTime)
	if err != nil {
		return err
	}
	e.StartTime, e.EndTime = start.String(), end.String()

	if e.Timezone == "" {
		e.Timezone = civiltime.DefaultZone
	} else {
		z, err := civiltime.ParseZone(string(e.Timezone))
		if err != nil {
			return err
		}
		e.Timezone = z
	}
	if e.LocationType == "" {
		e.LocationType = model.LocationInPerson
	}
	if e.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, *e.CategoryID); err != nil {
			return err
		}
	}
	if e.Recurrence != nil {
		if err := e.Recurrence.ValidateStrict(); err != nil {
			return invalid("%v", err)
		}
		e.IsRecurring = true
	} else {
		e.IsRecurring = false
	}
	return nil
}

func (s *Service) checkConflicts(ctx context.Context, e model.Event, force bool) error {
	if force {
		return nil
	}
	found, err := s.detector.Check(ctx, conflict.Candidate{
		Date:      e.Date,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Timezone:  e.Timezone,
	}, e.ID)
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return &ConflictError{Events: found}
	}
	return nil
}

// CreateEvent stores e unless it overlaps an existing event. force skips the
// overlap check.
func (s *Service) CreateEvent(ctx context.Context, e model.Event, force bool) (model.Event, error) {
	e.ID = 0
	e.ParentEventID = nil
	if err := s.normalizeEvent(ctx, &e); err != nil {
		return model.Event{}, err
	}
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkConflicts(ctx, e, force); err != nil {
			return err
		}
		return s.store.CreateEvent(ctx, &e)
	})
	if err != nil {
		return model.Event{}, err
	}
	s.logger.InfoContext(ctx, "event created", "event_id", e.ID, "date", e.Date.String(), "forced", force)
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// ListEvents lists stored events; zero bounds list everything.
func (s *Service) ListEvents(ctx context.Context, from, to civiltime.Date) ([]model.Event, error) {
	if from.IsZero() && to.IsZero() {
		return s.store.ListEvents(ctx)
	}
	return s.store.ListEventsBetween(ctx, from, to)
}

// UpdateEvent applies patch to the event. A patch that moves the event is
// checked for overlaps like a create.
func (s *Service) UpdateEvent(ctx context.Context, id int64, patch model.EventPatch, force bool) (model.Event, error) {
	var out model.Event
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		e, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(&e)
		if err := s.normalizeEvent(ctx, &e); err != nil {
			return err
		}
		if patch.TouchesSchedule() {
			if err := s.checkConflicts(ctx, e, force); err != nil {
				return err
			}
		}
		if err := s.store.UpdateEvent(ctx, &e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// DeleteEvent removes an unlocked event.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(ctx context.Context) error {
		e, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if e.IsLocked {
			return &LockedError{Kind: "event", ID: id}
		}
		return s.store.DeleteEvent(ctx, id)
	})
}

func (s *Service) DeleteAllUnlocked(ctx context.Context) (int, error) {
	n, err := s.store.DeleteUnlockedEvents(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "unlocked events deleted", "count", n)
	return n, nil
}

func (s *Service) seriesParent(ctx context.Context, id int64) (model.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	if !e.IsSeriesParent() {
		return model.Event{}, invalid("event %d is not a recurring series", id)
	}
	return e, nil
}

// SetRecurrence replaces the event's rule. A nil rule makes it a one-off.
func (s *Service) SetRecurrence(ctx context.Context, id int64, rule *model.RecurrenceRule) (model.Event, error) {
	if rule != nil {
		if err := rule.ValidateStrict(); err != nil {
			return model.Event{}, invalid("%v", err)
		}
	}
	var out model.Event
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		e, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if e.ParentEventID != nil {
			return invalid("event %d belongs to series %d", id, *e.ParentEventID)
		}
		e.Recurrence = rule.Clone()
		e.IsRecurring = rule != nil
		if err := s.store.UpdateEvent(ctx, &e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// DeleteInstance drops one occurrence of a series by excluding its date.
func (s *Service) DeleteInstance(ctx context.Context, id int64, d civiltime.Date) (model.Event, error) {
	var out model.Event
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		e, err := s.seriesParent(ctx, id)
		if err != nil {
			return err
		}
		e.Recurrence.Excluded.Add(d)
		if err := s.store.UpdateEvent(ctx, &e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// UpdateSeries patches the series parent and its stored child rows dated on
// or after today. Children keep their own dates.
func (s *Service) UpdateSeries(ctx context.Context, id int64, patch model.EventPatch, today civiltime.Date) (model.Event, int, error) {
	var (
		out     model.Event
		updated int
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		updated = 0
		parent, err := s.seriesParent(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(&parent)
		if err := s.normalizeEvent(ctx, &parent); err != nil {
			return err
		}
		if err := s.store.UpdateEvent(ctx, &parent); err != nil {
			return err
		}

		childPatch := patch
		childPatch.Date = nil
		children, err := s.store.ListChildren(ctx, id, today)
		if err != nil {
			return err
		}
		for _, c := range children {
			childPatch.Apply(&c)
			if err := s.store.UpdateEvent(ctx, &c); err != nil {
				return err
			}
			updated++
		}
		out = parent
		return nil
	})
	return out, updated, err
}

// DeleteSeries removes the parent and its stored child rows dated on or
// after today. Earlier children are kept and lose their parent reference.
func (s *Service) DeleteSeries(ctx context.Context, id int64, today civiltime.Date) (int, error) {
	removed := 0
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		parent, err := s.seriesParent(ctx, id)
		if err != nil {
			return err
		}
		if parent.IsLocked {
			return &LockedError{Kind: "event", ID: id}
		}
		n, err := s.store.DeleteChildren(ctx, id, today)
		if err != nil {
			return err
		}
		removed = n + 1
		return s.store.DeleteEvent(ctx, id)
	})
	return removed, err
}

// RecurringInstances expands the series id within [from, to].
func (s *Service) RecurringInstances(ctx context.Context, id int64, from, to civiltime.Date) ([]model.Event, error) {
	parent, err := s.seriesParent(ctx, id)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, invalid("end date is before start date")
	}
	occ, err := recurrence.Expand(parent, from, to)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return occ, nil
}

// Upcoming lists one-off events and series occurrences in the next days,
// starting today, in chronological order.
func (s *Service) Upcoming(ctx context.Context, today civiltime.Date, days int) ([]model.Event, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	to := today.AddDays(days - 1)
	stored, err := s.store.ListEventsBetween(ctx, today, to)
	if err != nil {
		return nil, err
	}
	parents, err := s.store.ListSeriesParents(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.Event
	for _, e := range stored {
		if !e.IsSeriesParent() {
			out = append(out, e)
		}
	}
	out = append(out, recurrence.ExpandAll(parents, today, to, func(e model.Event, err error) {
		s.logger.DebugContext(ctx, "series skipped", "event_id", e.ID, "err", err)
	})...)
	sortChronological(out)
	return out, nil
}

func sortChronological(events []model.Event) {
	key := func(e model.Event) (civiltime.Date, civiltime.TimeOfDay) {
		tod, _ := civiltime.ParseTimeOfDay(e.StartTime)
		return e.Date, tod
	}
	sort.SliceStable(events, func(i, j int) bool {
		di, ti := key(events[i])
		dj, tj := key(events[j])
		if di != dj {
			return di.Before(dj)
		}
		return ti.Before(tj)
	})
}

// CheckConflicts lists stored events overlapping event id.
func (s *Service) CheckConflicts(ctx context.Context, id int64) ([]model.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detector.ConflictsFor(ctx, e)
}

func (s *Service) DetectAllConflicts(ctx context.Context) (int, error) {
	return s.detector.DetectAll(ctx)
}
