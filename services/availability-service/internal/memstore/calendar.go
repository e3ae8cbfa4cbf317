package memstore

import (
	"context"
	"sort"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

func (s *Store) CreateHoliday(ctx context.Context, h *model.CustomHoliday) error {
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.holidays {
			if existing.Date == h.Date {
				return duplicate("holiday date")
			}
		}
		h.ID = st.id()
		st.holidays[h.ID] = *h
		return nil
	})
}

func (s *Store) GetHoliday(ctx context.Context, id int64) (model.CustomHoliday, error) {
	var out model.CustomHoliday
	err := s.do(ctx, func(st *state) error {
		h, ok := st.holidays[id]
		if !ok {
			return notFound("holiday", id)
		}
		out = h
		return nil
	})
	return out, err
}

func (s *Store) DeleteHoliday(ctx context.Context, id int64) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.holidays[id]; !ok {
			return notFound("holiday", id)
		}
		delete(st.holidays, id)
		return nil
	})
}

func (s *Store) DeleteUnlockedHolidays(ctx context.Context) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for id, h := range st.holidays {
			if !h.IsLocked {
				delete(st.holidays, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) ListHolidaysBetween(ctx context.Context, from, to civiltime.Date) ([]model.CustomHoliday, error) {
	all := from.IsZero() && to.IsZero()
	var out []model.CustomHoliday
	err := s.do(ctx, func(st *state) error {
		for _, h := range st.holidays {
			if all || h.Date.Within(from, to) {
				out = append(out, h)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

func (s *Store) UpsertOverride(ctx context.Context, o *model.AvailabilityOverride) error {
	return s.do(ctx, func(st *state) error {
		if prev, ok := st.overrides[o.Date]; ok {
			o.ID = prev.ID
		} else {
			o.ID = st.id()
		}
		o.UpdatedAt = s.Now()
		st.overrides[o.Date] = *o
		return nil
	})
}

func (s *Store) DeleteOverride(ctx context.Context, d civiltime.Date) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.overrides[d]; !ok {
			return notFound("override", d)
		}
		delete(st.overrides, d)
		return nil
	})
}

func (s *Store) ListOverridesBetween(ctx context.Context, from, to civiltime.Date) ([]model.AvailabilityOverride, error) {
	all := from.IsZero() && to.IsZero()
	var out []model.AvailabilityOverride
	err := s.do(ctx, func(st *state) error {
		for d, o := range st.overrides {
			if all || d.Within(from, to) {
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

func (s *Store) GetSettings(ctx context.Context) (model.UserSettings, error) {
	var out model.UserSettings
	err := s.do(ctx, func(st *state) error {
		if st.settings == nil {
			defaults := model.DefaultSettings()
			defaults.UpdatedAt = s.Now()
			st.settings = &defaults
		}
		out = *st.settings
		return nil
	})
	return out, err
}

func (s *Store) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	return s.do(ctx, func(st *state) error {
		settings.UpdatedAt = s.Now()
		saved := *settings
		st.settings = &saved
		return nil
	})
}

func (s *Store) ListCategories(ctx context.Context) ([]model.EventCategory, error) {
	var out []model.EventCategory
	err := s.do(ctx, func(st *state) error {
		for _, c := range st.categories {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (s *Store) GetCategory(ctx context.Context, id int64) (model.EventCategory, error) {
	var out model.EventCategory
	err := s.do(ctx, func(st *state) error {
		c, ok := st.categories[id]
		if !ok {
			return notFound("category", id)
		}
		out = c
		return nil
	})
	return out, err
}

func (s *Store) CreateCategory(ctx context.Context, c *model.EventCategory) error {
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.categories {
			if existing.Name == c.Name {
				return duplicate("category name")
			}
		}
		c.ID = st.id()
		st.categories[c.ID] = *c
		return nil
	})
}

func (s *Store) DeleteUnresolvedAlerts(ctx context.Context) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for id, a := range st.alerts {
			if !a.Resolved {
				delete(st.alerts, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) CreateAlert(ctx context.Context, a *model.ConflictAlert) error {
	a.Event1ID, a.Event2ID = model.CanonicalPair(a.Event1ID, a.Event2ID)
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.alerts {
			if !existing.Resolved && !a.Resolved && existing.Event1ID == a.Event1ID && existing.Event2ID == a.Event2ID {
				return duplicate("open conflict alert")
			}
		}
		a.ID = st.id()
		a.DetectedAt = s.Now()
		st.alerts[a.ID] = *a
		return nil
	})
}

func (s *Store) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]model.ConflictAlert, error) {
	var out []model.ConflictAlert
	err := s.do(ctx, func(st *state) error {
		for _, a := range st.alerts {
			if !unresolvedOnly || !a.Resolved {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (s *Store) ResolveAlert(ctx context.Context, id int64) error {
	return s.do(ctx, func(st *state) error {
		a, ok := st.alerts[id]
		if !ok {
			return notFound("alert", id)
		}
		a.Resolved = true
		st.alerts[id] = a
		return nil
	})
}
