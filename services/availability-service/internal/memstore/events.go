package memstore

import (
	"context"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	return s.do(ctx, func(st *state) error {
		now := s.Now()
		e.ID = st.id()
		e.CreatedAt, e.UpdatedAt = now, now
		st.events[e.ID] = cloneEvent(*e)
		return nil
	})
}

func (s *Store) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	var out model.Event
	err := s.do(ctx, func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return notFound("event", id)
		}
		out = cloneEvent(e)
		return nil
	})
	return out, err
}

func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	return s.do(ctx, func(st *state) error {
		prev, ok := st.events[e.ID]
		if !ok {
			return notFound("event", e.ID)
		}
		e.CreatedAt = prev.CreatedAt
		e.UpdatedAt = s.Now()
		st.events[e.ID] = cloneEvent(*e)
		return nil
	})
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.events[id]; !ok {
			return notFound("event", id)
		}
		st.deleteEvent(id)
		return nil
	})
}

// deleteEvent mirrors the foreign keys: alerts cascade, children and bookings
// lose their reference.
func (st *state) deleteEvent(id int64) {
	delete(st.events, id)
	for aid, a := range st.alerts {
		if a.Event1ID == id || a.Event2ID == id {
			delete(st.alerts, aid)
		}
	}
	for cid, e := range st.events {
		if e.ParentEventID != nil && *e.ParentEventID == id {
			e.ParentEventID = nil
			st.events[cid] = e
		}
	}
	for bid, b := range st.bookings {
		if b.EventID == id {
			b.EventID = 0
			st.bookings[bid] = b
		}
	}
}

func (s *Store) DeleteUnlockedEvents(ctx context.Context) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for id, e := range st.events {
			if !e.IsLocked {
				st.deleteEvent(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) filterEvents(ctx context.Context, keep func(model.Event) bool) ([]model.Event, error) {
	var out []model.Event
	err := s.do(ctx, func(st *state) error {
		for _, e := range st.events {
			if keep(e) {
				out = append(out, cloneEvent(e))
			}
		}
		return nil
	})
	sortEvents(out)
	return out, err
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.filterEvents(ctx, func(model.Event) bool { return true })
}

func (s *Store) ListEventsBetween(ctx context.Context, from, to civiltime.Date) ([]model.Event, error) {
	return s.filterEvents(ctx, func(e model.Event) bool { return e.Date.Within(from, to) })
}

func (s *Store) ListSeriesParents(ctx context.Context) ([]model.Event, error) {
	return s.filterEvents(ctx, func(e model.Event) bool { return e.IsSeriesParent() })
}

func (s *Store) ListChildren(ctx context.Context, parentID int64, from civiltime.Date) ([]model.Event, error) {
	return s.filterEvents(ctx, func(e model.Event) bool {
		return e.ParentEventID != nil && *e.ParentEventID == parentID && !e.Date.Before(from)
	})
}

func (s *Store) DeleteChildren(ctx context.Context, parentID int64, from civiltime.Date) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for id, e := range st.events {
			if e.ParentEventID != nil && *e.ParentEventID == parentID && !e.Date.Before(from) {
				st.deleteEvent(id)
				n++
			}
		}
		return nil
	})
	return n, err
}
