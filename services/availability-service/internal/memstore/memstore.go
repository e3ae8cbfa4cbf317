// Package memstore is an in-memory store with the same surface as the Postgres
// one. Transactions take a store-wide lock and roll back by restoring a
// snapshot, so they are fully serialised.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

type state struct {
	nextID     int64
	events     map[int64]model.Event
	holidays   map[int64]model.CustomHoliday
	overrides  map[civiltime.Date]model.AvailabilityOverride
	settings   *model.UserSettings
	categories map[int64]model.EventCategory
	alerts     map[int64]model.ConflictAlert
	links      map[int64]model.ShareLink
	bookings   map[int64]model.PublicBooking
	outbox     []outbox.Event
}

func (s *state) clone() *state {
	out := &state{
		nextID:     s.nextID,
		events:     make(map[int64]model.Event, len(s.events)),
		holidays:   make(map[int64]model.CustomHoliday, len(s.holidays)),
		overrides:  make(map[civiltime.Date]model.AvailabilityOverride, len(s.overrides)),
		categories: make(map[int64]model.EventCategory, len(s.categories)),
		alerts:     make(map[int64]model.ConflictAlert, len(s.alerts)),
		links:      make(map[int64]model.ShareLink, len(s.links)),
		bookings:   make(map[int64]model.PublicBooking, len(s.bookings)),
		outbox:     append([]outbox.Event(nil), s.outbox...),
	}
	for k, v := range s.events {
		out.events[k] = cloneEvent(v)
	}
	for k, v := range s.holidays {
		out.holidays[k] = v
	}
	for k, v := range s.overrides {
		out.overrides[k] = v
	}
	if s.settings != nil {
		settings := *s.settings
		out.settings = &settings
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	for k, v := range s.alerts {
		out.alerts[k] = v
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	return out
}

type Store struct {
	mu  sync.Mutex
	st  *state
	Now func() time.Time
}

func New() *Store {
	return &Store{
		st:  (&state{}).clone(),
		Now: time.Now,
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// InTx runs fn with the store locked. If fn fails every change it made is
// discarded. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// do runs fn under the lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, storage.ErrNotFound)
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, storage.ErrDuplicate)
}

func cloneEvent(e model.Event) model.Event {
	e.Recurrence = e.Recurrence.Clone()
	if e.CategoryID != nil {
		v := *e.CategoryID
		e.CategoryID = &v
	}
	if e.ParentEventID != nil {
		v := *e.ParentEventID
		e.ParentEventID = &v
	}
	return e
}

func sortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

// Insert records an outbox event.
func (s *Store) Insert(ctx context.Context, evt outbox.Event) error {
	return s.do(ctx, func(st *state) error {
		st.outbox = append(st.outbox, evt)
		return nil
	})
}

// Outbox returns the events written so far.
func (s *Store) Outbox() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.st.outbox...)
}
