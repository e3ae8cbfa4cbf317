package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/holiday"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/outbox"
)

// 2026-03-10 is a Tuesday with no federal holiday.
var tuesday = civiltime.Date{Year: 2026, Month: time.March, Day: 10}

type fixture struct {
	store  *memstore.Store
	engine *Engine
	links  *Links
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	calc := availability.NewCalculator(store, holiday.NewFederal(), logger, nil)

	f := &fixture{
		store:  store,
		engine: NewEngine(store, calc, store, logger, nil),
		links:  NewLinks(store, logger),
		now:    tuesday.AddDays(-1).At(civiltime.MustTimeOfDay("08:00"), civiltime.Pacific.Location()),
	}
	clock := func() time.Time { return f.now }
	f.engine.now = clock
	f.links.now = clock
	store.Now = clock
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) link(t *testing.T, block int) model.ShareLink {
	t.Helper()
	link, err := f.links.Generate(context.Background(), GenerateRequest{Title: "Office hours", DurationDays: ptr(14), BlockMinutes: &block})
	require.NoError(t, err)
	return link
}

func (f *fixture) day(t *testing.T, token string, zone civiltime.Zone) DaySlots {
	t.Helper()
	listing, err := f.engine.Slots(context.Background(), token, ListingQuery{From: tuesday, Days: ptr(1), Zone: zone})
	require.NoError(t, err)
	require.Len(t, listing.Days, 1)
	return listing.Days[0]
}

func TestSlots_SplitsIntoBlocks(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)

	day := f.day(t, link.Token, civiltime.Pacific)
	assert.Equal(t, tuesday, day.Date)
	assert.Equal(t, "Tuesday", day.DayName)
	require.Len(t, day.Slots, 16)
	assert.Equal(t, "09:00:00", day.Slots[0].StartTime)
	assert.Equal(t, "09:30:00", day.Slots[0].EndTime)
	assert.Equal(t, "9:00 AM - 9:30 AM", day.Slots[0].Label)
	assert.Equal(t, "16:30:00", day.Slots[15].StartTime)
}

func TestSlots_GuestZone(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 60)

	day := f.day(t, link.Token, civiltime.Eastern)
	require.Len(t, day.Slots, 8)
	assert.Equal(t, "12:00:00", day.Slots[0].StartTime)
	assert.Equal(t, "12:00 PM - 1:00 PM", day.Slots[0].Label)
	assert.Equal(t, time.Date(2026, time.March, 10, 16, 0, 0, 0, time.UTC), day.Slots[0].StartsAt)
}

func TestSlots_ZeroBlockOffersWholeRanges(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 0)
	ev := model.Event{Name: "Lunch", Date: tuesday, StartTime: "12:00", EndTime: "13:00", Timezone: civiltime.Pacific}
	require.NoError(t, f.store.CreateEvent(context.Background(), &ev))

	day := f.day(t, link.Token, civiltime.Pacific)
	require.Len(t, day.Slots, 2)
	assert.Equal(t, "9:00 AM - 12:00 PM", day.Slots[0].Label)
	assert.Equal(t, "1:00 PM - 5:00 PM", day.Slots[1].Label)
}

func TestSlots_SkipsPastBlocks(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 60)
	f.now = tuesday.At(civiltime.MustTimeOfDay("12:30"), civiltime.Pacific.Location())

	day := f.day(t, link.Token, civiltime.Pacific)
	require.NotEmpty(t, day.Slots)
	assert.Equal(t, "13:00:00", day.Slots[0].StartTime)
}

func TestSlots_Defaults(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)

	listing, err := f.engine.Slots(context.Background(), link.Token, ListingQuery{})
	require.NoError(t, err)
	assert.Len(t, listing.Days, DefaultListingDays)
	assert.Equal(t, tuesday.AddDays(-1), listing.Days[0].Date)
	assert.Equal(t, civiltime.Pacific, listing.Timezone)
	assert.Equal(t, "Office hours", listing.Title)
}

func TestSlots_ClampsExplicitDays(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)

	for _, tc := range []struct {
		days, want int
	}{
		{days: 0, want: 1},
		{days: -5, want: 1},
		{days: 7, want: 7},
		{days: 45, want: MaxListingDays},
	} {
		listing, err := f.engine.Slots(context.Background(), link.Token, ListingQuery{From: tuesday, Days: ptr(tc.days)})
		require.NoError(t, err)
		assert.Len(t, listing.Days, tc.want, "days=%d", tc.days)
	}
}

func TestSlots_UnknownOrExpiredLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Slots(ctx, "missing", ListingQuery{})
	assert.ErrorIs(t, err, ErrLinkNotFound)

	link := f.link(t, 30)
	f.now = link.ExpiresAt.Add(time.Minute)
	_, err = f.engine.Slots(ctx, link.Token, ListingQuery{})
	assert.ErrorIs(t, err, ErrLinkNotFound)

	links, err := f.links.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.False(t, links[0].IsActive, "expired link is switched off on access")
}

func TestConfirm_BooksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.link(t, 30)

	b, err := f.engine.Confirm(ctx, link.Token, ConfirmRequest{
		Date: tuesday, StartTime: "13:00", EndTime: "13:30:00", Zone: civiltime.Eastern,
		Name: "Ada", Email: "ada@example.com", Notes: "intro call",
	})
	require.NoError(t, err)
	assert.Equal(t, civiltime.MustTimeOfDay("10:00"), b.StartTime, "stored in the owner's zone")
	assert.Equal(t, civiltime.MustTimeOfDay("10:30"), b.EndTime)
	assert.Equal(t, civiltime.Pacific, b.Timezone)

	ev, err := f.store.GetEvent(ctx, b.EventID)
	require.NoError(t, err)
	assert.Equal(t, "Booking - Ada", ev.Name)
	assert.True(t, ev.IsLocked)
	assert.Equal(t, model.LocationVirtual, ev.LocationType)
	assert.Equal(t, "Public booking via share link (ada@example.com)\nintro call", ev.Notes)

	day := f.day(t, link.Token, civiltime.Pacific)
	for _, s := range day.Slots {
		assert.NotEqual(t, "10:00:00", s.StartTime)
	}
	assert.Len(t, day.Slots, 15)

	events := f.store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, outbox.EventBookingConfirmed, events[0].EventType)
}

func TestConfirm_RejectsUnofferedSlot(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)

	cases := map[string]ConfirmRequest{
		"misaligned": {Date: tuesday, StartTime: "09:10", EndTime: "09:40"},
		"outside":    {Date: tuesday, StartTime: "18:00", EndTime: "18:30"},
		"weekend":    {Date: tuesday.AddDays(4), StartTime: "09:00", EndTime: "09:30"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			req.Name, req.Email = "Bob", "bob@example.com"
			_, err := f.engine.Confirm(context.Background(), link.Token, req)
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		})
	}
}

func TestConfirm_SecondBookingOfSameSlotFails(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)
	req := ConfirmRequest{Date: tuesday, StartTime: "09:00", EndTime: "09:30", Zone: civiltime.Pacific, Name: "A", Email: "a@example.com"}

	_, err := f.engine.Confirm(context.Background(), link.Token, req)
	require.NoError(t, err)
	_, err = f.engine.Confirm(context.Background(), link.Token, req)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestConfirm_ConcurrentRequestsBookOnce(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)
	req := ConfirmRequest{Date: tuesday, StartTime: "11:00", EndTime: "11:30", Zone: civiltime.Pacific, Name: "Race", Email: "race@example.com"}

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, taken int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Confirm(context.Background(), link.Token, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotUnavailable):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, taken)

	bookings, err := f.store.ListBookings(context.Background(), link.ID, tuesday, tuesday)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	events, err := f.store.ListEventsBetween(context.Background(), tuesday, tuesday)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Booking - Race", events[0].Name)
	assert.True(t, events[0].IsLocked)
}

// staleBookings hides existing bookings so the slot listing looks free and
// only the store's uniqueness rule stands in the way.
type staleBookings struct {
	*memstore.Store
}

func (staleBookings) ListBookings(context.Context, int64, civiltime.Date, civiltime.Date) ([]model.PublicBooking, error) {
	return nil, nil
}

func TestConfirm_UniqueViolationRollsBackEvent(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)
	ctx := context.Background()

	existing := model.PublicBooking{
		ShareLinkID: link.ID,
		Name:        "First",
		Email:       "first@example.com",
		Date:        tuesday,
		StartTime:   civiltime.MustTimeOfDay("11:00"),
		EndTime:     civiltime.MustTimeOfDay("11:30"),
		Timezone:    civiltime.Pacific,
	}
	require.NoError(t, f.store.CreateBooking(ctx, &existing))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calc := availability.NewCalculator(f.store, holiday.NewFederal(), logger, nil)
	engine := NewEngine(staleBookings{f.store}, calc, f.store, logger, nil)
	engine.now = func() time.Time { return f.now }

	req := ConfirmRequest{Date: tuesday, StartTime: "11:00", EndTime: "11:30", Zone: civiltime.Pacific, Name: "Second", Email: "second@example.com"}
	_, err := engine.Confirm(ctx, link.Token, req)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	events, err := f.store.ListEventsBetween(ctx, tuesday, tuesday)
	require.NoError(t, err)
	assert.Empty(t, events)

	bookings, err := f.store.ListBookings(ctx, link.ID, tuesday, tuesday)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "First", bookings[0].Name)
}

func TestConfirm_ExpiredLink(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)
	f.now = link.ExpiresAt

	_, err := f.engine.Confirm(context.Background(), link.Token, ConfirmRequest{Date: tuesday, StartTime: "09:00", EndTime: "09:30"})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestConfirm_BadTime(t *testing.T) {
	f := newFixture(t)
	link := f.link(t, 30)

	_, err := f.engine.Confirm(context.Background(), link.Token, ConfirmRequest{Date: tuesday, StartTime: "noon", EndTime: "09:30"})
	var perr *civiltime.ParseError
	assert.ErrorAs(t, err, &perr)
}
