package importer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

func newImporter(t *testing.T) (*Importer, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func date(s string) civiltime.Date {
	d, err := civiltime.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

const legacyDoc = `{
  "events": {
    "2026-03-10": [
      {"name": "Interview", "start_time": "10", "end_time": "11", "timezone": "ET"},
      {"name": "Lunch", "start_time": "12:00PM", "end_time": "1:00 pm", "timezone": "PT"},
      {"name": "Broken", "start_time": "whenever", "end_time": "11", "timezone": "PT"}
    ],
    "not-a-date": [{"name": "Lost", "start_time": "9", "end_time": "10"}]
  },
  "holidays": ["2026-03-13", "13/03/2026"]
}`

func TestImportLegacyJSON(t *testing.T) {
	im, store := newImporter(t)
	ctx := context.Background()

	res, err := im.Import(ctx, "export.JSON", strings.NewReader(legacyDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 1, res.Holidays)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, res.Problems, 3)

	events, err := store.ListEventsBetween(ctx, date("2026-03-10"), date("2026-03-10"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	byName := map[string]model.Event{}
	for _, e := range events {
		byName[e.Name] = e
	}
	// Bare hours 8 through 11 are afternoon or evening in legacy files.
	assert.Equal(t, "22:00:00", byName["Interview"].StartTime)
	assert.Equal(t, "23:00:00", byName["Interview"].EndTime)
	assert.Equal(t, civiltime.Eastern, byName["Interview"].Timezone)
	assert.Equal(t, "12:00:00", byName["Lunch"].StartTime)
	assert.Equal(t, "13:00:00", byName["Lunch"].EndTime)

	again, err := im.Import(ctx, "export.json", strings.NewReader(legacyDoc))
	require.NoError(t, err)
	assert.Zero(t, again.Events)
	assert.Zero(t, again.Holidays)
	assert.Equal(t, 3, again.Existing)
}

func TestImportRejectsUnknownAndMalformed(t *testing.T) {
	im, _ := newImporter(t)
	ctx := context.Background()

	_, err := im.Import(ctx, "data.csv", strings.NewReader("a,b"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = im.Import(ctx, "data.json", strings.NewReader("{"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = im.Import(ctx, "cal.ics", strings.NewReader("not a calendar"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func ics(events ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n")
	for _, e := range events {
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString(strings.ReplaceAll(strings.TrimSpace(e), "\n", "\r\n"))
		b.WriteString("\r\nEND:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func TestImportICS(t *testing.T) {
	im, store := newImporter(t)
	ctx := context.Background()

	body := ics(
		`UID:1
SUMMARY:Team sync
DTSTART;TZID=America/New_York:20260310T130000
DTEND;TZID=America/New_York:20260310T140000
LOCATION:Room 4
RRULE:FREQ=WEEKLY;INTERVAL=2;COUNT=5;BYDAY=TU,TH
EXDATE;TZID=America/New_York:20260324T130000`,
		`UID:2
SUMMARY:Dentist
DTSTART:20260311T170000Z
DTEND:20260311T180000Z`,
		`UID:3
SUMMARY:Company retreat
DTSTART;VALUE=DATE:20260316
DTEND;VALUE=DATE:20260318`,
		`UID:4
SUMMARY:Monthly review
DTSTART:20260312T090000
DTEND:20260312T100000
RRULE:FREQ=MONTHLY;BYMONTHDAY=12`,
		`UID:5
SUMMARY:No end
DTSTART:20260313T090000`,
	)

	res, err := im.Import(ctx, "calendar.ics", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Events)
	assert.Equal(t, 2, res.Holidays)
	assert.Equal(t, 1, res.Skipped)

	events, err := store.ListEvents(ctx)
	require.NoError(t, err)
	byName := map[string]model.Event{}
	for _, e := range events {
		byName[e.Name] = e
	}

	sync := byName["Team sync"]
	assert.Equal(t, date("2026-03-10"), sync.Date)
	assert.Equal(t, "10:00:00", sync.StartTime, "converted to the owner's zone")
	assert.Equal(t, civiltime.Pacific, sync.Timezone)
	assert.Equal(t, "Room 4", sync.Location)
	require.NotNil(t, sync.Recurrence)
	assert.True(t, sync.IsRecurring)
	assert.Equal(t, model.Weekly, sync.Recurrence.Frequency)
	assert.Equal(t, 2, sync.Recurrence.Interval)
	assert.Equal(t, 5, sync.Recurrence.Count)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday}, sync.Recurrence.Weekdays)
	assert.True(t, sync.Recurrence.Excluded.Contains(date("2026-03-24")))

	dentist := byName["Dentist"]
	assert.Equal(t, "10:00:00", dentist.StartTime)
	assert.Nil(t, dentist.Recurrence)

	review := byName["Monthly review"]
	assert.Equal(t, "09:00:00", review.StartTime, "floating times are the owner's wall clock")
	assert.Nil(t, review.Recurrence, "unsupported rules import as a single event")

	holidays, err := store.ListHolidaysBetween(ctx, civiltime.Date{}, civiltime.Date{})
	require.NoError(t, err)
	require.Len(t, holidays, 2)
	assert.Equal(t, date("2026-03-16"), holidays[0].Date)
	assert.Equal(t, date("2026-03-17"), holidays[1].Date)
	assert.Equal(t, "Company retreat", holidays[0].Description)
}

func TestRecurrenceFromRRule(t *testing.T) {
	loc := civiltime.Pacific.Location()

	rule, err := recurrenceFromRRule("FREQ=DAILY;UNTIL=20260401T000000Z", loc)
	require.NoError(t, err)
	assert.Equal(t, model.Daily, rule.Frequency)
	assert.Equal(t, 1, rule.Interval)
	require.NotNil(t, rule.Until)
	assert.Equal(t, date("2026-03-31"), *rule.Until)

	for _, raw := range []string{
		"FREQ=HOURLY",
		"FREQ=MONTHLY;BYDAY=1MO",
		"FREQ=DAILY;BYDAY=MO",
		"FREQ=YEARLY;BYMONTH=3",
	} {
		_, err := recurrenceFromRRule(raw, loc)
		assert.Error(t, err, raw)
	}
}
