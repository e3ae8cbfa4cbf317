// Package availability turns work hours, holidays, overrides and busy time into
// per-day free time.
package availability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/availmgr/libs/metrics"
	otelx "github.com/md-rashed-zaman/availmgr/libs/otel"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/interval"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/recurrence"
)

const (
	Unavailable = "Unavailable"

	// MinFree is the shortest free stretch worth reporting.
	MinFree = 15 * time.Minute
)

type Store interface {
	ListOverridesBetween(ctx context.Context, from, to civiltime.Date) ([]model.AvailabilityOverride, error)
	ListHolidaysBetween(ctx context.Context, from, to civiltime.Date) ([]model.CustomHoliday, error)
	ListEventsBetween(ctx context.Context, from, to civiltime.Date) ([]model.Event, error)
	ListSeriesParents(ctx context.Context) ([]model.Event, error)
}

// HolidayTable answers whether a date is a public holiday.
type HolidayTable interface {
	IsHoliday(d civiltime.Date) bool
}

// Entry is the availability of one date.
type Entry struct {
	Date     civiltime.Date `json:"date"`
	DayName  string         `json:"day_name"`
	Label    string         `json:"readable_date"`
	Text     string         `json:"availability"`
	Override bool           `json:"is_override,omitempty"`

	// Free holds the intervals behind Text. For overrides it is whatever
	// could be parsed back out of the text.
	Free []interval.Interval `json:"-"`
}

type Calculator struct {
	store    Store
	holidays HolidayTable
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewCalculator(store Store, holidays HolidayTable, logger *slog.Logger, m *metrics.Metrics) *Calculator {
	return &Calculator{
		store:    store,
		holidays: holidays,
		logger:   logger,
		metrics:  m,
		tracer:   otelx.Tracer("availability/calculator"),
	}
}

// Compute evaluates each date in zone using settings. Precedence per date is
// override, then holiday, then non-work day, then work hours minus busy time.
// Dates that end up Unavailable are left out of the result.
func (c *Calculator) Compute(ctx context.Context, settings model.UserSettings, dates []civiltime.Date, zone civiltime.Zone) (map[civiltime.Date]Entry, error) {
	out := map[civiltime.Date]Entry{}
	if len(dates) == 0 {
		return out, nil
	}
	start := time.Now()
	defer c.metrics.ObserveAvailability(start)

	ctx, span := c.tracer.Start(ctx, "availability.Compute", trace.WithAttributes(
		attribute.Int("dates", len(dates)),
		attribute.String("zone", string(zone)),
	))
	defer span.End()

	first, last := bounds(dates)

	overrides, err := c.store.ListOverridesBetween(ctx, first, last)
	if err != nil {
		return nil, err
	}
	overrideText := make(map[civiltime.Date]string, len(overrides))
	for _, o := range overrides {
		overrideText[o.Date] = o.Text
	}

	custom, err := c.store.ListHolidaysBetween(ctx, first, last)
	if err != nil {
		return nil, err
	}
	customDays := make(map[civiltime.Date]struct{}, len(custom))
	for _, h := range custom {
		customDays[h.Date] = struct{}{}
	}

	busy, err := c.busy(ctx, first.AddDays(-1), last.AddDays(1))
	if err != nil {
		return nil, err
	}

	for _, d := range dates {
		entry := Entry{Date: d, DayName: d.WeekdayName(), Label: d.Label()}
		_, isCustom := customDays[d]

		switch text, isOverride := overrideText[d]; {
		case isOverride:
			entry.Text = text
			entry.Override = true
			entry.Free = ParseRanges(d, text, zone)
		case isCustom || c.holidays.IsHoliday(d):
			entry.Text = Unavailable
		case !settings.WorkDays.Has(d.Weekday()):
			entry.Text = Unavailable
		default:
			entry.Free = freeTime(d, settings, zone, busy)
			entry.Text = Render(entry.Free, zone)
		}

		if entry.Text != Unavailable {
			out[d] = entry
		}
	}
	return out, nil
}

// busy resolves direct events and expanded series occurrences dated within
// [from, to] to absolute intervals. Records that cannot be resolved are
// skipped.
func (c *Calculator) busy(ctx context.Context, from, to civiltime.Date) ([]interval.Interval, error) {
	events, err := c.store.ListEventsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	parents, err := c.store.ListSeriesParents(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []model.Event
	for _, e := range events {
		if !e.IsRecurring && e.ParentEventID == nil {
			candidates = append(candidates, e)
		}
	}
	candidates = append(candidates, recurrence.ExpandAll(parents, from, to, func(e model.Event, err error) {
		c.logger.WarnContext(ctx, "recurring event skipped", "event_id", e.ID, "err", err)
	})...)

	out := make([]interval.Interval, 0, len(candidates))
	for _, e := range candidates {
		r, err := e.Range()
		if err != nil {
			c.logger.DebugContext(ctx, "availability skipped unresolvable event", "event_id", e.ID, "err", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func freeTime(d civiltime.Date, settings model.UserSettings, zone civiltime.Zone, busy []interval.Interval) []interval.Interval {
	start, end := civiltime.ToAbsoluteRange(d, settings.WorkStart, settings.WorkEnd, zone)
	base := interval.Interval{Start: start, End: end}

	var relevant []interval.Interval
	for _, b := range busy {
		if b.Overlaps(base) {
			relevant = append(relevant, b)
		}
	}
	return interval.AtLeast(interval.Subtract(base, relevant), MinFree)
}

// Render formats free intervals as "9:00 AM - 10:00 AM, 11:00 AM - 5:00 PM" in
// zone, or Unavailable when there are none.
func Render(free []interval.Interval, zone civiltime.Zone) string {
	if len(free) == 0 {
		return Unavailable
	}
	loc := zone.Location()
	parts := make([]string, 0, len(free))
	for _, iv := range free {
		parts = append(parts, iv.Start.In(loc).Format("3:04 PM")+" - "+iv.End.In(loc).Format("3:04 PM"))
	}
	return strings.Join(parts, ", ")
}

// ParseRanges reads rendered text back into intervals on d in zone. Parts that
// are not "start - end" ranges are ignored.
func ParseRanges(d civiltime.Date, text string, zone civiltime.Zone) []interval.Interval {
	var out []interval.Interval
	for _, part := range strings.Split(text, ",") {
		startText, endText, ok := strings.Cut(strings.TrimSpace(part), " - ")
		if !ok {
			continue
		}
		s, err := civiltime.ParseTimeOfDay(startText)
		if err != nil {
			continue
		}
		e, err := civiltime.ParseTimeOfDay(endText)
		if err != nil {
			continue
		}
		from, to := civiltime.ToAbsoluteRange(d, s, e, zone)
		out = append(out, interval.Interval{Start: from, End: to})
	}
	return out
}

// Sorted returns the entries of m in date order.
func Sorted(m map[civiltime.Date]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// NextWeekdays returns the Monday to Friday dates among the n days starting at
// start.
func NextWeekdays(start civiltime.Date, n int) []civiltime.Date {
	var out []civiltime.Date
	for _, d := range civiltime.Range(start, n) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func bounds(dates []civiltime.Date) (civiltime.Date, civiltime.Date) {
	first, last := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last
}
