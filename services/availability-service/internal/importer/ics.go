package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

// ImportICS reads an iCalendar file. Timed events are converted into the
// owner's zone. All-day events become custom holidays, one per day covered.
// Recurrence rules outside the supported subset import as a single event.
func (im *Importer) ImportICS(ctx context.Context, r io.Reader) (Result, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	settings, err := im.store.GetSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	zone := settings.Zone()
	loc := zone.Location()

	var res Result
	for _, ve := range cal.Events() {
		summary := propValue(ve, ical.ComponentPropertySummary)
		if summary == "" {
			summary = "Imported event"
		}

		if isAllDay(ve) {
			holidays, err := allDayHolidays(ve, summary)
			if err != nil {
				res.skip("all-day event %q: %v", summary, err)
				continue
			}
			for _, h := range holidays {
				if err := im.addHoliday(ctx, &res, h); err != nil {
					return res, err
				}
			}
			continue
		}

		e, err := im.timedEvent(ctx, ve, summary, zone, loc)
		if err != nil {
			res.skip("event %q: %v", summary, err)
			continue
		}
		if err := im.addEvent(ctx, &res, e); err != nil {
			return res, err
		}
	}
	return res, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

func isAllDay(ve *ical.VEvent) bool {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return false
	}
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func allDayHolidays(ve *ical.VEvent, summary string) ([]model.CustomHoliday, error) {
	start, err := ve.GetAllDayStartAt()
	if err != nil {
		return nil, err
	}
	first := civiltime.DateOf(start)
	days := 1
	if end, err := ve.GetAllDayEndAt(); err == nil {
		if n := first.DaysUntil(civiltime.DateOf(end)); n > 1 {
			days = n
		}
	}
	yearly := strings.Contains(strings.ToUpper(propValue(ve, ical.ComponentPropertyRrule)), "FREQ=YEARLY")

	out := make([]model.CustomHoliday, 0, days)
	for _, d := range civiltime.Range(first, days) {
		out = append(out, model.CustomHoliday{Date: d, Description: summary, IsRecurring: yearly})
	}
	return out, nil
}

// eventTime reads a DTSTART or DTEND. Floating times carry no zone and are
// taken as the owner's wall clock.
func eventTime(ve *ical.VEvent, p ical.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := ve.GetProperty(p)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing %s", p)
	}
	var (
		t   time.Time
		err error
	)
	if p == ical.ComponentPropertyDtEnd {
		t, err = ve.GetEndAt()
	} else {
		t, err = ve.GetStartAt()
	}
	if err != nil {
		return time.Time{}, err
	}
	_, hasZone := prop.ICalParameters["TZID"]
	if !hasZone && !strings.HasSuffix(prop.Value, "Z") {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
	return t.In(loc), nil
}

func (im *Importer) timedEvent(ctx context.Context, ve *ical.VEvent, summary string, zone civiltime.Zone, loc *time.Location) (model.Event, error) {
	start, err := eventTime(ve, ical.ComponentPropertyDtStart, loc)
	if err != nil {
		return model.Event{}, err
	}
	end, err := eventTime(ve, ical.ComponentPropertyDtEnd, loc)
	if err != nil {
		return model.Event{}, err
	}
	if !end.After(start) {
		return model.Event{}, fmt.Errorf("end is not after start")
	}
	if end.Sub(start) > 24*time.Hour {
		return model.Event{}, fmt.Errorf("events longer than a day are not supported")
	}

	e := model.Event{
		Name:      summary,
		Date:      civiltime.DateOf(start),
		StartTime: civiltime.TimeOfDayOf(start).String(),
		EndTime:   civiltime.TimeOfDayOf(end).String(),
		Timezone:  zone,
		Location:  propValue(ve, ical.ComponentPropertyLocation),
		Notes:     propValue(ve, ical.ComponentPropertyDescription),
	}

	raw := propValue(ve, ical.ComponentPropertyRrule)
	if raw == "" {
		return e, nil
	}
	rule, err := recurrenceFromRRule(raw, loc)
	if err != nil {
		im.logger.DebugContext(ctx, "rrule not representable, importing first occurrence", "summary", summary, "rrule", raw, "err", err)
		return e, nil
	}
	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := loc
		if tz, ok := prop.ICalParameters["TZID"]; ok && len(tz) == 1 {
			if l, err := time.LoadLocation(tz[0]); err == nil {
				exLoc = l
			}
		}
		dates, err := rrule.StrToDatesInLoc(prop.Value, exLoc)
		if err != nil {
			continue
		}
		for _, t := range dates {
			rule.Excluded.Add(civiltime.DateOf(t.In(loc)))
		}
	}
	e.IsRecurring = true
	e.Recurrence = rule
	return e, nil
}

var frequencies = map[rrule.Frequency]model.Frequency{
	rrule.DAILY:   model.Daily,
	rrule.WEEKLY:  model.Weekly,
	rrule.MONTHLY: model.Monthly,
	rrule.YEARLY:  model.Yearly,
}

// recurrenceFromRRule maps an RRULE onto the supported rule shape. BY* parts
// other than a plain weekday list on a weekly rule are rejected.
func recurrenceFromRRule(raw string, loc *time.Location) (*model.RecurrenceRule, error) {
	opt, err := rrule.StrToROptionInLocation(strings.TrimPrefix(raw, "RRULE:"), loc)
	if err != nil {
		return nil, err
	}
	freq, ok := frequencies[opt.Freq]
	if !ok {
		return nil, fmt.Errorf("frequency %s not supported", opt.Freq)
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Bymonthday)+len(opt.Byyearday)+len(opt.Byweekno)+
		len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond)+len(opt.Byeaster) > 0 {
		return nil, fmt.Errorf("BY rules other than BYDAY are not supported")
	}

	rule := &model.RecurrenceRule{Frequency: freq, Interval: opt.Interval, Count: opt.Count}
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	if !opt.Until.IsZero() {
		until := civiltime.DateOf(opt.Until.In(loc))
		rule.Until = &until
	}
	for _, wd := range opt.Byweekday {
		if freq != model.Weekly || wd.N() != 0 {
			return nil, fmt.Errorf("BYDAY %s not supported", wd.String())
		}
		day, err := model.WeekdayFromIndex(wd.Day())
		if err != nil {
			return nil, err
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	if err := rule.ValidateStrict(); err != nil {
		return nil, err
	}
	return rule, nil
}
