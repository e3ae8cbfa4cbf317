// Package recurrence expands recurring series into dated occurrences.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

var frequencies = map[model.Frequency]rrule.Frequency{
	model.Daily:   rrule.DAILY,
	model.Weekly:  rrule.WEEKLY,
	model.Monthly: rrule.MONTHLY,
	model.Yearly:  rrule.YEARLY,
}

// Monday-first, matching model.MondayIndex.
var weekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Set builds the rrule set for a series parent. Dates are stepped at UTC
// midnight so only the civil date of each occurrence is meaningful.
func Set(parent model.Event) (*rrule.Set, error) {
	rule := parent.Recurrence
	if rule == nil {
		return nil, fmt.Errorf("event %d has no recurrence rule", parent.ID)
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("event %d: %w", parent.ID, err)
	}

	opt := rrule.ROption{
		Freq:     frequencies[rule.Frequency],
		Interval: rule.Interval,
		Dtstart:  parent.Date.Midnight(),
	}
	if rule.Count > 0 {
		opt.Count = rule.Count
	} else if until := rule.EffectiveUntil(); until != nil {
		opt.Until = until.Midnight()
	}
	for _, wd := range rule.ByWeekday() {
		opt.Byweekday = append(opt.Byweekday, weekdays[model.MondayIndex(wd)])
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", parent.ID, err)
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, d := range rule.Excluded.Dates() {
		set.ExDate(d.Midnight())
	}
	return set, nil
}

// Expand returns the occurrences of parent dated within [from, to], skipping
// excluded dates. Occurrences copy the parent's display fields, reference it
// through ParentEventID and are never recurring themselves. Non-recurring
// events yield nothing.
func Expand(parent model.Event, from, to civiltime.Date) ([]model.Event, error) {
	if !parent.IsRecurring || parent.Recurrence == nil || to.Before(from) {
		return nil, nil
	}
	set, err := Set(parent)
	if err != nil {
		return nil, err
	}

	dates := set.Between(from.Midnight(), to.Midnight(), true)
	out := make([]model.Event, 0, len(dates))
	for _, t := range dates {
		out = append(out, Occurrence(parent, civiltime.DateOf(t.UTC())))
	}
	return out, nil
}

// Occurrence builds the occurrence of parent on d.
func Occurrence(parent model.Event, d civiltime.Date) model.Event {
	parentID := parent.ID
	occ := parent
	occ.ID = 0
	occ.Date = d
	occ.IsRecurring = false
	occ.Recurrence = nil
	occ.ParentEventID = &parentID
	occ.CreatedAt = time.Time{}
	occ.UpdatedAt = time.Time{}
	return occ
}

// ExpandAll expands every series parent in events. Parents with rules that
// cannot be expanded are reported through skip and left out.
func ExpandAll(events []model.Event, from, to civiltime.Date, skip func(model.Event, error)) []model.Event {
	var out []model.Event
	for _, e := range events {
		if !e.IsSeriesParent() {
			continue
		}
		occ, err := Expand(e, from, to)
		if err != nil {
			if skip != nil {
				skip(e, err)
			}
			continue
		}
		out = append(out, occ...)
	}
	return out
}
