package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// RecurrenceRule describes how a series repeats. Count takes precedence over
// Until; with neither the series is open ended. Weekdays only apply to weekly
// rules.
type RecurrenceRule struct {
	Frequency Frequency
	Interval  int
	Count     int
	Until     *civiltime.Date
	Weekdays  []time.Weekday
	Excluded  DateSet
}

// Validate checks what expansion relies on. A weekday list on a non-weekly
// rule is ignored rather than rejected; see ValidateStrict.
func (r *RecurrenceRule) Validate() error {
	if !r.Frequency.Valid() {
		return fmt.Errorf("unsupported frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("interval must be at least 1")
	}
	if r.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	return nil
}

// ValidateStrict is Validate plus a rejection of weekday lists on non-weekly
// rules. New rules coming in through the API or an import go through it.
func (r *RecurrenceRule) ValidateStrict() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if len(r.Weekdays) > 0 && r.Frequency != Weekly {
		return fmt.Errorf("weekday list is only supported for weekly rules")
	}
	return nil
}

// ByWeekday returns the weekday filter that applies to this rule.
func (r *RecurrenceRule) ByWeekday() []time.Weekday {
	if r.Frequency != Weekly {
		return nil
	}
	return r.Weekdays
}

// EffectiveUntil is Until unless Count is set.
func (r *RecurrenceRule) EffectiveUntil() *civiltime.Date {
	if r.Count > 0 {
		return nil
	}
	return r.Until
}

// recurrenceWire is the stored JSON shape. Weekdays are Monday=0.
type recurrenceWire struct {
	Frequency     Frequency `json:"frequency"`
	Interval      int       `json:"interval,omitempty"`
	Count         int       `json:"count,omitempty"`
	Until         string    `json:"until,omitempty"`
	ByWeekday     []int     `json:"byweekday,omitempty"`
	ExcludedDates []string  `json:"excluded_dates,omitempty"`
}

func (r RecurrenceRule) MarshalJSON() ([]byte, error) {
	w := recurrenceWire{
		Frequency: r.Frequency,
		Interval:  r.Interval,
		Count:     r.Count,
	}
	if r.Until != nil {
		w.Until = r.Until.String()
	}
	for _, wd := range r.Weekdays {
		w.ByWeekday = append(w.ByWeekday, MondayIndex(wd))
	}
	for _, d := range r.Excluded.Dates() {
		w.ExcludedDates = append(w.ExcludedDates, d.String())
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the stored shape. A missing or unknown frequency means
// weekly and a missing interval means 1. Malformed excluded dates are dropped.
func (r *RecurrenceRule) UnmarshalJSON(b []byte) error {
	var w recurrenceWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := RecurrenceRule{
		Frequency: w.Frequency,
		Interval:  w.Interval,
		Count:     w.Count,
	}
	if !out.Frequency.Valid() {
		out.Frequency = Weekly
	}
	if out.Interval == 0 {
		out.Interval = 1
	}
	if w.Until != "" {
		until, err := civiltime.ParseDate(w.Until)
		if err != nil {
			return err
		}
		out.Until = &until
	}
	for _, idx := range w.ByWeekday {
		wd, err := WeekdayFromIndex(idx)
		if err != nil {
			return err
		}
		out.Weekdays = append(out.Weekdays, wd)
	}
	for _, s := range w.ExcludedDates {
		if d, err := civiltime.ParseDate(s); err == nil {
			out.Excluded.Add(d)
		}
	}
	*r = out
	return nil
}

// DateSet is an ordered set of dates.
type DateSet struct {
	dates []civiltime.Date
}

func NewDateSet(dates ...civiltime.Date) DateSet {
	var s DateSet
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s *DateSet) search(d civiltime.Date) int {
	return sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
}

// Add inserts d and reports whether it was new.
func (s *DateSet) Add(d civiltime.Date) bool {
	i := s.search(d)
	if i < len(s.dates) && s.dates[i] == d {
		return false
	}
	s.dates = append(s.dates, civiltime.Date{})
	copy(s.dates[i+1:], s.dates[i:])
	s.dates[i] = d
	return true
}

func (s *DateSet) Remove(d civiltime.Date) bool {
	i := s.search(d)
	if i < len(s.dates) && s.dates[i] == d {
		s.dates = append(s.dates[:i], s.dates[i+1:]...)
		return true
	}
	return false
}

func (s DateSet) Contains(d civiltime.Date) bool {
	i := s.search(d)
	return i < len(s.dates) && s.dates[i] == d
}

func (s DateSet) Len() int { return len(s.dates) }

// Dates returns a copy of the members in ascending order.
func (s DateSet) Dates() []civiltime.Date {
	return append([]civiltime.Date(nil), s.dates...)
}

// Clone returns an independent copy.
func (s DateSet) Clone() DateSet {
	return DateSet{dates: s.Dates()}
}

// Clone deep-copies the rule.
func (r *RecurrenceRule) Clone() *RecurrenceRule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Until != nil {
		until := *r.Until
		out.Until = &until
	}
	out.Weekdays = append([]time.Weekday(nil), r.Weekdays...)
	out.Excluded = r.Excluded.Clone()
	return &out
}
