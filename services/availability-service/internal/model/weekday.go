package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MondayIndex numbers weekdays Monday=0 through Sunday=6.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func WeekdayFromIndex(idx int) (time.Weekday, error) {
	if idx < 0 || idx > 6 {
		return 0, fmt.Errorf("weekday index %d out of range 0..6", idx)
	}
	return time.Weekday((idx + 1) % 7), nil
}

// WeekdaySet is a set of weekdays, encoded in JSON as Monday=0 indexes.
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// MondayToFriday is the default working week.
var MondayToFriday = NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for i := 0; i < 7; i++ {
		wd, _ := WeekdayFromIndex(i)
		if s.Has(wd) {
			out = append(out, wd)
		}
	}
	return out
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	idx := []int{}
	for _, d := range s.Days() {
		idx = append(idx, MondayIndex(d))
	}
	return json.Marshal(idx)
}

func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	var idx []int
	if err := json.Unmarshal(b, &idx); err != nil {
		return err
	}
	var out WeekdaySet
	for _, i := range idx {
		wd, err := WeekdayFromIndex(i)
		if err != nil {
			return err
		}
		out |= NewWeekdaySet(wd)
	}
	*s = out
	return nil
}
