package civiltime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall clock reading with second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04PM",
}

// ParseTimeOfDay accepts "15:04:05", "15:04" and "3:04 PM" (meridiem is case
// insensitive and the space before it is optional). Bare hours are rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return TimeOfDay{}, &ParseError{Kind: "time", Input: s}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, &ParseError{Kind: "time", Input: s}
}

// ParseLegacyTimeOfDay is the parser used by the legacy JSON importer. On top of
// ParseTimeOfDay it accepts bare hours such as "11" or "3 pm". A bare hour with
// no meridiem is read as PM for 8 through 11 and AM otherwise; this mirrors the
// files the importer was written for and must not be used for user input.
func ParseLegacyTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	compact := strings.ReplaceAll(raw, " ", "")

	if hour, err := strconv.Atoi(compact); err == nil {
		if hour < 1 || hour > 12 {
			return TimeOfDay{}, &ParseError{Kind: "time", Input: s}
		}
		meridiem := "AM"
		if hour >= 8 && hour <= 11 {
			meridiem = "PM"
		}
		compact = strconv.Itoa(hour) + meridiem
	}
	if t, err := time.Parse("3PM", compact); err == nil {
		return TimeOfDay{Hour: t.Hour()}, nil
	}
	return ParseTimeOfDay(raw)
}

// MustTimeOfDay panics on invalid input. Intended for constants and tests.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) Compare(other TimeOfDay) int {
	switch a, b := t.seconds(), other.seconds(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t.Compare(other) < 0 }

// String renders the canonical "15:04:05" form used in storage and on the wire.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Kitchen renders the 12-hour display form, e.g. "9:00 AM".
func (t TimeOfDay) Kitchen() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, t.Second, 0, time.UTC).Format("3:04 PM")
}

// TimeOfDayOf returns the wall clock reading of ts in its own location.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return TimeOfDay{Hour: ts.Hour(), Minute: ts.Minute(), Second: ts.Second()}
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
