package civiltime

import "time"

// ToAbsoluteRange places start and end on d in zone. When end is not after
// start the range runs overnight and end falls on the next day.
func ToAbsoluteRange(d Date, start, end TimeOfDay, zone Zone) (time.Time, time.Time) {
	loc := zone.Location()
	endDate := d
	if end.Compare(start) <= 0 {
		endDate = d.AddDays(1)
	}
	return d.At(start, loc).UTC(), endDate.At(end, loc).UTC()
}

// ResolveRange is ToAbsoluteRange over the raw stored strings. It returns
// ErrUnresolvable when a piece is missing or unparseable. An empty zone code
// resolves to Pacific.
func ResolveRange(d Date, start, end string, zone string) (time.Time, time.Time, error) {
	if d.IsZero() {
		return time.Time{}, time.Time{}, ErrUnresolvable
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return time.Time{}, time.Time{}, ErrUnresolvable
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return time.Time{}, time.Time{}, ErrUnresolvable
	}
	from, to := ToAbsoluteRange(d, s, e, ResolveZone(zone))
	return from, to, nil
}
