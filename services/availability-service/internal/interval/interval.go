// Package interval is pure arithmetic over absolute time ranges.
package interval

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

// Overlaps reports whether the ranges share any instant. Ranges that only
// touch at an endpoint do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Subtract removes every busy interval from base and returns the remaining
// disjoint sub-intervals ordered by start. An empty result means base is fully
// covered.
func Subtract(base Interval, busy []Interval) []Interval {
	if base.Empty() {
		return nil
	}
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	free := []Interval{base}
	for _, b := range sorted {
		if b.Empty() {
			continue
		}
		next := make([]Interval, 0, len(free)+1)
		for _, f := range free {
			if !b.Overlaps(f) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, Interval{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, Interval{Start: b.End, End: f.End})
			}
		}
		free = next
		if len(free) == 0 {
			return nil
		}
	}
	return free
}

// AtLeast drops intervals shorter than min.
func AtLeast(ivs []Interval, min time.Duration) []Interval {
	out := ivs[:0:0]
	for _, iv := range ivs {
		if iv.Duration() >= min {
			out = append(out, iv)
		}
	}
	return out
}

// Split cuts iv into consecutive blocks of width block. A trailing remainder
// shorter than one block is dropped. A non-positive block returns iv whole.
func Split(iv Interval, block time.Duration) []Interval {
	if iv.Empty() {
		return nil
	}
	if block <= 0 {
		return []Interval{iv}
	}
	var out []Interval
	for t := iv.Start; !t.Add(block).After(iv.End); t = t.Add(block) {
		out = append(out, Interval{Start: t, End: t.Add(block)})
	}
	return out
}
