// Package holiday computes the US federal holiday table.
package holiday

import (
	"sort"
	"sync"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

type Holiday struct {
	Date     civiltime.Date `json:"date"`
	Name     string         `json:"name"`
	Observed bool           `json:"observed"`
}

// Federal caches holiday tables per year. The zero value is not usable; call
// NewFederal.
type Federal struct {
	holidays []*cal.Holiday

	mu     sync.Mutex
	byYear map[int]map[civiltime.Date]Holiday
}

func NewFederal() *Federal {
	return &Federal{
		holidays: us.Holidays,
		byYear:   map[int]map[civiltime.Date]Holiday{},
	}
}

// ForYear lists the holidays falling in year, actual and observed dates both,
// ordered by date. An observed date may come from the next year's holiday,
// e.g. New Year's Day observed on December 31.
func (f *Federal) ForYear(year int) []Holiday {
	table := f.table(year)
	out := make([]Holiday, 0, len(table))
	for _, h := range table {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (f *Federal) Lookup(d civiltime.Date) (Holiday, bool) {
	h, ok := f.table(d.Year)[d]
	return h, ok
}

func (f *Federal) IsHoliday(d civiltime.Date) bool {
	_, ok := f.Lookup(d)
	return ok
}

func (f *Federal) table(year int) map[civiltime.Date]Holiday {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byYear[year]; ok {
		return t
	}
	t := map[civiltime.Date]Holiday{}
	for _, y := range []int{year, year + 1} {
		for _, h := range f.holidays {
			actual, observed := h.Calc(y)
			if actual.IsZero() {
				continue
			}
			if d := civiltime.DateOf(actual); d.Year == year {
				t[d] = Holiday{Date: d, Name: h.Name}
			}
			if d := civiltime.DateOf(observed); !observed.IsZero() && d.Year == year && !observed.Equal(actual) {
				if _, taken := t[d]; !taken {
					t[d] = Holiday{Date: d, Name: h.Name + " (observed)", Observed: true}
				}
			}
		}
	}
	f.byYear[year] = t
	return t
}
