package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

func TestFederal_FixedAndFloating(t *testing.T) {
	f := NewFederal()

	assert.True(t, f.IsHoliday(civiltime.Date{Year: 2026, Month: time.July, Day: 4}))
	assert.True(t, f.IsHoliday(civiltime.Date{Year: 2026, Month: time.November, Day: 26}), "thanksgiving")
	assert.True(t, f.IsHoliday(civiltime.Date{Year: 2026, Month: time.January, Day: 19}), "mlk day")
	assert.False(t, f.IsHoliday(civiltime.Date{Year: 2026, Month: time.March, Day: 10}))
}

func TestFederal_ObservedDates(t *testing.T) {
	f := NewFederal()

	// July 4 2026 is a Saturday, observed on Friday July 3.
	h, ok := f.Lookup(civiltime.Date{Year: 2026, Month: time.July, Day: 3})
	assert.True(t, ok)
	assert.True(t, h.Observed)

	// New Year's Day 2022 fell on a Saturday and was observed on Dec 31 2021.
	assert.True(t, f.IsHoliday(civiltime.Date{Year: 2021, Month: time.December, Day: 31}))
}

func TestFederal_ForYearSorted(t *testing.T) {
	list := NewFederal().ForYear(2026)
	assert.GreaterOrEqual(t, len(list), 11)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].Date.Before(list[i].Date))
	}
}
