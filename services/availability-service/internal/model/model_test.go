package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

func TestRecurrenceRule_LegacyJSON(t *testing.T) {
	raw := `{"frequency":"weekly","count":4,"until":"2026-12-31","byweekday":[0,2],"excluded_dates":["2026-03-04","bogus","2026-03-02"]}`

	var r RecurrenceRule
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	require.NoError(t, r.Validate())

	assert.Equal(t, Weekly, r.Frequency)
	assert.Equal(t, 1, r.Interval)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, r.Weekdays)
	assert.Nil(t, r.EffectiveUntil(), "count wins over until")
	assert.Equal(t, 2, r.Excluded.Len())
	assert.Equal(t, "2026-03-02", r.Excluded.Dates()[0].String())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frequency":"weekly","interval":1,"count":4,"until":"2026-12-31","byweekday":[0,2],"excluded_dates":["2026-03-02","2026-03-04"]}`, string(out))
}

func TestRecurrenceRule_Validate(t *testing.T) {
	r := RecurrenceRule{Frequency: Daily, Interval: 1, Weekdays: []time.Weekday{time.Monday}}
	assert.NoError(t, r.Validate(), "weekdays are ignored for daily rules")
	assert.Nil(t, r.ByWeekday())
	assert.Error(t, r.ValidateStrict())

	r = RecurrenceRule{Frequency: "hourly", Interval: 1}
	assert.Error(t, r.Validate())

	r = RecurrenceRule{Frequency: Monthly, Interval: 0}
	assert.Error(t, r.Validate())
}

func TestRecurrenceRule_UnknownFrequencyIsWeekly(t *testing.T) {
	var r RecurrenceRule
	require.NoError(t, json.Unmarshal([]byte(`{"frequency":"biweekly","interval":2}`), &r))
	assert.Equal(t, Weekly, r.Frequency)
	assert.Equal(t, 2, r.Interval)
	require.NoError(t, r.Validate())
}

func TestDateSet(t *testing.T) {
	d1 := civiltime.Date{Year: 2026, Month: time.March, Day: 1}
	d2 := d1.AddDays(1)

	s := NewDateSet(d2, d1, d2)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(d1))
	assert.False(t, s.Add(d1))
	assert.True(t, s.Remove(d2))
	assert.False(t, s.Contains(d2))

	clone := s.Clone()
	clone.Add(d2)
	assert.False(t, s.Contains(d2), "clone must not alias")
}

func TestWeekdaySetJSON(t *testing.T) {
	b, err := json.Marshal(MondayToFriday)
	require.NoError(t, err)
	assert.Equal(t, "[0,1,2,3,4]", string(b))

	var s WeekdaySet
	require.NoError(t, json.Unmarshal([]byte("[5,6]"), &s))
	assert.True(t, s.Has(time.Saturday))
	assert.True(t, s.Has(time.Sunday))
	assert.False(t, s.Has(time.Monday))

	assert.Error(t, json.Unmarshal([]byte("[7]"), &s))
}

func TestEventRange(t *testing.T) {
	e := Event{Date: civiltime.Date{Year: 2026, Month: time.March, Day: 10}, StartTime: "22:00", EndTime: "01:00", Timezone: civiltime.Pacific}
	iv, err := e.Range()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, iv.Duration())

	e.StartTime = "late"
	_, err = e.Range()
	assert.ErrorIs(t, err, civiltime.ErrUnresolvable)
}

func TestSettingsZoneFallback(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, civiltime.Pacific, s.Zone())
	s.PrimaryTimezone = "ET"
	assert.Equal(t, civiltime.Eastern, s.Zone())
	s.PrimaryTimezone = "Mars/Olympus"
	assert.Equal(t, civiltime.Pacific, s.Zone())
}

func TestCategoryIsInterview(t *testing.T) {
	assert.True(t, EventCategory{Name: "Technical Interview"}.IsInterview())
	assert.False(t, EventCategory{Name: "Gym"}.IsInterview())
}
