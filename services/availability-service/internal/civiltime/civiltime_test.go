package civiltime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"09:30:15": {9, 30, 15},
		"17:00":    {17, 0, 0},
		"9:00":     {9, 0, 0},
		"1:00 PM":  {13, 0, 0},
		"1:00pm":   {13, 0, 0},
		"12:15 am": {0, 15, 0},
		" 3:45 Pm": {15, 45, 0},
	}
	for in, want := range cases {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "11", "noon", "25:00", "13:00 PM"} {
		_, err := ParseTimeOfDay(bad)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "expected ParseError for %q", bad)
	}
}

func TestParseLegacyTimeOfDay_BareHourPolicy(t *testing.T) {
	cases := map[string]int{
		"7":     7,
		"8":     20,
		"11":    23,
		"12":    0,
		"1":     1,
		"3 pm":  15,
		"10AM":  10,
		"10:30": 10,
	}
	for in, hour := range cases {
		got, err := ParseLegacyTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, hour, got.Hour, in)
	}
	_, err := ParseLegacyTimeOfDay("13")
	assert.Error(t, err)
}

func TestTimeOfDayRendering(t *testing.T) {
	tod := MustTimeOfDay("13:05")
	assert.Equal(t, "13:05:00", tod.String())
	assert.Equal(t, "1:05 PM", tod.Kitchen())
	assert.Equal(t, "12:00 AM", TimeOfDay{}.Kitchen())
}

func TestResolveZone(t *testing.T) {
	assert.Equal(t, Eastern, ResolveZone("et"))
	assert.Equal(t, Pacific, ResolveZone("GMT"))
	assert.Equal(t, Pacific, ResolveZone(""))
	assert.Equal(t, "America/Chicago", Central.IANA())

	z, err := ParseZone("America/Denver")
	require.NoError(t, err)
	assert.Equal(t, Mountain, z)

	_, err = ParseZone("Europe/Paris")
	assert.Error(t, err)
}

func TestToAbsoluteRange_Overnight(t *testing.T) {
	d := Date{2026, time.March, 10}
	start, end := ToAbsoluteRange(d, MustTimeOfDay("22:00"), MustTimeOfDay("01:00"), Pacific)
	assert.Equal(t, 3*time.Hour, end.Sub(start))

	equalStart, equalEnd := ToAbsoluteRange(d, MustTimeOfDay("09:00"), MustTimeOfDay("09:00"), UTC)
	assert.Equal(t, 24*time.Hour, equalEnd.Sub(equalStart))
}

func TestToAbsoluteRange_ZonesAgree(t *testing.T) {
	d := Date{2026, time.July, 1}
	ptStart, _ := ToAbsoluteRange(d, MustTimeOfDay("09:00"), MustTimeOfDay("10:00"), Pacific)
	etStart, _ := ToAbsoluteRange(d, MustTimeOfDay("12:00"), MustTimeOfDay("13:00"), Eastern)
	assert.True(t, ptStart.Equal(etStart))
}

func TestResolveRange_Unresolvable(t *testing.T) {
	d := Date{2026, time.March, 10}
	_, _, err := ResolveRange(d, "", "10:00", "PT")
	assert.ErrorIs(t, err, ErrUnresolvable)
	_, _, err = ResolveRange(Date{}, "09:00", "10:00", "PT")
	assert.ErrorIs(t, err, ErrUnresolvable)

	from, to, err := ResolveRange(d, "9:00 AM", "10:00", "")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, to.Sub(from))
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", d.AddDays(1).String())
	assert.Equal(t, time.Saturday, d.Weekday())
	assert.Equal(t, "Saturday", d.WeekdayName())
	assert.Equal(t, "Feb 28", d.Label())
	assert.True(t, d.Within(d.AddDays(-1), d))
	assert.Equal(t, 3, d.DaysUntil(d.AddDays(3)))

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-02-28"`, string(b))

	var back Date
	require.NoError(t, back.UnmarshalJSON(b))
	assert.Equal(t, d, back)

	_, err = ParseDate("02/28/2026")
	assert.Error(t, err)
}
