package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

var day = civiltime.Date{Year: 2030, Month: time.January, Day: 8}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context) error {
		e := model.Event{Name: "Standup", Date: day, StartTime: "09:00:00", EndTime: "10:00:00", Timezone: civiltime.Pacific}
		require.NoError(t, s.CreateEvent(ctx, &e))
		// Nested transactions join the outer one.
		require.NoError(t, s.InTx(ctx, func(ctx context.Context) error {
			return s.CreateHoliday(ctx, &model.CustomHoliday{Date: day})
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	holidays, err := s.ListHolidaysBetween(ctx, civiltime.Date{}, civiltime.Date{})
	require.NoError(t, err)
	assert.Empty(t, holidays)
}

func TestCreateHoliday_DuplicateDate(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateHoliday(ctx, &model.CustomHoliday{Date: day}))
	err := s.CreateHoliday(ctx, &model.CustomHoliday{Date: day})
	assert.True(t, storage.IsUniqueViolation(err))
}

func TestGetSettings_CreatesDefaults(t *testing.T) {
	s := New()
	got, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings().WorkStart, got.WorkStart)
	assert.Equal(t, civiltime.Pacific, got.Zone())
}

func TestGetEvent_NotFound(t *testing.T) {
	_, err := New().GetEvent(context.Background(), 42)
	assert.True(t, storage.IsNotFound(err))
}
