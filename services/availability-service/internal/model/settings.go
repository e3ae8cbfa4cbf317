package model

import (
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

// UserSettings is the owner's working profile. A single row exists and is
// created with defaults on first read.
type UserSettings struct {
	WorkStart            civiltime.TimeOfDay `json:"work_start_time"`
	WorkEnd              civiltime.TimeOfDay `json:"work_end_time"`
	WorkDays             WeekdaySet          `json:"work_days"`
	DefaultEventDuration int                 `json:"default_event_duration"`
	BufferTime           int                 `json:"buffer_time"`
	PrimaryTimezone      string              `json:"primary_timezone"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func DefaultSettings() UserSettings {
	return UserSettings{
		WorkStart:            civiltime.TimeOfDay{Hour: 9},
		WorkEnd:              civiltime.TimeOfDay{Hour: 17},
		WorkDays:             MondayToFriday,
		DefaultEventDuration: 60,
		PrimaryTimezone:      civiltime.Pacific.IANA(),
	}
}

// Zone is the owner's base zone. Unsupported values fall back to Pacific.
func (s UserSettings) Zone() civiltime.Zone {
	z, err := civiltime.ParseZone(s.PrimaryTimezone)
	if err != nil {
		return civiltime.DefaultZone
	}
	return z
}

type CustomHoliday struct {
	ID          int64          `json:"id"`
	Date        civiltime.Date `json:"date"`
	Description string         `json:"description,omitempty"`
	IsRecurring bool           `json:"is_recurring"`
	IsLocked    bool           `json:"is_locked"`
}

// AvailabilityOverride replaces computed availability for its date.
type AvailabilityOverride struct {
	ID        int64          `json:"id"`
	Date      civiltime.Date `json:"date"`
	Text      string         `json:"availability_text"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ConflictAlert records an overlapping pair; Event1ID < Event2ID.
type ConflictAlert struct {
	ID         int64     `json:"id"`
	Event1ID   int64     `json:"event1"`
	Event2ID   int64     `json:"event2"`
	DetectedAt time.Time `json:"detected_at"`
	Resolved   bool      `json:"resolved"`
}

// CanonicalPair orders two event ids smaller first.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
