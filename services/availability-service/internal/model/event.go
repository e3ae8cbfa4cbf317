package model

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/interval"
)

type LocationType string

const (
	LocationInPerson LocationType = "in_person"
	LocationVirtual  LocationType = "virtual"
	LocationHybrid   LocationType = "hybrid"
)

// Event is a calendar commitment. Start and end times are kept as entered and
// only interpreted when combined with Date and Timezone.
type Event struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Date            civiltime.Date  `json:"date"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	Timezone        civiltime.Zone  `json:"timezone"`
	CategoryID      *int64          `json:"category,omitempty"`
	Color           string          `json:"color,omitempty"`
	LocationType    LocationType    `json:"location_type"`
	Location        string          `json:"location,omitempty"`
	MeetingLink     string          `json:"meeting_link,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ReminderMinutes int             `json:"reminder_minutes"`
	IsRecurring     bool            `json:"is_recurring"`
	Recurrence      *RecurrenceRule `json:"recurrence_rule,omitempty"`
	ParentEventID   *int64          `json:"parent_event,omitempty"`
	IsLocked        bool            `json:"is_locked"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Range resolves the event to an absolute interval. The error is
// civiltime.ErrUnresolvable when the stored fields cannot be interpreted.
func (e Event) Range() (interval.Interval, error) {
	start, end, err := civiltime.ResolveRange(e.Date, e.StartTime, e.EndTime, string(e.Timezone))
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.Interval{Start: start, End: end}, nil
}

// IsSeriesParent reports whether e defines a recurring series.
func (e Event) IsSeriesParent() bool {
	return e.IsRecurring && e.Recurrence != nil && e.ParentEventID == nil
}

// EventPatch carries the fields an update may change. Nil fields are left as is.
type EventPatch struct {
	Name         *string         `json:"name,omitempty"`
	Date         *civiltime.Date `json:"date,omitempty"`
	StartTime    *string         `json:"start_time,omitempty"`
	EndTime      *string         `json:"end_time,omitempty"`
	Timezone     *civiltime.Zone `json:"timezone,omitempty"`
	CategoryID   *int64          `json:"category,omitempty"`
	Color        *string         `json:"color,omitempty"`
	LocationType *LocationType   `json:"location_type,omitempty"`
	Location     *string         `json:"location,omitempty"`
	MeetingLink  *string         `json:"meeting_link,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	IsLocked     *bool           `json:"is_locked,omitempty"`
}

// Apply copies the set fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Timezone != nil {
		e.Timezone = *p.Timezone
	}
	if p.CategoryID != nil {
		e.CategoryID = p.CategoryID
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.LocationType != nil {
		e.LocationType = *p.LocationType
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.MeetingLink != nil {
		e.MeetingLink = *p.MeetingLink
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.IsLocked != nil {
		e.IsLocked = *p.IsLocked
	}
}

// TouchesSchedule reports whether p changes when the event happens.
func (p EventPatch) TouchesSchedule() bool {
	return p.Date != nil || p.StartTime != nil || p.EndTime != nil || p.Timezone != nil
}

type EventCategory struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon,omitempty"`
}

// IsInterview classifies categories used for interview scheduling.
func (c EventCategory) IsInterview() bool {
	return strings.Contains(strings.ToLower(c.Name), "interview")
}
