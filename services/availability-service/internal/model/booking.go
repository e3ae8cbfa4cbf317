package model

import (
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
)

// ShareLink exposes the owner's availability to guests holding Token.
type ShareLink struct {
	ID           int64     `json:"id"`
	Token        string    `json:"uuid"`
	Title        string    `json:"title"`
	DurationDays int       `json:"duration_days"`
	BlockMinutes int       `json:"booking_block_minutes"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
}

func (l ShareLink) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// PublicBooking is a confirmed guest booking, stored in the owner's zone.
type PublicBooking struct {
	ID          int64               `json:"id"`
	ShareLinkID int64               `json:"share_link"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Date        civiltime.Date      `json:"date"`
	StartTime   civiltime.TimeOfDay `json:"start_time"`
	EndTime     civiltime.TimeOfDay `json:"end_time"`
	Timezone    civiltime.Zone      `json:"timezone"`
	Notes       string              `json:"notes,omitempty"`
	EventID     int64               `json:"event_id"`
	CreatedAt   time.Time           `json:"created_at"`
}
