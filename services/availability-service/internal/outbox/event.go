package outbox

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventBookingConfirmed  = "availability.booking.confirmed.v1"
	EventConflictsDetected = "availability.conflicts.detected.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Writer persists outbox events, joining the transaction on ctx if any.
type Writer interface {
	Insert(ctx context.Context, evt Event) error
}

type BookingConfirmed struct {
	BookingID   int64     `json:"booking_id"`
	ShareLinkID int64     `json:"share_link_id"`
	EventID     int64     `json:"event_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Timezone    string    `json:"timezone"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

func NewBookingConfirmed(p BookingConfirmed) (Event, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "public_booking",
		AggregateID:   strconv.FormatInt(p.BookingID, 10),
		EventType:     EventBookingConfirmed,
		Payload:       payload,
	}, nil
}

type ConflictPair struct {
	Event1ID int64 `json:"event1_id"`
	Event2ID int64 `json:"event2_id"`
}

type ConflictsDetected struct {
	Count      int            `json:"count"`
	Pairs      []ConflictPair `json:"pairs"`
	DetectedAt time.Time      `json:"detected_at"`
}

func NewConflictsDetected(p ConflictsDetected) (Event, error) {
	if p.Pairs == nil {
		p.Pairs = []ConflictPair{}
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "calendar",
		AggregateID:   "owner",
		EventType:     EventConflictsDetected,
		Payload:       payload,
	}, nil
}
