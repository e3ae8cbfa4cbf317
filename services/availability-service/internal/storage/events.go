package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

const eventColumns = `
	id, name, date, start_time, end_time, timezone, category_id, color,
	location_type, location, meeting_link, notes, reminder_minutes,
	is_recurring, recurrence_rule, parent_event_id, is_locked, created_at, updated_at`

// scanEvent reads one events row. A recurrence rule that cannot be decoded
// leaves the row in place with no rule, so the series is not expanded.
func (s *Store) scanEvent(row rowScanner) (model.Event, error) {
	var (
		e        model.Event
		date     time.Time
		timezone string
		locType  string
		rule     []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&date,
		&e.StartTime,
		&e.EndTime,
		&timezone,
		&e.CategoryID,
		&e.Color,
		&locType,
		&e.Location,
		&e.MeetingLink,
		&e.Notes,
		&e.ReminderMinutes,
		&e.IsRecurring,
		&rule,
		&e.ParentEventID,
		&e.IsLocked,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return model.Event{}, err
	}
	e.Date = civiltime.DateOf(date)
	e.Timezone = civiltime.Zone(timezone)
	e.LocationType = model.LocationType(locType)
	if len(rule) > 0 && string(rule) != "null" {
		var r model.RecurrenceRule
		if err := json.Unmarshal(rule, &r); err != nil {
			s.logger.Debug("unreadable recurrence rule, series not expanded", "event_id", e.ID, "err", err)
		} else {
			e.Recurrence = &r
		}
	}
	return e, nil
}

func (s *Store) collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func ruleJSON(r *model.RecurrenceRule) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	rule, err := ruleJSON(e.Recurrence)
	if err != nil {
		return err
	}
	err = s.conn(ctx).QueryRow(ctx, `
		INSERT INTO events
			(name, date, start_time, end_time, timezone, category_id, color, location_type, location,
			 meeting_link, notes, reminder_minutes, is_recurring, recurrence_rule, parent_event_id, is_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`, e.Name, e.Date.Midnight(), e.StartTime, e.EndTime, string(e.Timezone), e.CategoryID, e.Color,
		string(e.LocationType), e.Location, e.MeetingLink, e.Notes, e.ReminderMinutes,
		e.IsRecurring, rule, e.ParentEventID, e.IsLocked,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return mapErr(err, "create event")
}

func (s *Store) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	e, err := s.scanEvent(s.conn(ctx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	return e, mapErr(err, "get event")
}

func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	rule, err := ruleJSON(e.Recurrence)
	if err != nil {
		return err
	}
	err = s.conn(ctx).QueryRow(ctx, `
		UPDATE events
		SET name = $2, date = $3, start_time = $4, end_time = $5, timezone = $6, category_id = $7,
			color = $8, location_type = $9, location = $10, meeting_link = $11, notes = $12,
			reminder_minutes = $13, is_recurring = $14, recurrence_rule = $15, parent_event_id = $16,
			is_locked = $17, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, e.ID, e.Name, e.Date.Midnight(), e.StartTime, e.EndTime, string(e.Timezone), e.CategoryID,
		e.Color, string(e.LocationType), e.Location, e.MeetingLink, e.Notes,
		e.ReminderMinutes, e.IsRecurring, rule, e.ParentEventID, e.IsLocked,
	).Scan(&e.UpdatedAt)
	return mapErr(err, "update event")
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "delete event")
	}
	return nil
}

func (s *Store) DeleteUnlockedEvents(ctx context.Context) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM events WHERE NOT is_locked`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListEvents returns every event ordered by date and start time.
func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY date, start_time, id`)
	if err != nil {
		return nil, err
	}
	return s.collectEvents(rows)
}

// ListEventsBetween returns events dated within [from, to], inclusive.
func (s *Store) ListEventsBetween(ctx context.Context, from, to civiltime.Date) ([]model.Event, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, start_time, id
	`, from.Midnight(), to.Midnight())
	if err != nil {
		return nil, err
	}
	return s.collectEvents(rows)
}

// ListSeriesParents returns the events that define a recurring series.
func (s *Store) ListSeriesParents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE is_recurring AND parent_event_id IS NULL AND recurrence_rule IS NOT NULL
		ORDER BY date, id
	`)
	if err != nil {
		return nil, err
	}
	return s.collectEvents(rows)
}

// ListChildren returns stored instances of parent dated on or after from.
func (s *Store) ListChildren(ctx context.Context, parentID int64, from civiltime.Date) ([]model.Event, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE parent_event_id = $1 AND date >= $2
		ORDER BY date, id
	`, parentID, from.Midnight())
	if err != nil {
		return nil, err
	}
	return s.collectEvents(rows)
}

func (s *Store) DeleteChildren(ctx context.Context, parentID int64, from civiltime.Date) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM events WHERE parent_event_id = $1 AND date >= $2
	`, parentID, from.Midnight())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
