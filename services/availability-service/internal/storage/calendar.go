package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

func (s *Store) CreateHoliday(ctx context.Context, h *model.CustomHoliday) error {
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO custom_holidays (date, description, is_recurring, is_locked)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, h.Date.Midnight(), h.Description, h.IsRecurring, h.IsLocked).Scan(&h.ID)
	return mapErr(err, "create holiday")
}

func (s *Store) GetHoliday(ctx context.Context, id int64) (model.CustomHoliday, error) {
	h, err := scanHoliday(s.conn(ctx).QueryRow(ctx, `
		SELECT id, date, description, is_recurring, is_locked FROM custom_holidays WHERE id = $1
	`, id))
	return h, mapErr(err, "get holiday")
}

func (s *Store) DeleteHoliday(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM custom_holidays WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "delete holiday")
	}
	return nil
}

func (s *Store) DeleteUnlockedHolidays(ctx context.Context) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM custom_holidays WHERE NOT is_locked`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListHolidaysBetween returns custom holidays within [from, to]. A zero from
// and to lists every holiday.
func (s *Store) ListHolidaysBetween(ctx context.Context, from, to civiltime.Date) ([]model.CustomHoliday, error) {
	query := `SELECT id, date, description, is_recurring, is_locked FROM custom_holidays`
	var args []any
	if !from.IsZero() || !to.IsZero() {
		query += ` WHERE date BETWEEN $1 AND $2`
		args = append(args, from.Midnight(), to.Midnight())
	}
	rows, err := s.conn(ctx).Query(ctx, query+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CustomHoliday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanHoliday(row rowScanner) (model.CustomHoliday, error) {
	var (
		h    model.CustomHoliday
		date time.Time
	)
	if err := row.Scan(&h.ID, &date, &h.Description, &h.IsRecurring, &h.IsLocked); err != nil {
		return model.CustomHoliday{}, err
	}
	h.Date = civiltime.DateOf(date)
	return h, nil
}

func (s *Store) UpsertOverride(ctx context.Context, o *model.AvailabilityOverride) error {
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability_overrides (date, availability_text)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE
			SET availability_text = EXCLUDED.availability_text,
				updated_at = now()
		RETURNING id, updated_at
	`, o.Date.Midnight(), o.Text).Scan(&o.ID, &o.UpdatedAt)
	return mapErr(err, "upsert override")
}

func (s *Store) DeleteOverride(ctx context.Context, d civiltime.Date) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM availability_overrides WHERE date = $1`, d.Midnight())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "delete override")
	}
	return nil
}

// ListOverridesBetween returns overrides within [from, to]. A zero from and to
// lists every override.
func (s *Store) ListOverridesBetween(ctx context.Context, from, to civiltime.Date) ([]model.AvailabilityOverride, error) {
	query := `SELECT id, date, availability_text, updated_at FROM availability_overrides`
	var args []any
	if !from.IsZero() || !to.IsZero() {
		query += ` WHERE date BETWEEN $1 AND $2`
		args = append(args, from.Midnight(), to.Midnight())
	}
	rows, err := s.conn(ctx).Query(ctx, query+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityOverride
	for rows.Next() {
		var (
			o    model.AvailabilityOverride
			date time.Time
		)
		if err := rows.Scan(&o.ID, &date, &o.Text, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Date = civiltime.DateOf(date)
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// GetSettings returns the settings row, creating it with defaults on first use.
func (s *Store) GetSettings(ctx context.Context) (model.UserSettings, error) {
	settings, err := s.selectSettings(ctx)
	if err == nil || !errors.Is(err, pgx.ErrNoRows) {
		return settings, err
	}
	if _, err := s.conn(ctx).Exec(ctx, `INSERT INTO user_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return model.UserSettings{}, err
	}
	return s.selectSettings(ctx)
}

func (s *Store) selectSettings(ctx context.Context) (model.UserSettings, error) {
	var (
		settings   model.UserSettings
		start, end string
		workDays   []byte
	)
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT work_start_time, work_end_time, work_days, default_event_duration,
			buffer_time, primary_timezone, updated_at
		FROM user_settings
		WHERE id = 1
	`).Scan(&start, &end, &workDays, &settings.DefaultEventDuration,
		&settings.BufferTime, &settings.PrimaryTimezone, &settings.UpdatedAt)
	if err != nil {
		return model.UserSettings{}, err
	}
	defaults := model.DefaultSettings()
	settings.WorkStart = parseOr(start, defaults.WorkStart)
	settings.WorkEnd = parseOr(end, defaults.WorkEnd)
	if err := json.Unmarshal(workDays, &settings.WorkDays); err != nil {
		settings.WorkDays = defaults.WorkDays
	}
	return settings, nil
}

func parseOr(raw string, fallback civiltime.TimeOfDay) civiltime.TimeOfDay {
	t, err := civiltime.ParseTimeOfDay(raw)
	if err != nil {
		return fallback
	}
	return t
}

func (s *Store) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	workDays, err := json.Marshal(settings.WorkDays)
	if err != nil {
		return err
	}
	err = s.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_settings (id, work_start_time, work_end_time, work_days, default_event_duration, buffer_time, primary_timezone)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
			SET work_start_time = EXCLUDED.work_start_time,
				work_end_time = EXCLUDED.work_end_time,
				work_days = EXCLUDED.work_days,
				default_event_duration = EXCLUDED.default_event_duration,
				buffer_time = EXCLUDED.buffer_time,
				primary_timezone = EXCLUDED.primary_timezone,
				updated_at = now()
		RETURNING updated_at
	`, settings.WorkStart.String(), settings.WorkEnd.String(), workDays, settings.DefaultEventDuration,
		settings.BufferTime, settings.PrimaryTimezone).Scan(&settings.UpdatedAt)
	return err
}

func (s *Store) ListCategories(ctx context.Context) ([]model.EventCategory, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT id, name, color, icon FROM event_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EventCategory
	for rows.Next() {
		var c model.EventCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (model.EventCategory, error) {
	var c model.EventCategory
	err := s.conn(ctx).QueryRow(ctx, `SELECT id, name, color, icon FROM event_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Color, &c.Icon)
	return c, mapErr(err, "get category")
}

func (s *Store) CreateCategory(ctx context.Context, c *model.EventCategory) error {
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO event_categories (name, color, icon) VALUES ($1, $2, $3) RETURNING id
	`, c.Name, c.Color, c.Icon).Scan(&c.ID)
	return mapErr(err, "create category")
}

func (s *Store) DeleteUnresolvedAlerts(ctx context.Context) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM conflict_alerts WHERE NOT resolved`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CreateAlert(ctx context.Context, a *model.ConflictAlert) error {
	a.Event1ID, a.Event2ID = model.CanonicalPair(a.Event1ID, a.Event2ID)
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO conflict_alerts (event1_id, event2_id, resolved)
		VALUES ($1, $2, $3)
		RETURNING id, detected_at
	`, a.Event1ID, a.Event2ID, a.Resolved).Scan(&a.ID, &a.DetectedAt)
	return mapErr(err, "create alert")
}

func (s *Store) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]model.ConflictAlert, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, event1_id, event2_id, detected_at, resolved
		FROM conflict_alerts
		WHERE NOT $1 OR NOT resolved
		ORDER BY detected_at DESC, id DESC
	`, unresolvedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConflictAlert
	for rows.Next() {
		var a model.ConflictAlert
		if err := rows.Scan(&a.ID, &a.Event1ID, &a.Event2ID, &a.DetectedAt, &a.Resolved); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (s *Store) ResolveAlert(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE conflict_alerts SET resolved = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "resolve alert")
	}
	return nil
}
