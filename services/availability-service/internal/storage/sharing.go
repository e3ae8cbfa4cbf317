package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

const shareLinkColumns = `id, uuid, title, duration_days, booking_block_minutes, created_at, expires_at, is_active`

func scanShareLink(row rowScanner) (model.ShareLink, error) {
	var l model.ShareLink
	err := row.Scan(&l.ID, &l.Token, &l.Title, &l.DurationDays, &l.BlockMinutes, &l.CreatedAt, &l.ExpiresAt, &l.IsActive)
	return l, err
}

func (s *Store) CreateShareLink(ctx context.Context, l *model.ShareLink) error {
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO share_links (uuid, title, duration_days, booking_block_minutes, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, l.Token, l.Title, l.DurationDays, l.BlockMinutes, l.ExpiresAt, l.IsActive).Scan(&l.ID, &l.CreatedAt)
	return mapErr(err, "create share link")
}

// DeactivateShareLinks turns off every active link. With onlyUnexpired it
// leaves links that have already lapsed alone.
func (s *Store) DeactivateShareLinks(ctx context.Context, now time.Time, onlyUnexpired bool) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE share_links SET is_active = FALSE
		WHERE is_active AND (NOT $2 OR expires_at > $1)
	`, now, onlyUnexpired)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeactivateExpiredShareLinks(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE share_links SET is_active = FALSE WHERE is_active AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) LatestActiveShareLink(ctx context.Context, now time.Time) (model.ShareLink, error) {
	l, err := scanShareLink(s.conn(ctx).QueryRow(ctx, `
		SELECT `+shareLinkColumns+`
		FROM share_links
		WHERE is_active AND expires_at > $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, now))
	return l, mapErr(err, "latest share link")
}

func (s *Store) ListShareLinks(ctx context.Context) ([]model.ShareLink, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+shareLinkColumns+` FROM share_links ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ShareLink
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// LockShareLink loads an active link by token and holds a row lock on it for
// the rest of the transaction, serialising listing and booking per link.
func (s *Store) LockShareLink(ctx context.Context, token string) (model.ShareLink, error) {
	l, err := scanShareLink(s.conn(ctx).QueryRow(ctx, `
		SELECT `+shareLinkColumns+`
		FROM share_links
		WHERE uuid = $1 AND is_active
		FOR UPDATE
	`, token))
	return l, mapErr(err, "lock share link")
}

func (s *Store) SetShareLinkActive(ctx context.Context, id int64, active bool) error {
	_, err := s.conn(ctx).Exec(ctx, `UPDATE share_links SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

func (s *Store) CreateBooking(ctx context.Context, b *model.PublicBooking) error {
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO public_bookings
			(share_link_id, name, email, date, start_time, end_time, timezone, notes, event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0))
		RETURNING id, created_at
	`, b.ShareLinkID, b.Name, b.Email, b.Date.Midnight(), b.StartTime.String(), b.EndTime.String(),
		string(b.Timezone), b.Notes, b.EventID).Scan(&b.ID, &b.CreatedAt)
	return mapErr(err, "create booking")
}

// ListBookings returns the bookings of a link dated within [from, to].
func (s *Store) ListBookings(ctx context.Context, linkID int64, from, to civiltime.Date) ([]model.PublicBooking, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, share_link_id, name, email, date, start_time, end_time, timezone, notes,
			COALESCE(event_id, 0), created_at
		FROM public_bookings
		WHERE share_link_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, start_time
	`, linkID, from.Midnight(), to.Midnight())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PublicBooking
	for rows.Next() {
		var (
			b          model.PublicBooking
			date       time.Time
			start, end string
			zone       string
		)
		if err := rows.Scan(&b.ID, &b.ShareLinkID, &b.Name, &b.Email, &date, &start, &end, &zone, &b.Notes, &b.EventID, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Date = civiltime.DateOf(date)
		b.Timezone = civiltime.Zone(zone)
		if b.StartTime, err = civiltime.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if b.EndTime, err = civiltime.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
