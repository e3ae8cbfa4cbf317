package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

func (s *Store) CreateShareLink(ctx context.Context, l *model.ShareLink) error {
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.links {
			if existing.Token == l.Token {
				return duplicate("share link token")
			}
		}
		l.ID = st.id()
		l.CreatedAt = s.Now()
		st.links[l.ID] = *l
		return nil
	})
}

func (s *Store) DeactivateShareLinks(ctx context.Context, now time.Time, onlyUnexpired bool) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for id, l := range st.links {
			if l.IsActive && (!onlyUnexpired || !l.Expired(now)) {
				l.IsActive = false
				st.links[id] = l
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) DeactivateExpiredShareLinks(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for id, l := range st.links {
			if l.IsActive && l.Expired(now) {
				l.IsActive = false
				st.links[id] = l
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) sortedLinks(st *state) []model.ShareLink {
	out := make([]model.ShareLink, 0, len(st.links))
	for _, l := range st.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) LatestActiveShareLink(ctx context.Context, now time.Time) (model.ShareLink, error) {
	var out model.ShareLink
	err := s.do(ctx, func(st *state) error {
		for _, l := range s.sortedLinks(st) {
			if l.IsActive && !l.Expired(now) {
				out = l
				return nil
			}
		}
		return notFound("active share link", "")
	})
	return out, err
}

func (s *Store) ListShareLinks(ctx context.Context) ([]model.ShareLink, error) {
	var out []model.ShareLink
	err := s.do(ctx, func(st *state) error {
		out = s.sortedLinks(st)
		return nil
	})
	return out, err
}

// LockShareLink finds an active link by token. Inside InTx the store lock is
// already held, which gives the same serialisation as a row lock.
func (s *Store) LockShareLink(ctx context.Context, token string) (model.ShareLink, error) {
	var out model.ShareLink
	err := s.do(ctx, func(st *state) error {
		for _, l := range st.links {
			if l.Token == token && l.IsActive {
				out = l
				return nil
			}
		}
		return notFound("share link", token)
	})
	return out, err
}

func (s *Store) SetShareLinkActive(ctx context.Context, id int64, active bool) error {
	return s.do(ctx, func(st *state) error {
		l, ok := st.links[id]
		if !ok {
			return notFound("share link", id)
		}
		l.IsActive = active
		st.links[id] = l
		return nil
	})
}

func (s *Store) CreateBooking(ctx context.Context, b *model.PublicBooking) error {
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.bookings {
			if existing.ShareLinkID == b.ShareLinkID && existing.Date == b.Date &&
				existing.StartTime == b.StartTime && existing.EndTime == b.EndTime {
				return duplicate("public booking slot")
			}
		}
		b.ID = st.id()
		b.CreatedAt = s.Now()
		st.bookings[b.ID] = *b
		return nil
	})
}

func (s *Store) ListBookings(ctx context.Context, linkID int64, from, to civiltime.Date) ([]model.PublicBooking, error) {
	var out []model.PublicBooking
	err := s.do(ctx, func(st *state) error {
		for _, b := range st.bookings {
			if b.ShareLinkID == linkID && b.Date.Within(from, to) {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, err
}
