package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

const (
	DefaultLinkTitle    = "My Availability"
	DefaultLinkDays     = 7
	MaxLinkDays         = 90
	DefaultBlockMinutes = 30
	MaxBlockMinutes     = 24 * 60
)

type LinkStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateShareLink(ctx context.Context, l *model.ShareLink) error
	DeactivateShareLinks(ctx context.Context, now time.Time, onlyUnexpired bool) (int, error)
	DeactivateExpiredShareLinks(ctx context.Context, now time.Time) (int, error)
	LatestActiveShareLink(ctx context.Context, now time.Time) (model.ShareLink, error)
	ListShareLinks(ctx context.Context) ([]model.ShareLink, error)
}

// GenerateRequest describes a new link. A nil DurationDays means 7 days and
// an explicit value is clamped to 1..90. A nil BlockMinutes means 30 minutes;
// an explicit 0 offers whole free ranges without splitting.
type GenerateRequest struct {
	Title        string
	DurationDays *int
	BlockMinutes *int
}

// Links manages the owner's share links. At most one link is active at a time.
type Links struct {
	store  LinkStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewLinks(store LinkStore, logger *slog.Logger) *Links {
	return &Links{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Generate deactivates every active link and creates a fresh one.
func (l *Links) Generate(ctx context.Context, req GenerateRequest) (model.ShareLink, error) {
	link := model.ShareLink{
		Title:        strings.TrimSpace(req.Title),
		DurationDays: clamp(req.DurationDays, DefaultLinkDays, 1, MaxLinkDays),
		BlockMinutes: DefaultBlockMinutes,
		IsActive:     true,
	}
	if link.Title == "" {
		link.Title = DefaultLinkTitle
	}
	if req.BlockMinutes != nil {
		if *req.BlockMinutes < 0 || *req.BlockMinutes > MaxBlockMinutes {
			return model.ShareLink{}, fmt.Errorf("%w: booking block must be between 0 and %d minutes", ErrInvalid, MaxBlockMinutes)
		}
		link.BlockMinutes = *req.BlockMinutes
	}

	now := l.now()
	link.Token = l.newID()
	link.ExpiresAt = now.Add(time.Duration(link.DurationDays) * 24 * time.Hour)

	err := l.store.InTx(ctx, func(ctx context.Context) error {
		n, err := l.store.DeactivateShareLinks(ctx, now, false)
		if err != nil {
			return err
		}
		if n > 0 {
			l.logger.InfoContext(ctx, "share links deactivated", "count", n)
		}
		return l.store.CreateShareLink(ctx, &link)
	})
	if err != nil {
		return model.ShareLink{}, err
	}
	l.logger.InfoContext(ctx, "share link generated", "share_link_id", link.ID, "expires_at", link.ExpiresAt)
	return link, nil
}

// Current returns the newest active, unexpired link after retiring expired
// ones. ok is false when there is none.
func (l *Links) Current(ctx context.Context) (link model.ShareLink, ok bool, err error) {
	now := l.now()
	err = l.store.InTx(ctx, func(ctx context.Context) error {
		if _, err := l.store.DeactivateExpiredShareLinks(ctx, now); err != nil {
			return err
		}
		link, err = l.store.LatestActiveShareLink(ctx, now)
		return err
	})
	if storage.IsNotFound(err) {
		return model.ShareLink{}, false, nil
	}
	if err != nil {
		return model.ShareLink{}, false, err
	}
	return link, true, nil
}

// Deactivate switches off active links that have not expired yet.
func (l *Links) Deactivate(ctx context.Context) (int, error) {
	n, err := l.store.DeactivateShareLinks(ctx, l.now(), true)
	if err != nil {
		return 0, err
	}
	l.logger.InfoContext(ctx, "share links deactivated", "count", n)
	return n, nil
}

func (l *Links) List(ctx context.Context) ([]model.ShareLink, error) {
	return l.store.ListShareLinks(ctx)
}

// clamp bounds an optional value to lo..hi, using def when it is unset.
func clamp(v *int, def, lo, hi int) int {
	if v == nil {
		return def
	}
	return max(lo, min(hi, *v))
}
