// Package conflict finds overlapping calendar commitments across zones.
package conflict

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/availmgr/libs/metrics"
	otelx "github.com/md-rashed-zaman/availmgr/libs/otel"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/interval"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/outbox"
)

// windowDays is how far either side of an event's date candidates are taken
// from. One day covers every offset between the supported zones.
const windowDays = 1

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListEventsBetween(ctx context.Context, from, to civiltime.Date) ([]model.Event, error)
	DeleteUnresolvedAlerts(ctx context.Context) (int, error)
	CreateAlert(ctx context.Context, a *model.ConflictAlert) error
}

// Candidate is a proposed event that has not been stored yet.
type Candidate struct {
	Date      civiltime.Date
	StartTime string
	EndTime   string
	Timezone  civiltime.Zone
}

func (c Candidate) event() model.Event {
	return model.Event{Date: c.Date, StartTime: c.StartTime, EndTime: c.EndTime, Timezone: c.Timezone}
}

type Detector struct {
	store   Store
	outbox  outbox.Writer
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewDetector(store Store, ob outbox.Writer, logger *slog.Logger, m *metrics.Metrics) *Detector {
	return &Detector{
		store:   store,
		outbox:  ob,
		logger:  logger,
		metrics: m,
		tracer:  otelx.Tracer("availability/conflict"),
		now:     time.Now,
	}
}

// Overlaps reports whether two events share any instant once resolved in
// their own zones. Events that cannot be resolved overlap nothing.
func Overlaps(a, b model.Event) bool {
	ra, err := a.Range()
	if err != nil {
		return false
	}
	rb, err := b.Range()
	if err != nil {
		return false
	}
	return ra.Overlaps(rb)
}

// ConflictsFor returns the stored events overlapping e, excluding e itself.
func (d *Detector) ConflictsFor(ctx context.Context, e model.Event) ([]model.Event, error) {
	return d.find(ctx, e, e.ID)
}

// Check returns the stored events a proposed event would overlap. excludeID
// lets an update ignore the row it is replacing; pass 0 for none.
func (d *Detector) Check(ctx context.Context, c Candidate, excludeID int64) ([]model.Event, error) {
	return d.find(ctx, c.event(), excludeID)
}

func (d *Detector) find(ctx context.Context, e model.Event, excludeID int64) ([]model.Event, error) {
	target, err := e.Range()
	if err != nil {
		d.logger.DebugContext(ctx, "conflict check skipped: unresolvable event", "event_id", e.ID, "err", err)
		return nil, nil
	}
	candidates, err := d.store.ListEventsBetween(ctx, e.Date.AddDays(-windowDays), e.Date.AddDays(windowDays))
	if err != nil {
		return nil, err
	}
	var out []model.Event
	for _, other := range candidates {
		if excludeID != 0 && other.ID == excludeID {
			continue
		}
		if d.overlapsRange(ctx, target, other) {
			out = append(out, other)
		}
	}
	return out, nil
}

func (d *Detector) overlapsRange(ctx context.Context, target interval.Interval, other model.Event) bool {
	r, err := other.Range()
	if err != nil {
		d.logger.DebugContext(ctx, "conflict check skipped: unresolvable event", "event_id", other.ID, "err", err)
		return false
	}
	return target.Overlaps(r)
}

type pair struct{ a, b int64 }

// DetectAll clears every unresolved alert and recomputes them from scratch,
// creating one alert per overlapping pair. It returns the number created.
func (d *Detector) DetectAll(ctx context.Context) (int, error) {
	ctx, span := d.tracer.Start(ctx, "conflict.DetectAll")
	defer span.End()

	var created []outbox.ConflictPair
	err := d.store.InTx(ctx, func(ctx context.Context) error {
		created = nil
		if _, err := d.store.DeleteUnresolvedAlerts(ctx); err != nil {
			return err
		}
		events, err := d.store.ListEvents(ctx)
		if err != nil {
			return err
		}

		resolved := make(map[int64]interval.Interval, len(events))
		byDate := map[civiltime.Date][]model.Event{}
		for _, e := range events {
			r, err := e.Range()
			if err != nil {
				d.logger.DebugContext(ctx, "conflict detection skipped event", "event_id", e.ID, "err", err)
				continue
			}
			resolved[e.ID] = r
			byDate[e.Date] = append(byDate[e.Date], e)
		}

		seen := map[pair]struct{}{}
		for _, e := range events {
			r, ok := resolved[e.ID]
			if !ok {
				continue
			}
			for offset := -windowDays; offset <= windowDays; offset++ {
				for _, other := range byDate[e.Date.AddDays(offset)] {
					if other.ID == e.ID || !r.Overlaps(resolved[other.ID]) {
						continue
					}
					a, b := model.CanonicalPair(e.ID, other.ID)
					if _, dup := seen[pair{a, b}]; dup {
						continue
					}
					seen[pair{a, b}] = struct{}{}
					if err := d.store.CreateAlert(ctx, &model.ConflictAlert{Event1ID: a, Event2ID: b}); err != nil {
						return err
					}
					created = append(created, outbox.ConflictPair{Event1ID: a, Event2ID: b})
				}
			}
		}

		evt, err := outbox.NewConflictsDetected(outbox.ConflictsDetected{
			Count:      len(created),
			Pairs:      created,
			DetectedAt: d.now().UTC(),
		})
		if err != nil {
			return err
		}
		return d.outbox.Insert(ctx, evt)
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("conflicts.created", len(created)))
	d.metrics.ConflictsFound(len(created))
	d.logger.InfoContext(ctx, "conflict detection complete", "created", len(created))
	return len(created), nil
}
