// Package importer loads events and holidays from legacy JSON exports and
// iCalendar files.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type, use .json or .ics")
	// ErrMalformed means the file as a whole could not be read.
	ErrMalformed = errors.New("malformed import file")
)

const maxProblems = 20

type Store interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	ListEventsBetween(ctx context.Context, from, to civiltime.Date) ([]model.Event, error)
	CreateHoliday(ctx context.Context, h *model.CustomHoliday) error
	GetSettings(ctx context.Context) (model.UserSettings, error)
}

// Result counts what an import did. Items that could not be read are
// skipped and described in Problems, up to a small cap.
type Result struct {
	Events   int      `json:"events_created"`
	Holidays int      `json:"holidays_created"`
	Existing int      `json:"already_present"`
	Skipped  int      `json:"skipped"`
	Problems []string `json:"problems,omitempty"`
}

func (r *Result) skip(format string, args ...any) {
	r.Skipped++
	if len(r.Problems) < maxProblems {
		r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
	}
}

type Importer struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Importer {
	return &Importer{store: store, logger: logger}
}

// Import picks the format from the file extension.
func (im *Importer) Import(ctx context.Context, filename string, r io.Reader) (Result, error) {
	var (
		res Result
		err error
	)
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		res, err = im.ImportLegacyJSON(ctx, r)
	case ".ics":
		res, err = im.ImportICS(ctx, r)
	default:
		return Result{}, ErrUnsupportedFormat
	}
	if err != nil {
		return Result{}, err
	}
	im.logger.InfoContext(ctx, "import finished",
		"file", filename,
		"events", res.Events,
		"holidays", res.Holidays,
		"existing", res.Existing,
		"skipped", res.Skipped,
	)
	return res, nil
}

// addEvent stores e unless an identical event is already on its date.
func (im *Importer) addEvent(ctx context.Context, res *Result, e model.Event) error {
	existing, err := im.store.ListEventsBetween(ctx, e.Date, e.Date)
	if err != nil {
		return err
	}
	for _, x := range existing {
		if x.Name == e.Name && x.StartTime == e.StartTime && x.EndTime == e.EndTime && x.Timezone == e.Timezone {
			res.Existing++
			return nil
		}
	}
	if e.LocationType == "" {
		e.LocationType = model.LocationInPerson
	}
	if err := im.store.CreateEvent(ctx, &e); err != nil {
		return err
	}
	res.Events++
	return nil
}

func (im *Importer) addHoliday(ctx context.Context, res *Result, h model.CustomHoliday) error {
	err := im.store.CreateHoliday(ctx, &h)
	switch {
	case storage.IsUniqueViolation(err):
		res.Existing++
		return nil
	case err != nil:
		return err
	}
	res.Holidays++
	return nil
}
