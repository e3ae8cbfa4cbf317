package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

const legacyHolidayDescription = "Imported Custom Holiday"

// legacyDocument combines the two legacy export files: events keyed by date
// and a list of holiday dates.
type legacyDocument struct {
	Events   map[string][]legacyEvent `json:"events"`
	Holidays []string                 `json:"holidays"`
}

type legacyEvent struct {
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

// ImportLegacyJSON reads a legacy export. Times go through the legacy parser,
// so a bare hour from 8 to 11 is read as PM. Re-importing the same file
// creates nothing new.
func (im *Importer) ImportLegacyJSON(ctx context.Context, r io.Reader) (Result, error) {
	var doc legacyDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var res Result
	for _, raw := range doc.Holidays {
		d, err := civiltime.ParseDate(raw)
		if err != nil {
			res.skip("holiday %q: %v", raw, err)
			continue
		}
		if err := im.addHoliday(ctx, &res, model.CustomHoliday{Date: d, Description: legacyHolidayDescription}); err != nil {
			return res, err
		}
	}

	keys := make([]string, 0, len(doc.Events))
	for k := range doc.Events {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		d, err := civiltime.ParseDate(key)
		if err != nil {
			res.skip("events on %q: %v", key, err)
			continue
		}
		for _, le := range doc.Events[key] {
			e, err := legacyToEvent(d, le)
			if err != nil {
				res.skip("event %q on %s: %v", le.Name, key, err)
				continue
			}
			if err := im.addEvent(ctx, &res, e); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func legacyToEvent(d civiltime.Date, le legacyEvent) (model.Event, error) {
	name := strings.TrimSpace(le.Name)
	if name == "" {
		return model.Event{}, fmt.Errorf("missing name")
	}
	start, err := civiltime.ParseLegacyTimeOfDay(le.StartTime)
	if err != nil {
		return model.Event{}, err
	}
	end, err := civiltime.ParseLegacyTimeOfDay(le.EndTime)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Name:      name,
		Date:      d,
		StartTime: start.String(),
		EndTime:   end.String(),
		Timezone:  civiltime.ResolveZone(le.Timezone),
	}, nil
}
