package storage

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/model"
)

// fakeRows serves fixed events rows in eventColumns order.
type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func eventRow(id int64, name string, rule string) []any {
	var raw []byte
	if rule != "" {
		raw = []byte(rule)
	}
	ts := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	return []any{
		id, name, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		"09:00:00", "10:00:00", "PT", (*int64)(nil), "",
		"in_person", "", "", "", 0,
		rule != "", raw, (*int64)(nil), false, ts, ts,
	}
}

func TestCollectEvents_UnreadableRuleKeepsRows(t *testing.T) {
	s := NewStore(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rows := &fakeRows{rows: [][]any{
		eventRow(1, "Standup", `{"frequency":"daily"}`),
		eventRow(2, "Bad until", `{"frequency":"weekly","until":"2026/03/01"}`),
		eventRow(3, "Bad weekday", `{"frequency":"weekly","byweekday":[7]}`),
		eventRow(4, "Typed weekday", `{"frequency":"weekly","byweekday":["MO"]}`),
		eventRow(5, "One-off", ""),
	}}

	events, err := s.collectEvents(rows)
	require.NoError(t, err)
	require.Len(t, events, 5)

	require.NotNil(t, events[0].Recurrence)
	assert.Equal(t, model.Daily, events[0].Recurrence.Frequency)
	for _, e := range events[1:4] {
		assert.True(t, e.IsRecurring, e.Name)
		assert.Nil(t, e.Recurrence, e.Name)
	}
	assert.False(t, events[4].IsRecurring)
	assert.Nil(t, events[4].Recurrence)
}
