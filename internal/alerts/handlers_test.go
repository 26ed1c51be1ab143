package alerts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticRows feeds canned rows through the pgx.Rows surface the collector uses.
type staticRows struct {
	pgx.Rows
	rows [][]any
	idx  int
}

func (r *staticRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *staticRows) Err() error { return nil }

func (r *staticRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case **string:
			if row[i] == nil {
				*p = nil
			} else {
				s := row[i].(string)
				*p = &s
			}
		case *time.Time:
			*p = row[i].(time.Time)
		case **time.Time:
			if row[i] == nil {
				*p = nil
			} else {
				ts := row[i].(time.Time)
				*p = &ts
			}
		}
	}
	return nil
}

func TestCollectNotificationsEmptyIsNotNull(t *testing.T) {
	t.Parallel()
	items, err := collectNotifications(&staticRows{})
	require.NoError(t, err)
	require.NotNil(t, items)

	b, err := json.Marshal(items)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestCollectNotificationsRow(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	items, err := collectNotifications(&staticRows{rows: [][]any{
		{"n-1", "milestone:paid", "Milestone paid", "funds released", "m-1", nil, created, nil},
	}})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "n-1", items[0]["id"])
	assert.Equal(t, "milestone:paid", items[0]["type"])
	assert.Equal(t, "2026-08-01T12:00:00Z", items[0]["created_at"])
	assert.Nil(t, items[0]["read_at"])
	require.NotNil(t, items[0]["reference"])
	assert.Equal(t, "m-1", *items[0]["reference"].(*string))
}
