package contracts

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRow plays back one canned pgx.Row result.
type scriptedRow struct {
	vals []any
	err  error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case **string:
			if r.vals[i] == nil {
				*p = nil
			} else {
				s := r.vals[i].(string)
				*p = &s
			}
		case *time.Time:
			*p = r.vals[i].(time.Time)
		}
	}
	return nil
}

// scriptedQuerier hands out rows in call order.
type scriptedQuerier struct {
	rows []scriptedRow
	idx  int
}

func (q *scriptedQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	r := q.rows[q.idx]
	q.idx++
	return r
}

func (q *scriptedQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (q *scriptedQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (q *scriptedQuerier) Begin(context.Context) (pgx.Tx, error) { return nil, nil }

func TestFindOrCreateChatSurvivesLostRace(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	// no chat yet, insert loses to a concurrent opener, re-select finds theirs
	store := &PostgresStore{q: &scriptedQuerier{rows: []scriptedRow{
		{err: pgx.ErrNoRows},
		{err: &pgconn.PgError{Code: "23505"}},
		{vals: []any{"chat-1", "buyer-1", "seller-1", nil, created}},
	}}}

	ch, err := store.FindOrCreateChat(context.Background(), "buyer-1", "seller-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", ch.ID)
	assert.Nil(t, ch.ContractID)
	assert.Equal(t, created, ch.CreatedAt)
}

func TestFindOrCreateChatInsertErrorPropagates(t *testing.T) {
	t.Parallel()
	store := &PostgresStore{q: &scriptedQuerier{rows: []scriptedRow{
		{err: pgx.ErrNoRows},
		{err: &pgconn.PgError{Code: "23503"}},
	}}}

	_, err := store.FindOrCreateChat(context.Background(), "buyer-1", "seller-1", nil)
	require.Error(t, err)
}
