package bql

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferlab/bqldb/internal/bqlfn"
)

// testBDB builds a connection shell sufficient for cursor behavior; the
// engine is mocked so error paths are deterministic.
func testBDB(t *testing.T) *BDB {
	t.Helper()
	return &BDB{
		logger: slog.New(slog.DiscardHandler),
		memo:   bqlfn.NewPredictMemo(),
	}
}

func mockRows(t *testing.T, fn func(sqlmock.Sqlmock)) *BDB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	fn(mock)

	b := testBDB(t)
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	b.conn = conn
	return b
}

func TestCursorStreamsRows(t *testing.T) {
	b := mockRows(t, func(m sqlmock.Sqlmock) {
		m.ExpectQuery("SELECT").WillReturnRows(
			sqlmock.NewRows([]string{"a", "b"}).
				AddRow(int64(1), "x").
				AddRow(int64(2), "y"))
	})
	rows, err := b.conn.QueryContext(context.Background(), "SELECT a, b FROM t")
	require.NoError(t, err)
	cur := newCursor(b, rows)

	assert.Equal(t, []string{"a", "b"}, cur.Columns())

	require.True(t, cur.Next())
	assert.Equal(t, []any{int64(1), "x"}, cur.Values())
	require.True(t, cur.Next())
	assert.Equal(t, []any{int64(2), "y"}, cur.Values())
	assert.False(t, cur.Next())
	assert.NoError(t, cur.Err())
	assert.NoError(t, cur.Close())
}

// A mid-stream engine failure aborts the cursor and surfaces through
// Err; the statement is released.
func TestCursorMidStreamError(t *testing.T) {
	rowErr := errors.New("disk exploded")
	b := mockRows(t, func(m sqlmock.Sqlmock) {
		m.ExpectQuery("SELECT").WillReturnRows(
			sqlmock.NewRows([]string{"a"}).
				AddRow(int64(1)).
				AddRow(int64(2)).
				RowError(1, rowErr))
	})
	rows, err := b.conn.QueryContext(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	cur := newCursor(b, rows)

	require.True(t, cur.Next())
	assert.False(t, cur.Next())
	require.Error(t, cur.Err())
	assert.Contains(t, cur.Err().Error(), "disk exploded")
	assert.False(t, cur.Next(), "a failed cursor stays failed")
}

func TestCursorAll(t *testing.T) {
	b := mockRows(t, func(m sqlmock.Sqlmock) {
		m.ExpectQuery("SELECT").WillReturnRows(
			sqlmock.NewRows([]string{"a"}).AddRow(int64(1)).AddRow(int64(2)))
	})
	rows, err := b.conn.QueryContext(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	got, err := newCursor(b, rows).All()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}}, got)
}

func TestEmptyCursor(t *testing.T) {
	cur := emptyCursor(testBDB(t))
	assert.False(t, cur.Next())
	assert.NoError(t, cur.Err())
	assert.NoError(t, cur.Close())
	assert.NoError(t, cur.drain())
}

func TestSplitParams(t *testing.T) {
	positional, named := splitParams([]any{1, "x", map[string]any{"k": 2}})
	assert.Equal(t, []any{1, "x"}, positional)
	assert.Equal(t, map[string]any{"k": 2}, named)
}
