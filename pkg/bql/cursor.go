package bql

import (
	"context"
	"database/sql"

	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// Cursor streams the rows of one query phrase. The interrupt flag is
// checked between rows; an interrupt aborts the cursor and releases its
// statement.
type Cursor struct {
	b      *BDB
	rows   *sql.Rows
	cols   []string
	values []any
	err    error
	closed bool
}

func newCursor(b *BDB, rows *sql.Rows) *Cursor {
	cols, err := rows.Columns()
	return &Cursor{b: b, rows: rows, cols: cols, err: err}
}

// emptyCursor is the result of phrases that produce no rows.
func emptyCursor(b *BDB) *Cursor {
	return &Cursor{b: b, closed: true}
}

// Columns returns the result column names.
func (c *Cursor) Columns() []string {
	return c.cols
}

// Next advances to the next row, returning false at the end or on error.
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.b.interrupt.Load() {
		c.err = bqlerr.ErrCancelled
		c.b.interrupt.Store(false)
		_ = c.Close()
		return false
	}
	if !c.rows.Next() {
		c.err = queryError(c.rows.Err())
		_ = c.Close()
		return false
	}
	dest := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = err
		_ = c.Close()
		return false
	}
	c.values = dest
	return true
}

// Values returns the current row, valid until the next call to Next.
func (c *Cursor) Values() []any {
	return c.values
}

// Err returns the error that terminated iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the statement and any per-statement resources.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	if c.rows != nil {
		err = c.rows.Close()
	}
	c.b.memo.Reset()
	c.b.dropTempTables(context.Background())
	return err
}

// drain exhausts and closes the cursor, keeping its first error.
func (c *Cursor) drain() error {
	for c.Next() { //nolint:revive // stepping for effect
	}
	err := c.Err()
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

// All collects every remaining row and closes the cursor.
func (c *Cursor) All() ([][]any, error) {
	var out [][]any
	for c.Next() {
		row := make([]any, len(c.values))
		copy(row, c.values)
		out = append(out, row)
	}
	if err := c.Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return out, c.Close()
}
