package bql

import (
	"context"

	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// User transactions map 1:1 onto the engine's. Nesting is forbidden.
// Internal transactions wrap DDL/MML phrases executed outside a user
// transaction, so every phrase is atomic either way.

func (b *BDB) begin(ctx context.Context) error {
	if b.inTxn {
		return &bqlerr.TransactionError{Message: "BEGIN inside a transaction"}
	}
	if _, err := b.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return err
	}
	b.inTxn = true
	return nil
}

func (b *BDB) commit(ctx context.Context) error {
	if !b.inTxn {
		return &bqlerr.TransactionError{Message: "COMMIT outside a transaction"}
	}
	b.inTxn = false
	_, err := b.conn.ExecContext(ctx, "COMMIT")
	return err
}

func (b *BDB) rollback(ctx context.Context) error {
	if !b.inTxn {
		return &bqlerr.TransactionError{Message: "ROLLBACK outside a transaction"}
	}
	b.inTxn = false
	if _, err := b.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return err
	}
	// Caches may describe state the rollback undid.
	b.invalidateAll()
	return nil
}

// inInternalTxn runs f atomically: inside an already-open user
// transaction it runs as-is (the user controls the boundary); otherwise
// it gets its own transaction, rolled back on error.
func (b *BDB) inInternalTxn(ctx context.Context, f func() error) error {
	if b.inTxn {
		return f()
	}
	if _, err := b.conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}
	if err := f(); err != nil {
		_, _ = b.conn.ExecContext(ctx, "ROLLBACK")
		b.invalidateAll()
		return err
	}
	if _, err := b.conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = b.conn.ExecContext(ctx, "ROLLBACK")
		b.invalidateAll()
		return err
	}
	return nil
}
