// Package bql is the embedded programmatic interface to a BQL database:
// open a file, execute BQL phrases, stream results, register backends.
//
// A BDB is one connection. Its scheduling model is single-threaded
// cooperative: the connection never spawns threads, and the only
// blocking points are engine I/O and backend analysis. Interrupt() may
// be called from any goroutine; the phrase in flight rolls back and
// surfaces bqlerr.ErrCancelled, after which the connection is usable
// again.
package bql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "modernc.org/sqlite" // pure-Go engine driver

	"github.com/inferlab/bqldb/internal/bqlfn"
	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/internal/config"
	"github.com/inferlab/bqldb/pkg/backend"
)

// BDB is one connection to a BQL database.
type BDB struct {
	path   string
	db     *sql.DB
	conn   *sql.Conn
	handle int64

	cat      *catalog.Store
	registry *backend.Registry
	logger   *slog.Logger
	cfg      *config.Config

	interrupt atomic.Bool
	inTxn     bool

	memo *bqlfn.PredictMemo

	// per-connection caches served to model operators; must be warm
	// before a statement needs them (the connection is busy while one
	// is stepping)
	gens    map[int64]*genInfo
	popData map[int64]*bqlfn.PopData

	// temp tables created for the current statement, dropped when its
	// cursor closes
	tempTables []string
}

// genInfo caches what operators need to know about a loaded generator.
type genInfo struct {
	gen     *catalog.Generator
	backend backend.Backend
	models  []int
}

// Option configures Open.
type Option func(*BDB)

// WithLogger sets the connection's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *BDB) { b.logger = l }
}

// WithConfig overrides the environment-derived configuration.
func WithConfig(c *config.Config) Option {
	return func(b *BDB) { b.cfg = c }
}

// WithRegistry shares a backend registry instead of the connection's
// private one.
func WithRegistry(r *backend.Registry) Option {
	return func(b *BDB) { b.registry = r }
}

// Open opens (creating if absent) a BQL database at path. Use ":memory:"
// for a transient in-memory database.
func Open(path string, opts ...Option) (*BDB, error) {
	b := &BDB{
		path:     path,
		registry: backend.NewRegistry(),
		gens:     make(map[int64]*genInfo),
		popData:  make(map[int64]*bqlfn.PopData),
		memo:     bqlfn.NewPredictMemo(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	if b.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		b.cfg = cfg
	}
	b.cat = catalog.New(b.logger)

	// The engine binds registered functions to connections as they are
	// created, so the operator table must exist before the first one.
	bqlfn.Register()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One engine connection: in-memory databases are per-connection, and
	// the cooperative scheduling model assumes a single session.
	db.SetMaxOpenConns(1)
	b.db = db

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}

	version, err := catalog.SchemaVersion(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if version > catalog.Version && !b.cfg.DisableVersionCheck {
		_ = db.Close()
		return nil, fmt.Errorf("database %s has catalog schema version %d; this binary supports up to %d",
			path, version, catalog.Version)
	}
	if version < catalog.Version {
		if err := catalog.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.conn = conn

	b.handle = bqlfn.NextHandle()
	bqlfn.Attach(b.handle, (*hostView)(b))

	b.logger.Debug("opened database",
		slog.String("path", path),
		slog.Int64("handle", b.handle))
	return b, nil
}

// Close releases the connection. An open user transaction is rolled
// back.
func (b *BDB) Close() error {
	if b.db == nil {
		return nil
	}
	if b.inTxn {
		_, _ = b.conn.ExecContext(context.Background(), "ROLLBACK")
		b.inTxn = false
	}
	bqlfn.Detach(b.handle)
	if b.conn != nil {
		_ = b.conn.Close()
	}
	err := b.db.Close()
	b.db = nil
	b.logger.Debug("closed database", slog.String("path", b.path))
	return err
}

// RegisterBackend makes a backend available to this connection's
// generators. Registration is init-time only.
func (b *BDB) RegisterBackend(be backend.Backend) error {
	return b.registry.Register(be)
}

// Interrupt requests cancellation of the phrase in flight. Safe from any
// goroutine.
func (b *BDB) Interrupt() {
	b.interrupt.Store(true)
}

// SetDefaultGenerator sets (or, with empty gen, clears) a table's
// default generator.
func (b *BDB) SetDefaultGenerator(ctx context.Context, table, gen string) error {
	tbl, err := b.cat.TableByName(ctx, b.conn, table)
	if err != nil {
		return err
	}
	if gen == "" {
		return b.cat.SetDefaultGenerator(ctx, b.conn, tbl.ID, nil)
	}
	g, err := b.cat.GeneratorByName(ctx, b.conn, gen)
	if err != nil {
		return err
	}
	return b.cat.SetDefaultGenerator(ctx, b.conn, tbl.ID, &g.ID)
}

// ExecSQL runs raw SQL directly against the engine, bypassing BQL.
// Loading data into base tables goes through here; BQL itself exposes no
// INSERT or UPDATE on modeled tables.
func (b *BDB) ExecSQL(ctx context.Context, query string, args ...any) error {
	_, err := b.conn.ExecContext(ctx, query, args...)
	return err
}

// Path returns the database path.
func (b *BDB) Path() string {
	return b.path
}
