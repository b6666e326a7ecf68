// Package catalog persists BQL metadata — tables, populations, variables,
// generators, models — as rows in the underlying store, and caches name
// resolutions per connection.
//
// Every method takes an Executor so catalog reads and writes always ride
// the caller's current transaction. Catalog mutations invalidate the
// cache; it must also be invalidated on rollback.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// Executor is the database access the catalog rides on; it is satisfied
// by *sql.Conn, *sql.Tx, and *sql.DB.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table is a base table known to BQL.
type Table struct {
	ID                 int64
	Name               string
	DefaultGeneratorID sql.NullInt64
}

// Population is a named set of typed variables over one base table.
type Population struct {
	ID        int64
	Name      string
	TableID   int64
	TableName string
}

// Variable maps one population variable to a base-table column.
// Latent variables have Colno < 0 and a non-null GeneratorID.
type Variable struct {
	PopulationID int64
	Varno        int
	Name         string
	Stattype     string
	Colno        int
	GeneratorID  sql.NullInt64
}

// Generator is a named probabilistic model attached to a population.
type Generator struct {
	ID           int64
	Name         string
	PopulationID int64
	Backend      string
	Schema       []byte
}

// Model records one model replica's existence and iteration counter.
type Model struct {
	Modelno    int
	Iterations int
}

// Store provides catalog access over one connection.
type Store struct {
	logger *slog.Logger
	cache  *cache
}

// New creates a catalog store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger, cache: newCache()}
}

// InvalidateCache drops all cached resolutions. Call after ROLLBACK and
// after any out-of-band schema change.
func (s *Store) InvalidateCache() {
	s.cache.invalidate()
}

// ---------- Tables ----------

// EnsureTable registers a stored table with the catalog, snapshotting its
// column list. Idempotent.
func (s *Store) EnsureTable(ctx context.Context, ex Executor, name string) (*Table, error) {
	if t, err := s.TableByName(ctx, ex, name); err == nil {
		return t, nil
	} else if !isNameError(err) {
		return nil, err
	}

	cols, err := tableColumns(ctx, ex, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindTable, Name: name}
	}

	res, err := ex.ExecContext(ctx, `INSERT INTO bayesdb_table (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("register table %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	for colno, col := range cols {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO bayesdb_column (table_id, colno, name) VALUES (?, ?, ?)`,
			id, colno, col); err != nil {
			return nil, fmt.Errorf("register column %q.%q: %w", name, col, err)
		}
	}
	s.cache.invalidate()
	s.logger.Debug("registered table", slog.String("table", name), slog.Int64("id", id))
	return &Table{ID: id, Name: name}, nil
}

// TableByName resolves a catalog table record.
func (s *Store) TableByName(ctx context.Context, ex Executor, name string) (*Table, error) {
	if t, ok := s.cache.table(name); ok {
		return t, nil
	}
	t := &Table{}
	err := ex.QueryRowContext(ctx,
		`SELECT id, name, default_generator_id FROM bayesdb_table WHERE name = ?`,
		name).Scan(&t.ID, &t.Name, &t.DefaultGeneratorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindTable, Name: name}
	}
	if err != nil {
		return nil, err
	}
	s.cache.putTable(t)
	return t, nil
}

// TableExists reports whether a stored table (registered or not) exists.
func (s *Store) TableExists(ctx context.Context, ex Executor, name string) (bool, error) {
	var n int
	err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`,
		name).Scan(&n)
	return n > 0, err
}

// Columns returns the registered column names of a table in colno order.
func (s *Store) Columns(ctx context.Context, ex Executor, tableID int64) ([]string, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT name FROM bayesdb_column WHERE table_id = ? ORDER BY colno`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// ColnoOf resolves a column name to its registered colno.
func (s *Store) ColnoOf(ctx context.Context, ex Executor, tableID int64, name string) (int, error) {
	var colno int
	err := ex.QueryRowContext(ctx,
		`SELECT colno FROM bayesdb_column WHERE table_id = ? AND name = ?`,
		tableID, name).Scan(&colno)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &bqlerr.NameError{Kind: bqlerr.KindColumn, Name: name}
	}
	return colno, err
}

// RenameTable renames a table in the catalog. The stored table itself is
// renamed by the caller in the same transaction.
func (s *Store) RenameTable(ctx context.Context, ex Executor, tableID int64, newName string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE bayesdb_table SET name = ? WHERE id = ?`, newName, tableID)
	s.cache.invalidate()
	return err
}

// RenameColumn renames a column, propagating atomically to every
// population variable mapped to it.
func (s *Store) RenameColumn(ctx context.Context, ex Executor, tableID int64, old, new string) error {
	colno, err := s.ColnoOf(ctx, ex, tableID, old)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx,
		`UPDATE bayesdb_column SET name = ? WHERE table_id = ? AND colno = ?`,
		new, tableID, colno); err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		UPDATE bayesdb_variable SET name = ?
		WHERE colno = ? AND population_id IN
			(SELECT id FROM bayesdb_population WHERE table_id = ?)`,
		new, colno, tableID)
	s.cache.invalidate()
	return err
}

// ColumnInUse reports whether any live population variable references the
// named column. Dropping such a column must fail.
func (s *Store) ColumnInUse(ctx context.Context, ex Executor, tableID int64, name string) (bool, error) {
	var n int
	err := ex.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bayesdb_variable v
		JOIN bayesdb_population p ON p.id = v.population_id
		WHERE p.table_id = ? AND v.name = ?`,
		tableID, name).Scan(&n)
	return n > 0, err
}

// DropTable removes a table from the catalog; the trigger aborts when
// populations still reference it.
func (s *Store) DropTable(ctx context.Context, ex Executor, tableID int64) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM bayesdb_table WHERE id = ?`, tableID)
	s.cache.invalidate()
	if err != nil && strings.Contains(err.Error(), "table has populations") {
		return bqlerr.Schemaf("table is in use by a population")
	}
	return err
}

// SetDefaultGenerator sets or clears (genID = nil) the table's default.
func (s *Store) SetDefaultGenerator(ctx context.Context, ex Executor, tableID int64, genID *int64) error {
	var v any
	if genID != nil {
		v = *genID
	}
	_, err := ex.ExecContext(ctx,
		`UPDATE bayesdb_table SET default_generator_id = ? WHERE id = ?`, v, tableID)
	s.cache.invalidate()
	return err
}

// tableColumns reads a stored table's columns from the engine's schema.
func tableColumns(ctx context.Context, ex Executor, name string) ([]string, error) {
	rows, err := ex.QueryContext(ctx,
		fmt.Sprintf(`PRAGMA table_info(%q)`, strings.ReplaceAll(name, `"`, `""`)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var cid int
		var cname, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &cname, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, cname)
	}
	return cols, rows.Err()
}

func isNameError(err error) bool {
	var ne *bqlerr.NameError
	return errors.As(err, &ne)
}
