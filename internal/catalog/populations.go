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

// CreatePopulation inserts a population row for the given table.
func (s *Store) CreatePopulation(ctx context.Context, ex Executor, name string, tableID int64) (*Population, error) {
	res, err := ex.ExecContext(ctx,
		`INSERT INTO bayesdb_population (name, table_id) VALUES (?, ?)`,
		name, tableID)
	if err != nil {
		return nil, fmt.Errorf("create population %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.cache.invalidate()
	s.logger.Debug("created population", slog.String("population", name), slog.Int64("id", id))
	return &Population{ID: id, Name: name, TableID: tableID}, nil
}

// PopulationByName resolves a population and its base table.
func (s *Store) PopulationByName(ctx context.Context, ex Executor, name string) (*Population, error) {
	if p, ok := s.cache.population(name); ok {
		return p, nil
	}
	p := &Population{}
	err := ex.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.table_id, t.name
		FROM bayesdb_population p
		JOIN bayesdb_table t ON t.id = p.table_id
		WHERE p.name = ?`,
		name).Scan(&p.ID, &p.Name, &p.TableID, &p.TableName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindPopulation, Name: name}
	}
	if err != nil {
		return nil, err
	}
	s.cache.putPopulation(p)
	return p, nil
}

// DropPopulation deletes a population and its variables. The delete
// trigger aborts while generators still reference it.
func (s *Store) DropPopulation(ctx context.Context, ex Executor, popID int64) error {
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM bayesdb_variable WHERE population_id = ?`, popID); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx, `DELETE FROM bayesdb_population WHERE id = ?`, popID)
	s.cache.invalidate()
	if err != nil && strings.Contains(err.Error(), "population has generators") {
		return bqlerr.Schemaf("population has generators; drop them first")
	}
	return err
}

// AddVariable appends a variable to a population. Varnos are assigned
// densely in creation order. A nil genID means a manifest variable backed
// by a base-table column; latent variables pass their owning generator
// and colno -1.
func (s *Store) AddVariable(ctx context.Context, ex Executor, popID int64, name, stattype string, colno int, genID *int64) (*Variable, error) {
	var varno int
	err := ex.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(varno) + 1, 0) FROM bayesdb_variable WHERE population_id = ?`,
		popID).Scan(&varno)
	if err != nil {
		return nil, err
	}
	var gen any
	if genID != nil {
		gen = *genID
	}
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO bayesdb_variable (population_id, varno, name, stattype, colno, generator_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		popID, varno, name, strings.ToLower(stattype), colno, gen); err != nil {
		return nil, fmt.Errorf("add variable %q: %w", name, err)
	}
	s.cache.invalidate()
	v := &Variable{PopulationID: popID, Varno: varno, Name: name,
		Stattype: strings.ToLower(stattype), Colno: colno}
	if genID != nil {
		v.GeneratorID = sql.NullInt64{Int64: *genID, Valid: true}
	}
	return v, nil
}

// Variables returns a population's variables in varno order.
func (s *Store) Variables(ctx context.Context, ex Executor, popID int64) ([]*Variable, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT population_id, varno, name, stattype, colno, generator_id
		FROM bayesdb_variable WHERE population_id = ? ORDER BY varno`,
		popID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vars []*Variable
	for rows.Next() {
		v := &Variable{}
		if err := rows.Scan(&v.PopulationID, &v.Varno, &v.Name, &v.Stattype, &v.Colno, &v.GeneratorID); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// VariableByName resolves one variable of a population.
func (s *Store) VariableByName(ctx context.Context, ex Executor, popID int64, name string) (*Variable, error) {
	v := &Variable{}
	err := ex.QueryRowContext(ctx, `
		SELECT population_id, varno, name, stattype, colno, generator_id
		FROM bayesdb_variable WHERE population_id = ? AND name = ?`,
		popID, name).Scan(&v.PopulationID, &v.Varno, &v.Name, &v.Stattype, &v.Colno, &v.GeneratorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindVariable, Name: name}
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SetStattype changes the statistical type of existing variables.
func (s *Store) SetStattype(ctx context.Context, ex Executor, popID int64, names []string, stattype string) error {
	for _, name := range names {
		res, err := ex.ExecContext(ctx, `
			UPDATE bayesdb_variable SET stattype = ?
			WHERE population_id = ? AND name = ?`,
			strings.ToLower(stattype), popID, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &bqlerr.NameError{Kind: bqlerr.KindVariable, Name: name}
		}
	}
	s.cache.invalidate()
	return nil
}

// HasGenerators reports whether any generator models this population.
func (s *Store) HasGenerators(ctx context.Context, ex Executor, popID int64) (bool, error) {
	var n int
	err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bayesdb_generator WHERE population_id = ?`,
		popID).Scan(&n)
	return n > 0, err
}
