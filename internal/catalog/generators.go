package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// CreateGenerator inserts a generator row for the given population.
func (s *Store) CreateGenerator(ctx context.Context, ex Executor, name string, popID int64, backendName string, schema []byte) (*Generator, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO bayesdb_generator (name, population_id, backend, schema)
		VALUES (?, ?, ?, ?)`,
		name, popID, backendName, schema)
	if err != nil {
		return nil, fmt.Errorf("create generator %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.cache.invalidate()
	s.logger.Debug("created generator",
		slog.String("generator", name),
		slog.String("backend", backendName),
		slog.Int64("id", id))
	return &Generator{ID: id, Name: name, PopulationID: popID, Backend: backendName, Schema: schema}, nil
}

// GeneratorByName resolves a generator by its (globally unique) name.
func (s *Store) GeneratorByName(ctx context.Context, ex Executor, name string) (*Generator, error) {
	if g, ok := s.cache.generator(name); ok {
		return g, nil
	}
	g := &Generator{}
	err := ex.QueryRowContext(ctx, `
		SELECT id, name, population_id, backend, schema
		FROM bayesdb_generator WHERE name = ?`,
		name).Scan(&g.ID, &g.Name, &g.PopulationID, &g.Backend, &g.Schema)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindGenerator, Name: name}
	}
	if err != nil {
		return nil, err
	}
	s.cache.putGenerator(g)
	return g, nil
}

// GeneratorByID resolves a generator by id.
func (s *Store) GeneratorByID(ctx context.Context, ex Executor, id int64) (*Generator, error) {
	g := &Generator{}
	err := ex.QueryRowContext(ctx, `
		SELECT id, name, population_id, backend, schema
		FROM bayesdb_generator WHERE id = ?`,
		id).Scan(&g.ID, &g.Name, &g.PopulationID, &g.Backend, &g.Schema)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindGenerator, Name: fmt.Sprint(id)}
	}
	return g, err
}

// GeneratorsForPopulation lists a population's generators in id order.
func (s *Store) GeneratorsForPopulation(ctx context.Context, ex Executor, popID int64) ([]*Generator, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, name, population_id, backend, schema
		FROM bayesdb_generator WHERE population_id = ? ORDER BY id`,
		popID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var gens []*Generator
	for rows.Next() {
		g := &Generator{}
		if err := rows.Scan(&g.ID, &g.Name, &g.PopulationID, &g.Backend, &g.Schema); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// AllGenerators lists every generator in the catalog.
func (s *Store) AllGenerators(ctx context.Context, ex Executor) ([]*Generator, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT id, name, population_id, backend, schema FROM bayesdb_generator ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var gens []*Generator
	for rows.Next() {
		g := &Generator{}
		if err := rows.Scan(&g.ID, &g.Name, &g.PopulationID, &g.Backend, &g.Schema); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// RenameGenerator renames a generator.
func (s *Store) RenameGenerator(ctx context.Context, ex Executor, genID int64, newName string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE bayesdb_generator SET name = ? WHERE id = ?`, newName, genID)
	s.cache.invalidate()
	return err
}

// DropGenerator deletes a generator; its models and latent variables
// cascade.
func (s *Store) DropGenerator(ctx context.Context, ex Executor, genID int64) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM bayesdb_generator WHERE id = ?`, genID)
	s.cache.invalidate()
	return err
}

// ---------- Models ----------

// AddModels records new model replicas.
func (s *Store) AddModels(ctx context.Context, ex Executor, genID int64, modelnos []int) error {
	for _, n := range modelnos {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO bayesdb_generator_model (generator_id, modelno)
			VALUES (?, ?)`,
			genID, n); err != nil {
			return fmt.Errorf("add model %d: %w", n, err)
		}
	}
	return nil
}

// Models lists a generator's models in index order.
func (s *Store) Models(ctx context.Context, ex Executor, genID int64) ([]*Model, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT modelno, iterations FROM bayesdb_generator_model
		WHERE generator_id = ? ORDER BY modelno`,
		genID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var models []*Model
	for rows.Next() {
		m := &Model{}
		if err := rows.Scan(&m.Modelno, &m.Iterations); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// DropModels removes exactly the given model replicas.
func (s *Store) DropModels(ctx context.Context, ex Executor, genID int64, modelnos []int) error {
	for _, n := range modelnos {
		if _, err := ex.ExecContext(ctx, `
			DELETE FROM bayesdb_generator_model
			WHERE generator_id = ? AND modelno = ?`,
			genID, n); err != nil {
			return err
		}
	}
	return nil
}

// BumpIterations advances the iteration counters after an analysis chunk.
func (s *Store) BumpIterations(ctx context.Context, ex Executor, genID int64, modelnos []int, delta int) error {
	for _, n := range modelnos {
		if _, err := ex.ExecContext(ctx, `
			UPDATE bayesdb_generator_model SET iterations = iterations + ?
			WHERE generator_id = ? AND modelno = ?`,
			delta, genID, n); err != nil {
			return err
		}
	}
	return nil
}
