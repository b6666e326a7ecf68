// Package backend defines the protocol between the BQL core and
// statistical backends, and the process-wide backend registry.
//
// A backend owns all model state for the generators that use it. The core
// splits the protocol in two halves with different capabilities:
//
//   - Lifecycle methods (CreateGenerator, InitializeModels, AnalyzeModels,
//     ...) run between queries and receive an Executor bound to the
//     connection's current transaction. This is the only time a backend
//     may touch the database.
//
//   - Query methods (LogpdfJoint, SimulateJoint, ...) are called while a
//     compiled SQL statement is being stepped, from inside model-operator
//     functions. They must answer from state loaded earlier and must not
//     observe or mutate the connection.
//
// All methods are invoked from a single logical thread per connection.
// Query methods are per-model; averaging across a model set is the
// model-operator layer's job.
package backend

import (
	"context"
	"database/sql"
)

// Value is a database value: int64, float64, string, []byte, or nil.
type Value = any

// Target binds a variable to a value, for densities and constraints.
type Target struct {
	Varno int
	Value Value
}

// Variable describes one population variable as seen by a backend.
type Variable struct {
	Varno    int
	Name     string
	Stattype string
	Colno    int // base-table column number; negative for latent variables
}

// AnalysisProgram carries the opaque sub-clauses of an ANALYZE phrase.
// Backends validate and interpret them; the core only transports them.
type AnalysisProgram struct {
	Clauses []string
}

// Executor is the slice of database access a backend gets during
// lifecycle operations. It is bound to the owning connection and the
// transaction the lifecycle call runs in.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Backend is a pluggable statistical engine.
type Backend interface {
	// Name returns the backend's registry name.
	Name() string

	// CreateGenerator admits a new generator over the given variables.
	// The schema clauses come verbatim from CREATE GENERATOR.
	CreateGenerator(ctx context.Context, ex Executor, genID int64, table string, vars []Variable, schema []string) error

	// DropGenerator releases all backend state for the generator.
	DropGenerator(ctx context.Context, ex Executor, genID int64) error

	// Load warms in-memory state for an existing generator, e.g. after
	// reopening a database.
	Load(ctx context.Context, ex Executor, genID int64) error

	// InitializeModels creates the given model replicas.
	InitializeModels(ctx context.Context, ex Executor, genID int64, modelnos []int) error

	// DropModels removes the given model replicas.
	DropModels(ctx context.Context, ex Executor, genID int64, modelnos []int) error

	// AnalyzeModels runs one analysis chunk over the given models. The
	// driver handles budgets and checkpoints; iterations here are the
	// chunk size.
	AnalyzeModels(ctx context.Context, ex Executor, genID int64, modelnos []int, iterations int, program AnalysisProgram) error

	// LogpdfJoint returns the log density of targets given constraints
	// under one model, marginalizing unspecified variables. May return
	// math.Inf(-1) for impossible observations.
	LogpdfJoint(genID int64, modelno int, targets, constraints []Target) (float64, error)

	// SimulateJoint draws n joint realizations of the target variables
	// given constraints under one model.
	SimulateJoint(ctx context.Context, genID int64, modelno int, targets []int, constraints []Target, n int) ([][]Value, error)

	// ColumnDependenceProbability returns a number in [0, 1].
	ColumnDependenceProbability(genID int64, modelno int, v0, v1 int) (float64, error)

	// ColumnMutualInformation returns a nonnegative estimate in bits,
	// Monte Carlo with nsamples draws where the backend is approximate.
	ColumnMutualInformation(genID int64, modelno int, v0, v1 int, constraints []Target, nsamples int) (float64, error)

	// RowSimilarity returns a nonnegative, backend-defined similarity of
	// two rows in the context of one variable.
	RowSimilarity(genID int64, modelno int, r0, r1 int64, contextVarno int) (float64, error)

	// ColumnValues returns the value domain observed for a nominal
	// variable, used to translate literals in GIVEN clauses. Non-nominal
	// variables return nil.
	ColumnValues(genID int64, varno int) ([]Value, error)
}
