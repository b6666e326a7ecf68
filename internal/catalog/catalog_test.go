package catalog_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/internal/testutil"
	"github.com/inferlab/bqldb/pkg/bqlerr"
)

func newTestDB(t *testing.T) (*sql.DB, *catalog.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, catalog.Migrate(db))

	_, err = db.Exec(`CREATE TABLE t (a REAL, b REAL, c REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t VALUES (1, 2, 3), (2, 4, 6), (3, 6, 9)`)
	require.NoError(t, err)

	return db, catalog.New(testutil.NewTestLogger(t))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, _ := newTestDB(t)
	require.NoError(t, catalog.Migrate(db))
	v, err := catalog.SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, catalog.Version, v)
}

func TestEnsureTable(t *testing.T) {
	db, s := newTestDB(t)
	ctx := context.Background()

	tbl, err := s.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	assert.Equal(t, "t", tbl.Name)

	again, err := s.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	assert.Equal(t, tbl.ID, again.ID)

	cols, err := s.Columns(ctx, db, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cols)

	_, err = s.EnsureTable(ctx, db, "missing")
	var ne *bqlerr.NameError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, bqlerr.KindTable, ne.Kind)
}

func TestPopulationLifecycle(t *testing.T) {
	db, s := newTestDB(t)
	ctx := context.Background()

	tbl, err := s.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	pop, err := s.CreatePopulation(ctx, db, "p", tbl.ID)
	require.NoError(t, err)

	for colno, col := range []string{"a", "b", "c"} {
		_, err := s.AddVariable(ctx, db, pop.ID, col, "numerical", colno, nil)
		require.NoError(t, err)
	}

	vars, err := s.Variables(ctx, db, pop.ID)
	require.NoError(t, err)
	require.Len(t, vars, 3)
	assert.Equal(t, 0, vars[0].Varno)
	assert.Equal(t, 2, vars[2].Varno)

	v, err := s.VariableByName(ctx, db, pop.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Varno)
	assert.Equal(t, "numerical", v.Stattype)

	// Names resolve case-insensitively.
	got, err := s.PopulationByName(ctx, db, "P")
	require.NoError(t, err)
	assert.Equal(t, pop.ID, got.ID)
	assert.Equal(t, "t", got.TableName)

	require.NoError(t, s.SetStattype(ctx, db, pop.ID, []string{"b"}, "nominal"))
	v, err = s.VariableByName(ctx, db, pop.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, "nominal", v.Stattype)

	require.NoError(t, s.DropPopulation(ctx, db, pop.ID))
	_, err = s.PopulationByName(ctx, db, "p")
	var ne *bqlerr.NameError
	assert.ErrorAs(t, err, &ne)
}

// Creating and dropping a population must leave the catalog in its prior
// state.
func TestCreateDropPopulationRestoresCatalog(t *testing.T) {
	db, s := newTestDB(t)
	ctx := context.Background()

	cycle := func() {
		tbl, err := s.EnsureTable(ctx, db, "t")
		require.NoError(t, err)
		pop, err := s.CreatePopulation(ctx, db, "p", tbl.ID)
		require.NoError(t, err)
		_, err = s.AddVariable(ctx, db, pop.ID, "a", "numerical", 0, nil)
		require.NoError(t, err)
		require.NoError(t, s.DropPopulation(ctx, db, pop.ID))
	}
	snapshot := func() (pops, vars int) {
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bayesdb_population`).Scan(&pops))
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bayesdb_variable`).Scan(&vars))
		return pops, vars
	}

	cycle()
	pops, vars := snapshot()
	assert.Zero(t, pops)
	assert.Zero(t, vars)

	cycle()
	pops2, vars2 := snapshot()
	assert.Equal(t, pops, pops2)
	assert.Equal(t, vars, vars2)
}

func TestGeneratorGuards(t *testing.T) {
	db, s := newTestDB(t)
	ctx := context.Background()

	tbl, err := s.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	pop, err := s.CreatePopulation(ctx, db, "p", tbl.ID)
	require.NoError(t, err)
	gen, err := s.CreateGenerator(ctx, db, "g", pop.ID, "diag_gauss", []byte{})
	require.NoError(t, err)

	// The delete trigger protects populations with live generators.
	err = s.DropPopulation(ctx, db, pop.ID)
	require.Error(t, err)

	inUse, err := s.HasGenerators(ctx, db, pop.ID)
	require.NoError(t, err)
	assert.True(t, inUse)

	require.NoError(t, s.DropGenerator(ctx, db, gen.ID))
	require.NoError(t, s.DropPopulation(ctx, db, pop.ID))
}

// INITIALIZE k then DROP MODELS 0..k-1 removes exactly the k created
// models.
func TestModelBookkeeping(t *testing.T) {
	db, s := newTestDB(t)
	ctx := context.Background()

	tbl, err := s.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	pop, err := s.CreatePopulation(ctx, db, "p", tbl.ID)
	require.NoError(t, err)
	gen, err := s.CreateGenerator(ctx, db, "g", pop.ID, "diag_gauss", []byte{})
	require.NoError(t, err)

	require.NoError(t, s.AddModels(ctx, db, gen.ID, []int{0, 1, 2}))
	models, err := s.Models(ctx, db, gen.ID)
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, 0, models[0].Iterations)

	require.NoError(t, s.BumpIterations(ctx, db, gen.ID, []int{0, 1, 2}, 5))
	models, err = s.Models(ctx, db, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, models[1].Iterations)

	require.NoError(t, s.DropModels(ctx, db, gen.ID, []int{0, 1, 2}))
	models, err = s.Models(ctx, db, gen.ID)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestRenameColumnPropagates(t *testing.T) {
	db, s := newTestDB(t)
	ctx := context.Background()

	tbl, err := s.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	pop, err := s.CreatePopulation(ctx, db, "p", tbl.ID)
	require.NoError(t, err)
	_, err = s.AddVariable(ctx, db, pop.ID, "a", "numerical", 0, nil)
	require.NoError(t, err)

	require.NoError(t, s.RenameColumn(ctx, db, tbl.ID, "a", "alpha"))

	v, err := s.VariableByName(ctx, db, pop.ID, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Colno)
	_, err = s.VariableByName(ctx, db, pop.ID, "a")
	require.Error(t, err)

	inUse, err := s.ColumnInUse(ctx, db, tbl.ID, "alpha")
	require.NoError(t, err)
	assert.True(t, inUse)
}
