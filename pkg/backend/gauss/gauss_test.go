package gauss_test

import (
	"context"
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	_ "modernc.org/sqlite"

	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/backend/gauss"
)

func newFixture(t *testing.T) (*sql.DB, *gauss.Backend, []backend.Variable) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE t (a REAL, b REAL, kind TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t VALUES (1, 2, 'x'), (2, 4, 'x'), (3, 6, 'y')`)
	require.NoError(t, err)

	vars := []backend.Variable{
		{Varno: 0, Name: "a", Stattype: "numerical", Colno: 0},
		{Varno: 1, Name: "b", Stattype: "numerical", Colno: 1},
		{Varno: 2, Name: "kind", Stattype: "nominal", Colno: 2},
	}
	be := gauss.New()
	ctx := context.Background()
	require.NoError(t, be.CreateGenerator(ctx, db, 1, "t", vars, nil))
	require.NoError(t, be.InitializeModels(ctx, db, 1, []int{0}))
	return db, be, vars
}

func TestLogpdfMatchesClosedForm(t *testing.T) {
	_, be, _ := newFixture(t)

	xs := []float64{1, 2, 3}
	mean := stat.Mean(xs, nil)
	variance := stat.PopVariance(xs, nil)
	want := distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance)}.LogProb(2)

	got, err := be.LogpdfJoint(1, 0, []backend.Target{{Varno: 0, Value: float64(2)}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestLogpdfJointSumsMarginals(t *testing.T) {
	_, be, _ := newFixture(t)

	la, err := be.LogpdfJoint(1, 0, []backend.Target{{Varno: 0, Value: float64(2)}}, nil)
	require.NoError(t, err)
	lb, err := be.LogpdfJoint(1, 0, []backend.Target{{Varno: 1, Value: float64(4)}}, nil)
	require.NoError(t, err)
	joint, err := be.LogpdfJoint(1, 0, []backend.Target{
		{Varno: 0, Value: float64(2)},
		{Varno: 1, Value: float64(4)},
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, la+lb, joint, 1e-12)
}

func TestNominalLogpdf(t *testing.T) {
	_, be, _ := newFixture(t)

	got, err := be.LogpdfJoint(1, 0, []backend.Target{{Varno: 2, Value: "x"}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2.0/3.0), got, 1e-12)

	got, err = be.LogpdfJoint(1, 0, []backend.Target{{Varno: 2, Value: "zzz"}}, nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, -1))
}

func TestSimulateJoint(t *testing.T) {
	_, be, _ := newFixture(t)
	ctx := context.Background()

	rows, err := be.SimulateJoint(ctx, 1, 0, []int{0, 1}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for _, row := range rows {
		require.Len(t, row, 2)
		_, ok := row[0].(float64)
		assert.True(t, ok)
	}

	// Constrained targets echo the pinned value.
	rows, err = be.SimulateJoint(ctx, 1, 0, []int{0}, []backend.Target{{Varno: 0, Value: float64(9)}}, 3)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, float64(9), row[0])
	}
}

func TestIndependenceDeclarations(t *testing.T) {
	_, be, _ := newFixture(t)

	dp, err := be.ColumnDependenceProbability(1, 0, 0, 1)
	require.NoError(t, err)
	assert.Zero(t, dp)

	dp, err = be.ColumnDependenceProbability(1, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, dp)

	mi, err := be.ColumnMutualInformation(1, 0, 0, 1, nil, 100)
	require.NoError(t, err)
	assert.Zero(t, mi)

	// Self-information is the column entropy in bits.
	xs := []float64{1, 2, 3}
	wantEntropy := 0.5 * math.Log2(2*math.Pi*math.E*stat.PopVariance(xs, nil))
	mi, err = be.ColumnMutualInformation(1, 0, 0, 0, nil, 100)
	require.NoError(t, err)
	assert.InDelta(t, wantEntropy, mi, 1e-9)
	assert.GreaterOrEqual(t, mi, 0.0)
}

func TestRowSimilarity(t *testing.T) {
	_, be, _ := newFixture(t)

	same, err := be.RowSimilarity(1, 0, 1, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-9)

	near, err := be.RowSimilarity(1, 0, 1, 2, 0)
	require.NoError(t, err)
	far, err := be.RowSimilarity(1, 0, 1, 3, 0)
	require.NoError(t, err)
	assert.Greater(t, near, far)
	assert.GreaterOrEqual(t, far, 0.0)

	// Nominal context: exact match or nothing.
	sim, err := be.RowSimilarity(1, 0, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)
	sim, err = be.RowSimilarity(1, 0, 1, 3, 2)
	require.NoError(t, err)
	assert.Zero(t, sim)
}

func TestPersistenceAcrossLoad(t *testing.T) {
	db, be, _ := newFixture(t)
	ctx := context.Background()

	want, err := be.LogpdfJoint(1, 0, []backend.Target{{Varno: 0, Value: float64(2)}}, nil)
	require.NoError(t, err)

	fresh := gauss.New()
	require.NoError(t, fresh.Load(ctx, db, 1))
	got, err := fresh.LogpdfJoint(1, 0, []backend.Target{{Varno: 0, Value: float64(2)}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestAnalyzeValidatesProgram(t *testing.T) {
	db, be, _ := newFixture(t)
	ctx := context.Background()

	err := be.AnalyzeModels(ctx, db, 1, []int{0}, 1, backend.AnalysisProgram{Clauses: []string{"FRobnicate"}})
	var berr *backend.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, gauss.Name, berr.Backend)

	require.NoError(t, be.AnalyzeModels(ctx, db, 1, []int{0}, 2,
		backend.AnalysisProgram{Clauses: []string{"QUIET"}}))
}

func TestDropModelsAndGenerator(t *testing.T) {
	db, be, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, be.DropModels(ctx, db, 1, []int{0}))
	_, err := be.LogpdfJoint(1, 0, []backend.Target{{Varno: 0, Value: float64(2)}}, nil)
	require.Error(t, err)

	require.NoError(t, be.DropGenerator(ctx, db, 1))
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bqldb_gauss_generator`).Scan(&n))
	assert.Zero(t, n)
}

func TestUnknownSchemaClauseRejected(t *testing.T) {
	db, _, vars := newFixture(t)
	be := gauss.New()
	err := be.CreateGenerator(context.Background(), db, 2, "t", vars, []string{"WIBBLE 3"})
	var berr *backend.Error
	require.ErrorAs(t, err, &berr)
}
