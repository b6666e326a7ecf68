package compile_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/internal/compile"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// testHandle is the connection handle baked into emitted operator calls.
const testHandle = 7

func newEnv(t *testing.T) *compile.Env {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, catalog.Migrate(db))

	_, err = db.Exec(`CREATE TABLE t (a REAL, b REAL, c REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t VALUES (1, 2, 3), (2, 4, 6), (3, 6, 9)`)
	require.NoError(t, err)

	ctx := context.Background()
	cat := catalog.New(nil)
	tbl, err := cat.EnsureTable(ctx, db, "t")
	require.NoError(t, err)
	pop, err := cat.CreatePopulation(ctx, db, "p", tbl.ID)
	require.NoError(t, err)
	for colno, col := range []string{"a", "b", "c"} {
		_, err := cat.AddVariable(ctx, db, pop.ID, col, "numerical", colno, nil)
		require.NoError(t, err)
	}
	gen, err := cat.CreateGenerator(ctx, db, "g", pop.ID, "diag_gauss", []byte{})
	require.NoError(t, err)
	require.NoError(t, cat.AddModels(ctx, db, gen.ID, []int{0, 1}))

	return &compile.Env{
		Ctx:    ctx,
		Ex:     db,
		Cat:    cat,
		Handle: testHandle,
	}
}

func compileOne(t *testing.T, env *compile.Env, text string) *compile.Output {
	t.Helper()
	ph, err := parser.ParsePhrase(text)
	require.NoError(t, err)
	q, ok := ph.(parser.Query)
	require.True(t, ok, "not a query: %s", text)
	out, err := compile.Query(env, q)
	require.NoError(t, err)
	return out
}

// Pure SQL passes through unchanged (up to whitespace; these inputs are
// already in canonical spacing).
func TestCompilePureSQLPassthrough(t *testing.T) {
	env := newEnv(t)
	queries := []string{
		"SELECT a, b FROM t WHERE a > 1",
		"SELECT DISTINCT a FROM t ORDER BY a DESC LIMIT 10 OFFSET 2",
		"SELECT count(*) FROM t GROUP BY a HAVING count(*) > 1",
		"SELECT a + b * c FROM t",
		"SELECT * FROM t, t AS u",
		"SELECT a FROM (SELECT a FROM t) AS s",
		"SELECT CASE WHEN a > 0 THEN 1 ELSE 0 END FROM t",
		"SELECT a FROM t WHERE b IN (1, 2) AND c IS NOT NULL",
		"SELECT ?1, :x FROM t",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			out := compileOne(t, env, q)
			assert.Equal(t, q, out.SQL)
			assert.Empty(t, out.Generators)
		})
	}
}

func TestCompileEstimateRowContext(t *testing.T) {
	env := newEnv(t)

	out := compileOne(t, env, "ESTIMATE a, PREDICTIVE PROBABILITY OF a AS pp FROM p ORDER BY pp DESC LIMIT 2")
	assert.Equal(t,
		"SELECT t.a, bql_row_prob(7, 1, NULL, t._rowid_, 0, t.a, 0) AS pp "+
			"FROM t AS t ORDER BY pp DESC LIMIT 2",
		out.SQL)
	assert.Equal(t, []int64{1}, out.Generators)

	out = compileOne(t, env, "ESTIMATE PREDICTIVE PROBABILITY OF a GIVEN (b) FROM p")
	assert.Equal(t,
		"SELECT bql_row_prob(7, 1, NULL, t._rowid_, 0, t.a, 1, 1, t.b) FROM t AS t",
		out.SQL)
}

func TestCompileEstimateConstContext(t *testing.T) {
	env := newEnv(t)

	out := compileOne(t, env, "ESTIMATE PROBABILITY DENSITY OF a = 2 BY p")
	assert.Equal(t, "SELECT bql_pdf_joint(7, 1, NULL, 1, 0, 2, 0)", out.SQL)

	out = compileOne(t, env, "ESTIMATE PROBABILITY DENSITY OF (a = 1, b = 2) GIVEN (c = 3) BY p")
	assert.Equal(t, "SELECT bql_pdf_joint(7, 1, NULL, 2, 0, 1, 1, 2, 1, 2, 3)", out.SQL)

	out = compileOne(t, env, "ESTIMATE DEPENDENCE PROBABILITY OF a WITH b BY p")
	assert.Equal(t, "SELECT bql_column_depprob(7, 1, NULL, 0, 1)", out.SQL)

	out = compileOne(t, env, "ESTIMATE MUTUAL INFORMATION OF a WITH b USING 50 SAMPLES BY p")
	assert.Equal(t, "SELECT bql_column_mutinf(7, 1, NULL, 0, 1, 50, 0)", out.SQL)
}

func TestCompileEstimateColumnContexts(t *testing.T) {
	env := newEnv(t)

	out := compileOne(t, env, "ESTIMATE * FROM VARIABLES OF p")
	assert.Equal(t,
		"SELECT v.name AS name FROM bayesdb_variable AS v WHERE v.population_id = 1",
		out.SQL)

	out = compileOne(t, env, "ESTIMATE name, DEPENDENCE PROBABILITY WITH a AS dp FROM VARIABLES OF p")
	assert.Equal(t,
		"SELECT v.name, bql_column_depprob(7, 1, NULL, v.varno, 0) AS dp "+
			"FROM bayesdb_variable AS v WHERE v.population_id = 1",
		out.SQL)

	out = compileOne(t, env, "ESTIMATE DEPENDENCE PROBABILITY FROM PAIRWISE VARIABLES OF p")
	assert.Equal(t,
		"SELECT bql_column_depprob(7, 1, NULL, v0.varno, v1.varno) "+
			"FROM bayesdb_variable AS v0, bayesdb_variable AS v1 "+
			"WHERE v0.population_id = 1 AND v1.population_id = 1",
		out.SQL)

	out = compileOne(t, env, "ESTIMATE DEPENDENCE PROBABILITY FROM PAIRWISE VARIABLES OF p FOR (a, b)")
	assert.Equal(t,
		"SELECT bql_column_depprob(7, 1, NULL, v0.varno, v1.varno) "+
			"FROM bayesdb_variable AS v0, bayesdb_variable AS v1 "+
			"WHERE v0.population_id = 1 AND v1.population_id = 1 "+
			"AND v0.varno IN (0, 1) AND v1.varno IN (0, 1)",
		out.SQL)
}

func TestCompilePairwiseRows(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "ESTIMATE *, SIMILARITY IN THE CONTEXT OF a AS s FROM PAIRWISE p")
	assert.Equal(t,
		"SELECT r0._rowid_ AS rowid0, r1._rowid_ AS rowid1, "+
			"bql_row_similarity(7, 1, NULL, r0._rowid_, r1._rowid_, 0) AS s "+
			"FROM t AS r0, t AS r1",
		out.SQL)
}

func TestCompileSimilarityTo(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "ESTIMATE SIMILARITY TO (a = 2) IN THE CONTEXT OF b FROM p")
	assert.Equal(t,
		"SELECT bql_row_similarity(7, 1, NULL, t._rowid_, "+
			"(SELECT _rowid_ FROM t WHERE a = 2 ORDER BY _rowid_ LIMIT 1), 1) "+
			"FROM t AS t",
		out.SQL)
}

func TestCompileCorrelation(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "ESTIMATE CORRELATION OF a WITH b BY p")
	assert.Equal(t, "SELECT bql_column_correlation(7, 1, 0, 1)", out.SQL)
	assert.Equal(t, []int64{1}, out.NeedsData)
	// Data statistics reference no generator.
	assert.Empty(t, out.Generators)

	out = compileOne(t, env, "ESTIMATE CORRELATION PVALUE OF a WITH b BY p")
	assert.Equal(t, "SELECT bql_column_correlation_pvalue(7, 1, 0, 1)", out.SQL)
}

func TestCompileInferImplicit(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "INFER b WITH CONFIDENCE 0.7 FROM p")
	assert.Equal(t,
		"SELECT bql_infer(7, 1, NULL, t._rowid_, 1, t.b, 0.7, 2, 0, t.a, 2, t.c) AS b "+
			"FROM t AS t",
		out.SQL)
}

func TestCompileInferExplicit(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "INFER EXPLICIT a, PREDICT b AS bp CONFIDENCE bc FROM p WHERE rowid = 1")
	assert.Equal(t,
		"SELECT t.a, "+
			"bql_predict(7, 1, NULL, t._rowid_, 1, 0, 2, 0, t.a, 2, t.c) AS bp, "+
			"bql_predict_confidence(7, 1, NULL, t._rowid_, 1, 0, 2, 0, t.a, 2, t.c) AS bc "+
			"FROM t AS t WHERE rowid = 1",
		out.SQL)
}

func TestCompileModelSets(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "ESTIMATE PROBABILITY DENSITY OF a = 2 BY p MODELED BY g USING MODEL 1")
	assert.Equal(t, "SELECT bql_pdf_joint(7, 1, '1', 1, 0, 2, 0)", out.SQL)

	out = compileOne(t, env, "ESTIMATE PROBABILITY DENSITY OF a = 2 BY p USING MODELS 0-1")
	assert.Equal(t, "SELECT bql_pdf_joint(7, 1, '0,1', 1, 0, 2, 0)", out.SQL)

	_, err := parseAndCompile(env, "ESTIMATE PROBABILITY DENSITY OF a = 2 BY p USING MODEL 9")
	var se *bqlerr.SchemaError
	require.ErrorAs(t, err, &se)
}

func TestCompileSimulatePlan(t *testing.T) {
	env := newEnv(t)
	out := compileOne(t, env, "SIMULATE a, b FROM p GIVEN c = 3 LIMIT 5")
	require.NotNil(t, out.Sim)
	assert.Empty(t, out.SQL)
	assert.Equal(t, "p", out.Sim.Pop.Name)
	assert.Equal(t, "g", out.Sim.Gen.Name)
	require.Len(t, out.Sim.Targets, 2)
	assert.Equal(t, 0, out.Sim.Targets[0].Varno)
	require.Len(t, out.Sim.Given, 1)
	assert.Equal(t, 2, out.Sim.Given[0].Var.Varno)
}

func TestCompileContextErrors(t *testing.T) {
	env := newEnv(t)
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{
			name:  "row operator in plain SELECT",
			input: "SELECT PREDICTIVE PROBABILITY OF a FROM t",
			want:  new(*bqlerr.WrongContextError),
		},
		{
			name:  "row operator in column context",
			input: "ESTIMATE PREDICTIVE PROBABILITY OF a FROM VARIABLES OF p",
			want:  new(*bqlerr.WrongContextError),
		},
		{
			name:  "pairwise operator in single-column context",
			input: "ESTIMATE DEPENDENCE PROBABILITY FROM VARIABLES OF p",
			want:  new(*bqlerr.WrongContextError),
		},
		{
			name:  "unknown population",
			input: "ESTIMATE * FROM nope",
			want:  new(*bqlerr.NameError),
		},
		{
			name:  "unknown variable",
			input: "ESTIMATE PREDICTIVE PROBABILITY OF zz FROM p",
			want:  new(*bqlerr.NameError),
		},
		{
			name:  "similarity without context",
			input: "ESTIMATE SIMILARITY TO (a = 1) FROM p",
			want:  new(*bqlerr.SchemaError),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAndCompile(env, tt.input)
			require.Error(t, err)
			switch target := tt.want.(type) {
			case **bqlerr.WrongContextError:
				assert.ErrorAs(t, err, target)
			case **bqlerr.NameError:
				assert.ErrorAs(t, err, target)
			case **bqlerr.SchemaError:
				assert.ErrorAs(t, err, target)
			}
		})
	}
}

func TestCompileIncompatibleStattypes(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	pop, err := env.Cat.PopulationByName(ctx, env.Ex, "p")
	require.NoError(t, err)
	require.NoError(t, env.Cat.SetStattype(ctx, env.Ex, pop.ID, []string{"c"}, "cyclic"))

	_, err = parseAndCompile(env, "ESTIMATE CORRELATION OF a WITH c BY p")
	var ise *bqlerr.IncompatibleStattypeError
	require.ErrorAs(t, err, &ise)
}

func parseAndCompile(env *compile.Env, text string) (*compile.Output, error) {
	ph, err := parser.ParsePhrase(text)
	if err != nil {
		return nil, err
	}
	return compile.Query(env, ph.(parser.Query))
}
