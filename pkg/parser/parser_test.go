package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferlab/bqldb/pkg/parser"
)

func TestParseTransactions(t *testing.T) {
	phrases, err := parser.Parse("BEGIN; COMMIT; ROLLBACK;")
	require.NoError(t, err)
	require.Len(t, phrases, 3)
	assert.IsType(t, &parser.Begin{}, phrases[0])
	assert.IsType(t, &parser.Commit{}, phrases[1])
	assert.IsType(t, &parser.Rollback{}, phrases[2])
}

func TestParseEmptyPhrases(t *testing.T) {
	phrases, err := parser.Parse(";;  ;")
	require.NoError(t, err)
	assert.Empty(t, phrases)
}

func TestParseSelect(t *testing.T) {
	ph, err := parser.ParsePhrase("SELECT DISTINCT a, t.b AS x, * FROM t, u AS v WHERE a > 1 GROUP BY a HAVING count(*) > 2 ORDER BY a DESC LIMIT 10 OFFSET 5")
	require.NoError(t, err)
	sel, ok := ph.(*parser.Select)
	require.True(t, ok)
	assert.True(t, sel.Distinct)
	require.Len(t, sel.Columns, 3)
	assert.Equal(t, "x", sel.Columns[1].Alias)
	assert.True(t, sel.Columns[2].Star)
	require.Len(t, sel.From, 2)
	assert.Equal(t, "v", sel.From[1].(*parser.TableName).Alias)
	assert.NotNil(t, sel.Where)
	require.Len(t, sel.GroupBy, 1)
	assert.NotNil(t, sel.Having)
	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Desc)
	assert.NotNil(t, sel.Limit)
	assert.NotNil(t, sel.Offset)
}

func TestParseCreatePopulation(t *testing.T) {
	ph, err := parser.ParsePhrase(`
		CREATE POPULATION p FOR t WITH SCHEMA (
			MODEL a, b AS numerical;
			IGNORE c;
			GUESS STATTYPES OF (*)
		)`)
	require.NoError(t, err)
	cp, ok := ph.(*parser.CreatePopulation)
	require.True(t, ok)
	assert.Equal(t, "p", cp.Name)
	assert.Equal(t, "t", cp.Table)
	require.Len(t, cp.Schema, 3)

	model := cp.Schema[0].(*parser.ModelVars)
	assert.Equal(t, []string{"a", "b"}, model.Names)
	assert.Equal(t, "numerical", model.Stattype)
	ignore := cp.Schema[1].(*parser.IgnoreVars)
	assert.Equal(t, []string{"c"}, ignore.Names)
	guess := cp.Schema[2].(*parser.GuessVars)
	assert.True(t, guess.Star)
}

func TestParseCreateGenerator(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSchema []string
	}{
		{
			name:       "no schema",
			input:      "CREATE GENERATOR g FOR p USING diag_gauss",
			wantSchema: nil,
		},
		{
			name:       "empty schema",
			input:      "CREATE GENERATOR g FOR p USING diag_gauss()",
			wantSchema: []string{},
		},
		{
			name:       "opaque clauses",
			input:      "CREATE GENERATOR g FOR p USING crosscat(SUBSAMPLE 100, DEPENDENT(a, b))",
			wantSchema: []string{"SUBSAMPLE 100", "DEPENDENT(a, b)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ph, err := parser.ParsePhrase(tt.input)
			require.NoError(t, err)
			cg, ok := ph.(*parser.CreateGenerator)
			require.True(t, ok)
			assert.Equal(t, "g", cg.Name)
			assert.Equal(t, "p", cg.Population)
			assert.Equal(t, tt.wantSchema, cg.Schema)
		})
	}
}

func TestParseInitializeAndAnalyze(t *testing.T) {
	ph, err := parser.ParsePhrase("INITIALIZE 4 MODELS IF NOT EXISTS FOR g")
	require.NoError(t, err)
	ini := ph.(*parser.Initialize)
	assert.Equal(t, 4, ini.N)
	assert.True(t, ini.IfNotExists)
	assert.Equal(t, "g", ini.Generator)

	ph, err = parser.ParsePhrase("ANALYZE g MODELS 0-2, 5 FOR 10 ITERATIONS CHECKPOINT 2 ITERATIONS (OPTIMIZED, QUIET)")
	require.NoError(t, err)
	an := ph.(*parser.Analyze)
	assert.Equal(t, "g", an.Generator)
	assert.Equal(t, []int{0, 1, 2, 5}, an.Models.Indices())
	assert.Equal(t, 10, an.Budget.Value)
	assert.Equal(t, parser.UnitIterations, an.Budget.Unit)
	require.NotNil(t, an.Checkpoint)
	assert.Equal(t, 2, an.Checkpoint.Value)
	assert.Equal(t, []string{"OPTIMIZED", "QUIET"}, an.Program)

	ph, err = parser.ParsePhrase("ANALYZE g FOR 2 MINUTES")
	require.NoError(t, err)
	an = ph.(*parser.Analyze)
	assert.Equal(t, parser.UnitMinutes, an.Budget.Unit)
}

func TestParseDropModels(t *testing.T) {
	ph, err := parser.ParsePhrase("DROP MODELS 0-3 FROM g")
	require.NoError(t, err)
	dm := ph.(*parser.DropModels)
	assert.Equal(t, []int{0, 1, 2, 3}, dm.Models.Indices())
	assert.Equal(t, "g", dm.Generator)

	ph, err = parser.ParsePhrase("DROP MODELS FROM g")
	require.NoError(t, err)
	dm = ph.(*parser.DropModels)
	assert.Nil(t, dm.Models)
}

func TestParseEstimateModes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		mode  parser.EstimateMode
	}{
		{"rows", "ESTIMATE * FROM p", parser.EstRows},
		{"pairwise rows", "ESTIMATE SIMILARITY IN THE CONTEXT OF a FROM PAIRWISE p", parser.EstPairwiseRows},
		{"columns", "ESTIMATE * FROM VARIABLES OF p", parser.EstColumns},
		{"pairwise columns", "ESTIMATE DEPENDENCE PROBABILITY FROM PAIRWISE VARIABLES OF p", parser.EstPairwiseColumns},
		{"constant", "ESTIMATE PROBABILITY DENSITY OF a = 1 BY p", parser.EstBy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ph, err := parser.ParsePhrase(tt.input)
			require.NoError(t, err)
			est, ok := ph.(*parser.Estimate)
			require.True(t, ok)
			assert.Equal(t, tt.mode, est.Mode)
			assert.Equal(t, "p", est.Population)
		})
	}
}

func TestParseEstimateModeledByAndModels(t *testing.T) {
	ph, err := parser.ParsePhrase("ESTIMATE * FROM p MODELED BY g USING MODELS 0, 2-3")
	require.NoError(t, err)
	est := ph.(*parser.Estimate)
	assert.Equal(t, "g", est.Generator)
	assert.Equal(t, []int{0, 2, 3}, est.Models.Indices())

	ph, err = parser.ParsePhrase("ESTIMATE * FROM p USING MODEL 1")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	assert.Empty(t, est.Generator)
	assert.Equal(t, []int{1}, est.Models.Indices())
}

func TestParseBQLOperators(t *testing.T) {
	ph, err := parser.ParsePhrase("ESTIMATE PREDICTIVE PROBABILITY OF a GIVEN (b, c) FROM p")
	require.NoError(t, err)
	est := ph.(*parser.Estimate)
	pp := est.Columns[0].Expr.(*parser.PredProb)
	assert.Equal(t, "a", pp.Target)
	assert.Equal(t, []string{"b", "c"}, pp.Given)

	ph, err = parser.ParsePhrase("ESTIMATE PROBABILITY DENSITY OF a = 1, b = 2 GIVEN (c = 3) BY p")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	pd := est.Columns[0].Expr.(*parser.ProbDensity)
	require.Len(t, pd.Targets, 2)
	assert.Equal(t, "a", pd.Targets[0].Name)
	assert.Equal(t, "b", pd.Targets[1].Name)
	require.Len(t, pd.Given, 1)
	assert.Equal(t, "c", pd.Given[0].Name)

	ph, err = parser.ParsePhrase("ESTIMATE PROBABILITY DENSITY OF VALUE 7 FROM VARIABLES OF p")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	assert.IsType(t, &parser.ProbOfValue{}, est.Columns[0].Expr)

	ph, err = parser.ParsePhrase("ESTIMATE SIMILARITY TO (a = 1) IN THE CONTEXT OF b FROM p")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	sim := est.Columns[0].Expr.(*parser.Similarity)
	assert.NotNil(t, sim.To)
	assert.Equal(t, "b", sim.Context)

	ph, err = parser.ParsePhrase("ESTIMATE MUTUAL INFORMATION OF a WITH b GIVEN (c = 1) USING 50 SAMPLES BY p")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	mi := est.Columns[0].Expr.(*parser.MutInf)
	assert.Equal(t, "a", mi.Of)
	assert.Equal(t, "b", mi.With)
	require.NotNil(t, mi.Samples)
	assert.Equal(t, 50, *mi.Samples)

	ph, err = parser.ParsePhrase("ESTIMATE CORRELATION PVALUE OF a WITH b BY p")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	co := est.Columns[0].Expr.(*parser.CorrelExpr)
	assert.True(t, co.Pvalue)

	ph, err = parser.ParsePhrase("ESTIMATE DEPENDENCE PROBABILITY WITH a FROM VARIABLES OF p")
	require.NoError(t, err)
	est = ph.(*parser.Estimate)
	dp := est.Columns[0].Expr.(*parser.DepProb)
	assert.Empty(t, dp.Of)
	assert.Equal(t, "a", dp.With)
}

func TestParseInfer(t *testing.T) {
	ph, err := parser.ParsePhrase("INFER a, b AS bb WITH CONFIDENCE 0.7 FROM p WHERE a IS NULL")
	require.NoError(t, err)
	inf := ph.(*parser.InferImplicit)
	require.Len(t, inf.Columns, 2)
	assert.Equal(t, "bb", inf.Columns[1].Alias)
	assert.NotNil(t, inf.Confidence)
	assert.NotNil(t, inf.Where)

	ph, err = parser.ParsePhrase("INFER EXPLICIT a, PREDICT b AS bp CONFIDENCE bc USING 10 SAMPLES FROM p")
	require.NoError(t, err)
	exp := ph.(*parser.InferExplicit)
	require.Len(t, exp.Columns, 2)
	pr := exp.Columns[1].Expr.(*parser.PredictExpr)
	assert.Equal(t, "b", pr.Target)
	assert.Equal(t, "bp", pr.Alias)
	assert.Equal(t, "bc", pr.ConfName)
	require.NotNil(t, pr.Samples)
	assert.Equal(t, 10, *pr.Samples)
}

func TestParseSimulate(t *testing.T) {
	ph, err := parser.ParsePhrase("SIMULATE a, b FROM p MODELED BY g GIVEN c = 3 LIMIT 5")
	require.NoError(t, err)
	sim := ph.(*parser.Simulate)
	assert.Equal(t, []string{"a", "b"}, sim.Columns)
	assert.Equal(t, "p", sim.Population)
	assert.Equal(t, "g", sim.Generator)
	require.Len(t, sim.Given, 1)
	assert.Equal(t, "c", sim.Given[0].Name)
	assert.NotNil(t, sim.Limit)
}

func TestParseCreateTableAsSimulate(t *testing.T) {
	ph, err := parser.ParsePhrase("CREATE TEMP TABLE s AS SIMULATE a FROM p LIMIT 3")
	require.NoError(t, err)
	ct := ph.(*parser.CreateTableAs)
	assert.True(t, ct.Temp)
	assert.IsType(t, &parser.Simulate{}, ct.Query)
}

func TestParseParameters(t *testing.T) {
	ph, err := parser.ParsePhrase("SELECT ?, ?, ?5, ?, :name FROM t")
	require.NoError(t, err)
	sel := ph.(*parser.Select)
	idx := func(i int) *parser.Param { return sel.Columns[i].Expr.(*parser.Param) }
	assert.Equal(t, 1, idx(0).Index)
	assert.Equal(t, 2, idx(1).Index)
	assert.Equal(t, 5, idx(2).Index)
	// a bare ? after ?5 continues from the explicit index
	assert.Equal(t, 6, idx(3).Index)
	assert.Equal(t, "name", idx(4).Name)
}

func TestParseErrorsRecoverAtSemicolon(t *testing.T) {
	phrases, err := parser.Parse("SELECT FROM; SELECT 1;")
	require.Error(t, err)
	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	// The well-formed phrase after the bad one still parses.
	require.Len(t, phrases, 1)
}

func TestParseExpressionPrecedence(t *testing.T) {
	e, err := parser.ParseExpression("1 + 2 * 3")
	require.NoError(t, err)
	add := e.(*parser.Binary)
	assert.Equal(t, "+", add.Op)
	mul := add.R.(*parser.Binary)
	assert.Equal(t, "*", mul.Op)

	e, err = parser.ParseExpression("NOT a = 1 AND b = 2")
	require.NoError(t, err)
	and := e.(*parser.Binary)
	assert.Equal(t, "AND", and.Op)
	assert.IsType(t, &parser.Unary{}, and.L)

	e, err = parser.ParseExpression("a NOT IN (1, 2)")
	require.NoError(t, err)
	in := e.(*parser.InExpr)
	assert.True(t, in.Not)
	assert.Len(t, in.List, 2)
}
