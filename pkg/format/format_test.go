package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferlab/bqldb/pkg/format"
	"github.com/inferlab/bqldb/pkg/parser"
)

// Phrases must survive parse → format → parse: the reformatted text
// parses to the same canonical text again.
func TestPhraseRoundTrip(t *testing.T) {
	phrases := []string{
		"BEGIN",
		"COMMIT",
		"ROLLBACK",
		"SELECT 1",
		"SELECT DISTINCT a, b AS x FROM t WHERE a > 1 ORDER BY a DESC LIMIT 10 OFFSET 2",
		"SELECT * FROM t, u AS v",
		"SELECT t.* FROM t",
		"SELECT a FROM (SELECT a FROM t) AS s",
		"SELECT count(*) FROM t GROUP BY a HAVING count(*) > 1",
		"SELECT CASE WHEN a > 0 THEN 'pos' ELSE 'neg' END FROM t",
		"SELECT CAST(a AS REAL) FROM t",
		"SELECT a FROM t WHERE b IN (1, 2, 3)",
		"SELECT a FROM t WHERE b NOT BETWEEN 1 AND 2",
		"SELECT a FROM t WHERE b LIKE 'x%'",
		"SELECT a FROM t WHERE b IS NOT NULL",
		"SELECT a FROM t WHERE EXISTS (SELECT 1 FROM u)",
		"SELECT 1 + 2 * 3",
		"SELECT (1 + 2) * 3",
		"SELECT -a FROM t",
		"SELECT ?, ?2, :x FROM t",
		"CREATE TABLE s AS SELECT a FROM t",
		"CREATE TEMP TABLE IF NOT EXISTS s AS SIMULATE a FROM p LIMIT 3",
		"DROP TABLE IF EXISTS t",
		"ALTER TABLE t RENAME TO u",
		"ALTER TABLE t RENAME a TO b",
		"CREATE POPULATION p FOR t WITH SCHEMA (MODEL a, b AS numerical, IGNORE c, GUESS STATTYPES OF (*))",
		"CREATE POPULATION IF NOT EXISTS p FOR t WITH SCHEMA (GUESS STATTYPES OF (a, b))",
		"ALTER POPULATION p ADD VARIABLE x numerical, SET STATTYPES OF a, b TO nominal",
		"DROP POPULATION IF EXISTS p",
		"CREATE GENERATOR g FOR p USING diag_gauss",
		"CREATE GENERATOR g FOR p USING crosscat(SUBSAMPLE 100)",
		"DROP GENERATOR g",
		"INITIALIZE 4 MODELS IF NOT EXISTS FOR g",
		"INITIALIZE 1 MODEL FOR g",
		"ANALYZE g MODELS 0-2, 5 FOR 10 ITERATIONS CHECKPOINT 2 ITERATIONS (QUIET)",
		"ANALYZE g FOR 30 SECONDS",
		"DROP MODELS 0-3 FROM g",
		"DROP MODELS FROM g",
		"ESTIMATE * FROM p",
		"ESTIMATE a, PREDICTIVE PROBABILITY OF a AS pp FROM p ORDER BY pp DESC LIMIT 2",
		"ESTIMATE PREDICTIVE PROBABILITY OF a GIVEN (b, c) FROM p",
		"ESTIMATE PROBABILITY DENSITY OF (a = 1, b = 2) GIVEN (c = 3) BY p",
		"ESTIMATE PROBABILITY DENSITY OF VALUE 7 FROM VARIABLES OF p",
		"ESTIMATE SIMILARITY TO (a = 1) IN THE CONTEXT OF b FROM p",
		"ESTIMATE SIMILARITY IN THE CONTEXT OF a FROM PAIRWISE p",
		"ESTIMATE DEPENDENCE PROBABILITY FROM PAIRWISE VARIABLES OF p FOR (a, b)",
		"ESTIMATE DEPENDENCE PROBABILITY OF a WITH b BY p",
		"ESTIMATE MUTUAL INFORMATION OF a WITH b GIVEN (c = 1) USING 50 SAMPLES BY p",
		"ESTIMATE CORRELATION PVALUE OF a WITH b BY p",
		"ESTIMATE * FROM p MODELED BY g USING MODELS 0, 2-3",
		"ESTIMATE * FROM p USING MODEL 1",
		"INFER a, b AS bb WITH CONFIDENCE 0.7 FROM p WHERE a IS NULL",
		"INFER * FROM p",
		"INFER EXPLICIT a, PREDICT b AS bp CONFIDENCE bc USING 10 SAMPLES FROM p",
		"SIMULATE a, b FROM p MODELED BY g GIVEN c = 3 LIMIT 5",
	}
	for _, input := range phrases {
		t.Run(input, func(t *testing.T) {
			first, err := parser.ParsePhrase(input)
			require.NoError(t, err)
			text := format.Phrase(first)

			second, err := parser.ParsePhrase(text)
			require.NoError(t, err, "formatted text must parse: %q", text)
			assert.Equal(t, text, format.Phrase(second),
				"formatting must be a fixed point")
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with space", `"with space"`},
		{"select", `"select"`},
		{"Mixed", "Mixed"},
		{`has"quote`, `"has""quote"`},
		{"1leading", `"1leading"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, format.QuoteIdent(tt.in))
	}
}

func TestScript(t *testing.T) {
	phrases, err := parser.Parse("SELECT 1; SELECT 2;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1; SELECT 2;", format.Script(phrases))
}
