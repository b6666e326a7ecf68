package bqlfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/bqlerr"
)

func numCol(xs ...float64) []backend.Value {
	out := make([]backend.Value, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func nomCol(xs ...string) []backend.Value {
	out := make([]backend.Value, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	pd := &PopData{
		Stattypes: map[int]string{0: "numerical", 1: "numerical"},
		Cols: map[int][]backend.Value{
			0: numCol(1, 2, 3),
			1: numCol(2, 4, 6),
		},
	}
	r, p, err := correlate(pd, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 1.0, r.(float64), 1e-9)
	require.NotNil(t, p)
	assert.InDelta(t, 0.0, p.(float64), 1e-9)
}

func TestPearsonUncorrelatedHasHighPvalue(t *testing.T) {
	pd := &PopData{
		Stattypes: map[int]string{0: "numerical", 1: "numerical"},
		Cols: map[int][]backend.Value{
			0: numCol(1, 2, 3, 4, 5, 6, 7, 8),
			1: numCol(3, 1, 4, 1, 5, 9, 2, 6),
		},
	}
	r, p, err := correlate(pd, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.NotNil(t, p)
	assert.Greater(t, p.(float64), 0.05)
}

func TestSelfCorrelationIsOne(t *testing.T) {
	pd := &PopData{
		Stattypes: map[int]string{0: "numerical"},
		Cols:      map[int][]backend.Value{0: numCol(1, 2, 3)},
	}
	r, p, err := correlate(pd, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)
	assert.Equal(t, 0.0, p)
}

func TestCramerV(t *testing.T) {
	// Perfect association between the two labels.
	pd := &PopData{
		Stattypes: map[int]string{0: "nominal", 1: "nominal"},
		Cols: map[int][]backend.Value{
			0: nomCol("a", "a", "b", "b"),
			1: nomCol("x", "x", "y", "y"),
		},
	}
	r, _, err := correlate(pd, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 1.0, r.(float64), 1e-9)
}

func TestAnovaGroupedMeans(t *testing.T) {
	pd := &PopData{
		Stattypes: map[int]string{0: "nominal", 1: "numerical"},
		Cols: map[int][]backend.Value{
			0: nomCol("a", "a", "a", "b", "b", "b"),
			1: numCol(1, 1.1, 0.9, 10, 10.1, 9.9),
		},
	}
	r, p, err := correlate(pd, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Greater(t, r.(float64), 0.9)
	require.NotNil(t, p)
	assert.Less(t, p.(float64), 0.01)

	// Argument order must not matter.
	r2, _, err := correlate(pd, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, r, r2)
}

func TestCorrelationDegenerateData(t *testing.T) {
	pd := &PopData{
		Stattypes: map[int]string{0: "numerical", 1: "numerical"},
		Cols: map[int][]backend.Value{
			0: numCol(1),
			1: numCol(2),
		},
	}
	r, p, err := correlate(pd, 0, 1)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, p)

	// Zero variance on one side.
	pd.Cols[0] = numCol(5, 5, 5)
	pd.Cols[1] = numCol(1, 2, 3)
	r, _, err = correlate(pd, 0, 1)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestCorrelationRefusesCyclic(t *testing.T) {
	pd := &PopData{
		Stattypes: map[int]string{0: "cyclic", 1: "numerical"},
		Cols:      map[int][]backend.Value{0: numCol(1), 1: numCol(1)},
	}
	_, _, err := correlate(pd, 0, 1)
	var ise *bqlerr.IncompatibleStattypeError
	require.ErrorAs(t, err, &ise)
}

func TestNominalPrediction(t *testing.T) {
	value, conf := nominalPrediction([]backend.Value{"x", "x", "x", "y"})
	assert.Equal(t, "x", value)
	assert.InDelta(t, 0.75, conf, 1e-12)
}

func TestNumericalPrediction(t *testing.T) {
	value, conf := numericalPrediction(numCol(1, 2, 3, 4, 100), false)
	v, ok := value.(float64)
	require.True(t, ok)
	assert.InDelta(t, 3, v, 1.5)
	assert.GreaterOrEqual(t, conf, 0.0)
	assert.LessOrEqual(t, conf, 1.0)

	// Constant samples are fully confident.
	_, conf = numericalPrediction(numCol(7, 7, 7), false)
	assert.Equal(t, 1.0, conf)
}
