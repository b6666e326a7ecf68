package bqlfn

import (
	"database/sql/driver"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// CORRELATION and CORRELATION PVALUE are data statistics: they read the
// population's stored column data, not any generator's models. The
// method is chosen by the pair of statistical types:
//
//	numerical × numerical → Pearson r, two-sided t test
//	nominal   × nominal   → Cramér's V, chi-squared test
//	nominal   × numerical → one-way ANOVA R², F test
//
// Count and magnitude variables correlate as numerical; cyclic
// variables have no meaningful linear correlation and are refused.

// columnCorrelation implements bql_column_correlation(pop, v0, v1).
func columnCorrelation(h Host, args []driver.Value) (driver.Value, error) {
	r, _, err := correlationArgs(h, args)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// columnCorrelationPvalue implements bql_column_correlation_pvalue.
func columnCorrelationPvalue(h Host, args []driver.Value) (driver.Value, error) {
	_, p, err := correlationArgs(h, args)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func correlationArgs(h Host, args []driver.Value) (driver.Value, driver.Value, error) {
	popID, err := argInt(args, 0, "population")
	if err != nil {
		return nil, nil, err
	}
	v0, err := argInt(args, 1, "varno")
	if err != nil {
		return nil, nil, err
	}
	v1, err := argInt(args, 2, "varno")
	if err != nil {
		return nil, nil, err
	}
	pd, err := h.PopData(popID)
	if err != nil {
		return nil, nil, err
	}
	return correlate(pd, int(v0), int(v1))
}

// correlate dispatches on the stattype pair and computes (r, pvalue).
// Degenerate data (too few complete pairs, zero variance) yields NULLs.
func correlate(pd *PopData, v0, v1 int) (driver.Value, driver.Value, error) {
	st0, ok0 := pd.Stattypes[v0]
	st1, ok1 := pd.Stattypes[v1]
	if !ok0 || !ok1 {
		return nil, nil, bqlerr.Schemaf("unknown variable in correlation")
	}
	num := func(st string) bool {
		return st == "numerical" || st == "count" || st == "magnitude"
	}
	if st0 == "cyclic" || st1 == "cyclic" {
		return nil, nil, &bqlerr.IncompatibleStattypeError{
			Operator: "CORRELATION",
			Col0:     "varno", Type0: st0,
			Col1: "varno", Type1: st1,
		}
	}
	if v0 == v1 {
		return 1.0, 0.0, nil
	}

	c0, c1 := pd.Cols[v0], pd.Cols[v1]
	switch {
	case num(st0) && num(st1):
		return pearson(c0, c1)
	case st0 == "nominal" && st1 == "nominal":
		return cramerV(c0, c1)
	case st0 == "nominal" && num(st1):
		return anova(c0, c1)
	case num(st0) && st1 == "nominal":
		return anova(c1, c0)
	default:
		return nil, nil, &bqlerr.IncompatibleStattypeError{
			Operator: "CORRELATION",
			Col0:     "varno", Type0: st0,
			Col1: "varno", Type1: st1,
		}
	}
}

// completeNumPairs drops rows where either side is missing or
// non-numeric.
func completeNumPairs(c0, c1 []backend.Value) ([]float64, []float64) {
	var xs, ys []float64
	for i := range c0 {
		if i >= len(c1) {
			break
		}
		x, okx := asFloat(c0[i])
		y, oky := asFloat(c1[i])
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return xs, ys
}

func asFloat(v backend.Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func asLabel(v backend.Value) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}

// pearson computes Pearson's r with a two-sided t test.
func pearson(c0, c1 []backend.Value) (driver.Value, driver.Value, error) {
	xs, ys := completeNumPairs(c0, c1)
	n := len(xs)
	if n < 2 {
		return nil, nil, nil
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return nil, nil, nil
	}
	if n < 3 || math.Abs(r) >= 1 {
		var p driver.Value
		if math.Abs(r) >= 1 {
			p = 0.0
		}
		return r, p, nil
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * dist.CDF(-math.Abs(t))
	return r, p, nil
}

// cramerV computes Cramér's V with a chi-squared test on the
// contingency table.
func cramerV(c0, c1 []backend.Value) (driver.Value, driver.Value, error) {
	type cell struct{ a, b string }
	counts := make(map[cell]float64)
	rowTotals := make(map[string]float64)
	colTotals := make(map[string]float64)
	n := 0.0
	for i := range c0 {
		if i >= len(c1) {
			break
		}
		a, oka := asLabel(c0[i])
		b, okb := asLabel(c1[i])
		if !oka || !okb {
			continue
		}
		counts[cell{a, b}]++
		rowTotals[a]++
		colTotals[b]++
		n++
	}
	r, c := len(rowTotals), len(colTotals)
	if n == 0 || r < 2 || c < 2 {
		return nil, nil, nil
	}
	chi2 := 0.0
	for a, ra := range rowTotals {
		for b, cb := range colTotals {
			expected := ra * cb / n
			observed := counts[cell{a, b}]
			d := observed - expected
			chi2 += d * d / expected
		}
	}
	k := math.Min(float64(r-1), float64(c-1))
	v := math.Sqrt(chi2 / (n * k))
	dof := float64((r - 1) * (c - 1))
	dist := distuv.ChiSquared{K: dof}
	p := 1 - dist.CDF(chi2)
	return v, p, nil
}

// anova computes the one-way ANOVA R² of a numerical column grouped by a
// nominal column, with an F test.
func anova(nominal, numeric []backend.Value) (driver.Value, driver.Value, error) {
	groups := make(map[string][]float64)
	var all []float64
	for i := range nominal {
		if i >= len(numeric) {
			break
		}
		lbl, okl := asLabel(nominal[i])
		x, okx := asFloat(numeric[i])
		if !okl || !okx {
			continue
		}
		groups[lbl] = append(groups[lbl], x)
		all = append(all, x)
	}
	n := len(all)
	k := len(groups)
	if n < 3 || k < 2 || n <= k {
		return nil, nil, nil
	}
	grand := stat.Mean(all, nil)
	ssBetween, ssWithin := 0.0, 0.0
	for _, xs := range groups {
		m := stat.Mean(xs, nil)
		ssBetween += float64(len(xs)) * (m - grand) * (m - grand)
		for _, x := range xs {
			ssWithin += (x - m) * (x - m)
		}
	}
	total := ssBetween + ssWithin
	if total == 0 {
		return nil, nil, nil
	}
	r2 := ssBetween / total
	if ssWithin == 0 {
		return r2, 0.0, nil
	}
	f := (ssBetween / float64(k-1)) / (ssWithin / float64(n-k))
	dist := distuv.F{D1: float64(k - 1), D2: float64(n - k)}
	p := 1 - dist.CDF(f)
	return r2, p, nil
}
