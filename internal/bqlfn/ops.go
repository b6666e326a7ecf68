package bqlfn

import (
	"database/sql/driver"

	"github.com/inferlab/bqldb/pkg/backend"
)

// Operator argument layouts. Every operator takes (gen, models) after
// the handle that dispatch() already consumed; constraint vectors are
// length-prefixed (varno, value) runs so arities stay self-describing.

// opContext decodes the (gen, models) prefix shared by the model
// operators and resolves backend and model set.
func opContext(h Host, args []driver.Value) (backend.Backend, int64, []int, []driver.Value, error) {
	genID, err := argInt(args, 0, "generator")
	if err != nil {
		return nil, 0, nil, nil, err
	}
	set, explicit, err := argModels(args, 1)
	if err != nil {
		return nil, 0, nil, nil, err
	}
	be, err := h.GenBackend(genID)
	if err != nil {
		return nil, 0, nil, nil, err
	}
	models, err := selectModels(h, genID, set, explicit)
	if err != nil {
		return nil, 0, nil, nil, err
	}
	return be, genID, models, args[2:], nil
}

func toTargets(ps []pair) []backend.Target {
	out := make([]backend.Target, len(ps))
	for i, p := range ps {
		out[i] = backend.Target{Varno: p.varno, Value: p.value}
	}
	return out
}

// rowProb implements bql_row_prob(gen, models, rowid, varno, stored,
// constraints...): the predictive probability density of the stored
// value. NULL stored values yield NULL.
func rowProb(h Host, args []driver.Value) (driver.Value, error) {
	be, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	if _, err := argInt(rest, 0, "rowid"); err != nil {
		return nil, err
	}
	varno, err := argInt(rest, 1, "varno")
	if err != nil {
		return nil, err
	}
	if len(rest) < 3 {
		return nil, errorf("missing stored value")
	}
	stored := rest[2]
	if stored == nil {
		return nil, nil
	}
	cons, _, err := argVector(rest, 3, "constraint")
	if err != nil {
		return nil, err
	}
	targets := []backend.Target{{Varno: int(varno), Value: stored}}
	constraints := nonNullTargets(cons)
	return meanDensity(models, func(m int) (float64, error) {
		return be.LogpdfJoint(genID, m, targets, constraints)
	})
}

// nonNullTargets drops constraints whose row value is NULL: an
// unobserved cell cannot condition anything.
func nonNullTargets(ps []pair) []backend.Target {
	out := make([]backend.Target, 0, len(ps))
	for _, p := range ps {
		if p.value != nil {
			out = append(out, backend.Target{Varno: p.varno, Value: p.value})
		}
	}
	return out
}

// pdfJoint implements bql_pdf_joint(gen, models, targets..., constraints...).
func pdfJoint(h Host, args []driver.Value) (driver.Value, error) {
	be, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	targets, next, err := argVector(rest, 0, "target")
	if err != nil {
		return nil, err
	}
	cons, _, err := argVector(rest, next, "constraint")
	if err != nil {
		return nil, err
	}
	return meanDensity(models, func(m int) (float64, error) {
		return be.LogpdfJoint(genID, m, toTargets(targets), nonNullTargets(cons))
	})
}

// pdfVar implements bql_pdf_var(gen, models, varno, value): the marginal
// density of a value under one column.
func pdfVar(h Host, args []driver.Value) (driver.Value, error) {
	be, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	varno, err := argInt(rest, 0, "varno")
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 {
		return nil, errorf("missing value")
	}
	value := rest[1]
	if value == nil {
		return nil, nil
	}
	targets := []backend.Target{{Varno: int(varno), Value: value}}
	return meanDensity(models, func(m int) (float64, error) {
		return be.LogpdfJoint(genID, m, targets, nil)
	})
}

// rowSimilarity implements bql_row_similarity(gen, models, r0, r1,
// context varno). A NULL row (similarity TO matched nothing) yields
// NULL.
func rowSimilarity(h Host, args []driver.Value) (driver.Value, error) {
	be, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	r0, err := argInt(rest, 0, "rowid")
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 {
		return nil, errorf("missing rowid")
	}
	if rest[1] == nil {
		return nil, nil
	}
	r1, err := argInt(rest, 1, "rowid")
	if err != nil {
		return nil, err
	}
	varno, err := argInt(rest, 2, "context varno")
	if err != nil {
		return nil, err
	}
	return meanOverModels(models, func(m int) (float64, error) {
		return be.RowSimilarity(genID, m, r0, r1, int(varno))
	})
}

// columnDepProb implements bql_column_depprob(gen, models, v0, v1).
func columnDepProb(h Host, args []driver.Value) (driver.Value, error) {
	be, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	v0, err := argInt(rest, 0, "varno")
	if err != nil {
		return nil, err
	}
	v1, err := argInt(rest, 1, "varno")
	if err != nil {
		return nil, err
	}
	return meanOverModels(models, func(m int) (float64, error) {
		return be.ColumnDependenceProbability(genID, m, int(v0), int(v1))
	})
}

// defaultMISamples bounds the Monte Carlo effort when USING n SAMPLES is
// absent.
const defaultMISamples = 100

// columnMutInf implements bql_column_mutinf(gen, models, v0, v1,
// nsamples|NULL, constraints...).
func columnMutInf(h Host, args []driver.Value) (driver.Value, error) {
	be, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	v0, err := argInt(rest, 0, "varno")
	if err != nil {
		return nil, err
	}
	v1, err := argInt(rest, 1, "varno")
	if err != nil {
		return nil, err
	}
	nsamples := int64(defaultMISamples)
	if len(rest) > 2 && rest[2] != nil {
		nsamples, err = argInt(rest, 2, "sample count")
		if err != nil {
			return nil, err
		}
	}
	cons, _, err := argVector(rest, 3, "constraint")
	if err != nil {
		return nil, err
	}
	return meanOverModels(models, func(m int) (float64, error) {
		return be.ColumnMutualInformation(genID, m, int(v0), int(v1),
			nonNullTargets(cons), int(nsamples))
	})
}

// inferValue implements bql_infer(gen, models, rowid, varno, stored,
// confidence, constraints...): the stored value when present, else a
// prediction if its confidence meets the threshold, else NULL.
func inferValue(h Host, args []driver.Value) (driver.Value, error) {
	_, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, err
	}
	rowid, err := argInt(rest, 0, "rowid")
	if err != nil {
		return nil, err
	}
	varno, err := argInt(rest, 1, "varno")
	if err != nil {
		return nil, err
	}
	if len(rest) < 3 {
		return nil, errorf("missing stored value")
	}
	if stored := rest[2]; stored != nil {
		return stored, nil
	}
	threshold, err := argFloat(rest, 3, "confidence")
	if err != nil {
		return nil, err
	}
	cons, _, err := argVector(rest, 4, "constraint")
	if err != nil {
		return nil, err
	}
	value, confidence, err := predictPair(h, genID, models, rowid, int(varno), 0, cons)
	if err != nil {
		return nil, err
	}
	if confidence >= threshold {
		return value, nil
	}
	return nil, nil
}

// argFloat reads a numeric argument as float64.
func argFloat(args []driver.Value, i int, what string) (float64, error) {
	if i >= len(args) {
		return 0, errorf("missing %s argument", what)
	}
	switch v := args[i].(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, errorf("bad %s argument %v", what, args[i])
	}
}
