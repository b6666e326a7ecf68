package bqlfn

import (
	"context"
	"database/sql/driver"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/inferlab/bqldb/pkg/backend"
)

// defaultPredictSamples is the total predictive sample size when USING n
// SAMPLES is absent.
const defaultPredictSamples = 100

// PredictMemo pairs bql_predict with bql_predict_confidence: both
// projections of one PREDICT must come from the same draw, so the first
// call computes the pair and the second reads it back. The memo lives
// for one statement; the executor resets it when the cursor closes.
type PredictMemo struct {
	mu sync.Mutex
	m  map[memoKey]memoVal
}

type memoKey struct {
	gen   int64
	rowid int64
	varno int
}

type memoVal struct {
	value      driver.Value
	confidence float64
}

// NewPredictMemo creates an empty memo.
func NewPredictMemo() *PredictMemo {
	return &PredictMemo{m: make(map[memoKey]memoVal)}
}

// Reset drops all memoized pairs.
func (pm *PredictMemo) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.m = make(map[memoKey]memoVal)
}

func (pm *PredictMemo) get(k memoKey) (memoVal, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	v, ok := pm.m[k]
	return v, ok
}

func (pm *PredictMemo) put(k memoKey, v memoVal) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.m[k] = v
}

// predictValue implements bql_predict(gen, models, rowid, varno,
// nsamples, constraints...).
func predictValue(h Host, args []driver.Value) (driver.Value, error) {
	value, _, err := predictArgs(h, args)
	return value, err
}

// predictConfidence implements bql_predict_confidence with the same
// argument layout.
func predictConfidence(h Host, args []driver.Value) (driver.Value, error) {
	_, confidence, err := predictArgs(h, args)
	if err != nil {
		return nil, err
	}
	return confidence, nil
}

func predictArgs(h Host, args []driver.Value) (driver.Value, float64, error) {
	_, genID, models, rest, err := opContext(h, args)
	if err != nil {
		return nil, 0, err
	}
	rowid, err := argInt(rest, 0, "rowid")
	if err != nil {
		return nil, 0, err
	}
	varno, err := argInt(rest, 1, "varno")
	if err != nil {
		return nil, 0, err
	}
	nsamples, err := argInt(rest, 2, "sample count")
	if err != nil {
		return nil, 0, err
	}
	cons, _, err := argVector(rest, 3, "constraint")
	if err != nil {
		return nil, 0, err
	}
	return predictPair(h, genID, models, rowid, int(varno), int(nsamples), cons)
}

// predictPair draws a predictive sample for (rowid, varno) conditioned
// on the row's other observed values and reduces it to a point
// prediction with a confidence, memoizing per statement.
func predictPair(h Host, genID int64, models []int, rowid int64, varno, nsamples int, cons []pair) (driver.Value, float64, error) {
	key := memoKey{gen: genID, rowid: rowid, varno: varno}
	if v, ok := h.Memo().get(key); ok {
		return v.value, v.confidence, nil
	}

	be, err := h.GenBackend(genID)
	if err != nil {
		return nil, 0, err
	}
	if nsamples <= 0 {
		nsamples = defaultPredictSamples
	}
	constraints := nonNullTargets(cons)

	// Simulation samples models uniformly: an equal share per selected
	// model, remainder to the first.
	per := nsamples / len(models)
	extra := nsamples % len(models)
	var samples []backend.Value
	for i, m := range models {
		n := per
		if i == 0 {
			n += extra
		}
		if n == 0 {
			continue
		}
		rows, err := be.SimulateJoint(context.Background(), genID, m, []int{varno}, constraints, n)
		if err != nil {
			return nil, 0, err
		}
		for _, row := range rows {
			samples = append(samples, row[0])
		}
	}
	if len(samples) == 0 {
		return nil, 0, errorf("empty predictive sample")
	}

	pd, err := h.GenPopData(genID)
	stattype := "numerical"
	if err == nil && pd != nil {
		if st, ok := pd.Stattypes[varno]; ok {
			stattype = st
		}
	}
	if !isNumericSample(samples) {
		stattype = "nominal"
	}

	var value driver.Value
	var confidence float64
	if stattype == "nominal" {
		value, confidence = nominalPrediction(samples)
	} else {
		value, confidence = numericalPrediction(samples, stattype == "cyclic")
	}

	h.Memo().put(key, memoVal{value: value, confidence: confidence})
	return value, confidence, nil
}

func isNumericSample(samples []backend.Value) bool {
	for _, s := range samples {
		switch s.(type) {
		case int64, float64:
			return true
		case nil:
			continue
		default:
			return false
		}
	}
	return false
}

// nominalPrediction returns the modal category and its posterior mass.
func nominalPrediction(samples []backend.Value) (driver.Value, float64) {
	counts := make(map[string]int)
	total := 0
	for _, s := range samples {
		if s == nil {
			continue
		}
		counts[categoryLabel(s)]++
		total++
	}
	if total == 0 {
		return nil, 0
	}
	best, bestN := "", -1
	for cat, n := range counts {
		if n > bestN || (n == bestN && cat < best) {
			best, bestN = cat, n
		}
	}
	return best, float64(bestN) / float64(total)
}

func categoryLabel(v backend.Value) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// numericalPrediction returns the sample median and one minus the
// normalized interquartile spread. Cyclic variables reduce on the
// circle: angles collapse to the mean direction modulo 2π.
func numericalPrediction(samples []backend.Value, cyclic bool) (driver.Value, float64) {
	xs := make([]float64, 0, len(samples))
	for _, s := range samples {
		switch v := s.(type) {
		case int64:
			xs = append(xs, float64(v))
		case float64:
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return nil, 0
	}
	if cyclic {
		sinSum, cosSum := 0.0, 0.0
		for _, x := range xs {
			sinSum += math.Sin(x)
			cosSum += math.Cos(x)
		}
		theta := math.Atan2(sinSum/float64(len(xs)), cosSum/float64(len(xs)))
		if theta < 0 {
			theta += 2 * math.Pi
		}
		r := math.Hypot(sinSum/float64(len(xs)), cosSum/float64(len(xs)))
		return theta, r // mean resultant length is a natural confidence
	}

	sort.Float64s(xs)
	median := stat.Quantile(0.5, stat.Empirical, xs, nil)
	if len(xs) == 1 || xs[len(xs)-1] == xs[0] {
		return median, 1
	}
	iqr := stat.Quantile(0.75, stat.Empirical, xs, nil) - stat.Quantile(0.25, stat.Empirical, xs, nil)
	spread := iqr / (xs[len(xs)-1] - xs[0])
	return median, math.Max(0, 1-spread)
}
