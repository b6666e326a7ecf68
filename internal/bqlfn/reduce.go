package bqlfn

import (
	"math"
	"strconv"
	"strings"

	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// selectModels resolves the model-set argument to concrete indices.
func selectModels(h Host, genID int64, set string, explicit bool) ([]int, error) {
	if !explicit {
		models, err := h.GenModels(genID)
		if err != nil {
			return nil, err
		}
		if len(models) == 0 {
			return nil, bqlerr.Schemaf("generator %d has no models; INITIALIZE first", genID)
		}
		return models, nil
	}
	parts := strings.Split(set, ",")
	models := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errorf("bad model set %q", set)
		}
		models = append(models, n)
	}
	return models, nil
}

// meanOverModels averages a per-model quantity arithmetically.
func meanOverModels(models []int, f func(modelno int) (float64, error)) (float64, error) {
	total := 0.0
	for _, m := range models {
		v, err := f(m)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total / float64(len(models)), nil
}

// logMeanExp computes log(mean(exp(xs))) stably: the arithmetic mean of
// probabilities given their logs.
func logMeanExp(xs []float64) float64 {
	maxv := math.Inf(-1)
	for _, x := range xs {
		if x > maxv {
			maxv = x
		}
	}
	if math.IsInf(maxv, -1) {
		return math.Inf(-1)
	}
	total := 0.0
	for _, x := range xs {
		total += math.Exp(x - maxv)
	}
	return maxv + math.Log(total/float64(len(xs)))
}

// meanDensity averages exp(logpdf) across models via logMeanExp.
func meanDensity(models []int, logpdf func(modelno int) (float64, error)) (float64, error) {
	logs := make([]float64, 0, len(models))
	for _, m := range models {
		lp, err := logpdf(m)
		if err != nil {
			return 0, err
		}
		logs = append(logs, lp)
	}
	return math.Exp(logMeanExp(logs)), nil
}
