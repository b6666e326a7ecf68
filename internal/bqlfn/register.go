package bqlfn

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// opFunc is the shape of a model-operator implementation after handle
// resolution.
type opFunc func(h Host, args []driver.Value) (driver.Value, error)

// operators is the fixed operator table. Initialization is init-time
// only; the engine's function registry is process-wide.
var operators = map[string]opFunc{
	"bql_row_prob":                  rowProb,
	"bql_row_similarity":            rowSimilarity,
	"bql_pdf_joint":                 pdfJoint,
	"bql_pdf_var":                   pdfVar,
	"bql_column_depprob":            columnDepProb,
	"bql_column_mutinf":             columnMutInf,
	"bql_column_correlation":        columnCorrelation,
	"bql_column_correlation_pvalue": columnCorrelationPvalue,
	"bql_infer":                     inferValue,
	"bql_predict":                   predictValue,
	"bql_predict_confidence":        predictConfidence,
}

var registerOnce sync.Once

// Register installs the model-operator functions with the engine. Safe
// to call from every connection open; registration happens once per
// process.
func Register() {
	registerOnce.Do(func() {
		for name, fn := range operators {
			fn := fn
			sqlite.MustRegisterScalarFunction(name, -1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				return dispatch(fn, args)
			})
		}
	})
}

// dispatch resolves the leading connection handle and runs the operator.
func dispatch(fn opFunc, args []driver.Value) (driver.Value, error) {
	if len(args) < 1 {
		return nil, errorf("operator called without connection handle")
	}
	handle, ok := args[0].(int64)
	if !ok {
		return nil, errorf("bad connection handle %v", args[0])
	}
	h, err := host(handle)
	if err != nil {
		return nil, err
	}
	if h.Interrupted() {
		return nil, bqlerr.ErrCancelled
	}
	return fn(h, args[1:])
}

func errorf(format string, args ...any) error {
	return bqlerr.Internalf("model operator: %s", fmt.Sprintf(format, args...))
}

// ---------- argument decoding ----------

// argInt reads an integer argument.
func argInt(args []driver.Value, i int, what string) (int64, error) {
	if i >= len(args) {
		return 0, errorf("missing %s argument", what)
	}
	v, ok := args[i].(int64)
	if !ok {
		return 0, errorf("bad %s argument %v", what, args[i])
	}
	return v, nil
}

// argModels reads the model-set argument: NULL means all models.
func argModels(args []driver.Value, i int) (string, bool, error) {
	if i >= len(args) {
		return "", false, errorf("missing model-set argument")
	}
	switch v := args[i].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	default:
		return "", false, errorf("bad model-set argument %v", args[i])
	}
}

// argVector decodes a length-prefixed (varno, value) run starting at i,
// returning the pairs and the index after them.
func argVector(args []driver.Value, i int, what string) ([]pair, int, error) {
	n, err := argInt(args, i, what+" count")
	if err != nil {
		return nil, 0, err
	}
	i++
	out := make([]pair, 0, n)
	for k := int64(0); k < n; k++ {
		varno, err := argInt(args, i, what+" varno")
		if err != nil {
			return nil, 0, err
		}
		if i+1 >= len(args) {
			return nil, 0, errorf("missing %s value", what)
		}
		out = append(out, pair{varno: int(varno), value: args[i+1]})
		i += 2
	}
	return out, i, nil
}

// pair is one (varno, value) entry of a constraint vector.
type pair struct {
	varno int
	value driver.Value
}
