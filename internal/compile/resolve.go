package compile

import (
	"strconv"
	"strings"

	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// ctxKind is the implied context fixed by a query header.
type ctxKind int

const (
	ctxNone     ctxKind = iota // plain SELECT: no BQL operators at all
	ctxRow                     // ESTIMATE FROM p, INFER: one implied row
	ctxPairRows                // ESTIMATE FROM PAIRWISE p: two implied rows
	ctxCols                    // ESTIMATE FROM VARIABLES OF p: one implied column
	ctxPairCols                // ESTIMATE FROM PAIRWISE VARIABLES OF p
	ctxConst                   // ESTIMATE BY p: no implied row or column
)

func (k ctxKind) String() string {
	switch k {
	case ctxRow:
		return "row"
	case ctxPairRows:
		return "pairwise-row"
	case ctxCols:
		return "column"
	case ctxPairCols:
		return "pairwise-column"
	case ctxConst:
		return "constant"
	default:
		return "plain SQL"
	}
}

// qctx is the resolved context of the query being compiled.
type qctx struct {
	kind ctxKind

	pop    *catalog.Population
	gen    *catalog.Generator
	models string // SQL literal: NULL for all, or a quoted index list

	vars    map[string]*catalog.Variable // lowercased name → variable
	ordered []*catalog.Variable
	cols    map[string]bool // lowercased base-table column names (row contexts)
}

// resolveContext builds the query context: population, generator
// (explicit, table default, or sole generator), model set, and the
// variable table.
func (c *compiler) resolveContext(kind ctxKind, popName, genName string, models *parser.ModelSet) (*qctx, error) {
	env := c.env
	pop, err := env.Cat.PopulationByName(env.Ctx, env.Ex, popName)
	if err != nil {
		return nil, err
	}

	gen, err := c.resolveGenerator(pop, genName)
	if err != nil {
		return nil, err
	}

	modelLit, err := c.resolveModels(gen, models)
	if err != nil {
		return nil, err
	}

	vars, err := env.Cat.Variables(env.Ctx, env.Ex, pop.ID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*catalog.Variable, len(vars))
	for _, v := range vars {
		byName[strings.ToLower(v.Name)] = v
	}

	q := &qctx{
		kind:    kind,
		pop:     pop,
		gen:     gen,
		models:  modelLit,
		vars:    byName,
		ordered: vars,
		cols:    make(map[string]bool),
	}
	if kind == ctxRow || kind == ctxPairRows {
		cols, err := env.Cat.Columns(env.Ctx, env.Ex, pop.TableID)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			q.cols[strings.ToLower(col)] = true
		}
	}
	if gen != nil {
		c.addGenerator(gen.ID)
	}
	return q, nil
}

// resolveGenerator applies the MODELED BY rules: explicit name, else the
// base table's default, else the population's sole generator. Several
// generators with no default is ambiguous; none at all resolves to nil
// (only data statistics will be legal).
func (c *compiler) resolveGenerator(pop *catalog.Population, genName string) (*catalog.Generator, error) {
	env := c.env
	if genName != "" {
		gen, err := env.Cat.GeneratorByName(env.Ctx, env.Ex, genName)
		if err != nil {
			return nil, err
		}
		if gen.PopulationID != pop.ID {
			return nil, bqlerr.Schemaf("generator %q does not model population %q", genName, pop.Name)
		}
		return gen, nil
	}

	tbl, err := env.Cat.TableByName(env.Ctx, env.Ex, pop.TableName)
	if err == nil && tbl.DefaultGeneratorID.Valid {
		gen, err := env.Cat.GeneratorByID(env.Ctx, env.Ex, tbl.DefaultGeneratorID.Int64)
		if err != nil {
			return nil, err
		}
		if gen.PopulationID == pop.ID {
			return gen, nil
		}
	}

	gens, err := env.Cat.GeneratorsForPopulation(env.Ctx, env.Ex, pop.ID)
	if err != nil {
		return nil, err
	}
	switch len(gens) {
	case 0:
		return nil, nil
	case 1:
		return gens[0], nil
	default:
		return nil, &bqlerr.AmbiguousDefaultError{Population: pop.Name}
	}
}

// resolveModels validates USING MODELS against the catalog and renders
// the model-set literal: NULL means all models.
func (c *compiler) resolveModels(gen *catalog.Generator, models *parser.ModelSet) (string, error) {
	if models == nil {
		return "NULL", nil
	}
	if gen == nil {
		return "", bqlerr.Schemaf("USING MODELS requires a generator")
	}
	have, err := c.env.Cat.Models(c.env.Ctx, c.env.Ex, gen.ID)
	if err != nil {
		return "", err
	}
	known := make(map[int]bool, len(have))
	for _, m := range have {
		known[m.Modelno] = true
	}
	indices := models.Indices()
	parts := make([]string, 0, len(indices))
	for _, n := range indices {
		if !known[n] {
			return "", bqlerr.Schemaf("no model %d in generator %q", n, gen.Name)
		}
		parts = append(parts, strconv.Itoa(n))
	}
	return quoteString(strings.Join(parts, ",")), nil
}

// variable resolves a name to a population variable.
func (q *qctx) variable(name string) (*catalog.Variable, error) {
	v, ok := q.vars[strings.ToLower(name)]
	if !ok {
		return nil, &bqlerr.NameError{Kind: bqlerr.KindVariable, Name: name}
	}
	return v, nil
}

// requireGen guards operators that need a generator.
func (q *qctx) requireGen(op string) error {
	if q.gen == nil {
		return bqlerr.Schemaf("%s requires a generator for population %q", op, q.pop.Name)
	}
	return nil
}

// wrongContext builds the error for an operator used where it cannot be.
func (q *qctx) wrongContext(op string) error {
	return &bqlerr.WrongContextError{Operator: op, Context: q.kind.String()}
}

// numericStattype reports whether a stattype correlates as numerical.
func numericStattype(st string) bool {
	switch st {
	case "numerical", "count", "magnitude":
		return true
	}
	return false
}

// checkCorrelStattypes rejects pairs CORRELATION cannot relate. Cyclic
// variables have no meaningful linear correlation.
func checkCorrelStattypes(op string, v0, v1 *catalog.Variable) error {
	ok := func(st string) bool { return numericStattype(st) || st == "nominal" }
	if !ok(v0.Stattype) || !ok(v1.Stattype) {
		return &bqlerr.IncompatibleStattypeError{
			Operator: op,
			Col0:     v0.Name, Type0: v0.Stattype,
			Col1: v1.Name, Type1: v1.Stattype,
		}
	}
	return nil
}

// fmtInt renders an integer literal.
func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

