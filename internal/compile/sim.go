package compile

import (
	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// SimPlan is the materialization plan for a SIMULATE query. The engine
// has no table-valued user functions, so the executor draws the samples
// through the backend, stores them in a private temp table inside the
// current transaction, and reads the result back with plain SQL.
type SimPlan struct {
	Pop     *catalog.Population
	Gen     *catalog.Generator
	Models  []int // nil means all models
	Targets []*catalog.Variable
	Given   []SimConstraint
	Limit   parser.Expr // row count; evaluated against the bound parameters
}

// SimConstraint pins one variable during simulation.
type SimConstraint struct {
	Var   *catalog.Variable
	Value parser.Expr
}

// simulate resolves a SIMULATE phrase into a SimPlan. No SQL is emitted
// here; the executor substitutes the temp-table read once the draws
// exist.
func (c *compiler) simulate(n *parser.Simulate) error {
	q, err := c.resolveContext(ctxRow, n.Population, n.Generator, n.Models)
	if err != nil {
		return err
	}
	if err := q.requireGen("SIMULATE"); err != nil {
		return err
	}
	if n.Limit == nil {
		return bqlerr.Schemaf("SIMULATE requires LIMIT")
	}

	plan := &SimPlan{
		Pop:    q.pop,
		Gen:    q.gen,
		Models: n.Models.Indices(),
		Limit:  n.Limit,
	}
	for _, name := range n.Columns {
		v, err := q.variable(name)
		if err != nil {
			return err
		}
		plan.Targets = append(plan.Targets, v)
	}
	for _, g := range n.Given {
		v, err := q.variable(g.Name)
		if err != nil {
			return err
		}
		plan.Given = append(plan.Given, SimConstraint{Var: v, Value: g.Value})
	}
	c.out.Sim = plan
	return nil
}

// EvalConst evaluates a constant expression — literals, parameters, and
// sign — against the statement's bound parameters. SIMULATE constraints
// and limits are evaluated in the executor before the draws, so they
// cannot reference rows.
func EvalConst(e parser.Expr, positional []any, named map[string]any) (any, error) {
	switch n := e.(type) {
	case *parser.IntegerLit:
		return n.Value, nil
	case *parser.FloatLit:
		return n.Value, nil
	case *parser.StringLit:
		return n.Value, nil
	case *parser.NullLit:
		return nil, nil
	case *parser.BoolLit:
		if n.Value {
			return int64(1), nil
		}
		return int64(0), nil
	case *parser.Param:
		if n.Name != "" {
			v, ok := named[n.Name]
			if !ok {
				return nil, bqlerr.Schemaf("missing named parameter :%s", n.Name)
			}
			return v, nil
		}
		if n.Index < 1 || n.Index > len(positional) {
			return nil, bqlerr.Schemaf("missing parameter ?%d", n.Index)
		}
		return positional[n.Index-1], nil
	case *parser.Unary:
		v, err := EvalConst(n.X, positional, named)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "-":
			switch x := v.(type) {
			case int64:
				return -x, nil
			case float64:
				return -x, nil
			}
		case "+":
			return v, nil
		}
		return nil, bqlerr.Schemaf("cannot evaluate %s in a constant position", n.Op)
	default:
		return nil, bqlerr.Schemaf("expected a constant expression")
	}
}
