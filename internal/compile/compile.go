// Package compile lowers BQL queries to SQL over the underlying store,
// augmented with calls to the registered model-operator functions.
//
// The compiler walks the AST top-down, emitting SQL text into a buffer.
// Identifiers it does not control are double-quoted; values it introduces
// itself (catalog ids, the connection handle, model-set strings) are
// emitted as literals, so user parameters (?N, :name) pass through with
// their original indices untouched.
//
// BQL operators become calls against the operator functions registered
// with the engine (see internal/bqlfn). Each call starts with the
// connection handle so the operator can find its owning connection, then
// the generator id and the model-set literal.
//
// Estimators that appear in several clauses are emitted literally in each
// place; the engine's planner does not dedupe user-defined functions and
// this compiler deliberately performs no common-subexpression
// elimination. The one exception is PREDICT, whose value and confidence
// projections must come from one underlying draw; the operator layer
// memoizes that pair per statement.
package compile

import (
	"context"
	"strings"

	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/pkg/format"
	"github.com/inferlab/bqldb/pkg/parser"
)

// Env carries what compilation needs from the connection.
type Env struct {
	Ctx        context.Context
	Ex         catalog.Executor
	Cat        *catalog.Store
	Handle     int64 // connection handle baked into operator calls
	WizardMode bool
}

// Output is a compiled query.
type Output struct {
	// SQL is the emitted statement. For SIMULATE it is filled in by the
	// executor after materialization.
	SQL string

	// Generators referenced by operator calls; the executor ensures each
	// one's backend state is loaded before stepping the statement.
	Generators []int64

	// Populations whose column data the operator layer needs cached
	// (CORRELATION and friends are data statistics).
	NeedsData []int64

	// Sim is non-nil when the query is a SIMULATE; the executor
	// materializes the draws into a private temp table and rewrites SQL
	// to read from it.
	Sim *SimPlan
}

// Query compiles any query phrase.
func Query(env *Env, q parser.Query) (*Output, error) {
	c := &compiler{env: env, out: &Output{}}
	if err := c.query(q); err != nil {
		return nil, err
	}
	c.out.SQL = c.sb.String()
	return c.out, nil
}

// compiler accumulates emitted SQL and bookkeeping.
type compiler struct {
	env *Env
	out *Output
	sb  strings.Builder

	needsSep bool
	ctx      *qctx // current query context; nil outside query bodies
}

// ---------- emit helpers ----------

func (c *compiler) write(s string) {
	c.sb.WriteString(s)
	c.needsSep = true
}

func (c *compiler) word(s string) {
	if c.needsSep {
		c.sb.WriteByte(' ')
	}
	c.write(s)
}

func (c *compiler) punct(s string) {
	c.write(s)
}

func (c *compiler) open(s string) {
	c.word(s)
	c.needsSep = false
}

func (c *compiler) ident(name string) {
	c.word(quoteIdent(name))
}

func quoteIdent(name string) string {
	return format.QuoteIdent(name)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// arg emits ", s" — the next argument of a call in progress.
func (c *compiler) arg(s string) {
	c.punct(",")
	c.word(s)
}

// addGenerator records a generator reference once.
func (c *compiler) addGenerator(id int64) {
	for _, g := range c.out.Generators {
		if g == id {
			return
		}
	}
	c.out.Generators = append(c.out.Generators, id)
}

// addNeedsData records a population data dependency once.
func (c *compiler) addNeedsData(id int64) {
	for _, p := range c.out.NeedsData {
		if p == id {
			return
		}
	}
	c.out.NeedsData = append(c.out.NeedsData, id)
}
