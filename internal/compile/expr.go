package compile

import (
	"strconv"

	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// emitExpr lowers one expression. SQL forms are emitted structurally;
// BQL operator forms are rewritten into model-operator calls according
// to the current query context.
func (c *compiler) emitExpr(e parser.Expr) error {
	switch n := e.(type) {
	case *parser.IntegerLit:
		c.word(n.Text)
	case *parser.FloatLit:
		c.word(n.Text)
	case *parser.StringLit:
		c.word(quoteString(n.Value))
	case *parser.NullLit:
		c.word("NULL")
	case *parser.BoolLit:
		if n.Value {
			c.word("1")
		} else {
			c.word("0")
		}
	case *parser.ColRef:
		return c.emitColRef(n)
	case *parser.Param:
		if n.Name != "" {
			c.word(":" + n.Name)
		} else {
			c.word("?" + strconv.Itoa(n.Index))
		}

	case *parser.Unary:
		if n.Op == "NOT" {
			c.word("NOT")
			return c.emitSub(n.X, 3)
		}
		c.word(n.Op)
		c.needsSep = false
		return c.emitSub(n.X, 11)
	case *parser.Binary:
		prec := sqlBinaryPrec(n.Op)
		if err := c.emitSub(n.L, prec-1); err != nil {
			return err
		}
		c.word(n.Op)
		return c.emitSub(n.R, prec)
	case *parser.Collate:
		if err := c.emitSub(n.X, 9); err != nil {
			return err
		}
		c.word("COLLATE")
		c.word(n.Collation)

	case *parser.InExpr:
		if err := c.emitSub(n.X, 4); err != nil {
			return err
		}
		if n.Not {
			c.word("NOT")
		}
		c.word("IN")
		c.open("(")
		if n.Query != nil {
			if err := c.query(n.Query); err != nil {
				return err
			}
		} else {
			for i, e := range n.List {
				if i > 0 {
					c.punct(",")
				}
				if err := c.emitExpr(e); err != nil {
					return err
				}
			}
		}
		c.punct(")")
	case *parser.BetweenExpr:
		if err := c.emitSub(n.X, 4); err != nil {
			return err
		}
		if n.Not {
			c.word("NOT")
		}
		c.word("BETWEEN")
		if err := c.emitSub(n.Lo, 4); err != nil {
			return err
		}
		c.word("AND")
		if err := c.emitSub(n.Hi, 4); err != nil {
			return err
		}
	case *parser.LikeExpr:
		if err := c.emitSub(n.X, 4); err != nil {
			return err
		}
		if n.Not {
			c.word("NOT")
		}
		c.word(n.Op)
		if err := c.emitSub(n.Pattern, 4); err != nil {
			return err
		}
		if n.Escape != nil {
			c.word("ESCAPE")
			if err := c.emitSub(n.Escape, 4); err != nil {
				return err
			}
		}
	case *parser.IsNull:
		if err := c.emitSub(n.X, 4); err != nil {
			return err
		}
		if n.Not {
			c.word("IS NOT NULL")
		} else {
			c.word("IS NULL")
		}

	case *parser.CaseExpr:
		c.word("CASE")
		if n.Operand != nil {
			if err := c.emitExpr(n.Operand); err != nil {
				return err
			}
		}
		for _, w := range n.Whens {
			c.word("WHEN")
			if err := c.emitExpr(w.Cond); err != nil {
				return err
			}
			c.word("THEN")
			if err := c.emitExpr(w.Then); err != nil {
				return err
			}
		}
		if n.Else != nil {
			c.word("ELSE")
			if err := c.emitExpr(n.Else); err != nil {
				return err
			}
		}
		c.word("END")
	case *parser.CastExpr:
		c.open("CAST(")
		if err := c.emitExpr(n.X); err != nil {
			return err
		}
		c.word("AS")
		c.word(n.Type)
		c.punct(")")
	case *parser.ExistsExpr:
		if n.Not {
			c.word("NOT")
		}
		c.word("EXISTS")
		c.open("(")
		if err := c.query(n.Query); err != nil {
			return err
		}
		c.punct(")")
	case *parser.SubqueryExpr:
		c.open("(")
		if err := c.query(n.Query); err != nil {
			return err
		}
		c.punct(")")
	case *parser.FuncCall:
		c.open(n.Name + "(")
		if n.Star {
			c.write("*")
		} else {
			if n.Distinct {
				c.write("DISTINCT ")
			}
			for i, a := range n.Args {
				if i > 0 {
					c.punct(",")
				}
				if err := c.emitExpr(a); err != nil {
					return err
				}
			}
		}
		c.punct(")")

	case *parser.PredProb:
		return c.emitPredProb(n)
	case *parser.ProbDensity:
		return c.emitProbDensity(n)
	case *parser.ProbOfValue:
		return c.emitProbOfValue(n)
	case *parser.Similarity:
		return c.emitSimilarity(n)
	case *parser.DepProb:
		return c.emitColumnOp("DEPENDENCE PROBABILITY", "bql_column_depprob", n.Of, n.With, nil, nil)
	case *parser.MutInf:
		return c.emitColumnOp("MUTUAL INFORMATION", "bql_column_mutinf", n.Of, n.With, n.Given, n.Samples)
	case *parser.CorrelExpr:
		fn := "bql_column_correlation"
		if n.Pvalue {
			fn += "_pvalue"
		}
		return c.emitCorrelation(fn, n)
	case *parser.PredictExpr:
		return &bqlerr.WrongContextError{Operator: "PREDICT", Context: "outside INFER EXPLICIT"}

	default:
		return bqlerr.Internalf("unknown expression node %T", e)
	}
	return nil
}

// emitColRef resolves a column reference against the current context.
func (c *compiler) emitColRef(n *parser.ColRef) error {
	q := c.ctx
	if n.Table != "" {
		c.ident(n.Table)
		c.punct(".")
		c.write(quoteIdent(n.Name))
		return nil
	}
	switch q.kind {
	case ctxRow:
		if q.isBaseColumn(n.Name) {
			c.word("t.")
			c.needsSep = false
			c.write(quoteIdent(n.Name))
			return nil
		}
	case ctxPairRows:
		switch lower(n.Name) {
		case "rowid0":
			c.word("r0._rowid_")
			return nil
		case "rowid1":
			c.word("r1._rowid_")
			return nil
		}
	case ctxCols:
		switch lower(n.Name) {
		case "name":
			c.word("v.name")
			return nil
		case "stattype":
			c.word("v.stattype")
			return nil
		case "varno":
			c.word("v.varno")
			return nil
		}
	case ctxPairCols:
		switch lower(n.Name) {
		case "name0":
			c.word("v0.name")
			return nil
		case "name1":
			c.word("v1.name")
			return nil
		case "stattype0":
			c.word("v0.stattype")
			return nil
		case "stattype1":
			c.word("v1.stattype")
			return nil
		}
	}
	// Projection aliases and anything the engine itself can resolve.
	c.ident(n.Name)
	return nil
}

// ---------- BQL operator lowering ----------

// opHead emits the common (handle, gen, models prefix of an operator
// call.
func (c *compiler) opHead(fn string) {
	q := c.ctx
	c.open(fn + "(")
	c.write(fmtInt(c.env.Handle))
	c.arg(fmtInt(q.gen.ID))
	c.arg(q.models)
}

// emitPredProb lowers PREDICTIVE PROBABILITY OF v [GIVEN (...)]:
// bql_row_prob(h, g, m, rowid, varno, stored, k, varno_i, stored_i ...).
// The implicit row context supplies every value.
func (c *compiler) emitPredProb(n *parser.PredProb) error {
	q := c.ctx
	if q.kind != ctxRow {
		return q.wrongContext("PREDICTIVE PROBABILITY")
	}
	if err := q.requireGen("PREDICTIVE PROBABILITY"); err != nil {
		return err
	}
	v, err := q.variable(n.Target)
	if err != nil {
		return err
	}
	if v.Colno < 0 {
		return bqlerr.Schemaf("predictive probability of latent variable %q", v.Name)
	}
	c.opHead("bql_row_prob")
	c.arg("t._rowid_")
	c.arg(fmtInt(int64(v.Varno)))
	c.arg("t." + quoteIdent(v.Name))
	c.arg(fmtInt(int64(len(n.Given))))
	for _, name := range n.Given {
		w, err := q.variable(name)
		if err != nil {
			return err
		}
		if w.Varno == v.Varno {
			return bqlerr.Schemaf("variable %q cannot condition itself", name)
		}
		c.arg(fmtInt(int64(w.Varno)))
		c.arg("t." + quoteIdent(w.Name))
	}
	c.punct(")")
	return nil
}

// emitProbDensity lowers PROBABILITY DENSITY OF (v = e, ...) GIVEN (...):
// bql_pdf_joint(h, g, m, nt, varno, e ..., nc, varno, e ...).
func (c *compiler) emitProbDensity(n *parser.ProbDensity) error {
	q := c.ctx
	if q.kind == ctxNone {
		return q.wrongContext("PROBABILITY DENSITY")
	}
	if err := q.requireGen("PROBABILITY DENSITY"); err != nil {
		return err
	}
	c.opHead("bql_pdf_joint")
	if err := c.emitConstraintVector(n.Targets); err != nil {
		return err
	}
	if err := c.emitConstraintVector(n.Given); err != nil {
		return err
	}
	c.punct(")")
	return nil
}

// emitConstraintVector appends ", k, varno, expr ..." for a GIVEN-style
// list. Values may be arbitrary expressions, including per-row ones.
func (c *compiler) emitConstraintVector(cs []parser.Constraint) error {
	q := c.ctx
	c.arg(fmtInt(int64(len(cs))))
	for _, cons := range cs {
		v, err := q.variable(cons.Name)
		if err != nil {
			return err
		}
		c.arg(fmtInt(int64(v.Varno)))
		c.punct(",")
		if err := c.emitExpr(cons.Value); err != nil {
			return err
		}
	}
	return nil
}

// emitProbOfValue lowers PROBABILITY DENSITY OF VALUE e: the density of
// e under the context column's marginal.
func (c *compiler) emitProbOfValue(n *parser.ProbOfValue) error {
	q := c.ctx
	if q.kind != ctxCols && q.kind != ctxPairCols {
		return q.wrongContext("PROBABILITY DENSITY OF VALUE")
	}
	if err := q.requireGen("PROBABILITY DENSITY OF VALUE"); err != nil {
		return err
	}
	c.opHead("bql_pdf_var")
	if q.kind == ctxCols {
		c.arg("v.varno")
	} else {
		c.arg("v0.varno")
	}
	c.punct(",")
	if err := c.emitExpr(n.X); err != nil {
		return err
	}
	c.punct(")")
	return nil
}

// emitSimilarity lowers the two similarity forms. With TO, the condition
// becomes a correlated subquery picking the first matching rowid.
func (c *compiler) emitSimilarity(n *parser.Similarity) error {
	q := c.ctx
	if n.Context == "" {
		return bqlerr.Schemaf("SIMILARITY requires IN THE CONTEXT OF")
	}
	v, err := q.variable(n.Context)
	if err != nil {
		return err
	}
	if err := q.requireGen("SIMILARITY"); err != nil {
		return err
	}
	switch {
	case n.To != nil:
		if q.kind != ctxRow {
			return q.wrongContext("SIMILARITY TO")
		}
		c.opHead("bql_row_similarity")
		c.arg("t._rowid_")
		c.arg("(SELECT _rowid_ FROM " + quoteIdent(q.pop.TableName) + " WHERE")
		saved := c.ctx
		c.ctx = &qctx{kind: ctxNone}
		err := c.emitExpr(n.To)
		c.ctx = saved
		if err != nil {
			return err
		}
		c.word("ORDER BY _rowid_ LIMIT 1)")
		c.arg(fmtInt(int64(v.Varno)))
		c.punct(")")
	default:
		if q.kind != ctxPairRows {
			return q.wrongContext("SIMILARITY")
		}
		c.opHead("bql_row_similarity")
		c.arg("r0._rowid_")
		c.arg("r1._rowid_")
		c.arg(fmtInt(int64(v.Varno)))
		c.punct(")")
	}
	return nil
}

// emitColumnOp lowers DEPENDENCE PROBABILITY and MUTUAL INFORMATION in
// their explicit, half-implicit, and pairwise forms.
func (c *compiler) emitColumnOp(op, fn string, of, with string, given []parser.Constraint, samples *int) error {
	q := c.ctx
	if err := q.requireGen(op); err != nil {
		return err
	}
	v0, v1, err := c.columnPair(op, of, with)
	if err != nil {
		return err
	}
	c.opHead(fn)
	c.arg(v0)
	c.arg(v1)
	if fn == "bql_column_mutinf" {
		if samples != nil {
			c.arg(fmtInt(int64(*samples)))
		} else {
			c.arg("NULL")
		}
		if err := c.emitConstraintVector(given); err != nil {
			return err
		}
	}
	c.punct(")")
	return nil
}

// columnPair resolves the [[OF v] WITH w] forms to the two column-id SQL
// expressions for the current context.
func (c *compiler) columnPair(op, of, with string) (string, string, error) {
	q := c.ctx
	switch {
	case of != "" && with != "":
		if q.kind == ctxNone {
			return "", "", q.wrongContext(op)
		}
		a, err := q.variable(of)
		if err != nil {
			return "", "", err
		}
		b, err := q.variable(with)
		if err != nil {
			return "", "", err
		}
		return fmtInt(int64(a.Varno)), fmtInt(int64(b.Varno)), nil
	case with != "":
		if q.kind != ctxCols {
			return "", "", q.wrongContext(op + " WITH")
		}
		b, err := q.variable(with)
		if err != nil {
			return "", "", err
		}
		return "v.varno", fmtInt(int64(b.Varno)), nil
	default:
		if q.kind != ctxPairCols {
			return "", "", q.wrongContext(op)
		}
		return "v0.varno", "v1.varno", nil
	}
}

// emitCorrelation lowers CORRELATION [PVALUE]. Correlation is a data
// statistic: the call carries the population, not a generator, and the
// executor prefetches the population's column data.
func (c *compiler) emitCorrelation(fn string, n *parser.CorrelExpr) error {
	q := c.ctx
	op := "CORRELATION"
	if n.Pvalue {
		op = "CORRELATION PVALUE"
	}
	if n.Of != "" && n.With != "" {
		a, err := q.variable(n.Of)
		if err != nil {
			return err
		}
		b, err := q.variable(n.With)
		if err != nil {
			return err
		}
		if err := checkCorrelStattypes(op, a, b); err != nil {
			return err
		}
	}
	v0, v1, err := c.columnPair(op, n.Of, n.With)
	if err != nil {
		return err
	}
	c.addNeedsData(q.pop.ID)
	c.open(fn + "(")
	c.write(fmtInt(c.env.Handle))
	c.arg(fmtInt(q.pop.ID))
	c.arg(v0)
	c.arg(v1)
	c.punct(")")
	return nil
}

func lower(s string) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		if 'A' <= out[i] && out[i] <= 'Z' {
			out[i] += 'a' - 'A'
		}
	}
	return string(out)
}

// isBaseColumn reports whether name is a column of the context's base
// table.
func (q *qctx) isBaseColumn(name string) bool {
	return q.cols[lower(name)]
}

// SQL operator precedence mirroring the parser's chain; used to emit
// minimal parentheses so pure-SQL input round-trips unchanged.
func sqlPrec(e parser.Expr) int {
	switch n := e.(type) {
	case *parser.Binary:
		return sqlBinaryPrec(n.Op)
	case *parser.Unary:
		if n.Op == "NOT" {
			return 3
		}
		return 11
	case *parser.InExpr, *parser.BetweenExpr, *parser.LikeExpr, *parser.IsNull:
		return 4
	case *parser.Collate:
		return 10
	default:
		return 12
	}
}

func sqlBinaryPrec(op string) int {
	switch op {
	case "OR":
		return 1
	case "AND":
		return 2
	case "=", "!=", "IS", "IS NOT":
		return 4
	case "<", "<=", ">", ">=":
		return 5
	case "<<", ">>", "&", "|":
		return 6
	case "+", "-":
		return 7
	case "*", "/", "%":
		return 8
	case "||":
		return 9
	}
	return 4
}

// emitSub emits a child expression, parenthesizing when its precedence
// is at or below the bound.
func (c *compiler) emitSub(e parser.Expr, bound int) error {
	if sqlPrec(e) <= bound {
		c.open("(")
		if err := c.emitExpr(e); err != nil {
			return err
		}
		c.punct(")")
		return nil
	}
	return c.emitExpr(e)
}
