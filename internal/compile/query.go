package compile

import (
	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// query dispatches on the query phrase kind.
func (c *compiler) query(q parser.Query) error {
	switch n := q.(type) {
	case *parser.Select:
		return c.selectStmt(n)
	case *parser.Estimate:
		return c.estimate(n)
	case *parser.InferImplicit:
		return c.inferImplicit(n)
	case *parser.InferExplicit:
		return c.inferExplicit(n)
	case *parser.Simulate:
		return c.simulate(n)
	default:
		return bqlerr.Internalf("unknown query phrase %T", q)
	}
}

// ---------- SELECT ----------

// selectStmt compiles a plain SQL SELECT. No BQL context: any BQL
// operator below it is rejected when the emitter reaches it.
func (c *compiler) selectStmt(n *parser.Select) error {
	saved := c.ctx
	c.ctx = &qctx{kind: ctxNone}
	defer func() { c.ctx = saved }()

	c.word("SELECT")
	if n.Distinct {
		c.word("DISTINCT")
	}
	for i, item := range n.Columns {
		if i > 0 {
			c.punct(",")
		}
		if err := c.emitSelectItem(item); err != nil {
			return err
		}
	}
	if len(n.From) > 0 {
		c.word("FROM")
		for i, ref := range n.From {
			if i > 0 {
				c.punct(",")
			}
			if err := c.emitTableRef(ref); err != nil {
				return err
			}
		}
	}
	return c.emitTail(n.Where, nil, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

func (c *compiler) emitSelectItem(item parser.SelectItem) error {
	switch {
	case item.Star:
		c.word("*")
	case item.TableStar != "":
		c.ident(item.TableStar)
		c.punct(".*")
	default:
		if err := c.emitExpr(item.Expr); err != nil {
			return err
		}
		if item.Alias != "" {
			c.word("AS")
			c.ident(item.Alias)
		}
	}
	return nil
}

func (c *compiler) emitTableRef(ref parser.TableRef) error {
	switch t := ref.(type) {
	case *parser.TableName:
		c.ident(t.Name)
		if t.Alias != "" {
			c.word("AS")
			c.ident(t.Alias)
		}
	case *parser.SubqueryTable:
		c.open("(")
		if err := c.query(t.Query); err != nil {
			return err
		}
		c.punct(")")
		if t.Alias != "" {
			c.word("AS")
			c.ident(t.Alias)
		}
	}
	return nil
}

// emitTail emits WHERE/GROUP BY/HAVING/ORDER BY/LIMIT/OFFSET. A non-empty
// fixed predicate (context restriction) is ANDed in front of the user's
// WHERE.
func (c *compiler) emitTail(where parser.Expr, fixed []string, groupBy []parser.Expr, having parser.Expr, orderBy []parser.OrderingItem, limit, offset parser.Expr) error {
	if len(fixed) > 0 || where != nil {
		c.word("WHERE")
		for i, f := range fixed {
			if i > 0 {
				c.word("AND")
			}
			c.word(f)
		}
		if where != nil {
			if len(fixed) > 0 {
				c.word("AND")
				c.open("(")
				if err := c.emitExpr(where); err != nil {
					return err
				}
				c.punct(")")
			} else if err := c.emitExpr(where); err != nil {
				return err
			}
		}
	}
	if len(groupBy) > 0 {
		c.word("GROUP BY")
		for i, e := range groupBy {
			if i > 0 {
				c.punct(",")
			}
			if err := c.emitExpr(e); err != nil {
				return err
			}
		}
		if having != nil {
			c.word("HAVING")
			if err := c.emitExpr(having); err != nil {
				return err
			}
		}
	}
	if len(orderBy) > 0 {
		c.word("ORDER BY")
		for i, item := range orderBy {
			if i > 0 {
				c.punct(",")
			}
			if err := c.emitExpr(item.Expr); err != nil {
				return err
			}
			if item.Desc {
				c.word("DESC")
			}
		}
	}
	if limit != nil {
		c.word("LIMIT")
		if err := c.emitExpr(limit); err != nil {
			return err
		}
		if offset != nil {
			c.word("OFFSET")
			if err := c.emitExpr(offset); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---------- ESTIMATE ----------

// estimate compiles all five ESTIMATE header modes.
func (c *compiler) estimate(n *parser.Estimate) error {
	var kind ctxKind
	switch n.Mode {
	case parser.EstRows:
		kind = ctxRow
	case parser.EstPairwiseRows:
		kind = ctxPairRows
	case parser.EstColumns:
		kind = ctxCols
	case parser.EstPairwiseColumns:
		kind = ctxPairCols
	case parser.EstBy:
		kind = ctxConst
	}
	q, err := c.resolveContext(kind, n.Population, n.Generator, n.Models)
	if err != nil {
		return err
	}
	saved := c.ctx
	c.ctx = q
	defer func() { c.ctx = saved }()

	c.word("SELECT")
	if n.Distinct {
		c.word("DISTINCT")
	}
	for i, item := range n.Columns {
		if i > 0 {
			c.punct(",")
		}
		if err := c.emitEstimateItem(item); err != nil {
			return err
		}
	}

	var fixed []string
	switch kind {
	case ctxRow:
		c.word("FROM")
		c.ident(q.pop.TableName)
		c.word("AS t")
	case ctxPairRows:
		c.word("FROM")
		c.ident(q.pop.TableName)
		c.word("AS r0,")
		c.ident(q.pop.TableName)
		c.word("AS r1")
	case ctxCols:
		c.word("FROM bayesdb_variable AS v")
		fixed = append(fixed, "v.population_id = "+fmtInt(q.pop.ID))
	case ctxPairCols:
		c.word("FROM bayesdb_variable AS v0, bayesdb_variable AS v1")
		fixed = append(fixed,
			"v0.population_id = "+fmtInt(q.pop.ID),
			"v1.population_id = "+fmtInt(q.pop.ID))
		if len(n.For) > 0 {
			in, err := c.varnoList(q, n.For)
			if err != nil {
				return err
			}
			fixed = append(fixed, "v0.varno IN "+in, "v1.varno IN "+in)
		}
	case ctxConst:
		// no FROM: one output row
	}

	return c.emitTail(n.Where, fixed, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

// emitEstimateItem expands stars per context before falling back to
// ordinary item emission.
func (c *compiler) emitEstimateItem(item parser.SelectItem) error {
	q := c.ctx
	if item.Star {
		switch q.kind {
		case ctxRow:
			c.word("t.*")
		case ctxPairRows:
			c.word("r0._rowid_ AS rowid0, r1._rowid_ AS rowid1")
		case ctxCols:
			c.word("v.name AS name")
		case ctxPairCols:
			c.word("v0.name AS name0, v1.name AS name1")
		default:
			return q.wrongContext("*")
		}
		return nil
	}
	return c.emitSelectItem(item)
}

// varnoList renders an IN-list of variable ids for a FOR clause.
func (c *compiler) varnoList(q *qctx, names []string) (string, error) {
	out := "("
	for i, name := range names {
		v, err := q.variable(name)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += fmtInt(int64(v.Varno))
	}
	return out + ")", nil
}

// ---------- INFER ----------

// inferImplicit compiles INFER cols WITH CONFIDENCE k FROM p. Each
// column becomes a bql_infer call that yields the stored value when
// present, a confident prediction otherwise, else NULL. Columns in
// WHERE/GROUP BY/ORDER BY are not filled in.
func (c *compiler) inferImplicit(n *parser.InferImplicit) error {
	q, err := c.resolveContext(ctxRow, n.Population, n.Generator, n.Models)
	if err != nil {
		return err
	}
	if err := q.requireGen("INFER"); err != nil {
		return err
	}
	saved := c.ctx
	c.ctx = q
	defer func() { c.ctx = saved }()

	var targets []*catalog.Variable
	var aliases []string
	for _, item := range n.Columns {
		if item.Star {
			for _, v := range q.ordered {
				if v.Colno >= 0 {
					targets = append(targets, v)
					aliases = append(aliases, v.Name)
				}
			}
			continue
		}
		v, err := q.variable(item.Name)
		if err != nil {
			return err
		}
		if v.Colno < 0 {
			return bqlerr.Schemaf("cannot infer latent variable %q", v.Name)
		}
		alias := item.Alias
		if alias == "" {
			alias = v.Name
		}
		targets = append(targets, v)
		aliases = append(aliases, alias)
	}

	c.word("SELECT")
	for i, v := range targets {
		if i > 0 {
			c.punct(",")
		}
		if err := c.emitInferCall(q, v, n.Confidence); err != nil {
			return err
		}
		c.word("AS")
		c.ident(aliases[i])
	}
	c.word("FROM")
	c.ident(q.pop.TableName)
	c.word("AS t")
	return c.emitTail(n.Where, nil, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

// emitInferCall emits bql_infer(handle, gen, models, rowid, varno,
// stored, confidence, constraints...).
func (c *compiler) emitInferCall(q *qctx, v *catalog.Variable, conf parser.Expr) error {
	c.open("bql_infer(")
	c.write(fmtInt(c.env.Handle))
	c.arg(fmtInt(q.gen.ID))
	c.arg(q.models)
	c.arg("t._rowid_")
	c.arg(fmtInt(int64(v.Varno)))
	c.arg("t." + quoteIdent(v.Name))
	c.punct(",")
	if conf != nil {
		if err := c.emitExpr(conf); err != nil {
			return err
		}
	} else {
		c.word("0")
	}
	c.emitRowConstraints(q, v.Varno)
	c.punct(")")
	return nil
}

// emitRowConstraints appends ", k, varno, t.col, ..." pairs for every
// manifest variable except the excluded one. Values are dynamic: the
// engine feeds the current row's columns to the operator.
func (c *compiler) emitRowConstraints(q *qctx, exclude int) {
	var others []*catalog.Variable
	for _, v := range q.ordered {
		if v.Varno != exclude && v.Colno >= 0 {
			others = append(others, v)
		}
	}
	c.arg(fmtInt(int64(len(others))))
	for _, v := range others {
		c.arg(fmtInt(int64(v.Varno)))
		c.arg("t." + quoteIdent(v.Name))
	}
}

// inferExplicit compiles INFER EXPLICIT, where PREDICT items expand to a
// value projection and a confidence projection sharing one underlying
// draw (the operator layer memoizes the pair per statement).
func (c *compiler) inferExplicit(n *parser.InferExplicit) error {
	q, err := c.resolveContext(ctxRow, n.Population, n.Generator, n.Models)
	if err != nil {
		return err
	}
	saved := c.ctx
	c.ctx = q
	defer func() { c.ctx = saved }()

	c.word("SELECT")
	for i, item := range n.Columns {
		if i > 0 {
			c.punct(",")
		}
		if pr, ok := item.Expr.(*parser.PredictExpr); ok {
			if err := c.emitPredict(q, pr); err != nil {
				return err
			}
			continue
		}
		if err := c.emitEstimateItem(item); err != nil {
			return err
		}
	}
	c.word("FROM")
	c.ident(q.pop.TableName)
	c.word("AS t")
	return c.emitTail(n.Where, nil, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

func (c *compiler) emitPredict(q *qctx, pr *parser.PredictExpr) error {
	if err := q.requireGen("PREDICT"); err != nil {
		return err
	}
	v, err := q.variable(pr.Target)
	if err != nil {
		return err
	}
	samples := 0
	if pr.Samples != nil {
		samples = *pr.Samples
	}
	alias := pr.Alias
	if alias == "" {
		alias = v.Name
	}

	emit := func(fn, alias string) {
		c.open(fn + "(")
		c.write(fmtInt(c.env.Handle))
		c.arg(fmtInt(q.gen.ID))
		c.arg(q.models)
		c.arg("t._rowid_")
		c.arg(fmtInt(int64(v.Varno)))
		c.arg(fmtInt(int64(samples)))
		c.emitRowConstraints(q, v.Varno)
		c.punct(")")
		c.word("AS")
		c.ident(alias)
	}
	emit("bql_predict", alias)
	c.punct(",")
	emit("bql_predict_confidence", pr.ConfName)
	return nil
}
