package parser

// Probabilistic query headers: ESTIMATE, INFER, SIMULATE.
//
// Grammar:
//
//	estimate → ESTIMATE [DISTINCT|ALL] select_list estimate_source
//	           [MODELED BY g] [using_models] tail
//	estimate_source → FROM p                         (one row context)
//	                | FROM PAIRWISE p                (two row contexts)
//	                | FROM VARIABLES OF p            (one column context)
//	                | FROM PAIRWISE VARIABLES OF p [FOR "(" names ")"]
//	                | BY p                           (constant context)
//	infer    → INFER EXPLICIT explicit_list FROM p [MODELED BY g] [using_models] tail
//	         | INFER infer_items [WITH CONFIDENCE expr] FROM p
//	           [MODELED BY g] [using_models] tail
//	simulate → SIMULATE names FROM p [MODELED BY g] [using_models]
//	           [GIVEN name = expr (, ...)] [LIMIT expr]
//	using_models → USING MODEL n | USING MODELS modelset

// parseEstimate parses an ESTIMATE query in any header mode.
func (p *Parser) parseEstimate() *Estimate {
	start := p.token.Pos
	p.expect(TOKEN_ESTIMATE)
	est := &Estimate{}
	if p.match(TOKEN_DISTINCT) {
		est.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}
	est.Columns = p.parseSelectList()

	switch {
	case p.match(TOKEN_BY):
		est.Mode = EstBy
		est.Population = p.parseName()
	case p.match(TOKEN_FROM):
		switch {
		case p.match(TOKEN_PAIRWISE):
			if p.match(TOKEN_VARIABLES) {
				p.expect(TOKEN_OF)
				est.Mode = EstPairwiseColumns
				est.Population = p.parseName()
			} else {
				est.Mode = EstPairwiseRows
				est.Population = p.parseName()
			}
		case p.match(TOKEN_VARIABLES):
			p.expect(TOKEN_OF)
			est.Mode = EstColumns
			est.Population = p.parseName()
		default:
			est.Mode = EstRows
			est.Population = p.parseName()
		}
	default:
		p.addError("expected FROM or BY in ESTIMATE")
		return est
	}

	est.Generator, est.Models = p.parseModeledBy()

	if est.Mode == EstPairwiseColumns && p.match(TOKEN_FOR) {
		withParen := p.match(TOKEN_LPAREN)
		est.For = p.parseNameList()
		if withParen {
			p.expect(TOKEN_RPAREN)
		}
	}

	p.parseSelectTail(
		&est.Where, &est.GroupBy, &est.Having,
		&est.OrderBy, &est.Limit, &est.Offset,
	)
	est.NodeInfo = p.spanFrom(start)
	return est
}

// parseModeledBy parses [MODELED BY g] [USING MODEL n | USING MODELS set].
func (p *Parser) parseModeledBy() (string, *ModelSet) {
	var gen string
	var models *ModelSet
	if p.match(TOKEN_MODELED) {
		p.expect(TOKEN_BY)
		gen = p.parseName()
	}
	if p.check(TOKEN_USING) && (p.checkPeek(TOKEN_MODEL) || p.checkPeek(TOKEN_MODELS)) {
		p.nextToken()
		if p.match(TOKEN_MODEL) {
			n := p.parseInteger()
			models = &ModelSet{Ranges: []ModelRange{{Lo: n, Hi: n}}}
		} else {
			p.expect(TOKEN_MODELS)
			models = p.parseModelSet()
		}
	}
	return gen, models
}

// parseInfer parses implicit and explicit INFER queries.
func (p *Parser) parseInfer() Query {
	start := p.token.Pos
	p.expect(TOKEN_INFER)

	if p.match(TOKEN_EXPLICIT) {
		inf := &InferExplicit{}
		inf.Columns = p.parseInferExplicitList()
		p.expect(TOKEN_FROM)
		inf.Population = p.parseName()
		inf.Generator, inf.Models = p.parseModeledBy()
		p.parseSelectTail(
			&inf.Where, &inf.GroupBy, &inf.Having,
			&inf.OrderBy, &inf.Limit, &inf.Offset,
		)
		inf.NodeInfo = p.spanFrom(start)
		return inf
	}

	inf := &InferImplicit{}
	inf.Columns = p.parseInferItems()
	if p.match(TOKEN_WITH) {
		p.expect(TOKEN_CONFIDENCE)
		inf.Confidence = p.parseExpression()
	}
	p.expect(TOKEN_FROM)
	inf.Population = p.parseName()
	inf.Generator, inf.Models = p.parseModeledBy()
	p.parseSelectTail(
		&inf.Where, &inf.GroupBy, &inf.Having,
		&inf.OrderBy, &inf.Limit, &inf.Offset,
	)
	inf.NodeInfo = p.spanFrom(start)
	return inf
}

// parseInferItems parses the implicit INFER column list: * or names.
func (p *Parser) parseInferItems() []InferItem {
	var items []InferItem
	for {
		if p.match(TOKEN_STAR) {
			items = append(items, InferItem{Star: true})
		} else {
			item := InferItem{Name: p.parseName()}
			if p.match(TOKEN_AS) {
				item.Alias = p.parseName()
			}
			items = append(items, item)
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// parseInferExplicitList parses the INFER EXPLICIT projection, where
// PREDICT items are legal alongside ordinary select items.
func (p *Parser) parseInferExplicitList() []SelectItem {
	var items []SelectItem
	for {
		if p.check(TOKEN_PREDICT) {
			items = append(items, SelectItem{Expr: p.parsePredict()})
		} else {
			items = append(items, p.parseSelectItem())
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// parsePredict parses PREDICT v [AS name] CONFIDENCE confname
// [USING n SAMPLES].
func (p *Parser) parsePredict() Expr {
	p.expect(TOKEN_PREDICT)
	pr := &PredictExpr{Target: p.parseName()}
	if p.match(TOKEN_AS) {
		pr.Alias = p.parseName()
	}
	p.expect(TOKEN_CONFIDENCE)
	pr.ConfName = p.parseName()
	if p.check(TOKEN_USING) && p.checkPeek(TOKEN_INTEGER) {
		p.nextToken()
		n := p.parseInteger()
		p.expect(TOKEN_SAMPLES)
		pr.Samples = &n
	}
	return pr
}

// parseSimulate parses a SIMULATE query.
func (p *Parser) parseSimulate() *Simulate {
	start := p.token.Pos
	p.expect(TOKEN_SIMULATE)
	sim := &Simulate{Columns: p.parseNameList()}
	p.expect(TOKEN_FROM)
	sim.Population = p.parseName()
	sim.Generator, sim.Models = p.parseModeledBy()
	if p.match(TOKEN_GIVEN) {
		sim.Given = p.parseConstraintList()
	}
	if p.match(TOKEN_LIMIT) {
		sim.Limit = p.parseExpression()
	}
	if p.check(TOKEN_USING) && p.checkPeek(TOKEN_INTEGER) {
		p.nextToken()
		n := p.parseInteger()
		p.expect(TOKEN_ACCURACY)
		sim.Accuracy = &n
	}
	sim.NodeInfo = p.spanFrom(start)
	return sim
}

// parseConstraintList parses name = expr pairs.
func (p *Parser) parseConstraintList() []Constraint {
	var cs []Constraint
	for {
		name := p.parseName()
		p.expect(TOKEN_EQ)
		cs = append(cs, Constraint{Name: name, Value: p.parseExpression()})
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return cs
}
