package parser

import "fmt"

// BQL operator productions, recognized at the primary-expression level.
//
// Grammar:
//
//	bqlfn → PREDICTIVE PROBABILITY OF v [GIVEN "(" names ")"]
//	      | PROBABILITY [DENSITY] OF VALUE expr
//	      | PROBABILITY [DENSITY] OF v "=" expr ("," v "=" expr)*
//	        [GIVEN "(" constraints ")"]
//	      | PROBABILITY [DENSITY] OF "(" constraints ")" [GIVEN "(" constraints ")"]
//	      | SIMILARITY [TO "(" expr ")"] [IN [THE] CONTEXT OF v]
//	      | DEPENDENCE PROBABILITY [[OF v] WITH v]
//	      | MUTUAL INFORMATION [[OF v] WITH v] [GIVEN "(" constraints ")"]
//	        [USING n SAMPLES]
//	      | CORRELATION [PVALUE] [[OF v] WITH v]
//
// Whether an operator is legal in the surrounding query context is the
// compiler's concern; here each form parses wherever an expression does.

// parseBQLOperator dispatches on the leading keyword.
func (p *Parser) parseBQLOperator() Expr {
	switch p.token.Type {
	case TOKEN_PREDICTIVE:
		return p.parsePredProb()
	case TOKEN_PROBABILITY:
		return p.parseProbDensity()
	case TOKEN_SIMILARITY:
		return p.parseSimilarity()
	case TOKEN_DEPENDENCE:
		p.nextToken()
		p.expect(TOKEN_PROBABILITY)
		d := &DepProb{}
		d.Of, d.With = p.parseOfWith()
		return d
	case TOKEN_MUTUAL:
		return p.parseMutInf()
	case TOKEN_CORRELATION:
		p.nextToken()
		c := &CorrelExpr{Pvalue: p.match(TOKEN_PVALUE)}
		c.Of, c.With = p.parseOfWith()
		return c
	}
	p.addError(fmt.Sprintf("unexpected token %s in BQL operator", p.token.Type))
	return &NullLit{}
}

// parsePredProb parses PREDICTIVE PROBABILITY OF v [GIVEN (names)].
// GIVEN names other variables of the same row; their stored values
// condition the density.
func (p *Parser) parsePredProb() Expr {
	p.expect(TOKEN_PREDICTIVE)
	p.expect(TOKEN_PROBABILITY)
	p.expect(TOKEN_OF)
	pr := &PredProb{Target: p.parseName()}
	if p.match(TOKEN_GIVEN) {
		p.expect(TOKEN_LPAREN)
		pr.Given = p.parseNameList()
		p.expect(TOKEN_RPAREN)
	}
	return pr
}

// parseProbDensity parses the PROBABILITY [DENSITY] OF family.
func (p *Parser) parseProbDensity() Expr {
	p.expect(TOKEN_PROBABILITY)
	p.match(TOKEN_DENSITY)
	p.expect(TOKEN_OF)

	// PROBABILITY DENSITY OF VALUE e: column context
	if p.match(TOKEN_VALUE) {
		return &ProbOfValue{X: p.parseExpression()}
	}

	d := &ProbDensity{}
	if p.match(TOKEN_LPAREN) {
		d.Targets = p.parseConstraintList()
		p.expect(TOKEN_RPAREN)
	} else {
		name := p.parseName()
		p.expect(TOKEN_EQ)
		d.Targets = append(d.Targets, Constraint{Name: name, Value: p.parseDensityValue()})
		for p.check(TOKEN_COMMA) && p.peekStartsConstraint() {
			p.nextToken()
			name := p.parseName()
			p.expect(TOKEN_EQ)
			d.Targets = append(d.Targets, Constraint{Name: name, Value: p.parseDensityValue()})
		}
	}
	if p.match(TOKEN_GIVEN) {
		p.expect(TOKEN_LPAREN)
		d.Given = p.parseConstraintList()
		p.expect(TOKEN_RPAREN)
	}
	return d
}

// parseDensityValue parses the value expression of a density target.
// It stops below the equality level so a following "," or GIVEN is not
// swallowed into the value.
func (p *Parser) parseDensityValue() Expr {
	return p.parseOrdering()
}

// peekStartsConstraint reports whether the tokens after a comma look like
// another "name = expr" target rather than the next select item.
func (p *Parser) peekStartsConstraint() bool {
	if !p.checkPeek(TOKEN_IDENT) && !p.nameableKeyword(p.peek.Type) {
		return false
	}
	return p.checkPeek2(TOKEN_EQ)
}

// parseSimilarity parses SIMILARITY [TO (expr)] [IN [THE] CONTEXT OF v].
func (p *Parser) parseSimilarity() Expr {
	p.expect(TOKEN_SIMILARITY)
	s := &Similarity{}
	if p.match(TOKEN_TO) {
		p.expect(TOKEN_LPAREN)
		s.To = p.parseExpression()
		p.expect(TOKEN_RPAREN)
	}
	if p.match(TOKEN_IN) {
		p.match(TOKEN_THE)
		p.expect(TOKEN_CONTEXT)
		p.expect(TOKEN_OF)
		s.Context = p.parseName()
	}
	return s
}

// parseMutInf parses MUTUAL INFORMATION with optional columns,
// constraints, and sample count.
func (p *Parser) parseMutInf() Expr {
	p.expect(TOKEN_MUTUAL)
	p.expect(TOKEN_INFORMATION)
	m := &MutInf{}
	m.Of, m.With = p.parseOfWith()
	if p.match(TOKEN_GIVEN) {
		p.expect(TOKEN_LPAREN)
		m.Given = p.parseConstraintList()
		p.expect(TOKEN_RPAREN)
	}
	if p.check(TOKEN_USING) && p.checkPeek(TOKEN_INTEGER) {
		p.nextToken()
		n := p.parseInteger()
		p.expect(TOKEN_SAMPLES)
		m.Samples = &n
	}
	return m
}

// parseOfWith parses the optional [[OF v] WITH w] column pair shared by
// the column operators. Both empty means the pairwise form.
func (p *Parser) parseOfWith() (string, string) {
	var of, with string
	if p.match(TOKEN_OF) {
		of = p.parseName()
		p.expect(TOKEN_WITH)
		with = p.parseName()
	} else if p.match(TOKEN_WITH) {
		with = p.parseName()
	}
	return of, with
}
