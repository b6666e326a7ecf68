package parser

// Expression precedence parsing, following SQLite's chain:
//
//  1. OR
//  2. AND
//  3. NOT
//  4. Equality: =, ==, !=, <>, IS [NOT], [NOT] IN, [NOT] BETWEEN,
//     [NOT] LIKE/GLOB/REGEXP/MATCH, ISNULL-style tests
//  5. Ordering: <, <=, >, >=
//  6. Bitwise: <<, >>, &, |
//  7. Addition: +, -
//  8. Multiplication: *, /, %
//  9. Concatenation: ||
// 10. COLLATE
// 11. Unary: -, +, ~
// 12. Primary: literals, refs, calls, parens, CASE, CAST, EXISTS, subqueries

// parseExpression parses an expression.
func (p *Parser) parseExpression() Expr {
	return p.parseOrExpr()
}

// parseOrExpr parses OR expressions.
func (p *Parser) parseOrExpr() Expr {
	left := p.parseAndExpr()
	for p.match(TOKEN_OR) {
		right := p.parseAndExpr()
		left = &Binary{Op: "OR", L: left, R: right}
	}
	return left
}

// parseAndExpr parses AND expressions.
func (p *Parser) parseAndExpr() Expr {
	left := p.parseNotExpr()
	for p.match(TOKEN_AND) {
		right := p.parseNotExpr()
		left = &Binary{Op: "AND", L: left, R: right}
	}
	return left
}

// parseNotExpr parses NOT expressions.
func (p *Parser) parseNotExpr() Expr {
	if p.match(TOKEN_NOT) {
		return &Unary{Op: "NOT", X: p.parseNotExpr()}
	}
	return p.parseEquality()
}

// parseEquality parses equality-level operators and the special
// comparison forms (IS, IN, BETWEEN, LIKE, NULL tests).
func (p *Parser) parseEquality() Expr {
	left := p.parseOrdering()

	for {
		switch {
		case p.check(TOKEN_EQ):
			p.nextToken()
			left = &Binary{Op: "=", L: left, R: p.parseOrdering()}
		case p.check(TOKEN_NE):
			p.nextToken()
			left = &Binary{Op: "!=", L: left, R: p.parseOrdering()}
		case p.check(TOKEN_IS):
			p.nextToken()
			not := p.match(TOKEN_NOT)
			if p.match(TOKEN_NULL) {
				left = &IsNull{X: left, Not: not}
			} else {
				op := "IS"
				if not {
					op = "IS NOT"
				}
				left = &Binary{Op: op, L: left, R: p.parseOrdering()}
			}
		case p.check(TOKEN_IN):
			p.nextToken()
			left = p.parseInTail(left, false)
		case p.check(TOKEN_BETWEEN):
			p.nextToken()
			left = p.parseBetweenTail(left, false)
		case p.check(TOKEN_LIKE), p.check(TOKEN_GLOB), p.check(TOKEN_REGEXP), p.check(TOKEN_MATCH):
			op := p.token.Type.String()
			p.nextToken()
			left = p.parseLikeTail(left, false, op)
		case p.check(TOKEN_NOT) && p.checkPeek(TOKEN_IN):
			p.nextToken()
			p.nextToken()
			left = p.parseInTail(left, true)
		case p.check(TOKEN_NOT) && p.checkPeek(TOKEN_BETWEEN):
			p.nextToken()
			p.nextToken()
			left = p.parseBetweenTail(left, true)
		case p.check(TOKEN_NOT) &&
			(p.checkPeek(TOKEN_LIKE) || p.checkPeek(TOKEN_GLOB) ||
				p.checkPeek(TOKEN_REGEXP) || p.checkPeek(TOKEN_MATCH)):
			p.nextToken()
			op := p.token.Type.String()
			p.nextToken()
			left = p.parseLikeTail(left, true, op)
		default:
			return left
		}
	}
}

// parseInTail parses the remainder of x [NOT] IN ...
func (p *Parser) parseInTail(x Expr, not bool) Expr {
	p.expect(TOKEN_LPAREN)
	in := &InExpr{X: x, Not: not}
	if p.check(TOKEN_SELECT) || p.check(TOKEN_ESTIMATE) ||
		p.check(TOKEN_INFER) || p.check(TOKEN_SIMULATE) {
		in.Query = p.parseQuery()
	} else if !p.check(TOKEN_RPAREN) {
		in.List = p.parseExpressionList()
	}
	p.expect(TOKEN_RPAREN)
	return in
}

// parseBetweenTail parses the remainder of x [NOT] BETWEEN lo AND hi.
func (p *Parser) parseBetweenTail(x Expr, not bool) Expr {
	lo := p.parseOrdering()
	p.expect(TOKEN_AND)
	hi := p.parseOrdering()
	return &BetweenExpr{X: x, Not: not, Lo: lo, Hi: hi}
}

// parseLikeTail parses the remainder of x [NOT] LIKE pattern [ESCAPE e].
func (p *Parser) parseLikeTail(x Expr, not bool, op string) Expr {
	like := &LikeExpr{X: x, Not: not, Op: op, Pattern: p.parseOrdering()}
	if p.match(TOKEN_ESCAPE) {
		like.Escape = p.parseOrdering()
	}
	return like
}

// parseOrdering parses <, <=, >, >=.
func (p *Parser) parseOrdering() Expr {
	left := p.parseBitwise()
	for {
		var op string
		switch p.token.Type {
		case TOKEN_LT:
			op = "<"
		case TOKEN_LE:
			op = "<="
		case TOKEN_GT:
			op = ">"
		case TOKEN_GE:
			op = ">="
		default:
			return left
		}
		p.nextToken()
		left = &Binary{Op: op, L: left, R: p.parseBitwise()}
	}
}

// parseBitwise parses <<, >>, &, |.
func (p *Parser) parseBitwise() Expr {
	left := p.parseAddition()
	for {
		var op string
		switch p.token.Type {
		case TOKEN_LSHIFT:
			op = "<<"
		case TOKEN_RSHIFT:
			op = ">>"
		case TOKEN_AMP:
			op = "&"
		case TOKEN_PIPE:
			op = "|"
		default:
			return left
		}
		p.nextToken()
		left = &Binary{Op: op, L: left, R: p.parseAddition()}
	}
}

// parseAddition parses + and -.
func (p *Parser) parseAddition() Expr {
	left := p.parseMultiplication()
	for {
		var op string
		switch p.token.Type {
		case TOKEN_PLUS:
			op = "+"
		case TOKEN_MINUS:
			op = "-"
		default:
			return left
		}
		p.nextToken()
		left = &Binary{Op: op, L: left, R: p.parseMultiplication()}
	}
}

// parseMultiplication parses *, /, %.
func (p *Parser) parseMultiplication() Expr {
	left := p.parseConcat()
	for {
		var op string
		switch p.token.Type {
		case TOKEN_STAR:
			op = "*"
		case TOKEN_SLASH:
			op = "/"
		case TOKEN_MOD:
			op = "%"
		default:
			return left
		}
		p.nextToken()
		left = &Binary{Op: op, L: left, R: p.parseConcat()}
	}
}

// parseConcat parses ||.
func (p *Parser) parseConcat() Expr {
	left := p.parseCollate()
	for p.match(TOKEN_DPIPE) {
		left = &Binary{Op: "||", L: left, R: p.parseCollate()}
	}
	return left
}

// parseCollate parses expr COLLATE name.
func (p *Parser) parseCollate() Expr {
	left := p.parseUnary()
	for p.match(TOKEN_COLLATE) {
		left = &Collate{X: left, Collation: p.parseName()}
	}
	return left
}

// parseUnary parses prefix -, +, ~.
func (p *Parser) parseUnary() Expr {
	switch p.token.Type {
	case TOKEN_MINUS:
		p.nextToken()
		return &Unary{Op: "-", X: p.parseUnary()}
	case TOKEN_PLUS:
		p.nextToken()
		return &Unary{Op: "+", X: p.parseUnary()}
	case TOKEN_TILDE:
		p.nextToken()
		return &Unary{Op: "~", X: p.parseUnary()}
	}
	return p.parsePrimary()
}
