package parser

import "fmt"

// Model-definition phrases: populations, generators, models, analysis.
//
// Grammar:
//
//	create_pop  → CREATE POPULATION [IF NOT EXISTS] p FOR t WITH SCHEMA
//	              "(" pop_clause ((","|";") pop_clause)* ")"
//	pop_clause  → MODEL names AS stattype
//	            | IGNORE names
//	            | GUESS STATTYPES OF ("(" "*" ")" | "(" names ")" | names)
//	alter_pop   → ALTER POPULATION p pop_cmd ("," pop_cmd)*
//	pop_cmd     → ADD VARIABLE name [stattype]
//	            | SET STATTYPE[S] OF names TO stattype
//	create_gen  → CREATE GENERATOR [IF NOT EXISTS] g FOR p USING backend
//	              ["(" gen_clause ("," gen_clause)* ")"]
//	initialize  → INITIALIZE n MODEL[S] [IF NOT EXISTS] FOR g
//	analyze     → ANALYZE g [MODELS modelset] FOR n unit
//	              [CHECKPOINT n unit] ["(" program ")"]
//	drop_models → DROP MODELS [modelset] FROM g
//	modelset    → range ("," range)*;  range → n | n "-" n
//
// Generator schema clauses and ANALYZE programs are captured as raw text,
// balanced on parentheses, and forwarded opaquely to the backend.

// parseCreatePopulation parses from the POPULATION keyword onward.
func (p *Parser) parseCreatePopulation(start Position) Phrase {
	p.expect(TOKEN_POPULATION)
	ifNotExists := p.parseIfNotExists()
	name := p.parseName()
	p.expect(TOKEN_FOR)
	table := p.parseName()
	p.expect(TOKEN_WITH)
	p.expect(TOKEN_SCHEMA)
	p.expect(TOKEN_LPAREN)

	var clauses []PopSchemaClause
	for {
		clauses = append(clauses, p.parsePopSchemaClause())
		if !p.match(TOKEN_COMMA) && !p.match(TOKEN_SEMI) {
			break
		}
		if p.check(TOKEN_RPAREN) {
			break // trailing separator
		}
	}
	p.expect(TOKEN_RPAREN)

	return &CreatePopulation{
		NodeInfo:    p.spanFrom(start),
		IfNotExists: ifNotExists,
		Name:        name,
		Table:       table,
		Schema:      clauses,
	}
}

// parsePopSchemaClause parses one population schema clause.
func (p *Parser) parsePopSchemaClause() PopSchemaClause {
	// clauseNames stops before a comma that opens the next clause, so
	// "IGNORE c, GUESS ..." does not read GUESS as a column name.
	clauseNames := func() []string {
		names := []string{p.parseName()}
		for p.check(TOKEN_COMMA) && !p.checkPeek(TOKEN_MODEL) &&
			!p.checkPeek(TOKEN_IGNORE) && !p.checkPeek(TOKEN_GUESS) {
			p.nextToken()
			names = append(names, p.parseName())
		}
		return names
	}
	switch p.token.Type {
	case TOKEN_MODEL:
		p.nextToken()
		names := p.parseNameList()
		p.expect(TOKEN_AS)
		return &ModelVars{Names: names, Stattype: p.parseName()}
	case TOKEN_IGNORE:
		p.nextToken()
		return &IgnoreVars{Names: clauseNames()}
	case TOKEN_GUESS:
		p.nextToken()
		p.expect(TOKEN_STATTYPES)
		p.expect(TOKEN_OF)
		g := &GuessVars{}
		if p.match(TOKEN_LPAREN) {
			if p.match(TOKEN_STAR) {
				g.Star = true
			} else {
				g.Names = p.parseNameList()
			}
			p.expect(TOKEN_RPAREN)
		} else if p.match(TOKEN_STAR) {
			g.Star = true
		} else {
			g.Names = clauseNames()
		}
		return g
	default:
		p.addError(fmt.Sprintf("expected MODEL, IGNORE, or GUESS in population schema, got %s", p.token.Type))
		p.nextToken()
		return nil
	}
}

// parseAlterPopulation parses ALTER POPULATION p cmd (, cmd)*.
func (p *Parser) parseAlterPopulation(start Position) Phrase {
	p.expect(TOKEN_POPULATION)
	pop := p.parseName()
	var cmds []AlterPopCmd
	for {
		switch p.token.Type {
		case TOKEN_ADD:
			p.nextToken()
			p.expect(TOKEN_VARIABLE)
			name := p.parseName()
			stattype := ""
			if p.check(TOKEN_IDENT) || p.nameableKeyword(p.token.Type) {
				stattype = p.parseName()
			}
			cmds = append(cmds, &AddVariable{Name: name, Stattype: stattype})
		case TOKEN_SET:
			p.nextToken()
			if !p.match(TOKEN_STATTYPES) {
				p.expect(TOKEN_STATTYPE)
			}
			p.expect(TOKEN_OF)
			names := p.parseNameList()
			p.expect(TOKEN_TO)
			cmds = append(cmds, &SetStattypes{Names: names, Stattype: p.parseName()})
		default:
			p.addError(fmt.Sprintf("expected ADD or SET in ALTER POPULATION, got %s", p.token.Type))
			return nil
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return &AlterPopulation{NodeInfo: p.spanFrom(start), Population: pop, Cmds: cmds}
}

// parseCreateGenerator parses from the GENERATOR keyword onward.
func (p *Parser) parseCreateGenerator(start Position) Phrase {
	p.expect(TOKEN_GENERATOR)
	ifNotExists := p.parseIfNotExists()
	name := p.parseName()
	p.expect(TOKEN_FOR)
	pop := p.parseName()
	p.expect(TOKEN_USING)
	backend := p.parseName()

	var schema []string
	if p.check(TOKEN_LPAREN) {
		schema = p.parseOpaqueClauses()
	}

	return &CreateGenerator{
		NodeInfo:    p.spanFrom(start),
		IfNotExists: ifNotExists,
		Name:        name,
		Population:  pop,
		Backend:     backend,
		Schema:      schema,
	}
}

// parseAlterGenerator parses ALTER GENERATOR g cmd (, cmd)*.
func (p *Parser) parseAlterGenerator(start Position) Phrase {
	p.expect(TOKEN_GENERATOR)
	gen := p.parseName()
	var cmds []AlterGenCmd
	for {
		if p.match(TOKEN_RENAME) {
			p.expect(TOKEN_TO)
			cmds = append(cmds, &RenameGenerator{To: p.parseName()})
		} else {
			p.addError(fmt.Sprintf("expected RENAME in ALTER GENERATOR, got %s", p.token.Type))
			return nil
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return &AlterGenerator{NodeInfo: p.spanFrom(start), Generator: gen, Cmds: cmds}
}

// parseInitialize parses INITIALIZE n MODEL[S] [IF NOT EXISTS] FOR g.
func (p *Parser) parseInitialize() Phrase {
	start := p.token.Pos
	p.expect(TOKEN_INITIALIZE)
	n := p.parseInteger()
	if !p.match(TOKEN_MODELS) {
		p.expect(TOKEN_MODEL)
	}
	ifNotExists := p.parseIfNotExists()
	p.expect(TOKEN_FOR)
	return &Initialize{
		NodeInfo:    p.spanFrom(start),
		N:           n,
		IfNotExists: ifNotExists,
		Generator:   p.parseName(),
	}
}

// parseAnalyze parses the ANALYZE phrase.
func (p *Parser) parseAnalyze() Phrase {
	start := p.token.Pos
	p.expect(TOKEN_ANALYZE)
	a := &Analyze{Generator: p.parseName()}
	if p.match(TOKEN_MODELS) {
		a.Models = p.parseModelSet()
	}
	p.expect(TOKEN_FOR)
	a.Budget = p.parseBudget()
	if p.match(TOKEN_CHECKPOINT) {
		cp := p.parseBudget()
		a.Checkpoint = &cp
	}
	if p.check(TOKEN_LPAREN) {
		a.Program = p.parseOpaqueClauses()
	}
	a.NodeInfo = p.spanFrom(start)
	return a
}

// parseBudget parses n ITERATION[S] | SECOND[S] | MINUTE[S].
func (p *Parser) parseBudget() AnalysisBudget {
	b := AnalysisBudget{Value: p.parseInteger()}
	switch p.token.Type {
	case TOKEN_ITERATION, TOKEN_ITERATIONS:
		b.Unit = UnitIterations
		p.nextToken()
	case TOKEN_SECOND, TOKEN_SECONDS:
		b.Unit = UnitSeconds
		p.nextToken()
	case TOKEN_MINUTE, TOKEN_MINUTES:
		b.Unit = UnitMinutes
		p.nextToken()
	default:
		p.addError(fmt.Sprintf("expected ITERATIONS, SECONDS, or MINUTES, got %s", p.token.Type))
	}
	return b
}

// parseDropModels parses from the MODELS keyword onward.
func (p *Parser) parseDropModels(start Position) Phrase {
	p.expect(TOKEN_MODELS)
	d := &DropModels{}
	if !p.check(TOKEN_FROM) {
		d.Models = p.parseModelSet()
	}
	p.expect(TOKEN_FROM)
	d.Generator = p.parseName()
	d.NodeInfo = p.spanFrom(start)
	return d
}

// parseModelSet parses a list of model indices and inclusive ranges.
func (p *Parser) parseModelSet() *ModelSet {
	s := &ModelSet{}
	for {
		lo := p.parseInteger()
		hi := lo
		if p.match(TOKEN_MINUS) {
			hi = p.parseInteger()
		}
		if hi < lo {
			p.addError(fmt.Sprintf("descending model range %d-%d", lo, hi))
		}
		s.Ranges = append(s.Ranges, ModelRange{Lo: lo, Hi: hi})
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return s
}

// parseOpaqueClauses captures a parenthesized, comma-separated clause list
// as raw source text, balancing nested parentheses. The core never
// interprets these; backends do.
func (p *Parser) parseOpaqueClauses() []string {
	p.expect(TOKEN_LPAREN)
	clauses := []string{}
	if p.match(TOKEN_RPAREN) {
		return clauses
	}
	depth := 0
	start := p.token.Pos.Offset
	for {
		if p.check(TOKEN_EOF) {
			p.addError("unterminated clause list")
			return clauses
		}
		switch p.token.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth == 0 {
				if text := trimClause(p.lexer.input[start:p.token.Pos.Offset]); text != "" {
					clauses = append(clauses, text)
				}
				p.nextToken()
				return clauses
			}
			depth--
		case TOKEN_COMMA:
			if depth == 0 {
				if text := trimClause(p.lexer.input[start:p.token.Pos.Offset]); text != "" {
					clauses = append(clauses, text)
				}
				p.nextToken()
				start = p.token.Pos.Offset
				continue
			}
		}
		p.nextToken()
	}
}

func trimClause(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\n' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}
