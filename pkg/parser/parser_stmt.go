package parser

import "fmt"

// Phrase dispatch, transaction commands, DDL, and the SELECT core.
//
// Grammar:
//
//	phrase      → txn | ddl | mml | query
//	txn         → BEGIN | COMMIT | ROLLBACK
//	ddl         → CREATE [TEMP] TABLE [IF NOT EXISTS] name AS query
//	            | DROP TABLE [IF EXISTS] name
//	            | ALTER TABLE name alter_table_cmd (, alter_table_cmd)*
//	query       → select | estimate | infer | simulate

// parsePhrase parses one phrase; the semicolon is handled by the caller.
func (p *Parser) parsePhrase() Phrase {
	start := p.token.Pos
	switch p.token.Type {
	case TOKEN_BEGIN:
		p.nextToken()
		return &Begin{NodeInfo: p.spanFrom(start)}
	case TOKEN_COMMIT:
		p.nextToken()
		return &Commit{NodeInfo: p.spanFrom(start)}
	case TOKEN_ROLLBACK:
		p.nextToken()
		return &Rollback{NodeInfo: p.spanFrom(start)}
	case TOKEN_CREATE:
		return p.parseCreate()
	case TOKEN_DROP:
		return p.parseDrop()
	case TOKEN_ALTER:
		return p.parseAlter()
	case TOKEN_INITIALIZE:
		return p.parseInitialize()
	case TOKEN_ANALYZE:
		return p.parseAnalyze()
	case TOKEN_SELECT:
		return p.parseSelect()
	case TOKEN_ESTIMATE:
		return p.parseEstimate()
	case TOKEN_INFER:
		return p.parseInfer()
	case TOKEN_SIMULATE:
		return p.parseSimulate()
	default:
		p.addError(fmt.Sprintf("unexpected token %s at start of phrase", p.token.Type))
		return nil
	}
}

// spanFrom builds a NodeInfo spanning from start to the current token.
func (p *Parser) spanFrom(start Position) NodeInfo {
	return NodeInfo{Span: Span{Start: start, End: p.token.Pos}}
}

// parseCreate dispatches CREATE TABLE / POPULATION / GENERATOR.
func (p *Parser) parseCreate() Phrase {
	start := p.token.Pos
	p.expect(TOKEN_CREATE)
	switch p.token.Type {
	case TOKEN_TEMP, TOKEN_TEMPORARY, TOKEN_TABLE:
		return p.parseCreateTable(start)
	case TOKEN_POPULATION:
		return p.parseCreatePopulation(start)
	case TOKEN_GENERATOR:
		return p.parseCreateGenerator(start)
	default:
		p.addError(fmt.Sprintf("expected TABLE, POPULATION, or GENERATOR after CREATE, got %s", p.token.Type))
		return nil
	}
}

// parseCreateTable parses CREATE [TEMP] TABLE [IF NOT EXISTS] t AS query.
func (p *Parser) parseCreateTable(start Position) Phrase {
	temp := p.match(TOKEN_TEMP) || p.match(TOKEN_TEMPORARY)
	p.expect(TOKEN_TABLE)
	ifNotExists := p.parseIfNotExists()
	name := p.parseName()
	p.expect(TOKEN_AS)
	query := p.parseQuery()
	return &CreateTableAs{
		NodeInfo:    p.spanFrom(start),
		Temp:        temp,
		IfNotExists: ifNotExists,
		Name:        name,
		Query:       query,
	}
}

// parseQuery parses any query phrase (used by CREATE TABLE AS and subqueries).
func (p *Parser) parseQuery() Query {
	switch p.token.Type {
	case TOKEN_SELECT:
		return p.parseSelect()
	case TOKEN_ESTIMATE:
		return p.parseEstimate()
	case TOKEN_INFER:
		return p.parseInfer()
	case TOKEN_SIMULATE:
		return p.parseSimulate()
	default:
		p.addError(fmt.Sprintf("expected a query, got %s", p.token.Type))
		return nil
	}
}

// parseDrop dispatches DROP TABLE / POPULATION / GENERATOR / MODELS.
func (p *Parser) parseDrop() Phrase {
	start := p.token.Pos
	p.expect(TOKEN_DROP)
	switch p.token.Type {
	case TOKEN_TABLE:
		p.nextToken()
		ifExists := p.parseIfExists()
		return &DropTable{NodeInfo: p.spanFrom(start), IfExists: ifExists, Name: p.parseName()}
	case TOKEN_POPULATION:
		p.nextToken()
		ifExists := p.parseIfExists()
		return &DropPopulation{NodeInfo: p.spanFrom(start), IfExists: ifExists, Name: p.parseName()}
	case TOKEN_GENERATOR:
		p.nextToken()
		ifExists := p.parseIfExists()
		return &DropGenerator{NodeInfo: p.spanFrom(start), IfExists: ifExists, Name: p.parseName()}
	case TOKEN_MODELS:
		return p.parseDropModels(start)
	default:
		p.addError(fmt.Sprintf("expected TABLE, POPULATION, GENERATOR, or MODELS after DROP, got %s", p.token.Type))
		return nil
	}
}

// parseAlter dispatches ALTER TABLE / POPULATION / GENERATOR.
func (p *Parser) parseAlter() Phrase {
	start := p.token.Pos
	p.expect(TOKEN_ALTER)
	switch p.token.Type {
	case TOKEN_TABLE:
		return p.parseAlterTable(start)
	case TOKEN_POPULATION:
		return p.parseAlterPopulation(start)
	case TOKEN_GENERATOR:
		return p.parseAlterGenerator(start)
	default:
		p.addError(fmt.Sprintf("expected TABLE, POPULATION, or GENERATOR after ALTER, got %s", p.token.Type))
		return nil
	}
}

// parseAlterTable parses ALTER TABLE t cmd (, cmd)*.
//
//	alter_table_cmd → RENAME TO name
//	                | RENAME [COLUMN] old TO new
//	                | SET DEFAULT GENERATOR TO g
//	                | UNSET DEFAULT GENERATOR
func (p *Parser) parseAlterTable(start Position) Phrase {
	p.expect(TOKEN_TABLE)
	table := p.parseName()
	var cmds []AlterTableCmd
	for {
		switch p.token.Type {
		case TOKEN_RENAME:
			p.nextToken()
			if p.match(TOKEN_TO) {
				cmds = append(cmds, &RenameTable{To: p.parseName()})
				break
			}
			old := p.parseName()
			p.expect(TOKEN_TO)
			cmds = append(cmds, &RenameColumn{Old: old, New: p.parseName()})
		case TOKEN_SET:
			p.nextToken()
			p.expect(TOKEN_DEFAULT)
			p.expect(TOKEN_GENERATOR)
			p.expect(TOKEN_TO)
			cmds = append(cmds, &SetDefaultGenerator{Generator: p.parseName()})
		case TOKEN_UNSET:
			p.nextToken()
			p.expect(TOKEN_DEFAULT)
			p.expect(TOKEN_GENERATOR)
			cmds = append(cmds, &UnsetDefaultGenerator{})
		default:
			p.addError(fmt.Sprintf("expected RENAME, SET, or UNSET in ALTER TABLE, got %s", p.token.Type))
			return nil
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return &AlterTable{NodeInfo: p.spanFrom(start), Table: table, Cmds: cmds}
}

func (p *Parser) parseIfExists() bool {
	if p.check(TOKEN_IF) && p.checkPeek(TOKEN_EXISTS) {
		p.nextToken()
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) parseIfNotExists() bool {
	if p.check(TOKEN_IF) && p.checkPeek(TOKEN_NOT) && p.checkPeek2(TOKEN_EXISTS) {
		p.nextToken()
		p.nextToken()
		p.nextToken()
		return true
	}
	return false
}

// ---------- SELECT ----------

// parseSelect parses a plain SQL SELECT phrase.
//
//	select → SELECT [DISTINCT|ALL] select_list
//	         [FROM table_list] [WHERE expr] [GROUP BY exprs [HAVING expr]]
//	         [ORDER BY ordering_list] [LIMIT expr [OFFSET expr]]
func (p *Parser) parseSelect() *Select {
	start := p.token.Pos
	p.expect(TOKEN_SELECT)
	sel := &Select{}
	if p.match(TOKEN_DISTINCT) {
		sel.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}
	sel.Columns = p.parseSelectList()
	if p.match(TOKEN_FROM) {
		sel.From = p.parseTableList()
	}
	p.parseSelectTail(
		&sel.Where, &sel.GroupBy, &sel.Having,
		&sel.OrderBy, &sel.Limit, &sel.Offset,
	)
	sel.NodeInfo = p.spanFrom(start)
	return sel
}

// parseSelectList parses the projection list.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem
	items = append(items, p.parseSelectItem())
	for p.match(TOKEN_COMMA) {
		items = append(items, p.parseSelectItem())
	}
	return items
}

// parseSelectItem parses *, t.*, or expr [AS alias].
func (p *Parser) parseSelectItem() SelectItem {
	if p.match(TOKEN_STAR) {
		return SelectItem{Star: true}
	}
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_STAR) {
		table := p.token.Literal
		p.nextToken()
		p.nextToken()
		p.nextToken()
		return SelectItem{TableStar: table}
	}
	item := SelectItem{Expr: p.parseExpression()}
	item.Alias = p.parseOptAlias()
	return item
}

// parseOptAlias parses [AS] alias where present.
func (p *Parser) parseOptAlias() string {
	if p.match(TOKEN_AS) {
		return p.parseName()
	}
	if p.check(TOKEN_IDENT) {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	return ""
}

// parseTableList parses comma-joined table references.
func (p *Parser) parseTableList() []TableRef {
	var refs []TableRef
	refs = append(refs, p.parseTableRef())
	for p.match(TOKEN_COMMA) {
		refs = append(refs, p.parseTableRef())
	}
	return refs
}

// parseTableRef parses a table name or parenthesized subquery, with alias.
func (p *Parser) parseTableRef() TableRef {
	if p.match(TOKEN_LPAREN) {
		q := p.parseQuery()
		p.expect(TOKEN_RPAREN)
		return &SubqueryTable{Query: q, Alias: p.parseOptAlias()}
	}
	name := p.parseName()
	return &TableName{Name: name, Alias: p.parseOptAlias()}
}

// parseSelectTail parses the shared trailing clauses of row-producing
// phrases: WHERE, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET.
func (p *Parser) parseSelectTail(where *Expr, groupBy *[]Expr, having *Expr, orderBy *[]OrderingItem, limit, offset *Expr) {
	if p.match(TOKEN_WHERE) {
		*where = p.parseExpression()
	}
	if p.check(TOKEN_GROUP) {
		p.nextToken()
		p.expect(TOKEN_BY)
		*groupBy = p.parseExpressionList()
		if p.match(TOKEN_HAVING) {
			*having = p.parseExpression()
		}
	}
	if p.check(TOKEN_ORDER) {
		p.nextToken()
		p.expect(TOKEN_BY)
		*orderBy = p.parseOrderingList()
	}
	if p.match(TOKEN_LIMIT) {
		*limit = p.parseExpression()
		if p.match(TOKEN_OFFSET) {
			*offset = p.parseExpression()
		} else if p.match(TOKEN_COMMA) {
			// LIMIT offset, count — SQLite's alternate form
			*offset = *limit
			*limit = p.parseExpression()
		}
	}
}

// parseOrderingList parses ORDER BY items.
func (p *Parser) parseOrderingList() []OrderingItem {
	var items []OrderingItem
	for {
		item := OrderingItem{Expr: p.parseExpression()}
		if p.match(TOKEN_DESC) {
			item.Desc = true
		} else {
			p.match(TOKEN_ASC)
		}
		items = append(items, item)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// parseExpressionList parses a comma-separated expression list.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	exprs = append(exprs, p.parseExpression())
	for p.match(TOKEN_COMMA) {
		exprs = append(exprs, p.parseExpression())
	}
	return exprs
}
