package format

import (
	"strconv"

	"github.com/inferlab/bqldb/pkg/parser"
)

// formatPhrase renders one phrase.
func (p *Printer) formatPhrase(ph parser.Phrase) {
	switch n := ph.(type) {
	case *parser.Begin:
		p.keyword("BEGIN")
	case *parser.Commit:
		p.keyword("COMMIT")
	case *parser.Rollback:
		p.keyword("ROLLBACK")

	case *parser.CreateTableAs:
		p.keyword("CREATE")
		if n.Temp {
			p.keyword("TEMP")
		}
		p.keyword("TABLE")
		if n.IfNotExists {
			p.keyword("IF NOT EXISTS")
		}
		p.name(n.Name)
		p.keyword("AS")
		p.formatPhrase(n.Query)
	case *parser.DropTable:
		p.keyword("DROP TABLE")
		if n.IfExists {
			p.keyword("IF EXISTS")
		}
		p.name(n.Name)
	case *parser.AlterTable:
		p.keyword("ALTER TABLE")
		p.name(n.Table)
		for i, cmd := range n.Cmds {
			if i > 0 {
				p.punct(",")
			}
			p.formatAlterTableCmd(cmd)
		}

	case *parser.CreatePopulation:
		p.keyword("CREATE POPULATION")
		if n.IfNotExists {
			p.keyword("IF NOT EXISTS")
		}
		p.name(n.Name)
		p.keyword("FOR")
		p.name(n.Table)
		p.keyword("WITH SCHEMA")
		p.word("(")
		p.needsSep = false
		for i, c := range n.Schema {
			if i > 0 {
				p.punct(",")
			}
			p.formatPopSchemaClause(c)
		}
		p.punct(")")
	case *parser.AlterPopulation:
		p.keyword("ALTER POPULATION")
		p.name(n.Population)
		for i, cmd := range n.Cmds {
			if i > 0 {
				p.punct(",")
			}
			p.formatAlterPopCmd(cmd)
		}
	case *parser.DropPopulation:
		p.keyword("DROP POPULATION")
		if n.IfExists {
			p.keyword("IF EXISTS")
		}
		p.name(n.Name)

	case *parser.CreateGenerator:
		p.keyword("CREATE GENERATOR")
		if n.IfNotExists {
			p.keyword("IF NOT EXISTS")
		}
		p.name(n.Name)
		p.keyword("FOR")
		p.name(n.Population)
		p.keyword("USING")
		p.name(n.Backend)
		if n.Schema != nil {
			p.punct("(")
			for i, c := range n.Schema {
				if i > 0 {
					p.punct(", ")
				}
				p.write(c)
			}
			p.punct(")")
		}
	case *parser.AlterGenerator:
		p.keyword("ALTER GENERATOR")
		p.name(n.Generator)
		for i, cmd := range n.Cmds {
			if i > 0 {
				p.punct(",")
			}
			switch c := cmd.(type) {
			case *parser.RenameGenerator:
				p.keyword("RENAME TO")
				p.name(c.To)
			}
		}
	case *parser.DropGenerator:
		p.keyword("DROP GENERATOR")
		if n.IfExists {
			p.keyword("IF EXISTS")
		}
		p.name(n.Name)

	case *parser.Initialize:
		p.keyword("INITIALIZE")
		p.word(strconv.Itoa(n.N))
		if n.N == 1 {
			p.keyword("MODEL")
		} else {
			p.keyword("MODELS")
		}
		if n.IfNotExists {
			p.keyword("IF NOT EXISTS")
		}
		p.keyword("FOR")
		p.name(n.Generator)
	case *parser.Analyze:
		p.keyword("ANALYZE")
		p.name(n.Generator)
		if n.Models != nil {
			p.keyword("MODELS")
			p.formatModelSet(n.Models)
		}
		p.keyword("FOR")
		p.formatBudget(n.Budget)
		if n.Checkpoint != nil {
			p.keyword("CHECKPOINT")
			p.formatBudget(*n.Checkpoint)
		}
		if len(n.Program) > 0 {
			p.word("(")
			p.needsSep = false
			for i, c := range n.Program {
				if i > 0 {
					p.punct(", ")
				}
				p.write(c)
			}
			p.punct(")")
		}
	case *parser.DropModels:
		p.keyword("DROP MODELS")
		if n.Models != nil {
			p.formatModelSet(n.Models)
		}
		p.keyword("FROM")
		p.name(n.Generator)

	case *parser.Select:
		p.formatSelect(n)
	case *parser.Estimate:
		p.formatEstimate(n)
	case *parser.InferImplicit:
		p.formatInferImplicit(n)
	case *parser.InferExplicit:
		p.formatInferExplicit(n)
	case *parser.Simulate:
		p.formatSimulate(n)
	}
}

func (p *Printer) formatAlterTableCmd(cmd parser.AlterTableCmd) {
	switch c := cmd.(type) {
	case *parser.RenameTable:
		p.keyword("RENAME TO")
		p.name(c.To)
	case *parser.RenameColumn:
		p.keyword("RENAME")
		p.name(c.Old)
		p.keyword("TO")
		p.name(c.New)
	case *parser.SetDefaultGenerator:
		p.keyword("SET DEFAULT GENERATOR TO")
		p.name(c.Generator)
	case *parser.UnsetDefaultGenerator:
		p.keyword("UNSET DEFAULT GENERATOR")
	}
}

func (p *Printer) formatPopSchemaClause(c parser.PopSchemaClause) {
	switch n := c.(type) {
	case *parser.ModelVars:
		p.keyword("MODEL")
		p.nameList(n.Names)
		p.keyword("AS")
		p.name(n.Stattype)
	case *parser.IgnoreVars:
		p.keyword("IGNORE")
		p.nameList(n.Names)
	case *parser.GuessVars:
		p.keyword("GUESS STATTYPES OF")
		p.word("(")
		p.needsSep = false
		if n.Star {
			p.write("*")
		} else {
			p.nameList(n.Names)
		}
		p.punct(")")
	}
}

func (p *Printer) formatAlterPopCmd(cmd parser.AlterPopCmd) {
	switch c := cmd.(type) {
	case *parser.AddVariable:
		p.keyword("ADD VARIABLE")
		p.name(c.Name)
		if c.Stattype != "" {
			p.name(c.Stattype)
		}
	case *parser.SetStattypes:
		p.keyword("SET STATTYPES OF")
		p.nameList(c.Names)
		p.keyword("TO")
		p.name(c.Stattype)
	}
}

func (p *Printer) nameList(names []string) {
	for i, n := range names {
		if i > 0 {
			p.punct(",")
		}
		p.name(n)
	}
}

func (p *Printer) formatModelSet(s *parser.ModelSet) {
	for i, r := range s.Ranges {
		if i > 0 {
			p.punct(",")
		}
		p.word(strconv.Itoa(r.Lo))
		if r.Hi != r.Lo {
			p.punct("-")
			p.write(strconv.Itoa(r.Hi))
		}
	}
}

func (p *Printer) formatBudget(b parser.AnalysisBudget) {
	p.word(strconv.Itoa(b.Value))
	p.keyword(b.Unit.String())
}

// ---------- Queries ----------

func (p *Printer) formatSelect(n *parser.Select) {
	p.keyword("SELECT")
	if n.Distinct {
		p.keyword("DISTINCT")
	}
	p.formatSelectItems(n.Columns)
	if len(n.From) > 0 {
		p.keyword("FROM")
		for i, ref := range n.From {
			if i > 0 {
				p.punct(",")
			}
			p.formatTableRef(ref)
		}
	}
	p.formatTail(n.Where, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

func (p *Printer) formatTableRef(ref parser.TableRef) {
	switch t := ref.(type) {
	case *parser.TableName:
		p.name(t.Name)
		if t.Alias != "" {
			p.keyword("AS")
			p.name(t.Alias)
		}
	case *parser.SubqueryTable:
		p.word("(")
		p.needsSep = false
		p.formatPhrase(t.Query)
		p.punct(")")
		if t.Alias != "" {
			p.keyword("AS")
			p.name(t.Alias)
		}
	}
}

func (p *Printer) formatEstimate(n *parser.Estimate) {
	p.keyword("ESTIMATE")
	if n.Distinct {
		p.keyword("DISTINCT")
	}
	p.formatSelectItems(n.Columns)
	switch n.Mode {
	case parser.EstBy:
		p.keyword("BY")
		p.name(n.Population)
	case parser.EstRows:
		p.keyword("FROM")
		p.name(n.Population)
	case parser.EstPairwiseRows:
		p.keyword("FROM PAIRWISE")
		p.name(n.Population)
	case parser.EstColumns:
		p.keyword("FROM VARIABLES OF")
		p.name(n.Population)
	case parser.EstPairwiseColumns:
		p.keyword("FROM PAIRWISE VARIABLES OF")
		p.name(n.Population)
	}
	p.formatModeledBy(n.Generator, n.Models)
	if len(n.For) > 0 {
		p.keyword("FOR")
		p.word("(")
		p.needsSep = false
		p.nameList(n.For)
		p.punct(")")
	}
	p.formatTail(n.Where, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

func (p *Printer) formatModeledBy(gen string, models *parser.ModelSet) {
	if gen != "" {
		p.keyword("MODELED BY")
		p.name(gen)
	}
	if models != nil {
		if len(models.Ranges) == 1 && models.Ranges[0].Lo == models.Ranges[0].Hi {
			p.keyword("USING MODEL")
		} else {
			p.keyword("USING MODELS")
		}
		p.formatModelSet(models)
	}
}

func (p *Printer) formatInferImplicit(n *parser.InferImplicit) {
	p.keyword("INFER")
	for i, item := range n.Columns {
		if i > 0 {
			p.punct(",")
		}
		if item.Star {
			p.word("*")
			continue
		}
		p.name(item.Name)
		if item.Alias != "" {
			p.keyword("AS")
			p.name(item.Alias)
		}
	}
	if n.Confidence != nil {
		p.keyword("WITH CONFIDENCE")
		p.formatExpr(n.Confidence)
	}
	p.keyword("FROM")
	p.name(n.Population)
	p.formatModeledBy(n.Generator, n.Models)
	p.formatTail(n.Where, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

func (p *Printer) formatInferExplicit(n *parser.InferExplicit) {
	p.keyword("INFER EXPLICIT")
	p.formatSelectItems(n.Columns)
	p.keyword("FROM")
	p.name(n.Population)
	p.formatModeledBy(n.Generator, n.Models)
	p.formatTail(n.Where, n.GroupBy, n.Having, n.OrderBy, n.Limit, n.Offset)
}

func (p *Printer) formatSimulate(n *parser.Simulate) {
	p.keyword("SIMULATE")
	p.nameList(n.Columns)
	p.keyword("FROM")
	p.name(n.Population)
	p.formatModeledBy(n.Generator, n.Models)
	if len(n.Given) > 0 {
		p.keyword("GIVEN")
		p.formatConstraints(n.Given)
	}
	if n.Limit != nil {
		p.keyword("LIMIT")
		p.formatExpr(n.Limit)
	}
	if n.Accuracy != nil {
		p.keyword("USING")
		p.word(strconv.Itoa(*n.Accuracy))
		p.keyword("ACCURACY")
	}
}

func (p *Printer) formatSelectItems(items []parser.SelectItem) {
	for i, item := range items {
		if i > 0 {
			p.punct(",")
		}
		switch {
		case item.Star:
			p.word("*")
		case item.TableStar != "":
			p.name(item.TableStar)
			p.punct(".*")
		default:
			p.formatExpr(item.Expr)
			if item.Alias != "" {
				p.keyword("AS")
				p.name(item.Alias)
			}
		}
	}
}

func (p *Printer) formatConstraints(cs []parser.Constraint) {
	for i, c := range cs {
		if i > 0 {
			p.punct(",")
		}
		p.name(c.Name)
		p.word("=")
		p.formatExpr(c.Value)
	}
}

func (p *Printer) formatTail(where parser.Expr, groupBy []parser.Expr, having parser.Expr, orderBy []parser.OrderingItem, limit, offset parser.Expr) {
	if where != nil {
		p.keyword("WHERE")
		p.formatExpr(where)
	}
	if len(groupBy) > 0 {
		p.keyword("GROUP BY")
		for i, e := range groupBy {
			if i > 0 {
				p.punct(",")
			}
			p.formatExpr(e)
		}
		if having != nil {
			p.keyword("HAVING")
			p.formatExpr(having)
		}
	}
	if len(orderBy) > 0 {
		p.keyword("ORDER BY")
		for i, item := range orderBy {
			if i > 0 {
				p.punct(",")
			}
			p.formatExpr(item.Expr)
			if item.Desc {
				p.keyword("DESC")
			}
		}
	}
	if limit != nil {
		p.keyword("LIMIT")
		p.formatExpr(limit)
		if offset != nil {
			p.keyword("OFFSET")
			p.formatExpr(offset)
		}
	}
}
