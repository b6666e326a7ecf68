package format

import (
	"strconv"
	"strings"

	"github.com/inferlab/bqldb/pkg/parser"
)

// Operator precedence for minimal parenthesization, mirroring the parser's
// chain. Higher binds tighter.
func exprPrec(e parser.Expr) int {
	switch n := e.(type) {
	case *parser.Binary:
		return binaryPrec(n.Op)
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

func binaryPrec(op string) int {
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

// formatExpr renders an expression with minimal parentheses.
func (p *Printer) formatExpr(e parser.Expr) {
	switch n := e.(type) {
	case *parser.IntegerLit:
		if n.Text != "" {
			p.word(n.Text)
		} else {
			p.word(strconv.FormatInt(n.Value, 10))
		}
	case *parser.FloatLit:
		if n.Text != "" {
			p.word(n.Text)
		} else {
			p.word(strconv.FormatFloat(n.Value, 'g', -1, 64))
		}
	case *parser.StringLit:
		p.word(QuoteString(n.Value))
	case *parser.NullLit:
		p.keyword("NULL")
	case *parser.BoolLit:
		if n.Value {
			p.keyword("TRUE")
		} else {
			p.keyword("FALSE")
		}
	case *parser.ColRef:
		if n.Table != "" {
			p.name(n.Table)
			p.punct(".")
			p.write(QuoteIdent(n.Name))
		} else {
			p.name(n.Name)
		}
	case *parser.Param:
		if n.Name != "" {
			p.word(":" + n.Name)
		} else if n.Index > 0 {
			p.word("?" + strconv.Itoa(n.Index))
		} else {
			p.word("?")
		}

	case *parser.Unary:
		if n.Op == "NOT" {
			p.keyword("NOT")
			p.formatSub(n.X, 3)
		} else {
			p.word(n.Op)
			p.needsSep = false
			p.formatSub(n.X, 11)
		}
	case *parser.Binary:
		prec := binaryPrec(n.Op)
		p.formatSub(n.L, prec-1) // left-assoc: equal precedence needs no parens
		if n.Op == "AND" || n.Op == "OR" || strings.HasPrefix(n.Op, "IS") {
			p.keyword(n.Op)
		} else {
			p.word(n.Op)
		}
		p.formatSub(n.R, prec)
	case *parser.Collate:
		p.formatSub(n.X, 9)
		p.keyword("COLLATE")
		p.name(n.Collation)

	case *parser.InExpr:
		p.formatSub(n.X, 4)
		if n.Not {
			p.keyword("NOT")
		}
		p.keyword("IN")
		p.word("(")
		p.needsSep = false
		if n.Query != nil {
			p.formatPhrase(n.Query)
		} else {
			for i, e := range n.List {
				if i > 0 {
					p.punct(",")
				}
				p.formatExpr(e)
			}
		}
		p.punct(")")
	case *parser.BetweenExpr:
		p.formatSub(n.X, 4)
		if n.Not {
			p.keyword("NOT")
		}
		p.keyword("BETWEEN")
		p.formatSub(n.Lo, 4)
		p.keyword("AND")
		p.formatSub(n.Hi, 4)
	case *parser.LikeExpr:
		p.formatSub(n.X, 4)
		if n.Not {
			p.keyword("NOT")
		}
		p.keyword(n.Op)
		p.formatSub(n.Pattern, 4)
		if n.Escape != nil {
			p.keyword("ESCAPE")
			p.formatSub(n.Escape, 4)
		}
	case *parser.IsNull:
		p.formatSub(n.X, 4)
		if n.Not {
			p.keyword("IS NOT NULL")
		} else {
			p.keyword("IS NULL")
		}

	case *parser.CaseExpr:
		p.keyword("CASE")
		if n.Operand != nil {
			p.formatExpr(n.Operand)
		}
		for _, w := range n.Whens {
			p.keyword("WHEN")
			p.formatExpr(w.Cond)
			p.keyword("THEN")
			p.formatExpr(w.Then)
		}
		if n.Else != nil {
			p.keyword("ELSE")
			p.formatExpr(n.Else)
		}
		p.keyword("END")
	case *parser.CastExpr:
		p.keyword("CAST")
		p.punct("(")
		p.formatExpr(n.X)
		p.keyword("AS")
		p.word(n.Type)
		p.punct(")")
	case *parser.ExistsExpr:
		if n.Not {
			p.keyword("NOT")
		}
		p.keyword("EXISTS")
		p.word("(")
		p.needsSep = false
		p.formatPhrase(n.Query)
		p.punct(")")
	case *parser.SubqueryExpr:
		p.word("(")
		p.needsSep = false
		p.formatPhrase(n.Query)
		p.punct(")")
	case *parser.FuncCall:
		p.word(n.Name)
		p.punct("(")
		p.needsSep = false
		switch {
		case n.Star:
			p.write("*")
		default:
			if n.Distinct {
				p.write("DISTINCT")
			}
			for i, a := range n.Args {
				if i > 0 {
					p.punct(",")
				}
				p.formatExpr(a)
			}
		}
		p.punct(")")

	// BQL operator forms
	case *parser.PredProb:
		p.keyword("PREDICTIVE PROBABILITY OF")
		p.name(n.Target)
		if len(n.Given) > 0 {
			p.keyword("GIVEN")
			p.word("(")
			p.needsSep = false
			p.nameList(n.Given)
			p.punct(")")
		}
	case *parser.ProbDensity:
		p.keyword("PROBABILITY DENSITY OF")
		p.word("(")
		p.needsSep = false
		p.formatConstraints(n.Targets)
		p.punct(")")
		if len(n.Given) > 0 {
			p.keyword("GIVEN")
			p.word("(")
			p.needsSep = false
			p.formatConstraints(n.Given)
			p.punct(")")
		}
	case *parser.ProbOfValue:
		p.keyword("PROBABILITY DENSITY OF VALUE")
		p.formatExpr(n.X)
	case *parser.Similarity:
		p.keyword("SIMILARITY")
		if n.To != nil {
			p.keyword("TO")
			p.word("(")
			p.needsSep = false
			p.formatExpr(n.To)
			p.punct(")")
		}
		if n.Context != "" {
			p.keyword("IN THE CONTEXT OF")
			p.name(n.Context)
		}
	case *parser.PredictExpr:
		p.keyword("PREDICT")
		p.name(n.Target)
		if n.Alias != "" {
			p.keyword("AS")
			p.name(n.Alias)
		}
		p.keyword("CONFIDENCE")
		p.name(n.ConfName)
		if n.Samples != nil {
			p.keyword("USING")
			p.word(strconv.Itoa(*n.Samples))
			p.keyword("SAMPLES")
		}
	case *parser.DepProb:
		p.keyword("DEPENDENCE PROBABILITY")
		p.formatOfWith(n.Of, n.With)
	case *parser.MutInf:
		p.keyword("MUTUAL INFORMATION")
		p.formatOfWith(n.Of, n.With)
		if len(n.Given) > 0 {
			p.keyword("GIVEN")
			p.word("(")
			p.needsSep = false
			p.formatConstraints(n.Given)
			p.punct(")")
		}
		if n.Samples != nil {
			p.keyword("USING")
			p.word(strconv.Itoa(*n.Samples))
			p.keyword("SAMPLES")
		}
	case *parser.CorrelExpr:
		p.keyword("CORRELATION")
		if n.Pvalue {
			p.keyword("PVALUE")
		}
		p.formatOfWith(n.Of, n.With)
	}
}

// formatSub renders a child expression, parenthesizing when its
// precedence is at or below the bound.
func (p *Printer) formatSub(e parser.Expr, bound int) {
	if exprPrec(e) <= bound {
		p.word("(")
		p.needsSep = false
		p.formatExpr(e)
		p.punct(")")
		return
	}
	p.formatExpr(e)
}

func (p *Printer) formatOfWith(of, with string) {
	if of != "" {
		p.keyword("OF")
		p.name(of)
	}
	if with != "" {
		p.keyword("WITH")
		p.name(with)
	}
}
