package format

import "github.com/inferlab/bqldb/pkg/parser"

// Phrase formats a parsed phrase as canonical BQL, without the trailing
// semicolon.
func Phrase(ph parser.Phrase) string {
	p := newPrinter()
	p.formatPhrase(ph)
	return p.String()
}

// Expr formats an expression as canonical BQL.
func Expr(e parser.Expr) string {
	p := newPrinter()
	p.formatExpr(e)
	return p.String()
}

// Script formats phrases as a semicolon-terminated script.
func Script(phrases []parser.Phrase) string {
	p := newPrinter()
	for _, ph := range phrases {
		p.formatPhrase(ph)
		p.punct(";")
		p.needsSep = true
	}
	return p.String()
}
