// Package format renders BQL ASTs back to canonical source text.
//
// The output is single-line, keywords uppercased, identifiers quoted only
// when required. Parsing the output and formatting it again reproduces the
// same text, so formatting is a fixed point of format∘parse.
package format

import (
	"strings"

	"github.com/inferlab/bqldb/pkg/token"
)

// Printer accumulates formatted output.
type Printer struct {
	sb       strings.Builder
	needsSep bool
}

func newPrinter() *Printer {
	return &Printer{}
}

// String returns the formatted output.
func (p *Printer) String() string {
	return p.sb.String()
}

// write emits s verbatim with no separating space.
func (p *Printer) write(s string) {
	p.sb.WriteString(s)
	p.needsSep = true
}

// word emits s preceded by a space when needed.
func (p *Printer) word(s string) {
	if p.needsSep {
		p.sb.WriteByte(' ')
	}
	p.write(s)
}

// keyword emits an uppercased keyword.
func (p *Printer) keyword(s string) {
	p.word(strings.ToUpper(s))
}

// punct emits punctuation that binds tight to the previous token.
func (p *Printer) punct(s string) {
	p.write(s)
}

// name emits an identifier, quoting when necessary.
func (p *Printer) name(s string) {
	p.word(QuoteIdent(s))
}

// QuoteIdent renders an identifier, double-quoting unless it is a plain
// lowercase-safe identifier that is not a keyword.
func QuoteIdent(s string) string {
	if identOK(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func identOK(s string) bool {
	if s == "" {
		return false
	}
	if c := s[0]; !(c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')) {
			return false
		}
	}
	return token.LookupIdent(strings.ToLower(s)) == token.IDENT
}

// QuoteString renders a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
