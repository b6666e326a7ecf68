package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferlab/bqldb/pkg/parser"
	"github.com/inferlab/bqldb/pkg/token"
)

func lexAll(input string) ([]token.Token, []*parser.LexError) {
	l := parser.NewLexer(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, l.Errors
}

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestLexerBasicTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.TokenType
	}{
		{
			name:  "select phrase",
			input: "SELECT a, b FROM t;",
			want: []token.TokenType{
				token.SELECT, token.IDENT, token.COMMA, token.IDENT,
				token.FROM, token.IDENT, token.SEMI,
			},
		},
		{
			name:  "keywords are case-insensitive",
			input: "select EsTiMaTe simulate",
			want:  []token.TokenType{token.SELECT, token.ESTIMATE, token.SIMULATE},
		},
		{
			name:  "operators",
			input: "+ - * / % || = == != <> < <= > >= & | << >> ~",
			want: []token.TokenType{
				token.PLUS, token.MINUS, token.STAR, token.SLASH, token.MOD,
				token.DPIPE, token.EQ, token.EQ, token.NE, token.NE,
				token.LT, token.LE, token.GT, token.GE,
				token.AMP, token.PIPE, token.LSHIFT, token.RSHIFT, token.TILDE,
			},
		},
		{
			name:  "numbers",
			input: "1 2.5 .5 1e10 3E-2",
			want: []token.TokenType{
				token.INTEGER, token.FLOAT, token.FLOAT, token.FLOAT, token.FLOAT,
			},
		},
		{
			name:  "parameters",
			input: "? ?3 :name @name $name",
			want: []token.TokenType{
				token.NUMPAR, token.NUMPAR, token.NAMPAR, token.NAMPAR, token.NAMPAR,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, errs := lexAll(tt.input)
			require.Empty(t, errs)
			assert.Equal(t, tt.want, types(toks))
		})
	}
}

func TestLexerStrings(t *testing.T) {
	toks, errs := lexAll("'hello' 'it''s'")
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	assert.Equal(t, "hello", toks[0].Literal)
	assert.Equal(t, "it's", toks[1].Literal)
}

func TestLexerQuotedIdentifiers(t *testing.T) {
	toks, errs := lexAll(`"Mixed Case" "with""quote"`)
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	assert.Equal(t, token.IDENT, toks[0].Type)
	assert.Equal(t, "Mixed Case", toks[0].Literal)
	assert.Equal(t, `with"quote`, toks[1].Literal)
}

func TestLexerQuotedKeywordIsIdent(t *testing.T) {
	toks, errs := lexAll(`"select"`)
	require.Empty(t, errs)
	require.Len(t, toks, 1)
	assert.Equal(t, token.IDENT, toks[0].Type)
}

func TestLexerComments(t *testing.T) {
	l := parser.NewLexer("SELECT -- trailing\n/* block\ncomment */ 1")
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	require.Empty(t, l.Errors)
	require.Len(t, toks, 2)
	assert.Equal(t, token.SELECT, toks[0].Type)
	assert.Equal(t, token.INTEGER, toks[1].Type)
	require.Len(t, l.Comments, 2)
	assert.Equal(t, token.LineComment, l.Comments[0].Kind)
	assert.Equal(t, token.BlockComment, l.Comments[1].Kind)
}

func TestLexerPositions(t *testing.T) {
	toks, errs := lexAll("SELECT\n  a")
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 1, toks[0].Pos.Column)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Column)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unterminated string", input: "'oops"},
		{name: "unterminated block comment", input: "/* oops"},
		{name: "bad exponent", input: "1e+"},
		{name: "number running into letters", input: "12abc"},
		{name: "bad named parameter", input: ": x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := lexAll(tt.input)
			assert.NotEmpty(t, errs)
		})
	}
}
