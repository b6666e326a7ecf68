package parser

import "github.com/inferlab/bqldb/pkg/token"

// TokenType is an alias for token.TokenType.
type TokenType = token.TokenType

// Token is an alias for token.Token.
type Token = token.Token

// Position is an alias for token.Position.
type Position = token.Position

// Span is an alias for token.Span.
type Span = token.Span

// LookupIdent is re-exported from the token package.
var LookupIdent = token.LookupIdent

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS for SQL token conventions
const (
	// Special tokens
	TOKEN_EOF     = token.EOF
	TOKEN_ILLEGAL = token.ILLEGAL

	// Literals and parameters
	TOKEN_IDENT   = token.IDENT
	TOKEN_INTEGER = token.INTEGER
	TOKEN_FLOAT   = token.FLOAT
	TOKEN_STRING  = token.STRING
	TOKEN_NUMPAR  = token.NUMPAR
	TOKEN_NAMPAR  = token.NAMPAR

	// Operators
	TOKEN_PLUS   = token.PLUS
	TOKEN_MINUS  = token.MINUS
	TOKEN_STAR   = token.STAR
	TOKEN_SLASH  = token.SLASH
	TOKEN_MOD    = token.MOD
	TOKEN_DPIPE  = token.DPIPE
	TOKEN_EQ     = token.EQ
	TOKEN_NE     = token.NE
	TOKEN_LT     = token.LT
	TOKEN_GT     = token.GT
	TOKEN_LE     = token.LE
	TOKEN_GE     = token.GE
	TOKEN_AMP    = token.AMP
	TOKEN_PIPE   = token.PIPE
	TOKEN_LSHIFT = token.LSHIFT
	TOKEN_RSHIFT = token.RSHIFT
	TOKEN_TILDE  = token.TILDE
	TOKEN_DOT    = token.DOT
	TOKEN_COMMA  = token.COMMA
	TOKEN_LPAREN = token.LPAREN
	TOKEN_RPAREN = token.RPAREN
	TOKEN_SEMI   = token.SEMI

	// SQL keywords
	TOKEN_ADD       = token.ADD
	TOKEN_ALL       = token.ALL
	TOKEN_ALTER     = token.ALTER
	TOKEN_AND       = token.AND
	TOKEN_AS        = token.AS
	TOKEN_ASC       = token.ASC
	TOKEN_BEGIN     = token.BEGIN
	TOKEN_BETWEEN   = token.BETWEEN
	TOKEN_BY        = token.BY
	TOKEN_CASE      = token.CASE
	TOKEN_CAST      = token.CAST
	TOKEN_COLLATE   = token.COLLATE
	TOKEN_COMMIT    = token.COMMIT
	TOKEN_CREATE    = token.CREATE
	TOKEN_DEFAULT   = token.DEFAULT
	TOKEN_DESC      = token.DESC
	TOKEN_DISTINCT  = token.DISTINCT
	TOKEN_DROP      = token.DROP
	TOKEN_ELSE      = token.ELSE
	TOKEN_END       = token.END
	TOKEN_ESCAPE    = token.ESCAPE
	TOKEN_EXISTS    = token.EXISTS
	TOKEN_FALSE     = token.FALSE
	TOKEN_FROM      = token.FROM
	TOKEN_GLOB      = token.GLOB
	TOKEN_GROUP     = token.GROUP
	TOKEN_HAVING    = token.HAVING
	TOKEN_IF        = token.IF
	TOKEN_IN        = token.IN
	TOKEN_IS        = token.IS
	TOKEN_LIKE      = token.LIKE
	TOKEN_LIMIT     = token.LIMIT
	TOKEN_MATCH     = token.MATCH
	TOKEN_NOT       = token.NOT
	TOKEN_NULL      = token.NULL
	TOKEN_OFFSET    = token.OFFSET
	TOKEN_OR        = token.OR
	TOKEN_ORDER     = token.ORDER
	TOKEN_REGEXP    = token.REGEXP
	TOKEN_RENAME    = token.RENAME
	TOKEN_ROLLBACK  = token.ROLLBACK
	TOKEN_SELECT    = token.SELECT
	TOKEN_SET       = token.SET
	TOKEN_TABLE     = token.TABLE
	TOKEN_TEMP      = token.TEMP
	TOKEN_TEMPORARY = token.TEMPORARY
	TOKEN_THE       = token.THE
	TOKEN_THEN      = token.THEN
	TOKEN_TO        = token.TO
	TOKEN_TRUE      = token.TRUE
	TOKEN_UNSET     = token.UNSET
	TOKEN_USING     = token.USING
	TOKEN_WHEN      = token.WHEN
	TOKEN_WHERE     = token.WHERE
	TOKEN_WITH      = token.WITH

	// BQL / MML keywords
	TOKEN_ACCURACY    = token.ACCURACY
	TOKEN_ANALYZE     = token.ANALYZE
	TOKEN_CHECKPOINT  = token.CHECKPOINT
	TOKEN_CONF        = token.CONF
	TOKEN_CONFIDENCE  = token.CONFIDENCE
	TOKEN_CONTEXT     = token.CONTEXT
	TOKEN_CORRELATION = token.CORRELATION
	TOKEN_DENSITY     = token.DENSITY
	TOKEN_DEPENDENCE  = token.DEPENDENCE
	TOKEN_ESTIMATE    = token.ESTIMATE
	TOKEN_EXPLICIT    = token.EXPLICIT
	TOKEN_FOR         = token.FOR
	TOKEN_GENERATOR   = token.GENERATOR
	TOKEN_GIVEN       = token.GIVEN
	TOKEN_GUESS       = token.GUESS
	TOKEN_IGNORE      = token.IGNORE
	TOKEN_INFER       = token.INFER
	TOKEN_INFORMATION = token.INFORMATION
	TOKEN_INITIALIZE  = token.INITIALIZE
	TOKEN_ITERATION   = token.ITERATION
	TOKEN_ITERATIONS  = token.ITERATIONS
	TOKEN_LATENT      = token.LATENT
	TOKEN_MINUTE      = token.MINUTE
	TOKEN_MINUTES     = token.MINUTES
	TOKEN_MODEL       = token.MODEL
	TOKEN_MODELED     = token.MODELED
	TOKEN_MODELS      = token.MODELS
	TOKEN_MUTUAL      = token.MUTUAL
	TOKEN_OF          = token.OF
	TOKEN_PAIRWISE    = token.PAIRWISE
	TOKEN_POPULATION  = token.POPULATION
	TOKEN_PREDICT     = token.PREDICT
	TOKEN_PREDICTIVE  = token.PREDICTIVE
	TOKEN_PROBABILITY = token.PROBABILITY
	TOKEN_PVALUE      = token.PVALUE
	TOKEN_SAMPLES     = token.SAMPLES
	TOKEN_SCHEMA      = token.SCHEMA
	TOKEN_SECOND      = token.SECOND
	TOKEN_SECONDS     = token.SECONDS
	TOKEN_SIMILARITY  = token.SIMILARITY
	TOKEN_SIMULATE    = token.SIMULATE
	TOKEN_STATTYPE    = token.STATTYPE
	TOKEN_STATTYPES   = token.STATTYPES
	TOKEN_VALUE       = token.VALUE
	TOKEN_VARIABLE    = token.VARIABLE
	TOKEN_VARIABLES   = token.VARIABLES
)
