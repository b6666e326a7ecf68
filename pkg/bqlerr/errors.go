// Package bqlerr defines the error kinds surfaced by the BQL core.
//
// Every error aborts the phrase that raised it; no partial results are
// returned. Only Cancelled is recoverable without reopening the
// connection. Kinds are discriminated with errors.As.
package bqlerr

import (
	"errors"
	"fmt"

	"github.com/inferlab/bqldb/pkg/token"
)

// Kind names the entity a NameError is about.
type Kind string

// Name error kinds.
const (
	KindTable      Kind = "table"
	KindPopulation Kind = "population"
	KindGenerator  Kind = "generator"
	KindVariable   Kind = "variable"
	KindColumn     Kind = "column"
	KindBackend    Kind = "backend"
	KindModel      Kind = "model"
)

// NameError reports a missing or ambiguous name.
type NameError struct {
	Kind Kind
	Name string
	Pos  token.Position
}

func (e *NameError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: no such %s: %q", e.Pos, e.Kind, e.Name)
	}
	return fmt.Sprintf("no such %s: %q", e.Kind, e.Name)
}

// AmbiguousDefaultError reports a table with several generators and no
// default when MODELED BY was elided.
type AmbiguousDefaultError struct {
	Population string
}

func (e *AmbiguousDefaultError) Error() string {
	return fmt.Sprintf("population %q has multiple generators and no default; use MODELED BY", e.Population)
}

// SchemaError reports a semantic schema violation: wrong statistical
// type, invalid model index, duplicate variable, and the like.
type SchemaError struct {
	Message string
	Pos     token.Position
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: schema error: %s", e.Pos, e.Message)
	}
	return "schema error: " + e.Message
}

// Schemaf builds a SchemaError from a format string.
func Schemaf(format string, args ...any) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// WrongContextError reports a BQL operator used outside the query context
// it needs.
type WrongContextError struct {
	Operator string
	Context  string
}

func (e *WrongContextError) Error() string {
	return fmt.Sprintf("%s is not allowed in %s context", e.Operator, e.Context)
}

// IncompatibleStattypeError reports a column operator applied across
// statistical types it cannot relate.
type IncompatibleStattypeError struct {
	Operator string
	Col0     string
	Type0    string
	Col1     string
	Type1    string
}

func (e *IncompatibleStattypeError) Error() string {
	return fmt.Sprintf("%s cannot relate %s (%s) and %s (%s)",
		e.Operator, e.Col0, e.Type0, e.Col1, e.Type1)
}

// TransactionError reports misuse of transactions: nesting, commit with
// none open, ANALYZE inside a user transaction.
type TransactionError struct {
	Message string
}

func (e *TransactionError) Error() string {
	return "transaction error: " + e.Message
}

// ErrCancelled is surfaced when the connection's interrupt flag aborts a
// phrase. The enclosing transaction has been rolled back; the connection
// remains usable.
var ErrCancelled = errors.New("cancelled")

// InternalError reports a violated invariant of the core itself.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

// Internalf builds an InternalError from a format string.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}
