package parser

import "github.com/inferlab/bqldb/pkg/token"

// Phrase represents one BQL phrase (semicolon-terminated unit).
type Phrase interface {
	phraseNode()
}

// Query is a phrase that produces rows: SELECT, ESTIMATE, INFER, SIMULATE.
type Query interface {
	Phrase
	queryNode()
}

// Expr represents an expression, SQL or BQL.
type Expr interface {
	exprNode()
}

// TableRef represents a table reference in a FROM clause.
type TableRef interface {
	tableRefNode()
}

// NodeInfo provides the source span common to all phrase nodes.
type NodeInfo struct {
	Span token.Span
}

// GetSpan returns the node's source span.
func (n *NodeInfo) GetSpan() token.Span {
	return n.Span
}

// ---------- Transaction phrases ----------

// Begin starts a user transaction.
type Begin struct{ NodeInfo }

// Commit commits the current user transaction.
type Commit struct{ NodeInfo }

// Rollback aborts the current user transaction.
type Rollback struct{ NodeInfo }

func (*Begin) phraseNode()    {}
func (*Commit) phraseNode()   {}
func (*Rollback) phraseNode() {}

// ---------- DDL phrases ----------

// CreateTableAs represents CREATE [TEMP] TABLE [IF NOT EXISTS] t AS query.
// The query body may be any BQL query, including SIMULATE.
type CreateTableAs struct {
	NodeInfo
	Temp        bool
	IfNotExists bool
	Name        string
	Query       Query
}

// DropTable represents DROP TABLE [IF EXISTS] t.
type DropTable struct {
	NodeInfo
	IfExists bool
	Name     string
}

// AlterTable represents ALTER TABLE t with one or more commands.
type AlterTable struct {
	NodeInfo
	Table string
	Cmds  []AlterTableCmd
}

// AlterTableCmd is one command in an ALTER TABLE phrase.
type AlterTableCmd interface {
	alterTableCmdNode()
}

// RenameTable renames the table.
type RenameTable struct {
	To string
}

// RenameColumn renames a column; the rename propagates to variables.
type RenameColumn struct {
	Old string
	New string
}

// SetDefaultGenerator sets the table's default generator (wizard mode).
type SetDefaultGenerator struct {
	Generator string
}

// UnsetDefaultGenerator clears the table's default generator (wizard mode).
type UnsetDefaultGenerator struct{}

func (*RenameTable) alterTableCmdNode()           {}
func (*RenameColumn) alterTableCmdNode()          {}
func (*SetDefaultGenerator) alterTableCmdNode()   {}
func (*UnsetDefaultGenerator) alterTableCmdNode() {}

func (*CreateTableAs) phraseNode() {}
func (*DropTable) phraseNode()     {}
func (*AlterTable) phraseNode()    {}

// ---------- MML phrases ----------

// PopSchemaClause is one clause of a population schema.
type PopSchemaClause interface {
	popSchemaClauseNode()
}

// ModelVars assigns a statistical type to a set of columns.
// MODEL a, b AS numerical
type ModelVars struct {
	Names    []string
	Stattype string
}

// IgnoreVars excludes columns from the population.
// IGNORE c, d
type IgnoreVars struct {
	Names []string
}

// GuessVars asks the system to guess stattypes from column contents.
// GUESS STATTYPES OF (*) or GUESS STATTYPES OF (a, b)
type GuessVars struct {
	Star  bool
	Names []string
}

func (*ModelVars) popSchemaClauseNode()  {}
func (*IgnoreVars) popSchemaClauseNode() {}
func (*GuessVars) popSchemaClauseNode()  {}

// CreatePopulation represents CREATE POPULATION p FOR t WITH SCHEMA (...).
type CreatePopulation struct {
	NodeInfo
	IfNotExists bool
	Name        string
	Table       string
	Schema      []PopSchemaClause
}

// AlterPopCmd is one command in an ALTER POPULATION phrase.
type AlterPopCmd interface {
	alterPopCmdNode()
}

// AddVariable adds a variable for an existing base-table column.
type AddVariable struct {
	Name     string
	Stattype string
}

// SetStattypes changes the statistical type of existing variables.
type SetStattypes struct {
	Names    []string
	Stattype string
}

func (*AddVariable) alterPopCmdNode()  {}
func (*SetStattypes) alterPopCmdNode() {}

// AlterPopulation represents ALTER POPULATION p with one or more commands.
type AlterPopulation struct {
	NodeInfo
	Population string
	Cmds       []AlterPopCmd
}

// DropPopulation represents DROP POPULATION [IF EXISTS] p.
type DropPopulation struct {
	NodeInfo
	IfExists bool
	Name     string
}

// CreateGenerator represents CREATE GENERATOR g FOR p USING backend(...).
// Schema clauses are opaque to the core; the backend interprets them.
type CreateGenerator struct {
	NodeInfo
	IfNotExists bool
	Name        string
	Population  string
	Backend     string
	Schema      []string
}

// AlterGenCmd is one command in an ALTER GENERATOR phrase.
type AlterGenCmd interface {
	alterGenCmdNode()
}

// RenameGenerator renames the generator.
type RenameGenerator struct {
	To string
}

func (*RenameGenerator) alterGenCmdNode() {}

// AlterGenerator represents ALTER GENERATOR g with one or more commands.
type AlterGenerator struct {
	NodeInfo
	Generator string
	Cmds      []AlterGenCmd
}

// DropGenerator represents DROP GENERATOR [IF EXISTS] g.
type DropGenerator struct {
	NodeInfo
	IfExists bool
	Name     string
}

// Initialize represents INITIALIZE n MODELS [IF NOT EXISTS] FOR g.
type Initialize struct {
	NodeInfo
	N           int
	IfNotExists bool
	Generator   string
}

// BudgetUnit is the unit of an ANALYZE budget.
type BudgetUnit int

// Budget units.
const (
	UnitIterations BudgetUnit = iota
	UnitSeconds
	UnitMinutes
)

func (u BudgetUnit) String() string {
	switch u {
	case UnitSeconds:
		return "SECONDS"
	case UnitMinutes:
		return "MINUTES"
	default:
		return "ITERATIONS"
	}
}

// AnalysisBudget bounds an ANALYZE loop: n iterations, seconds, or minutes.
type AnalysisBudget struct {
	Value int
	Unit  BudgetUnit
}

// Analyze represents ANALYZE g [MODELS r] FOR d [CHECKPOINT d] (program).
// Program subclauses are forwarded opaquely to the backend.
type Analyze struct {
	NodeInfo
	Generator  string
	Models     *ModelSet
	Budget     AnalysisBudget
	Checkpoint *AnalysisBudget
	Program    []string
}

// DropModels represents DROP MODELS [r] FROM g.
type DropModels struct {
	NodeInfo
	Generator string
	Models    *ModelSet
}

// ModelSet is a USING MODELS selection: a list of indices and ranges.
// A nil *ModelSet means "all models".
type ModelSet struct {
	Ranges []ModelRange
}

// ModelRange is an inclusive index range; a single index has Lo == Hi.
type ModelRange struct {
	Lo int
	Hi int
}

// Indices expands the set to a sorted list of model indices.
func (s *ModelSet) Indices() []int {
	if s == nil {
		return nil
	}
	seen := map[int]bool{}
	var out []int
	for _, r := range s.Ranges {
		for i := r.Lo; i <= r.Hi; i++ {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (*CreatePopulation) phraseNode() {}
func (*AlterPopulation) phraseNode()  {}
func (*DropPopulation) phraseNode()   {}
func (*CreateGenerator) phraseNode()  {}
func (*AlterGenerator) phraseNode()   {}
func (*DropGenerator) phraseNode()    {}
func (*Initialize) phraseNode()       {}
func (*Analyze) phraseNode()          {}
func (*DropModels) phraseNode()       {}

// ---------- Query phrases ----------

// SelectItem represents an item in a projection list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string // AS alias
}

// OrderingItem represents an item in an ORDER BY clause.
type OrderingItem struct {
	Expr Expr
	Desc bool
}

// Select represents a plain SQL SELECT phrase (no BQL context).
type Select struct {
	NodeInfo
	Distinct bool
	Columns  []SelectItem
	From     []TableRef
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderingItem
	Limit    Expr
	Offset   Expr
}

// TableName references a stored table, optionally aliased.
type TableName struct {
	Name  string
	Alias string
}

// SubqueryTable is a parenthesized query in a FROM clause.
type SubqueryTable struct {
	Query Query
	Alias string
}

func (*TableName) tableRefNode()     {}
func (*SubqueryTable) tableRefNode() {}

// EstimateMode identifies the implied context of an ESTIMATE query header.
type EstimateMode int

// Estimate modes. The header fixes which BQL operators are legal in the
// projection and clauses; the compiler enforces legality.
const (
	EstRows            EstimateMode = iota // FROM p: one row context
	EstPairwiseRows                        // FROM PAIRWISE p: two row contexts
	EstColumns                             // FROM VARIABLES OF p: one column context
	EstPairwiseColumns                     // FROM PAIRWISE VARIABLES OF p: two column contexts
	EstBy                                  // BY p: constant context, single row output
)

// Estimate represents an ESTIMATE query in any of its five header modes.
type Estimate struct {
	NodeInfo
	Mode       EstimateMode
	Distinct   bool
	Columns    []SelectItem
	Population string
	Generator  string    // MODELED BY g, empty for the default
	Models     *ModelSet // USING MODELS, nil for all
	For        []string  // FOR (subcols) in pairwise-columns mode
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderingItem
	Limit      Expr
	Offset     Expr
}

// InferItem names one column to fill in an implicit INFER.
type InferItem struct {
	Star  bool
	Name  string
	Alias string
}

// InferImplicit represents INFER cols [WITH CONFIDENCE k] FROM p ...
// Missing values are filled when the prediction confidence meets k;
// confidences themselves are not returned.
type InferImplicit struct {
	NodeInfo
	Columns    []InferItem
	Confidence Expr // nil means 0
	Population string
	Generator  string
	Models     *ModelSet
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderingItem
	Limit      Expr
	Offset     Expr
}

// InferExplicit represents INFER EXPLICIT cols FROM p ...
// Projection items may be PredictExpr entries producing value and
// confidence columns.
type InferExplicit struct {
	NodeInfo
	Columns    []SelectItem
	Population string
	Generator  string
	Models     *ModelSet
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderingItem
	Limit      Expr
	Offset     Expr
}

// Constraint binds a variable to an expression, as in GIVEN clauses.
type Constraint struct {
	Name  string
	Value Expr
}

// Simulate represents SIMULATE cols FROM p [GIVEN ...] LIMIT n.
type Simulate struct {
	NodeInfo
	Columns    []string
	Population string
	Generator  string
	Models     *ModelSet
	Given      []Constraint
	Limit      Expr
	Accuracy   *int
}

func (*Select) phraseNode()        {}
func (*Estimate) phraseNode()      {}
func (*InferImplicit) phraseNode() {}
func (*InferExplicit) phraseNode() {}
func (*Simulate) phraseNode()      {}

func (*Select) queryNode()        {}
func (*Estimate) queryNode()      {}
func (*InferImplicit) queryNode() {}
func (*InferExplicit) queryNode() {}
func (*Simulate) queryNode()      {}
