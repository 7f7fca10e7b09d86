package sql

import (
	"errors"

	"github.com/artie-labs/warehouse/lib/config/constants"
)

// ErrUnsupported is returned by dialect builders for statements the engine cannot express.
var ErrUnsupported = errors.New("not supported by this dialect")

// Assignment is a single `column = expression` pair of an UPDATE statement.
type Assignment struct {
	// Column is the unquoted target column name.
	Column string
	// Value is an already rendered SQL expression.
	Value string
}

// UpdateFromArgs describes an UPDATE of [Target] driven by a join against [Source].
// Every dialect renders it in its own syntax (UPDATE ... FROM, UPDATE ... JOIN, UPDATE alias ... FROM).
// Bind parameters may only appear in Assignments and Condition, and must be added in that order.
type UpdateFromArgs struct {
	Target      TableIdentifier
	TargetAlias string
	// Source is a rendered table expression, either a fully qualified table name or a parenthesized subquery.
	Source      string
	SourceAlias string
	// Condition joins the target to the source and may carry additional filters.
	Condition string
	// Joins are extra join clauses attached to the source, e.g. `LEFT JOIN dw.customers AS c ON ...`.
	Joins       []string
	Assignments []Assignment
}

type CopyArgs struct {
	Table   TableIdentifier
	Columns []string
	URI     string
	IAMRole string
	Region  string
}

type Dialect interface {
	Kind() constants.DatabaseKind
	QuoteIdentifier(identifier string) string
	// Placeholder returns the bind parameter marker for the 1-based [position].
	Placeholder(position int) string
	// IsDistinctFrom returns a predicate that is true when the two expressions differ, treating two NULLs as equal.
	IsDistinctFrom(left, right string) string
	// MonthStart truncates a date expression to the first day of its month.
	MonthStart(expr string) string
	CastDate(expr string) string
	BuildUpdateFromQuery(args UpdateFromArgs) string
	// BuildClearTableQuery empties a table without leaving the current transaction.
	BuildClearTableQuery(tableID TableIdentifier) string
	// BuildTryLockQuery returns a query yielding a single integer column, 1 if the session lock named by the first bind parameter was acquired.
	BuildTryLockQuery() (string, error)
	BuildUnlockQuery() (string, error)
	BuildCopyQuery(args CopyArgs) (string, error)
}
