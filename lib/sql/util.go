package sql

import (
	"fmt"
	"strings"
)

// Params collects bind arguments while a statement is being rendered.
type Params struct {
	dialect Dialect
	args    []any
}

func NewParams(dialect Dialect) *Params {
	return &Params{dialect: dialect}
}

// Add appends [value] and returns the placeholder that refers to it.
func (p *Params) Add(value any) string {
	p.args = append(p.args, value)
	return p.dialect.Placeholder(len(p.args))
}

func (p *Params) Args() []any {
	return p.args
}

func QuoteIdentifiers(identifiers []string, dialect Dialect) []string {
	result := make([]string, len(identifiers))
	for i, identifier := range identifiers {
		result[i] = dialect.QuoteIdentifier(identifier)
	}
	return result
}

// QualifiedColumn renders `alias.column` with the column quoted.
func QualifiedColumn(alias, column string, dialect Dialect) string {
	return fmt.Sprintf("%s.%s", alias, dialect.QuoteIdentifier(column))
}

// NullSafeNotEqual is the portable spelling of `IS DISTINCT FROM` for engines that lack it.
func NullSafeNotEqual(left, right string) string {
	return fmt.Sprintf("(%s <> %s OR (%s IS NULL AND %s IS NOT NULL) OR (%s IS NOT NULL AND %s IS NULL))",
		left, right, left, right, left, right)
}

func BuildAssignments(assignments []Assignment, dialect Dialect, prefix string) string {
	parts := make([]string, len(assignments))
	for i, assignment := range assignments {
		column := dialect.QuoteIdentifier(assignment.Column)
		if prefix != "" {
			column = fmt.Sprintf("%s.%s", prefix, column)
		}
		parts[i] = fmt.Sprintf("%s = %s", column, assignment.Value)
	}
	return strings.Join(parts, ", ")
}

func joinClauses(joins []string) string {
	if len(joins) == 0 {
		return ""
	}
	return " " + strings.Join(joins, " ")
}

// BuildUpdateFromPostgresStyle renders `UPDATE t AS a SET ... FROM s AS b ... WHERE ...`, shared by Postgres, Redshift and Snowflake.
func BuildUpdateFromPostgresStyle(args UpdateFromArgs, dialect Dialect) string {
	return fmt.Sprintf("UPDATE %s AS %s SET %s FROM %s AS %s%s WHERE %s",
		args.Target.FullyQualifiedName(dialect), args.TargetAlias,
		BuildAssignments(args.Assignments, dialect, ""),
		args.Source, args.SourceAlias, joinClauses(args.Joins),
		args.Condition,
	)
}

// BuildUpdateJoinMySQLStyle renders `UPDATE t AS a CROSS JOIN s AS b ... SET a.col = ... WHERE ...`.
// The condition goes into WHERE so that positional placeholders keep the SET-then-WHERE order.
func BuildUpdateJoinMySQLStyle(args UpdateFromArgs, dialect Dialect) string {
	return fmt.Sprintf("UPDATE %s AS %s CROSS JOIN %s AS %s%s SET %s WHERE %s",
		args.Target.FullyQualifiedName(dialect), args.TargetAlias,
		args.Source, args.SourceAlias, joinClauses(args.Joins),
		BuildAssignments(args.Assignments, dialect, args.TargetAlias),
		args.Condition,
	)
}

// BuildUpdateFromMSSQLStyle renders `UPDATE a SET ... FROM t AS a INNER JOIN s AS b ON ...`.
func BuildUpdateFromMSSQLStyle(args UpdateFromArgs, dialect Dialect) string {
	return fmt.Sprintf("UPDATE %s SET %s FROM %s AS %s INNER JOIN %s AS %s ON %s%s",
		args.TargetAlias,
		BuildAssignments(args.Assignments, dialect, ""),
		args.Target.FullyQualifiedName(dialect), args.TargetAlias,
		args.Source, args.SourceAlias, args.Condition, joinClauses(args.Joins),
	)
}
