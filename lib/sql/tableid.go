package sql

import "fmt"

type TableIdentifier struct {
	schema string
	table  string
}

func NewTableIdentifier(schema, table string) TableIdentifier {
	return TableIdentifier{schema: schema, table: table}
}

func (ti TableIdentifier) Schema() string {
	return ti.schema
}

func (ti TableIdentifier) Table() string {
	return ti.table
}

func (ti TableIdentifier) FullyQualifiedName(dialect Dialect) string {
	if ti.schema == "" {
		return dialect.QuoteIdentifier(ti.table)
	}

	return fmt.Sprintf("%s.%s", dialect.QuoteIdentifier(ti.schema), dialect.QuoteIdentifier(ti.table))
}

func (ti TableIdentifier) String() string {
	if ti.schema == "" {
		return ti.table
	}

	return fmt.Sprintf("%s.%s", ti.schema, ti.table)
}
