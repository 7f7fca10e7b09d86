package sql

import (
	"fmt"
	"strings"
	"time"
)

// QuoteLiteral wraps [value] as a SQL string literal, doubling embedded single quotes.
func QuoteLiteral(value string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", "''"))
}

// DateLiteral renders [value] as a typed date constant. It is used where a bind parameter would land out of order.
func DateLiteral(value time.Time, dialect Dialect) string {
	return dialect.CastDate(QuoteLiteral(value.Format(time.DateOnly)))
}
