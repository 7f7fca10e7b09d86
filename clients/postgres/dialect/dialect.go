package dialect

import (
	"fmt"
	"strings"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/sql"
)

type PostgresDialect struct{}

func (PostgresDialect) Kind() constants.DatabaseKind {
	return constants.Postgres
}

func (PostgresDialect) QuoteIdentifier(identifier string) string {
	// Unquoted identifiers are folded to lowercase by Postgres, so we do the same before quoting.
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(strings.ToLower(identifier), `"`, `""`))
}

func (PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (PostgresDialect) IsDistinctFrom(left, right string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

func (PostgresDialect) MonthStart(expr string) string {
	return fmt.Sprintf("CAST(DATE_TRUNC('month', %s) AS DATE)", expr)
}

func (PostgresDialect) CastDate(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (pd PostgresDialect) BuildUpdateFromQuery(args sql.UpdateFromArgs) string {
	return sql.BuildUpdateFromPostgresStyle(args, pd)
}

func (pd PostgresDialect) BuildClearTableQuery(tableID sql.TableIdentifier) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", tableID.FullyQualifiedName(pd))
}

func (PostgresDialect) BuildTryLockQuery() (string, error) {
	return "SELECT CASE WHEN pg_try_advisory_lock(hashtext($1)) THEN 1 ELSE 0 END", nil
}

func (PostgresDialect) BuildUnlockQuery() (string, error) {
	return "SELECT pg_advisory_unlock(hashtext($1))", nil
}

func (PostgresDialect) BuildCopyQuery(_ sql.CopyArgs) (string, error) {
	return "", fmt.Errorf("COPY from object storage: %w", sql.ErrUnsupported)
}
