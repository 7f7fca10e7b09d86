package dialect

import (
	"fmt"
	"strings"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/sql"
)

type SnowflakeDialect struct{}

func (SnowflakeDialect) Kind() constants.DatabaseKind {
	return constants.Snowflake
}

func (SnowflakeDialect) QuoteIdentifier(identifier string) string {
	// Snowflake folds unquoted identifiers to uppercase.
	return fmt.Sprintf(`"%s"`, strings.ToUpper(identifier))
}

func (SnowflakeDialect) Placeholder(_ int) string {
	return "?"
}

func (SnowflakeDialect) IsDistinctFrom(left, right string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

func (SnowflakeDialect) MonthStart(expr string) string {
	return fmt.Sprintf("CAST(DATE_TRUNC('MONTH', %s) AS DATE)", expr)
}

func (SnowflakeDialect) CastDate(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (sd SnowflakeDialect) BuildUpdateFromQuery(args sql.UpdateFromArgs) string {
	return sql.BuildUpdateFromPostgresStyle(args, sd)
}

func (sd SnowflakeDialect) BuildClearTableQuery(tableID sql.TableIdentifier) string {
	// TRUNCATE is DDL in Snowflake and would commit the open transaction.
	return fmt.Sprintf("DELETE FROM %s", tableID.FullyQualifiedName(sd))
}

func (SnowflakeDialect) BuildTryLockQuery() (string, error) {
	return "", fmt.Errorf("advisory locks: %w, use the redis lock instead", sql.ErrUnsupported)
}

func (SnowflakeDialect) BuildUnlockQuery() (string, error) {
	return "", fmt.Errorf("advisory locks: %w, use the redis lock instead", sql.ErrUnsupported)
}

func (SnowflakeDialect) BuildCopyQuery(_ sql.CopyArgs) (string, error) {
	return "", fmt.Errorf("COPY from object storage: %w", sql.ErrUnsupported)
}
