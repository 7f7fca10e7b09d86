package dialect

import (
	"fmt"
	"strings"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/sql"
)

type MySQLDialect struct{}

func (MySQLDialect) Kind() constants.DatabaseKind {
	return constants.MySQL
}

func (MySQLDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf("`%s`", strings.ReplaceAll(identifier, "`", "``"))
}

func (MySQLDialect) Placeholder(_ int) string {
	return "?"
}

func (MySQLDialect) IsDistinctFrom(left, right string) string {
	return fmt.Sprintf("NOT (%s <=> %s)", left, right)
}

func (MySQLDialect) MonthStart(expr string) string {
	return fmt.Sprintf("CAST(DATE_FORMAT(%s, '%%Y-%%m-01') AS DATE)", expr)
}

func (MySQLDialect) CastDate(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (md MySQLDialect) BuildUpdateFromQuery(args sql.UpdateFromArgs) string {
	return sql.BuildUpdateJoinMySQLStyle(args, md)
}

func (md MySQLDialect) BuildClearTableQuery(tableID sql.TableIdentifier) string {
	// TRUNCATE is DDL in MySQL and causes an implicit commit.
	return fmt.Sprintf("DELETE FROM %s", tableID.FullyQualifiedName(md))
}

func (MySQLDialect) BuildTryLockQuery() (string, error) {
	return "SELECT COALESCE(GET_LOCK(?, 0), 0)", nil
}

func (MySQLDialect) BuildUnlockQuery() (string, error) {
	return "SELECT RELEASE_LOCK(?)", nil
}

func (MySQLDialect) BuildCopyQuery(_ sql.CopyArgs) (string, error) {
	return "", fmt.Errorf("COPY from object storage: %w", sql.ErrUnsupported)
}
