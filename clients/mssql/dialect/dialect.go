package dialect

import (
	"fmt"
	"strings"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/sql"
)

type MSSQLDialect struct{}

func (MSSQLDialect) Kind() constants.DatabaseKind {
	return constants.MSSQL
}

func (MSSQLDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(identifier, `"`, `""`))
}

func (MSSQLDialect) Placeholder(position int) string {
	return fmt.Sprintf("@p%d", position)
}

func (MSSQLDialect) IsDistinctFrom(left, right string) string {
	// IS DISTINCT FROM only exists from SQL Server 2022 onwards.
	return sql.NullSafeNotEqual(left, right)
}

func (MSSQLDialect) MonthStart(expr string) string {
	return fmt.Sprintf("DATEFROMPARTS(YEAR(%s), MONTH(%s), 1)", expr, expr)
}

func (MSSQLDialect) CastDate(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (md MSSQLDialect) BuildUpdateFromQuery(args sql.UpdateFromArgs) string {
	return sql.BuildUpdateFromMSSQLStyle(args, md)
}

func (md MSSQLDialect) BuildClearTableQuery(tableID sql.TableIdentifier) string {
	return fmt.Sprintf("DELETE FROM %s", tableID.FullyQualifiedName(md))
}

func (MSSQLDialect) BuildTryLockQuery() (string, error) {
	return `DECLARE @result INT; EXEC @result = sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Session', @LockTimeout = 0; SELECT CASE WHEN @result >= 0 THEN 1 ELSE 0 END`, nil
}

func (MSSQLDialect) BuildUnlockQuery() (string, error) {
	return `EXEC sp_releaseapplock @Resource = @p1, @LockOwner = 'Session'`, nil
}

func (MSSQLDialect) BuildCopyQuery(_ sql.CopyArgs) (string, error) {
	return "", fmt.Errorf("COPY from object storage: %w", sql.ErrUnsupported)
}
