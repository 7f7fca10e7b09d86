package dialect

import (
	"fmt"
	"strings"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/sql"
)

type RedshiftDialect struct{}

func (RedshiftDialect) Kind() constants.DatabaseKind {
	return constants.Redshift
}

func (RedshiftDialect) QuoteIdentifier(identifier string) string {
	// Preserve the existing behavior of Redshift identifiers being lowercased due to not being quoted.
	return fmt.Sprintf(`"%s"`, strings.ToLower(identifier))
}

func (RedshiftDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (RedshiftDialect) IsDistinctFrom(left, right string) string {
	// Redshift does not support IS DISTINCT FROM.
	return sql.NullSafeNotEqual(left, right)
}

func (RedshiftDialect) MonthStart(expr string) string {
	return fmt.Sprintf("CAST(DATE_TRUNC('month', %s) AS DATE)", expr)
}

func (RedshiftDialect) CastDate(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (rd RedshiftDialect) BuildUpdateFromQuery(args sql.UpdateFromArgs) string {
	return sql.BuildUpdateFromPostgresStyle(args, rd)
}

func (rd RedshiftDialect) BuildClearTableQuery(tableID sql.TableIdentifier) string {
	// TRUNCATE commits the surrounding transaction on Redshift, so we have to DELETE instead.
	return fmt.Sprintf("DELETE FROM %s", tableID.FullyQualifiedName(rd))
}

func (RedshiftDialect) BuildTryLockQuery() (string, error) {
	return "", fmt.Errorf("advisory locks: %w, use the redis lock instead", sql.ErrUnsupported)
}

func (RedshiftDialect) BuildUnlockQuery() (string, error) {
	return "", fmt.Errorf("advisory locks: %w, use the redis lock instead", sql.ErrUnsupported)
}

func (rd RedshiftDialect) BuildCopyQuery(args sql.CopyArgs) (string, error) {
	if args.IAMRole == "" {
		return "", fmt.Errorf("an IAM role is required to COPY into %q", args.Table.String())
	}

	var region string
	if args.Region != "" {
		region = fmt.Sprintf(" REGION %s", sql.QuoteLiteral(args.Region))
	}

	return fmt.Sprintf(`COPY %s (%s) FROM %s IAM_ROLE %s%s FORMAT AS CSV GZIP IGNOREHEADER 1 DELIMITER ',' NULL AS '\N' TIMEFORMAT 'auto' TRUNCATECOLUMNS`,
		args.Table.FullyQualifiedName(rd),
		strings.Join(sql.QuoteIdentifiers(args.Columns, rd), ","),
		sql.QuoteLiteral(args.URI),
		sql.QuoteLiteral(args.IAMRole),
		region,
	), nil
}
