package sql

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/artie-labs/warehouse/lib/config/constants"
)

// mockDialect quotes with brackets and numbers its placeholders, so it is easy to tell apart in assertions.
type mockDialect struct{}

func (mockDialect) Kind() constants.DatabaseKind             { return constants.Postgres }
func (mockDialect) QuoteIdentifier(identifier string) string { return "[" + identifier + "]" }
func (mockDialect) Placeholder(position int) string          { return fmt.Sprintf(":%d", position) }
func (mockDialect) IsDistinctFrom(left, right string) string { return NullSafeNotEqual(left, right) }
func (mockDialect) MonthStart(expr string) string            { return "MONTH(" + expr + ")" }
func (mockDialect) CastDate(expr string) string              { return "DATE(" + expr + ")" }
func (md mockDialect) BuildUpdateFromQuery(args UpdateFromArgs) string {
	return BuildUpdateFromPostgresStyle(args, md)
}
func (md mockDialect) BuildClearTableQuery(tableID TableIdentifier) string {
	return "DELETE FROM " + tableID.FullyQualifiedName(md)
}
func (mockDialect) BuildTryLockQuery() (string, error)        { return "", ErrUnsupported }
func (mockDialect) BuildUnlockQuery() (string, error)         { return "", ErrUnsupported }
func (mockDialect) BuildCopyQuery(_ CopyArgs) (string, error) { return "", ErrUnsupported }

func TestQuoteLiteral(t *testing.T) {
	testCases := []struct {
		name     string
		colVal   string
		expected string
	}{
		{
			name:     "string",
			colVal:   "hello",
			expected: "'hello'",
		},
		{
			name:     "string that requires escaping",
			colVal:   "bobby o'reilly",
			expected: "'bobby o''reilly'",
		},
		{
			name:     "s3 uri",
			colVal:   "s3://bucket/CUSTOMERS/2024-03-01/customers.csv.gz",
			expected: "'s3://bucket/CUSTOMERS/2024-03-01/customers.csv.gz'",
		},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, QuoteLiteral(testCase.colVal), testCase.name)
	}
}

func TestParams(t *testing.T) {
	params := NewParams(mockDialect{})
	assert.Empty(t, params.Args())
	assert.Equal(t, ":1", params.Add(101))
	assert.Equal(t, ":2", params.Add("R"))
	assert.Equal(t, []any{101, "R"}, params.Args())
}

func TestTableIdentifier(t *testing.T) {
	tableID := NewTableIdentifier("devdw", "customers")
	assert.Equal(t, "devdw", tableID.Schema())
	assert.Equal(t, "customers", tableID.Table())
	assert.Equal(t, "[devdw].[customers]", tableID.FullyQualifiedName(mockDialect{}))
	assert.Equal(t, "devdw.customers", tableID.String())

	noSchema := NewTableIdentifier("", "customers")
	assert.Equal(t, "[customers]", noSchema.FullyQualifiedName(mockDialect{}))
	assert.Equal(t, "customers", noSchema.String())
}

func TestNullSafeNotEqual(t *testing.T) {
	assert.Equal(t,
		"(a <> b OR (a IS NULL AND b IS NOT NULL) OR (a IS NOT NULL AND b IS NULL))",
		NullSafeNotEqual("a", "b"),
	)
}

func TestQualifiedColumn(t *testing.T) {
	assert.Equal(t, "s.[creditLimit]", QualifiedColumn("s", "creditLimit", mockDialect{}))
	assert.Equal(t, []string{"[a]", "[b]"}, QuoteIdentifiers([]string{"a", "b"}, mockDialect{}))
}

func TestBuildUpdateFrom(t *testing.T) {
	args := UpdateFromArgs{
		Target:      NewTableIdentifier("devdw", "orders"),
		TargetAlias: "t",
		Source:      "[devstage].[orders]",
		SourceAlias: "s",
		Condition:   "t.[src_orderNumber] = s.[orderNumber]",
		Joins:       []string{"LEFT JOIN [devdw].[customers] AS fk0 ON s.[customerNumber] = fk0.[src_customerNumber]"},
		Assignments: []Assignment{
			{Column: "status", Value: "s.[status]"},
			{Column: "dw_customer_id", Value: "fk0.[dw_customer_id]"},
		},
	}

	assert.Equal(t,
		"UPDATE [devdw].[orders] AS t SET [status] = s.[status], [dw_customer_id] = fk0.[dw_customer_id] FROM [devstage].[orders] AS s LEFT JOIN [devdw].[customers] AS fk0 ON s.[customerNumber] = fk0.[src_customerNumber] WHERE t.[src_orderNumber] = s.[orderNumber]",
		BuildUpdateFromPostgresStyle(args, mockDialect{}),
	)
	assert.Equal(t,
		"UPDATE [devdw].[orders] AS t CROSS JOIN [devstage].[orders] AS s LEFT JOIN [devdw].[customers] AS fk0 ON s.[customerNumber] = fk0.[src_customerNumber] SET t.[status] = s.[status], t.[dw_customer_id] = fk0.[dw_customer_id] WHERE t.[src_orderNumber] = s.[orderNumber]",
		BuildUpdateJoinMySQLStyle(args, mockDialect{}),
	)
	assert.Equal(t,
		"UPDATE t SET [status] = s.[status], [dw_customer_id] = fk0.[dw_customer_id] FROM [devdw].[orders] AS t INNER JOIN [devstage].[orders] AS s ON t.[src_orderNumber] = s.[orderNumber] LEFT JOIN [devdw].[customers] AS fk0 ON s.[customerNumber] = fk0.[src_customerNumber]",
		BuildUpdateFromMSSQLStyle(args, mockDialect{}),
	)

	{
		// No joins
		args.Joins = nil
		assert.Equal(t,
			"UPDATE [devdw].[orders] AS t SET [status] = s.[status], [dw_customer_id] = fk0.[dw_customer_id] FROM [devstage].[orders] AS s WHERE t.[src_orderNumber] = s.[orderNumber]",
			BuildUpdateFromPostgresStyle(args, mockDialect{}),
		)
	}
}

func TestDateLiteral(t *testing.T) {
	assert.Equal(t, "DATE('2024-03-01')", DateLiteral(time.Date(2024, time.March, 1, 13, 0, 0, 0, time.UTC), mockDialect{}))
}
