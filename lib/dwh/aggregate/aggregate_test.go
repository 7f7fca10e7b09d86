package aggregate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mssqlDialect "github.com/artie-labs/warehouse/clients/mssql/dialect"
	"github.com/artie-labs/warehouse/clients/redshift/dialect"
	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/dwh"
)

var (
	fixedNow = time.Date(2024, time.March, 1, 6, 30, 0, 0, time.UTC)
	batch101 = batchcontrol.Batch{No: 101, Date: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}
)

func newConfig() dwh.Config {
	return dwh.Config{
		Dialect: dialect.RedshiftDialect{},
		Schemas: dwh.Schemas{Metadata: "etl_metadata", Staging: "devstage", Warehouse: "devdw"},
		Now:     func() time.Time { return fixedNow },
	}
}

func newMockStore(t *testing.T) (db.Store, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.NewStore(sqlDB), mock
}

func dailyCustomerSummary() DailySummary {
	return DailySummary{
		Name:            "daily_customer_summary",
		Table:           "daily_customer_summary",
		PeriodColumn:    "summary_date",
		DimensionColumn: "dw_customer_id",
		Metrics:         []string{"order_count", "payment_amount"},
		Contributions: []Contribution{
			{
				Name:      "orders",
				Table:     "orders",
				Alias:     "o",
				Period:    "o.orderDate",
				Dimension: "o.dw_customer_id",
				Metrics:   map[string]string{"order_count": "COUNT(DISTINCT o.dw_order_id)"},
			},
			{
				Name:      "payments",
				Table:     "payments",
				Alias:     "p",
				Period:    "p.paymentDate",
				Dimension: "p.dw_customer_id",
				Metrics:   map[string]string{"payment_amount": "SUM(p.amount)"},
			},
		},
	}
}

func monthlyCustomerSummary() MonthlySummary {
	return MonthlySummary{
		Name:              "monthly_customer_summary",
		Table:             "monthly_customer_summary",
		Daily:             "daily_customer_summary",
		PeriodColumn:      "start_of_the_month_date",
		DailyPeriodColumn: "summary_date",
		DimensionColumn:   "dw_customer_id",
		Sums:              []string{"order_count"},
		ActiveCounts:      []ActiveCount{{Column: "order_apm", Indicator: "order_count"}},
	}
}

const (
	dailyDelete = `DELETE FROM "devdw"."daily_customer_summary" WHERE "summary_date" >= $1`
	dailyInsert = `INSERT INTO "devdw"."daily_customer_summary" ("summary_date", "dw_customer_id", "order_count", "payment_amount", "dw_create_timestamp", "dw_update_timestamp", "etl_batch_no", "etl_batch_date") ` +
		`SELECT u."summary_date", u."dw_customer_id", MAX(u."order_count"), MAX(u."payment_amount"), $1, $2, $3, $4 FROM (` +
		`SELECT CAST(o.orderDate AS DATE) AS "summary_date", o.dw_customer_id AS "dw_customer_id", COUNT(DISTINCT o.dw_order_id) AS "order_count", 0 AS "payment_amount" FROM "devdw"."orders" AS o WHERE CAST(o.orderDate AS DATE) >= $5 GROUP BY CAST(o.orderDate AS DATE), o.dw_customer_id` +
		` UNION ALL ` +
		`SELECT CAST(p.paymentDate AS DATE) AS "summary_date", p.dw_customer_id AS "dw_customer_id", 0 AS "order_count", SUM(p.amount) AS "payment_amount" FROM "devdw"."payments" AS p WHERE CAST(p.paymentDate AS DATE) >= $6 GROUP BY CAST(p.paymentDate AS DATE), p.dw_customer_id` +
		`) AS u GROUP BY u."summary_date", u."dw_customer_id"`

	monthlyDelta = `SELECT CAST(DATE_TRUNC('month', d."summary_date") AS DATE) AS "start_of_the_month_date", d."dw_customer_id" AS "dw_customer_id", SUM(d."order_count") AS "order_count", COUNT(DISTINCT CASE WHEN d."order_count" > 0 THEN d."summary_date" END) AS "order_apm" ` +
		`FROM "devdw"."daily_customer_summary" AS d WHERE d."summary_date" >= CAST('2024-03-01' AS DATE) GROUP BY CAST(DATE_TRUNC('month', d."summary_date") AS DATE), d."dw_customer_id"`
	monthlyKeys   = `m."start_of_the_month_date" = d."start_of_the_month_date" AND m."dw_customer_id" = d."dw_customer_id"`
	monthlyUpdate = `UPDATE "devdw"."monthly_customer_summary" AS m SET "order_count" = m."order_count" + d."order_count", "order_apm" = m."order_apm" + d."order_apm", "dw_update_timestamp" = $1, "etl_batch_no" = $2, "etl_batch_date" = $3 FROM (` + monthlyDelta + `) AS d WHERE ` + monthlyKeys
	monthlyInsert = `INSERT INTO "devdw"."monthly_customer_summary" ("start_of_the_month_date", "dw_customer_id", "order_count", "order_apm", "dw_create_timestamp", "dw_update_timestamp", "etl_batch_no", "etl_batch_date") ` +
		`SELECT d."start_of_the_month_date", d."dw_customer_id", d."order_count", d."order_apm", $1, $2, $3, $4 FROM (` + monthlyDelta + `) AS d`
	monthlyInsertMissing = monthlyInsert + ` LEFT JOIN "devdw"."monthly_customer_summary" AS m ON ` + monthlyKeys + ` WHERE m."start_of_the_month_date" IS NULL`

	ledgerCheck  = `SELECT COUNT(*) FROM "etl_metadata"."rollup_log" WHERE "summary_table" = $1 AND "etl_batch_no" = $2`
	ledgerInsert = `INSERT INTO "etl_metadata"."rollup_log" ("summary_table", "etl_batch_no", "since_date", "dw_create_timestamp") VALUES ($1, $2, $3, $4)`
)

func TestEngine_RebuildDaily(t *testing.T) {
	{
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(dailyDelete).WithArgs(batch101.Date).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(dailyInsert).WithArgs(fixedNow, fixedNow, int64(101), batch101.Date, batch101.Date, batch101.Date).WillReturnResult(sqlmock.NewResult(0, 6))
		mock.ExpectCommit()

		result, err := NewEngine(newConfig(), constants.Additive).RebuildDaily(t.Context(), store, dailyCustomerSummary(), batch101.Date, batch101)
		assert.NoError(t, err)
		assert.Equal(t, Result{Deleted: 4, Inserted: 6}, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// Insert failure keeps the old rows
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(dailyDelete).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(dailyInsert).WillReturnError(fmt.Errorf("column does not exist"))
		mock.ExpectRollback()

		_, err := NewEngine(newConfig(), constants.Additive).RebuildDaily(t.Context(), store, dailyCustomerSummary(), batch101.Date, batch101)
		var persistenceErr *db.PersistenceError
		assert.True(t, errors.As(err, &persistenceErr))
		assert.Equal(t, "devdw.daily_customer_summary", persistenceErr.Table)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestEngine_BuildContributionQuery_Joins(t *testing.T) {
	daily := dailyCustomerSummary()
	daily.Contributions[0].Joins = []Join{
		{Table: "orderdetails", Alias: "od", On: "o.dw_order_id = od.dw_order_id"},
		{Table: "products", Alias: "p", On: "od.dw_product_id = p.dw_product_id", Left: true},
	}
	daily.Contributions[0].Where = "o.status = 'Shipped'"

	engine := NewEngine(newConfig(), constants.Additive)
	statement := engine.buildDailyInsertQuery(daily, batch101.Date, batch101)
	assert.Contains(t, statement.query, `FROM "devdw"."orders" AS o INNER JOIN "devdw"."orderdetails" AS od ON o.dw_order_id = od.dw_order_id LEFT JOIN "devdw"."products" AS p ON od.dw_product_id = p.dw_product_id WHERE CAST(o.orderDate AS DATE) >= $5 AND (o.status = 'Shipped')`)
}

func TestEngine_RollupMonthly_Additive(t *testing.T) {
	{
		// The delta is added on top of the existing totals, so two daily rows of 3 and 5 raise the monthly total by 8.
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(ledgerCheck).WithArgs("monthly_customer_summary", int64(101)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectExec(monthlyUpdate).WithArgs(fixedNow, int64(101), batch101.Date).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(monthlyInsertMissing).WithArgs(fixedNow, fixedNow, int64(101), batch101.Date).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(ledgerInsert).WithArgs("monthly_customer_summary", int64(101), batch101.Date, fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := NewEngine(newConfig(), constants.Additive).RollupMonthly(t.Context(), store, monthlyCustomerSummary(), batch101.Date, batch101)
		assert.NoError(t, err)
		assert.Equal(t, Result{Updated: 1, Inserted: 2}, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// A batch that was already rolled up is skipped.
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(ledgerCheck).WithArgs("monthly_customer_summary", int64(101)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectCommit()

		result, err := NewEngine(newConfig(), constants.Additive).RollupMonthly(t.Context(), store, monthlyCustomerSummary(), batch101.Date, batch101)
		assert.NoError(t, err)
		assert.Equal(t, Result{Skipped: true}, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// Ledger write failure rolls the rollup back.
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(ledgerCheck).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectExec(monthlyUpdate).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(monthlyInsertMissing).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(ledgerInsert).WillReturnError(fmt.Errorf(`relation "rollup_log" does not exist`))
		mock.ExpectRollback()

		_, err := NewEngine(newConfig(), constants.Additive).RollupMonthly(t.Context(), store, monthlyCustomerSummary(), batch101.Date, batch101)
		assert.ErrorContains(t, err, "ledger entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestEngine_RollupMonthly_Recompute(t *testing.T) {
	// Mid-month batches recompute the whole month.
	since := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "devdw"."monthly_customer_summary" WHERE "start_of_the_month_date" >= $1`).WithArgs(batch101.Date).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(monthlyInsert).WithArgs(fixedNow, fixedNow, int64(101), batch101.Date).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	result, err := NewEngine(newConfig(), constants.Recompute).RollupMonthly(t.Context(), store, monthlyCustomerSummary(), since, batch101)
	assert.NoError(t, err)
	assert.Equal(t, Result{Deleted: 3, Inserted: 3}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_BuildDeltaQuery(t *testing.T) {
	{
		// Empty indicator counts every day
		monthly := monthlyCustomerSummary()
		monthly.ActiveCounts = []ActiveCount{{Column: "active_days"}}
		delta := NewEngine(newConfig(), constants.Additive).buildDeltaQuery(monthly, batch101.Date)
		assert.Contains(t, delta, `COUNT(DISTINCT d."summary_date") AS "active_days"`)
	}
	{
		// SQL Server
		cfg := newConfig()
		cfg.Dialect = mssqlDialect.MSSQLDialect{}
		delta := NewEngine(cfg, constants.Additive).buildDeltaQuery(monthlyCustomerSummary(), batch101.Date)
		assert.Contains(t, delta, `DATEFROMPARTS(YEAR(d."summary_date"), MONTH(d."summary_date"), 1) AS "start_of_the_month_date"`)
		assert.Contains(t, delta, `WHERE d."summary_date" >= CAST('2024-03-01' AS DATE)`)
	}
}

func TestStartOfMonth(t *testing.T) {
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)))
}

func TestSummaries_Validate(t *testing.T) {
	assert.NoError(t, dailyCustomerSummary().Validate())
	assert.NoError(t, monthlyCustomerSummary().Validate())
	{
		daily := dailyCustomerSummary()
		daily.Contributions[1].Metrics["refund_amount"] = "SUM(p.refund)"
		assert.ErrorContains(t, daily.Validate(), `contribution "payments" sets unknown metric "refund_amount"`)
	}
	{
		monthly := monthlyCustomerSummary()
		monthly.Sums = nil
		monthly.ActiveCounts = nil
		assert.ErrorContains(t, monthly.Validate(), `monthly summary "monthly_customer_summary" has no metrics`)
	}
	{
		_, err := NewEngine(newConfig(), constants.RollupMode("bogus")).RollupMonthly(t.Context(), nil, monthlyCustomerSummary(), batch101.Date, batch101)
		assert.ErrorContains(t, err, `unsupported rollup mode "bogus"`)
	}
}
