package landing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	postgresDialect "github.com/artie-labs/warehouse/clients/postgres/dialect"
	redshiftDialect "github.com/artie-labs/warehouse/clients/redshift/dialect"
	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/csvwriter"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/sql"
)

var batch101 = batchcontrol.Batch{No: 101, Date: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}

var officesTable = config.SourceTable{Name: "OFFICES", StagingTable: "offices", Columns: []string{"officeCode", "city", "state"}}

const officesKey = "classicmodels/OFFICES/2024-03-01/offices.csv.gz"

type fakeLanding struct {
	objects map[string][]byte
}

func (f *fakeLanding) URI(key string) string {
	return "s3://landing/" + key
}

func (f *fakeLanding) Upload(_ context.Context, key string, _ io.Reader) (string, error) {
	return f.URI(key), nil
}

func (f *fakeLanding) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q does not exist", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func landedFile(t *testing.T, rows ...[]string) []byte {
	fp := filepath.Join(t.TempDir(), "offices.csv.gz")
	writer, err := csvwriter.NewGzipWriter(fp)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, writer.Write(row))
	}
	require.NoError(t, writer.Close())

	data, err := os.ReadFile(fp)
	require.NoError(t, err)
	return data
}

func newStage(t *testing.T, dialect sql.Dialect, landing *fakeLanding) (Stage, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	return NewStage(Args{
		Store:         db.NewStore(sqlDB),
		Dialect:       dialect,
		StagingSchema: "devstage",
		Tables:        []config.SourceTable{officesTable},
		Landing:       landing,
		Prefix:        "classicmodels",
		IAMRole:       "arn:aws:iam::123456789012:role/redshift-copy",
		Region:        "us-east-1",
	}), mock
}

func TestStage_Run_Insert(t *testing.T) {
	landing := &fakeLanding{objects: map[string][]byte{
		officesKey: landedFile(t,
			[]string{"officeCode", "city", "state"},
			[]string{"1", "San Francisco", "CA"},
			[]string{"4", "Paris", csvwriter.NullValue},
		),
	}}

	stage, mock := newStage(t, postgresDialect.PostgresDialect{}, landing)
	assert.Equal(t, "landing", stage.Name())

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE TABLE "devstage"."offices"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "devstage"."offices" ("officecode", "city", "state") VALUES ($1, $2, $3), ($4, $5, $6)`).
		WithArgs("1", "San Francisco", "CA", "4", "Paris", nil).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	assert.NoError(t, stage.Run(t.Context(), batch101))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStage_Run_Copy(t *testing.T) {
	stage, mock := newStage(t, redshiftDialect.RedshiftDialect{}, &fakeLanding{})

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "devstage"."offices"`).WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(`COPY "devstage"."offices" ("officecode","city","state") FROM 's3://landing/classicmodels/OFFICES/2024-03-01/offices.csv.gz' IAM_ROLE 'arn:aws:iam::123456789012:role/redshift-copy' REGION 'us-east-1' FORMAT AS CSV GZIP IGNOREHEADER 1 DELIMITER ',' NULL AS '\N' TIMEFORMAT 'auto' TRUNCATECOLUMNS`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	assert.NoError(t, stage.Run(t.Context(), batch101))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStage_Run_Errors(t *testing.T) {
	{
		// Nothing landed for the batch.
		stage, mock := newStage(t, postgresDialect.PostgresDialect{}, &fakeLanding{})
		err := stage.Run(t.Context(), batch101)

		var persistenceErr *db.PersistenceError
		assert.True(t, errors.As(err, &persistenceErr))
		assert.Equal(t, "devstage.offices", persistenceErr.Table)
		assert.ErrorContains(t, err, "does not exist")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// Insert fails, the staging table is left as it was.
		landing := &fakeLanding{objects: map[string][]byte{
			officesKey: landedFile(t, []string{"officeCode", "city", "state"}, []string{"1", "San Francisco", "CA"}),
		}}

		stage, mock := newStage(t, postgresDialect.PostgresDialect{}, landing)
		mock.ExpectBegin()
		mock.ExpectExec(`TRUNCATE TABLE "devstage"."offices"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO "devstage"."offices" ("officecode", "city", "state") VALUES ($1, $2, $3)`).
			WillReturnError(fmt.Errorf("value too long for type character varying(10)"))
		mock.ExpectRollback()

		err := stage.Run(t.Context(), batch101)
		assert.ErrorContains(t, err, `failed to load "devstage.offices": failed to insert rows: value too long`)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	{
		// Redshift without an IAM role.
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		stage := NewStage(Args{
			Store:         db.NewStore(sqlDB),
			Dialect:       redshiftDialect.RedshiftDialect{},
			StagingSchema: "devstage",
			Tables:        []config.SourceTable{officesTable},
			Landing:       &fakeLanding{},
		})

		assert.ErrorContains(t, stage.Run(t.Context(), batch101), "an IAM role is required")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestRowsPerInsert(t *testing.T) {
	assert.Equal(t, 500, rowsPerInsert(3))
	assert.Equal(t, 200, rowsPerInsert(10))
	assert.Equal(t, 1, rowsPerInsert(5000))
	assert.Equal(t, 500, rowsPerInsert(0))
}

func TestBuildInsertQuery(t *testing.T) {
	stage := NewStage(Args{Dialect: postgresDialect.PostgresDialect{}})
	query, args := stage.buildInsertQuery(sql.NewTableIdentifier("devstage", "offices"), []string{"officeCode", "city"}, [][]any{{"1"}})
	assert.Equal(t, `INSERT INTO "devstage"."offices" ("officecode", "city") VALUES ($1, $2)`, query)
	assert.Equal(t, []any{"1", nil}, args)
}
