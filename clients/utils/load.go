package utils

import (
	"context"
	"fmt"

	"github.com/artie-labs/warehouse/clients/mssql"
	mssqlDialect "github.com/artie-labs/warehouse/clients/mssql/dialect"
	"github.com/artie-labs/warehouse/clients/mysql"
	mysqlDialect "github.com/artie-labs/warehouse/clients/mysql/dialect"
	"github.com/artie-labs/warehouse/clients/postgres"
	postgresDialect "github.com/artie-labs/warehouse/clients/postgres/dialect"
	"github.com/artie-labs/warehouse/clients/redshift"
	redshiftDialect "github.com/artie-labs/warehouse/clients/redshift/dialect"
	"github.com/artie-labs/warehouse/clients/snowflake"
	snowflakeDialect "github.com/artie-labs/warehouse/clients/snowflake/dialect"
	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/sql"
)

func Dialect(kind constants.DatabaseKind) (sql.Dialect, error) {
	switch kind {
	case constants.Redshift:
		return redshiftDialect.RedshiftDialect{}, nil
	case constants.Postgres:
		return postgresDialect.PostgresDialect{}, nil
	case constants.MySQL:
		return mysqlDialect.MySQLDialect{}, nil
	case constants.MSSQL:
		return mssqlDialect.MSSQLDialect{}, nil
	case constants.Snowflake:
		return snowflakeDialect.SnowflakeDialect{}, nil
	}

	return nil, fmt.Errorf("invalid database kind: %q", kind)
}

// Load opens a connection pool for [cfg] and returns it together with the matching dialect.
func Load(ctx context.Context, cfg config.Database) (db.Store, sql.Dialect, error) {
	dialect, err := Dialect(cfg.Kind)
	if err != nil {
		return nil, nil, err
	}

	var store db.Store
	switch cfg.Kind {
	case constants.Redshift:
		store, err = redshift.LoadStore(ctx, cfg)
	case constants.Postgres:
		store, err = postgres.LoadStore(ctx, cfg)
	case constants.MySQL:
		store, err = mysql.LoadStore(ctx, cfg)
	case constants.MSSQL:
		store, err = mssql.LoadStore(ctx, cfg)
	case constants.Snowflake:
		store, err = snowflake.LoadStore(ctx, cfg)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Kind, err)
	}

	return store, dialect, nil
}
