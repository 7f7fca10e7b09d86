package mssql

import (
	"cmp"
	"context"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/db"
)

const defaultPort = 1433

func DSN(cfg config.Database) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	query := url.Values{}
	query.Add("database", cfg.Database)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cmp.Or(cfg.Port, defaultPort)),
		RawQuery: query.Encode(),
	}

	return u.String()
}

func LoadStore(ctx context.Context, cfg config.Database) (db.Store, error) {
	return db.Open(ctx, "mssql", DSN(cfg))
}
