package postgres

import (
	"cmp"
	"context"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/db"
)

const defaultPort = 5432

func DSN(cfg config.Database) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cmp.Or(cfg.Port, defaultPort)),
		Path:   "/" + cfg.Database,
	}

	if cfg.DisableSSL {
		u.RawQuery = url.Values{"sslmode": []string{"disable"}}.Encode()
	}

	return u.String()
}

func LoadStore(ctx context.Context, cfg config.Database) (db.Store, error) {
	return db.Open(ctx, "pgx", DSN(cfg))
}
