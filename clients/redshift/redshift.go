package redshift

import (
	"cmp"
	"context"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/db"
)

const defaultPort = 5439

func DSN(cfg config.Database) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	sslMode := "require"
	if cfg.DisableSSL {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cmp.Or(cfg.Port, defaultPort), quote(cfg.Username), quote(cfg.Password), cfg.Database, sslMode)
}

// quote escapes a value for a libpq keyword/value connection string.
func quote(value string) string {
	escaped := make([]rune, 0, len(value)+2)
	escaped = append(escaped, '\'')
	for _, r := range value {
		if r == '\'' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, r)
	}
	return string(append(escaped, '\''))
}

func LoadStore(ctx context.Context, cfg config.Database) (db.Store, error) {
	return db.Open(ctx, "postgres", DSN(cfg))
}
