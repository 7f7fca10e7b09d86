package snowflake

import (
	"context"
	"fmt"

	"github.com/snowflakedb/gosnowflake"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/cryptography"
	"github.com/artie-labs/warehouse/lib/db"
)

func ToConfig(cfg config.Database) (*gosnowflake.Config, error) {
	keepAlive := "true"
	abortDetached := "true"
	sfCfg := &gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.Username,
		Database:  cfg.Database,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
		Region:    cfg.Region,
		Params: map[string]*string{
			// Cancels in-flight queries if the client goes away.
			"ABORT_DETACHED_QUERY": &abortDetached,
			// Runs can outlast the default four hour token lifetime.
			"CLIENT_SESSION_KEEP_ALIVE": &keepAlive,
		},
	}

	if cfg.PathToPrivateKey != "" {
		key, err := cryptography.LoadRSAKey(cfg.PathToPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}

		sfCfg.PrivateKey = key
		sfCfg.Authenticator = gosnowflake.AuthTypeJwt
	} else {
		sfCfg.Password = cfg.Password
	}

	if cfg.Host != "" {
		sfCfg.Host = cfg.Host
		sfCfg.Region = ""
	}

	return sfCfg, nil
}

func DSN(cfg config.Database) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	sfCfg, err := ToConfig(cfg)
	if err != nil {
		return "", err
	}

	dsn, err := gosnowflake.DSN(sfCfg)
	if err != nil {
		return "", fmt.Errorf("failed to build snowflake dsn: %w", err)
	}
	return dsn, nil
}

func LoadStore(ctx context.Context, cfg config.Database) (db.Store, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	return db.Open(ctx, "snowflake", dsn)
}
