package mysql

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/db"
)

const defaultPort = 3306

func DSN(cfg config.Database) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.Username
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cmp.Or(cfg.Port, defaultPort))
	mysqlCfg.DBName = cfg.Database
	// DATE and DATETIME columns are scanned into [time.Time].
	mysqlCfg.ParseTime = true
	mysqlCfg.Loc = time.UTC
	return mysqlCfg.FormatDSN()
}

func LoadStore(ctx context.Context, cfg config.Database) (db.Store, error) {
	return db.Open(ctx, "mysql", DSN(cfg))
}
