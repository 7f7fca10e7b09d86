package dwh

import (
	"fmt"
	"time"

	"github.com/artie-labs/warehouse/lib/sql"
)

type Schemas struct {
	Metadata  string
	Staging   string
	Warehouse string
}

// Config is shared by the merge, history and aggregate engines.
type Config struct {
	Dialect sql.Dialect
	Schemas Schemas
	// Now stamps dw_create_timestamp and dw_update_timestamp. Defaults to [time.Now].
	Now func() time.Time
}

func (c Config) Validate() error {
	if c.Dialect == nil {
		return fmt.Errorf("dialect is required")
	}

	if c.Schemas.Staging == "" || c.Schemas.Warehouse == "" || c.Schemas.Metadata == "" {
		return fmt.Errorf("metadata, staging and warehouse schemas are required")
	}

	return nil
}

func (c Config) Timestamp() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

func (c Config) StagingTable(table string) sql.TableIdentifier {
	return sql.NewTableIdentifier(c.Schemas.Staging, table)
}

func (c Config) WarehouseTable(table string) sql.TableIdentifier {
	return sql.NewTableIdentifier(c.Schemas.Warehouse, table)
}

func (c Config) MetadataTable(table string) sql.TableIdentifier {
	return sql.NewTableIdentifier(c.Schemas.Metadata, table)
}

// Column renders `alias.column` with the column quoted by the configured dialect.
func (c Config) Column(alias, column string) string {
	return sql.QualifiedColumn(alias, column, c.Dialect)
}
