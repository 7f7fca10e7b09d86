package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/models/catalog"
)

func readFileToConfig(pathToConfig string) (*Config, error) {
	bytes, err := os.ReadFile(pathToConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return parseConfig(bytes)
}

// parseConfig expands ${VAR} references against the environment before decoding, so secrets can live in .env.
func parseConfig(bytes []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(bytes))), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Destination.Schemas.Metadata == "" {
		c.Destination.Schemas.Metadata = constants.DefaultMetadataSchema
	}

	if c.Destination.Schemas.Staging == "" {
		c.Destination.Schemas.Staging = constants.DefaultStagingSchema
	}

	if c.Destination.Schemas.Warehouse == "" {
		c.Destination.Schemas.Warehouse = constants.DefaultWarehouseSchema
	}

	if c.RollupMode == "" {
		c.RollupMode = constants.Additive
	}

	if len(c.Stages) == 0 {
		c.Stages = constants.AllStages
	}

	if c.Lock.Kind == "" {
		switch c.Destination.Kind {
		case constants.Postgres, constants.MySQL, constants.MSSQL:
			c.Lock.Kind = constants.DatabaseLock
		default:
			c.Lock.Kind = constants.NoLock
		}
	}

	if c.Source != nil {
		for i := range c.Source.Tables {
			if c.Source.Tables[i].UpdateColumn == "" {
				c.Source.Tables[i].UpdateColumn = constants.SourceUpdateTimestamp
			}

			if c.Source.Tables[i].StagingTable == "" {
				c.Source.Tables[i].StagingTable = strings.ToLower(c.Source.Tables[i].Name)
			}
		}
	}
}

func (c Config) LockTTL() time.Duration {
	if c.Lock.TTLSeconds > 0 {
		return time.Duration(c.Lock.TTLSeconds) * time.Second
	}
	return constants.DefaultLockTTL
}

// WarehouseCatalog returns the configured catalog, falling back to the built-in classic models one.
func (c Config) WarehouseCatalog() catalog.Catalog {
	if c.Catalog != nil {
		return *c.Catalog
	}
	return catalog.Default()
}

func (c Config) HasStage(stage constants.StageKind) bool {
	return slices.Contains(c.Stages, stage)
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := c.validateDestination(); err != nil {
		return err
	}

	for _, stage := range c.Stages {
		if !slices.Contains(constants.AllStages, stage) {
			return fmt.Errorf("config is invalid, stage %q is not supported", stage)
		}
	}

	if c.RollupMode != constants.Additive && c.RollupMode != constants.Recompute {
		return fmt.Errorf("config is invalid, rollup mode %q is not supported", c.RollupMode)
	}

	if err := c.validateLock(); err != nil {
		return err
	}

	if c.HasStage(constants.ExtractStage) || c.HasStage(constants.LandingStage) {
		if err := c.validateSource(); err != nil {
			return err
		}

		if err := c.validateLanding(); err != nil {
			return err
		}
	}

	if c.Notifications.SQS != nil && c.Notifications.SQS.QueueURL == "" {
		return fmt.Errorf("config is invalid, sqs notifications require a queue url")
	}

	if c.Catalog != nil {
		if err := c.Catalog.Validate(); err != nil {
			return fmt.Errorf("config is invalid, catalog: %w", err)
		}
	}

	return nil
}

func (c *Config) validateDestination() error {
	if !constants.IsValidDatabase(c.Destination.Kind) {
		return fmt.Errorf("config is invalid, destination kind %q is not supported", c.Destination.Kind)
	}

	if c.Destination.DSN == "" && c.Destination.Kind != constants.Snowflake && c.Destination.Host == "" {
		return fmt.Errorf("config is invalid, destination requires either a dsn or a host: %s", c.Destination.String())
	}

	if c.Destination.Kind == constants.Snowflake && c.Destination.DSN == "" && c.Destination.Account == "" {
		return fmt.Errorf("config is invalid, snowflake requires either a dsn or an account")
	}

	if c.Destination.Kind == constants.Redshift && c.HasStage(constants.LandingStage) && c.Destination.IAMRole == "" {
		return fmt.Errorf("config is invalid, redshift requires an iamRole to load landed files")
	}

	return nil
}

func (c *Config) validateLock() error {
	switch c.Lock.Kind {
	case constants.NoLock:
	case constants.DatabaseLock:
		switch c.Destination.Kind {
		case constants.Postgres, constants.MySQL, constants.MSSQL:
		default:
			return fmt.Errorf("config is invalid, %q does not support database locks, use the redis lock instead", c.Destination.Kind)
		}
	case constants.RedisLock:
		if c.Lock.Redis == nil || c.Lock.Redis.Addr == "" {
			return fmt.Errorf("config is invalid, redis lock requires an address")
		}
	default:
		return fmt.Errorf("config is invalid, lock kind %q is not supported", c.Lock.Kind)
	}

	if c.Lock.TTLSeconds < 0 {
		return fmt.Errorf("config is invalid, lock ttl must not be negative: %d", c.Lock.TTLSeconds)
	}

	return nil
}

func (c *Config) validateSource() error {
	if c.Source == nil {
		return fmt.Errorf("config is invalid, the extract and landing stages require a source")
	}

	// The landing stage only needs the table list.
	if c.HasStage(constants.ExtractStage) {
		switch c.Source.Kind {
		case constants.Postgres, constants.MySQL, constants.MSSQL:
		default:
			return fmt.Errorf("config is invalid, source kind %q is not supported", c.Source.Kind)
		}
	}

	if len(c.Source.Tables) == 0 {
		return fmt.Errorf("config is invalid, source has no tables")
	}

	for _, table := range c.Source.Tables {
		if table.Name == "" || len(table.Columns) == 0 {
			return fmt.Errorf("config is invalid, source table %q requires a name and columns", table.Name)
		}
	}

	return nil
}

func (c *Config) validateLanding() error {
	if c.Landing == nil {
		return fmt.Errorf("config is invalid, landing settings are required")
	}

	switch c.Landing.Kind {
	case constants.S3, constants.GCS:
	default:
		return fmt.Errorf("config is invalid, landing kind %q is not supported", c.Landing.Kind)
	}

	if c.Landing.Bucket == "" {
		return fmt.Errorf("config is invalid, landing bucket is empty")
	}

	if c.Destination.Kind == constants.Redshift && c.Landing.Kind != constants.S3 {
		return fmt.Errorf("config is invalid, redshift can only load from s3")
	}

	return nil
}
