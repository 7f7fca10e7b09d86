package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artie-labs/warehouse/lib/config/constants"
)

const validConfig = `
destination:
  kind: postgres
  host: localhost
  database: warehouse
  username: etl
  password: ${WAREHOUSE_TEST_PASSWORD}
source:
  kind: mysql
  host: oltp
  database: classicmodels
  tables:
    - { name: Customers, columns: [customerNumber, customerName] }
    - { name: Orders, columns: [orderNumber], updateColumn: modified_at, stagingTable: orders_stage }
landing:
  kind: s3
  bucket: landing-bucket
  prefix: classicmodels
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestReadNonExistentFile(t *testing.T) {
	_, err := readFileToConfig(filepath.Join(t.TempDir(), "213213231312"))
	assert.ErrorContains(t, err, "no such file or directory")
}

func TestParseConfig(t *testing.T) {
	t.Setenv("WAREHOUSE_TEST_PASSWORD", "hunter2")

	cfg, err := parseConfig([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.Destination.Password)
	assert.Equal(t, constants.DefaultMetadataSchema, cfg.Destination.Schemas.Metadata)
	assert.Equal(t, constants.DefaultStagingSchema, cfg.Destination.Schemas.Staging)
	assert.Equal(t, constants.DefaultWarehouseSchema, cfg.Destination.Schemas.Warehouse)
	assert.Equal(t, constants.Additive, cfg.RollupMode)
	assert.Equal(t, constants.AllStages, cfg.Stages)
	assert.Equal(t, constants.DatabaseLock, cfg.Lock.Kind)
	assert.Equal(t, constants.DefaultLockTTL, cfg.LockTTL())

	require.Len(t, cfg.Source.Tables, 2)
	assert.Equal(t, constants.SourceUpdateTimestamp, cfg.Source.Tables[0].UpdateColumn)
	assert.Equal(t, "customers", cfg.Source.Tables[0].StagingTable)
	assert.Equal(t, "modified_at", cfg.Source.Tables[1].UpdateColumn)
	assert.Equal(t, "orders_stage", cfg.Source.Tables[1].StagingTable)

	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_Defaults(t *testing.T) {
	{
		// Engines without session locks default to no lock.
		cfg, err := parseConfig([]byte("destination: {kind: snowflake, account: acme}"))
		require.NoError(t, err)
		assert.Equal(t, constants.NoLock, cfg.Lock.Kind)
	}
	{
		cfg, err := parseConfig([]byte("destination: {kind: redshift, host: cluster}\nlock: {kind: redis, ttlSeconds: 60}"))
		require.NoError(t, err)
		assert.Equal(t, constants.RedisLock, cfg.Lock.Kind)
		assert.Equal(t, time.Minute, cfg.LockTTL())
	}
	{
		_, err := parseConfig([]byte("destination: ["))
		assert.ErrorContains(t, err, "failed to unmarshal config file")
	}
}

func TestConfig_HasStage(t *testing.T) {
	cfg := Config{Stages: []constants.StageKind{constants.WarehouseStage}}
	assert.True(t, cfg.HasStage(constants.WarehouseStage))
	assert.False(t, cfg.HasStage(constants.ExtractStage))
}

func TestConfig_WarehouseCatalog(t *testing.T) {
	assert.NotEmpty(t, Config{}.WarehouseCatalog().Entities)
}

func TestConfig_Validate(t *testing.T) {
	newConfig := func() *Config {
		t.Setenv("WAREHOUSE_TEST_PASSWORD", "hunter2")
		cfg, err := parseConfig([]byte(validConfig))
		require.NoError(t, err)
		return cfg
	}

	type _tc struct {
		name        string
		mutate      func(cfg *Config)
		expectedErr string
	}

	tcs := []_tc{
		{
			name:   "valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:        "unknown destination",
			mutate:      func(cfg *Config) { cfg.Destination.Kind = "oracle" },
			expectedErr: `destination kind "oracle" is not supported`,
		},
		{
			name:        "destination without host",
			mutate:      func(cfg *Config) { cfg.Destination.Host = "" },
			expectedErr: "destination requires either a dsn or a host",
		},
		{
			name: "destination with dsn only",
			mutate: func(cfg *Config) {
				cfg.Destination.Host = ""
				cfg.Destination.DSN = "postgres://localhost/warehouse"
			},
		},
		{
			name: "snowflake without account",
			mutate: func(cfg *Config) {
				cfg.Destination.Kind = constants.Snowflake
				cfg.Lock.Kind = constants.NoLock
			},
			expectedErr: "snowflake requires either a dsn or an account",
		},
		{
			name: "redshift without iam role",
			mutate: func(cfg *Config) {
				cfg.Destination.Kind = constants.Redshift
				cfg.Lock.Kind = constants.NoLock
			},
			expectedErr: "redshift requires an iamRole",
		},
		{
			name: "redshift only loads from s3",
			mutate: func(cfg *Config) {
				cfg.Destination.Kind = constants.Redshift
				cfg.Destination.IAMRole = "arn:aws:iam::123:role/copy"
				cfg.Lock.Kind = constants.NoLock
				cfg.Landing.Kind = constants.GCS
			},
			expectedErr: "redshift can only load from s3",
		},
		{
			name:        "unknown stage",
			mutate:      func(cfg *Config) { cfg.Stages = []constants.StageKind{"transform"} },
			expectedErr: `stage "transform" is not supported`,
		},
		{
			name:        "unknown rollup mode",
			mutate:      func(cfg *Config) { cfg.RollupMode = "replace" },
			expectedErr: `rollup mode "replace" is not supported`,
		},
		{
			name: "database lock on snowflake",
			mutate: func(cfg *Config) {
				cfg.Destination.Kind = constants.Snowflake
				cfg.Destination.Account = "acme"
				cfg.Stages = []constants.StageKind{constants.WarehouseStage}
			},
			expectedErr: `"snowflake" does not support database locks`,
		},
		{
			name:        "redis lock without address",
			mutate:      func(cfg *Config) { cfg.Lock.Kind = constants.RedisLock },
			expectedErr: "redis lock requires an address",
		},
		{
			name:        "negative lock ttl",
			mutate:      func(cfg *Config) { cfg.Lock.TTLSeconds = -1 },
			expectedErr: "lock ttl must not be negative",
		},
		{
			name:        "missing source",
			mutate:      func(cfg *Config) { cfg.Source = nil },
			expectedErr: "the extract and landing stages require a source",
		},
		{
			name:        "unsupported source",
			mutate:      func(cfg *Config) { cfg.Source.Kind = constants.Snowflake },
			expectedErr: `source kind "snowflake" is not supported`,
		},
		{
			name: "landing only does not check the source kind",
			mutate: func(cfg *Config) {
				cfg.Source.Kind = ""
				cfg.Stages = []constants.StageKind{constants.LandingStage, constants.WarehouseStage}
			},
		},
		{
			name: "landing requires source tables",
			mutate: func(cfg *Config) {
				cfg.Source.Tables = nil
				cfg.Stages = []constants.StageKind{constants.LandingStage}
			},
			expectedErr: "source has no tables",
		},
		{
			name:        "source table without columns",
			mutate:      func(cfg *Config) { cfg.Source.Tables[0].Columns = nil },
			expectedErr: `source table "Customers" requires a name and columns`,
		},
		{
			name:        "missing landing",
			mutate:      func(cfg *Config) { cfg.Landing = nil },
			expectedErr: "landing settings are required",
		},
		{
			name:        "landing without bucket",
			mutate:      func(cfg *Config) { cfg.Landing.Bucket = "" },
			expectedErr: "landing bucket is empty",
		},
		{
			name: "warehouse only needs a destination",
			mutate: func(cfg *Config) {
				cfg.Source = nil
				cfg.Landing = nil
				cfg.Stages = []constants.StageKind{constants.WarehouseStage}
			},
		},
		{
			name:        "sqs without queue",
			mutate:      func(cfg *Config) { cfg.Notifications.SQS = &SQSSettings{Region: "us-east-1"} },
			expectedErr: "sqs notifications require a queue url",
		},
	}

	for _, tc := range tcs {
		cfg := newConfig()
		tc.mutate(cfg)
		if tc.expectedErr == "" {
			assert.NoError(t, cfg.Validate(), tc.name)
		} else {
			assert.ErrorContains(t, cfg.Validate(), tc.expectedErr, tc.name)
		}
	}

	var nilConfig *Config
	assert.ErrorContains(t, nilConfig.Validate(), "config is nil")
}
