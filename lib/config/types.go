package config

import (
	"fmt"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/models/catalog"
)

type Sentry struct {
	DSN string `yaml:"dsn"`
}

type Reporting struct {
	Sentry *Sentry `yaml:"sentry"`
}

type Schemas struct {
	// Metadata holds batch_control, batch_control_log and rollup_log.
	Metadata  string `yaml:"metadata"`
	Staging   string `yaml:"staging"`
	Warehouse string `yaml:"warehouse"`
}

type Database struct {
	Kind     constants.DatabaseKind `yaml:"kind"`
	Host     string                 `yaml:"host"`
	Port     int                    `yaml:"port"`
	Database string                 `yaml:"database"`
	Username string                 `yaml:"username"`
	Password string                 `yaml:"password"`
	// DSN takes precedence over the individual connection fields when it is set.
	DSN string `yaml:"dsn,omitempty"`

	// Snowflake only.
	Account   string `yaml:"account,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`
	Role      string `yaml:"role,omitempty"`
	Region    string `yaml:"region,omitempty"`
	// PathToPrivateKey switches Snowflake to key pair authentication.
	PathToPrivateKey string `yaml:"pathToPrivateKey,omitempty"`

	// DisableSSL turns TLS off for Postgres and Redshift connections.
	DisableSSL bool `yaml:"disableSSL,omitempty"`
}

func (d Database) String() string {
	// Don't log credentials.
	return fmt.Sprintf("kind=%s, host=%s, port=%d, database=%s, user_set=%v, pass_set=%v, dsn_set=%v",
		d.Kind, d.Host, d.Port, d.Database, d.Username != "", d.Password != "", d.DSN != "")
}

type Destination struct {
	Database `yaml:",inline"`
	Schemas  Schemas `yaml:"schemas"`
	// IAMRole is required for Redshift to COPY landed files from S3.
	IAMRole string `yaml:"iamRole,omitempty"`
}

type SourceTable struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	// UpdateColumn is compared against the batch date to select changed rows, defaults to update_timestamp.
	UpdateColumn string `yaml:"updateColumn,omitempty"`
	// StagingTable defaults to the lowercased source table name.
	StagingTable string `yaml:"stagingTable,omitempty"`
}

type Source struct {
	Database `yaml:",inline"`
	Schema   string        `yaml:"schema,omitempty"`
	Tables   []SourceTable `yaml:"tables"`
}

type Landing struct {
	Kind   constants.LandingKind `yaml:"kind"`
	Bucket string                `yaml:"bucket"`
	Prefix string                `yaml:"prefix,omitempty"`
	Region string                `yaml:"region,omitempty"`
	// RoleARN is assumed before talking to S3.
	RoleARN string `yaml:"roleARN,omitempty"`
	// PathToCredentials is optional for GCS if GOOGLE_APPLICATION_CREDENTIALS is set.
	PathToCredentials string `yaml:"pathToCredentials,omitempty"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type Lock struct {
	Kind       constants.LockKind `yaml:"kind"`
	Redis      *Redis             `yaml:"redis,omitempty"`
	TTLSeconds int                `yaml:"ttlSeconds,omitempty"`
}

type SQSSettings struct {
	QueueURL string `yaml:"queueURL"`
	Region   string `yaml:"region,omitempty"`
	RoleARN  string `yaml:"roleARN,omitempty"`
}

type Notifications struct {
	SQS *SQSSettings `yaml:"sqs,omitempty"`
}

type Config struct {
	Destination Destination `yaml:"destination"`
	Source      *Source     `yaml:"source,omitempty"`
	Landing     *Landing    `yaml:"landing,omitempty"`
	Lock        Lock        `yaml:"lock"`

	RollupMode constants.RollupMode  `yaml:"rollupMode"`
	Stages     []constants.StageKind `yaml:"stages,omitempty"`

	// Catalog overrides the built-in warehouse descriptors when set.
	Catalog *catalog.Catalog `yaml:"catalog,omitempty"`

	Notifications Notifications `yaml:"notifications"`
	Reporting     Reporting     `yaml:"reporting"`
	Telemetry     struct {
		Metrics struct {
			Provider constants.ExporterKind `yaml:"provider"`
			Settings map[string]any         `yaml:"settings,omitempty"`
		}
	}
}
