package constants

import "time"

// Audit columns stamped on every warehouse row.
const (
	SrcCreateTimestamp = "src_create_timestamp"
	SrcUpdateTimestamp = "src_update_timestamp"
	DwCreateTimestamp  = "dw_create_timestamp"
	DwUpdateTimestamp  = "dw_update_timestamp"
	EtlBatchNo         = "etl_batch_no"
	EtlBatchDate       = "etl_batch_date"

	// Staging tables carry the source system's own timestamps under these names.
	SourceCreateTimestamp = "create_timestamp"
	SourceUpdateTimestamp = "update_timestamp"
)

// History (SCD2) bookkeeping columns.
const (
	EffectiveFromDate  = "effective_from_date"
	EffectiveToDate    = "effective_to_date"
	ActiveRecordInd    = "dw_active_record_ind"
	CreateEtlBatchNo   = "create_etl_batch_no"
	CreateEtlBatchDate = "create_etl_batch_date"
	UpdateEtlBatchNo   = "update_etl_batch_no"
	UpdateEtlBatchDate = "update_etl_batch_date"
)

// Batch control tables.
const (
	BatchControlTable    = "batch_control"
	BatchControlLogTable = "batch_control_log"
	RollupLogTable       = "rollup_log"

	BatchStatus    = "etl_batch_status"
	BatchStartTime = "etl_batch_start_time"
	BatchEndTime   = "etl_batch_end_time"
)

const (
	DefaultMetadataSchema  = "etl_metadata"
	DefaultStagingSchema   = "devstage"
	DefaultWarehouseSchema = "devdw"

	DefaultLockTTL = 6 * time.Hour
)

// ExporterKind is used for the Telemetry package
type ExporterKind string

const (
	Datadog    ExporterKind = "datadog"
	Prometheus ExporterKind = "prometheus"
)

type DatabaseKind string

const (
	Redshift  DatabaseKind = "redshift"
	Postgres  DatabaseKind = "postgres"
	MySQL     DatabaseKind = "mysql"
	MSSQL     DatabaseKind = "mssql"
	Snowflake DatabaseKind = "snowflake"
)

var validDatabases = []DatabaseKind{
	Redshift,
	Postgres,
	MySQL,
	MSSQL,
	Snowflake,
}

func IsValidDatabase(kind DatabaseKind) bool {
	for _, validKind := range validDatabases {
		if kind == validKind {
			return true
		}
	}

	return false
}

type LandingKind string

const (
	S3  LandingKind = "s3"
	GCS LandingKind = "gcs"
)

type LockKind string

const (
	NoLock       LockKind = "none"
	DatabaseLock LockKind = "database"
	RedisLock    LockKind = "redis"
)

// RollupMode decides how monthly summaries absorb daily rows.
type RollupMode string

const (
	// Additive adds the daily delta on top of the existing monthly total (legacy behavior).
	// Each batch may only be rolled up once, enforced through the rollup ledger.
	Additive RollupMode = "additive"
	// Recompute deletes every touched month and rebuilds it from the daily table.
	Recompute RollupMode = "recompute"
)

type StageKind string

const (
	ExtractStage   StageKind = "extract"
	LandingStage   StageKind = "landing"
	WarehouseStage StageKind = "warehouse"
)

var AllStages = []StageKind{ExtractStage, LandingStage, WarehouseStage}
