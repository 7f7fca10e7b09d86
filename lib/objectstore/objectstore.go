package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/artie-labs/warehouse/lib/awslib"
	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/gcslib"
)

// Store is the landing area between extraction and staging.
type Store interface {
	Upload(ctx context.Context, key string, body io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URI(key string) string
}

func Open(ctx context.Context, cfg config.Landing) (Store, error) {
	switch cfg.Kind {
	case constants.S3:
		awsCfg, err := awslib.LoadConfig(ctx, awslib.ConfigArgs{Region: cfg.Region, RoleARN: cfg.RoleARN})
		if err != nil {
			return nil, err
		}
		return awslib.NewS3Client(awsCfg, cfg.Bucket), nil
	case constants.GCS:
		return gcslib.NewGCSClient(ctx, cfg.Bucket, cfg.PathToCredentials)
	default:
		return nil, fmt.Errorf("unsupported landing kind: %q", cfg.Kind)
	}
}

// Key is where a table's extract for [batchDate] lands: `<prefix>/<TABLE>/<batch date>/<table>.csv.gz`.
func Key(prefix, table string, batchDate time.Time) string {
	return path.Join(prefix, strings.ToUpper(table), batchDate.Format(time.DateOnly), strings.ToLower(table)+".csv.gz")
}
