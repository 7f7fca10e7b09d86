package gcslib

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSClient reads and writes landed files in a single bucket.
type GCSClient struct {
	bucket string
	client *storage.Client
}

// NewGCSClient uses [pathToCredentials] when set and GOOGLE_APPLICATION_CREDENTIALS otherwise.
func NewGCSClient(ctx context.Context, bucket, pathToCredentials string) (GCSClient, error) {
	var opts []option.ClientOption
	if pathToCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(pathToCredentials))
	} else if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return GCSClient{}, fmt.Errorf("either pathToCredentials or GOOGLE_APPLICATION_CREDENTIALS must be set")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return GCSClient{}, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return GCSClient{bucket: bucket, client: client}, nil
}

func (g GCSClient) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, key)
}

func (g GCSClient) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write %q to GCS: %w", key, err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return g.URI(key), nil
}

func (g GCSClient) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q from GCS: %w", key, err)
	}
	return reader, nil
}
