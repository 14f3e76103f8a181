package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds connection settings for S3-compatible object storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Loader reads datasets from S3-compatible object storage via the minio
// client. Paths look like "s3://bucket/key/to/file.csv".
type S3Loader struct {
	client    *minio.Client
	Delimiter rune
}

// NewS3Loader builds the client. The minio client connects lazily, so
// endpoint problems surface on the first Load.
func NewS3Loader(cfg S3Config) (*S3Loader, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &S3Loader{client: client}, nil
}

// Load fetches s3://bucket/key and parses it.
func (l *S3Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	bucket, key, err := parseS3URI(path)
	if err != nil {
		return nil, err
	}

	obj, err := l.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadCSV(data, l.Delimiter)
}

// parseS3URI splits "s3://bucket/key" into its bucket and key parts.
func parseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q must be s3://bucket/key", uri)
	}
	return bucket, key, nil
}
