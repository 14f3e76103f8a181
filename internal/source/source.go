// Package source loads tabular datasets from local files or S3-compatible
// object storage. All values stay strings here; typing happens downstream.
package source

import (
	"context"
	"strings"
)

// Dataset is an untyped tabular payload: a header row plus string cells.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// Loader fetches a dataset from a path.
type Loader interface {
	Load(ctx context.Context, path string) (*Dataset, error)
}

// IsObjectPath reports whether the path points at object storage rather
// than the local filesystem.
func IsObjectPath(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ForPath picks the loader for a dataset path: s3:// paths get an S3Loader
// built from cfg, everything else reads the local filesystem.
func ForPath(path string, cfg S3Config) (Loader, error) {
	if IsObjectPath(path) {
		return NewS3Loader(cfg)
	}
	return &LocalLoader{}, nil
}
