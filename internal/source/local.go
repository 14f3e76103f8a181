package source

import (
	"context"
	"fmt"
	"os"
)

// LocalLoader reads datasets from the local filesystem.
type LocalLoader struct {
	Delimiter rune
}

// Load reads and parses the file at path.
func (l *LocalLoader) Load(ctx context.Context, path string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadCSV(data, l.Delimiter)
}
