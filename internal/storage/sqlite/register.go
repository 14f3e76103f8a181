package sqlite

import "datamove/internal/storage"

func init() {
	storage.Register("sqlite", New)
}
