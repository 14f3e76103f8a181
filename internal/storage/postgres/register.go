package postgres

import "datamove/internal/storage"

func init() {
	storage.Register("postgres", New)
}
