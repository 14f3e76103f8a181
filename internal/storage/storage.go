// Package storage defines the relational-store contract the move engine
// runs against, plus the backend registry. Backends register themselves by
// kind from an init() in their own package; the engine never imports a
// backend directly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"datamove/internal/schema"
)

// Config is the minimal configuration needed to open a store.
//
// Kind must match a registered backend kind ("postgres", "sqlite"); DSN is
// passed through to the backend factory and validated there.
type Config struct {
	Kind string
	DSN  string
}

// ErrUnavailable marks connectivity or authorization failures against the
// store. It is surfaced immediately and never retried inside the engine.
var ErrUnavailable = errors.New("store unavailable")

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds; the
// original cause stays inspectable through the chain.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// ProvisioningError wraps a DDL execution failure. CreateTable and
// EvolveTable are each atomic, so the table is left in its pre-operation
// state when one of these is returned.
type ProvisioningError struct {
	Table string
	Op    string // "create" or "evolve"
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed: %s table %s: %v", e.Op, e.Table, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Store is the backend-agnostic contract for one relational store.
//
// IMPORTANT: this interface is intentionally minimal and focused on what the
// reconciliation engine needs: inspect, provision, evolve, and atomically
// (re)load a single table. Each backend implements the semantics in its own
// idiomatic way.
type Store interface {
	// Close releases backend resources. Treat as "call once".
	Close()

	// DescribeTable returns the table's current physical schema: column
	// order, store-reported nullability, vector dimensions, and declared
	// primary keys. A missing table returns (nil, nil) rather than an
	// error; connectivity failures wrap ErrUnavailable.
	DescribeTable(ctx context.Context, table string) (*schema.Table, error)

	// CreateTable creates the table from the given schema. Atomic: on error
	// no table is left behind.
	CreateTable(ctx context.Context, table string, sch schema.Table) error

	// EvolveTable applies the diff (add columns, then drop columns) as one
	// unit; if any single column operation fails, none are retained.
	EvolveTable(ctx context.Context, table string, diff schema.Diff) error

	// Replace deletes all existing rows and inserts the given rows in
	// batches of batchSize, all inside one transaction. Observers never see
	// a partially replaced table. Returns rows written and batches issued.
	// Cancellation is honored between batches and rolls everything back.
	Replace(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, int, error)

	// InsertNew inserts rows into a freshly created (empty) table with the
	// same batching and all-or-nothing guarantee as Replace, minus the
	// delete.
	InsertNew(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, int, error)
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a store backend under a kind. Call from an init() in
// the backend package. Registering an empty kind, a nil factory, or the same
// kind twice panics: ambiguous backend selection must fail fast.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store using the registered backend factory for cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
