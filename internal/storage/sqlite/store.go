// Package sqlite implements storage.Store over database/sql with the
// modernc.org/sqlite driver. It is the in-process backend used by tests and
// local runs.
//
// Key design points vs Postgres:
//   - SQLite accepts arbitrary declared column types, so DDL reuses the
//     Postgres type names verbatim (including "vector(N)"); PRAGMA
//     table_info reports them back unchanged and inspection round-trips.
//   - Timestamps are stored as RFC3339Nano strings and booleans as 0/1 for
//     reliable round-trip behavior and easy debugging.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"datamove/internal/schema"
	"datamove/internal/storage"
	"datamove/internal/typemap"
)

// Store implements storage.Store for SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database file (or in-memory DSN) and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	// One writer: SQLite serializes writes anyway, and a single connection
	// keeps ":memory:" DSNs pointed at one database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storage.Unavailable(err)
	}
	return &Store{db: db}, nil
}

// NewFromDB reuses an existing *sql.DB. Tests use this to drive the
// transaction protocol with a mock connection.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}

// DescribeTable reads the schema via PRAGMA table_info, which reports
// physical column order, NOT NULL, and primary-key membership.
func (s *Store) DescribeTable(ctx context.Context, table string) (*schema.Table, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", quoteIdent(table)))
	if err != nil {
		return nil, storage.Unavailable(fmt.Errorf("describe %s: %w", table, err))
	}
	defer rows.Close()

	out := &schema.Table{Name: table}
	type keyed struct {
		name string
		rank int
	}
	var keys []keyed
	for rows.Next() {
		var (
			cid     int
			name    string
			declTyp string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &declTyp, &notNull, &dflt, &pk); err != nil {
			return nil, storage.Unavailable(fmt.Errorf("describe %s: scan: %w", table, err))
		}
		t, ok := typemap.SemanticFromStore(declTyp)
		if !ok {
			t = schema.Text
		}
		out.Columns = append(out.Columns, schema.Column{Name: name, Type: t, Nullable: notNull == 0})
		if pk > 0 {
			keys = append(keys, keyed{name: name, rank: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(fmt.Errorf("describe %s: rows: %w", table, err))
	}

	if len(out.Columns) == 0 {
		return nil, nil
	}

	for rank := 1; rank <= len(keys); rank++ {
		for _, k := range keys {
			if k.rank == rank {
				out.PrimaryKeys = append(out.PrimaryKeys, k.name)
			}
		}
	}
	return out, nil
}

// CreateTable executes the generated DDL as a single statement.
func (s *Store) CreateTable(ctx context.Context, table string, sch schema.Table) error {
	ddl, err := buildCreateSQL(table, sch)
	if err != nil {
		return &storage.ProvisioningError{Table: table, Op: "create", Err: err}
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &storage.ProvisioningError{Table: table, Op: "create", Err: err}
	}
	return nil
}

// EvolveTable applies the diff inside one transaction. SQLite has no
// multi-action ALTER TABLE, so each add/drop is its own statement; the
// transaction keeps the unit atomic.
func (s *Store) EvolveTable(ctx context.Context, table string, diff schema.Diff) error {
	stmts := buildEvolveSQL(table, diff)
	if len(stmts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable(err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &storage.ProvisioningError{Table: table, Op: "evolve", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &storage.ProvisioningError{Table: table, Op: "evolve", Err: err}
	}
	return nil
}

// Replace deletes all rows and re-inserts the dataset inside one
// transaction.
func (s *Store) Replace(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, int, error) {
	return s.load(ctx, table, columns, rows, batchSize, true)
}

// InsertNew inserts into a freshly created table, same guarantee minus the
// delete.
func (s *Store) InsertNew(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, int, error) {
	return s.load(ctx, table, columns, rows, batchSize, false)
}

func (s *Store) load(ctx context.Context, table string, columns []string, rows [][]any, batchSize int, truncate bool) (int64, int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, storage.Unavailable(err)
	}
	defer tx.Rollback()

	if truncate {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)+";"); err != nil {
			return 0, 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var (
		written int64
		batches int
	)
	for start := 0; start < len(rows); start += batchSize {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}

		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		stmt, args, err := buildInsertSQL(table, columns, rows[start:end])
		if err != nil {
			return 0, 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
		batches++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit %s: %w", table, err)
	}
	return written, batches, nil
}

// normalizeValue rewrites driver values SQLite handles poorly: timestamps
// become RFC3339Nano strings, booleans become 0/1.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// quoteIdent quotes an identifier for SQLite.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
