// Package postgres implements storage.Store for Postgres (the target
// engine; vector columns use the pgvector extension).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"datamove/internal/schema"
	"datamove/internal/storage"
	"datamove/internal/typemap"
)

// Store implements storage.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pool and verifies connectivity. A failing ping wraps
// storage.ErrUnavailable so callers can distinguish "cannot reach the
// store" from everything else.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storage.Unavailable(err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const describeColumnsSQL = `
SELECT a.attname, format_type(a.atttypid, a.atttypmod), a.attnotnull
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relname = $1
  AND n.nspname = $2
  AND c.relkind = 'r'
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum;`

const describeKeysSQL = `
SELECT a.attname
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY (i.indkey)
WHERE c.relname = $1
  AND n.nspname = $2
  AND i.indisprimary
ORDER BY a.attnum;`

// DescribeTable reads the physical schema from the catalogs. Using
// pg_attribute + format_type (rather than information_schema) preserves the
// exact physical column order and keeps the pgvector dimension visible as
// "vector(N)".
func (s *Store) DescribeTable(ctx context.Context, table string) (*schema.Table, error) {
	nspname, relname := splitQualifiedName(table)

	rows, err := s.pool.Query(ctx, describeColumnsSQL, relname, nspname)
	if err != nil {
		return nil, storage.Unavailable(fmt.Errorf("describe %s: %w", table, err))
	}
	defer rows.Close()

	out := &schema.Table{Name: table}
	for rows.Next() {
		var (
			name      string
			storeType string
			notNull   bool
		)
		if err := rows.Scan(&name, &storeType, &notNull); err != nil {
			return nil, storage.Unavailable(fmt.Errorf("describe %s: scan: %w", table, err))
		}
		t, ok := typemap.SemanticFromStore(storeType)
		if !ok {
			// Unmapped store types degrade to text rather than failing the
			// inspection; the comparator will surface the mismatch.
			t = schema.Text
		}
		out.Columns = append(out.Columns, schema.Column{Name: name, Type: t, Nullable: !notNull})
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(fmt.Errorf("describe %s: rows: %w", table, err))
	}

	// Table absence is an answer, not an error.
	if len(out.Columns) == 0 {
		return nil, nil
	}

	keyRows, err := s.pool.Query(ctx, describeKeysSQL, relname, nspname)
	if err != nil {
		return nil, storage.Unavailable(fmt.Errorf("describe %s: keys: %w", table, err))
	}
	defer keyRows.Close()
	for keyRows.Next() {
		var name string
		if err := keyRows.Scan(&name); err != nil {
			return nil, storage.Unavailable(fmt.Errorf("describe %s: keys scan: %w", table, err))
		}
		out.PrimaryKeys = append(out.PrimaryKeys, name)
	}
	if err := keyRows.Err(); err != nil {
		return nil, storage.Unavailable(fmt.Errorf("describe %s: keys rows: %w", table, err))
	}

	return out, nil
}

// CreateTable executes the generated DDL. The extension check and the
// CREATE TABLE run in one transaction so a failure leaves nothing behind.
func (s *Store) CreateTable(ctx context.Context, table string, sch schema.Table) error {
	ddl, err := buildCreateSQL(table, sch)
	if err != nil {
		return &storage.ProvisioningError{Table: table, Op: "create", Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Unavailable(err)
	}
	defer tx.Rollback(ctx)

	if hasVectorColumn(sch) {
		if _, err := tx.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
			return &storage.ProvisioningError{Table: table, Op: "create", Err: err}
		}
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return &storage.ProvisioningError{Table: table, Op: "create", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &storage.ProvisioningError{Table: table, Op: "create", Err: err}
	}
	return nil
}

// EvolveTable applies additions and removals as a single ALTER TABLE
// statement; Postgres guarantees the statement is all-or-nothing.
func (s *Store) EvolveTable(ctx context.Context, table string, diff schema.Diff) error {
	ddl, err := buildEvolveSQL(table, diff)
	if err != nil {
		return &storage.ProvisioningError{Table: table, Op: "evolve", Err: err}
	}
	if ddl == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return &storage.ProvisioningError{Table: table, Op: "evolve", Err: err}
	}
	return nil
}

// Replace deletes all rows and re-inserts the dataset inside one
// transaction. Batch boundaries are a throughput mechanism only; the commit
// unit is the whole operation.
func (s *Store) Replace(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, int, error) {
	return s.load(ctx, table, columns, rows, batchSize, true)
}

// InsertNew inserts into a freshly created table with the same guarantee,
// minus the delete.
func (s *Store) InsertNew(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, int, error) {
	return s.load(ctx, table, columns, rows, batchSize, false)
}

func (s *Store) load(ctx context.Context, table string, columns []string, rows [][]any, batchSize int, truncate bool) (int64, int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, storage.Unavailable(err)
	}
	defer tx.Rollback(ctx)

	if truncate {
		if _, err := tx.Exec(ctx, "DELETE FROM "+pgIdent(table)+";"); err != nil {
			return 0, 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var (
		written int64
		batches int
	)
	for start := 0; start < len(rows); start += batchSize {
		// Cooperative cancellation between batches; the deferred rollback
		// leaves the table exactly as it was.
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}

		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		sql, args, err := buildInsertSQL(table, columns, rows[start:end])
		if err != nil {
			return 0, 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		cmd, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		written += cmd.RowsAffected()
		batches++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit %s: %w", table, err)
	}
	return written, batches, nil
}

// splitQualifiedName splits "public.items" into ("public", "items");
// unqualified names default to the public schema.
func splitQualifiedName(name string) (nsp string, rel string) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return "public", name
}
