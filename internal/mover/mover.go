// Package mover is the orchestrator: it composes the dataset source, the
// type mapper, the comparator, and a storage backend into the single move
// operation external callers use.
//
// One call is one state machine over one table:
//
//	load -> infer -> inspect -> (absent)  provision -> insert -> done
//	                         -> (present) validate  -> [evolve] -> replace -> done
//
// A missing policy on an existing table and an invalid report both terminate
// before any write. Dry-run caps the machine after validation (the diff is
// computed, nothing is applied) and reports Committed=false.
package mover

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datamove/internal/compare"
	"datamove/internal/metrics"
	"datamove/internal/schema"
	"datamove/internal/source"
	"datamove/internal/storage"
	"datamove/internal/typemap"
)

var errMissingColumn = errors.New("column not present in dataset")

// MoveRequest describes one move operation.
type MoveRequest struct {
	// Path is the dataset location (local file or s3://bucket/key).
	Path string

	// Table is the target table name.
	Table string

	// Policy selects the reconciliation rule set. PolicyUnset is only
	// acceptable when the target table does not exist yet.
	Policy schema.Policy

	// DryRun validates and plans without writing anything.
	DryRun bool

	// BatchSize bounds rows per INSERT; <= 0 uses the backend default.
	BatchSize int

	// PrimaryKeys declares key columns for a newly created table. Empty
	// means infer: the first column whose values are unique and non-null
	// across the dataset, or no key at all.
	PrimaryKeys []string

	// SampleSize bounds type inference; <= 0 uses the inference default.
	SampleSize int
}

// Mover runs move operations. Construct with New.
type Mover struct {
	store   storage.Store
	loader  source.Loader
	log     *zap.Logger
	metrics metrics.Backend

	// now is a test seam; production uses time.Now.
	now func() time.Time
}

// Option configures a Mover.
type Option func(*Mover)

// WithLogger replaces the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Mover) { m.log = log }
}

// WithMetrics replaces the default no-op metrics backend.
func WithMetrics(b metrics.Backend) Option {
	return func(m *Mover) { m.metrics = b }
}

// New builds a Mover over a storage backend and a dataset loader.
func New(store storage.Store, loader source.Loader, opts ...Option) *Mover {
	m := &Mover{
		store:   store,
		loader:  loader,
		log:     zap.NewNop(),
		metrics: metrics.Noop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Preview runs the full validation and planning path with writes forced off.
func (m *Mover) Preview(ctx context.Context, req MoveRequest) (*schema.Outcome, error) {
	req.DryRun = true
	return m.Move(ctx, req)
}

// Move executes one operation end to end and returns its outcome. On
// ErrPolicyRequired and ValidationFailedError nothing has been written; on
// load errors the transaction has been rolled back and the table is exactly
// as it was.
func (m *Mover) Move(ctx context.Context, req MoveRequest) (*schema.Outcome, error) {
	start := m.now()
	opID := uuid.NewString()
	log := m.log.With(
		zap.String("operation_id", opID),
		zap.String("table", req.Table),
		zap.Bool("dry_run", req.DryRun),
	)

	out, err := m.run(ctx, req, opID, log)
	if out != nil {
		out.Elapsed = m.now().Sub(start)
	}
	if err != nil {
		log.Warn("move failed", zap.Error(err))
	}
	return out, err
}

// observeStep records one state transition's duration and status.
func (m *Mover) observeStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := metrics.Labels{"step": step, "status": status}
	m.metrics.IncCounter(metrics.StepTotal, 1, labels)
	m.metrics.ObserveHistogram(metrics.StepDurationSeconds, m.now().Sub(start).Seconds(), labels)
}

func (m *Mover) run(ctx context.Context, req MoveRequest, opID string, log *zap.Logger) (*schema.Outcome, error) {
	out := &schema.Outcome{OperationID: opID}

	stepStart := m.now()
	ds, err := m.loader.Load(ctx, req.Path)
	m.observeStep("load", stepStart, err)
	if err != nil {
		return nil, err
	}
	log.Info("dataset loaded", zap.Int("columns", len(ds.Columns)), zap.Int("rows", len(ds.Rows)))

	stepStart = m.now()
	incoming, err := typemap.InferTable(req.Table, ds.Columns, ds.Rows, req.SampleSize)
	m.observeStep("infer", stepStart, err)
	if err != nil {
		return nil, err
	}

	stepStart = m.now()
	current, err := m.store.DescribeTable(ctx, req.Table)
	m.observeStep("inspect", stepStart, err)
	if err != nil {
		return nil, err
	}

	if current == nil {
		return m.provisionAndInsert(ctx, req, ds, incoming, out, log)
	}
	return m.validateAndReplace(ctx, req, ds, incoming, *current, out, log)
}

// provisionAndInsert handles the table-absent arm: create the table from the
// inferred schema and insert the dataset.
func (m *Mover) provisionAndInsert(ctx context.Context, req MoveRequest, ds *source.Dataset, incoming schema.Table, out *schema.Outcome, log *zap.Logger) (*schema.Outcome, error) {
	incoming.PrimaryKeys = req.PrimaryKeys
	if len(incoming.PrimaryKeys) == 0 {
		if pk := inferPrimaryKey(ds); pk != "" {
			incoming.PrimaryKeys = []string{pk}
		}
	}

	out.Report = &schema.Report{Policy: req.Policy, Valid: true}

	if req.DryRun {
		log.Info("dry run: table would be created",
			zap.Int("columns", len(incoming.Columns)),
			zap.Strings("primary_keys", incoming.PrimaryKeys))
		return out, nil
	}

	stepStart := m.now()
	err := m.store.CreateTable(ctx, req.Table, incoming)
	m.observeStep("provision", stepStart, err)
	if err != nil {
		return nil, err
	}
	out.TableCreated = true
	log.Info("table created", zap.Strings("primary_keys", incoming.PrimaryKeys))

	columns, rows, err := convertRows(incoming, ds)
	if err != nil {
		return nil, err
	}

	stepStart = m.now()
	written, batches, err := m.store.InsertNew(ctx, req.Table, columns, rows, req.BatchSize)
	m.observeStep("insert", stepStart, err)
	if err != nil {
		return nil, err
	}
	m.metrics.IncCounter(metrics.RowsTotal, float64(written), nil)
	m.metrics.IncCounter(metrics.BatchesTotal, float64(batches), nil)

	out.Rows, out.Batches, out.Committed = written, batches, true
	log.Info("load committed", zap.Int64("rows", written), zap.Int("batches", batches))
	return out, nil
}

// validateAndReplace handles the table-present arm: compare under the
// requested policy, optionally evolve, then replace contents.
func (m *Mover) validateAndReplace(ctx context.Context, req MoveRequest, ds *source.Dataset, incoming, current schema.Table, out *schema.Outcome, log *zap.Logger) (*schema.Outcome, error) {
	if req.Policy == schema.PolicyUnset {
		return nil, ErrPolicyRequired
	}

	report := compare.Compare(current, incoming, req.Policy)
	out.Report = report
	log.Info("schema compared",
		zap.String("policy", req.Policy.String()),
		zap.Bool("valid", report.Valid),
		zap.Int("case_conflicts", len(report.CaseConflicts)),
		zap.Int("type_mismatches", len(report.TypeMismatches)))

	if !report.Valid {
		if req.DryRun {
			return out, nil
		}
		return nil, &ValidationFailedError{Report: report}
	}

	target := current
	evolve := req.Policy == schema.PolicyNewSchema && !report.Diff.Empty()
	if evolve {
		target = applyDiff(current, report.Diff)
	}

	if req.DryRun {
		log.Info("dry run: validation passed", zap.Bool("would_evolve", evolve))
		return out, nil
	}

	if evolve {
		stepStart := m.now()
		err := m.store.EvolveTable(ctx, req.Table, *report.Diff)
		m.observeStep("evolve", stepStart, err)
		if err != nil {
			return nil, err
		}
		out.SchemaEvolved = true
		log.Info("schema evolved",
			zap.Int("added", len(report.Diff.Add)),
			zap.Int("removed", len(report.Diff.Remove)))
	}

	columns, rows, err := convertRows(target, ds)
	if err != nil {
		return nil, err
	}

	stepStart := m.now()
	written, batches, err := m.store.Replace(ctx, req.Table, columns, rows, req.BatchSize)
	m.observeStep("replace", stepStart, err)
	if err != nil {
		return nil, err
	}
	m.metrics.IncCounter(metrics.RowsTotal, float64(written), nil)
	m.metrics.IncCounter(metrics.BatchesTotal, float64(batches), nil)

	out.Rows, out.Batches, out.Committed = written, batches, true
	log.Info("load committed", zap.Int64("rows", written), zap.Int("batches", batches))
	return out, nil
}

// convertRows coerces the dataset into driver values laid out in the target
// schema's column order. Every target column must exist in the dataset; the
// comparator guarantees that on both policy arms.
func convertRows(target schema.Table, ds *source.Dataset) ([]string, [][]any, error) {
	index := make(map[string]int, len(ds.Columns))
	for i, name := range ds.Columns {
		index[name] = i
	}

	columns := make([]string, len(target.Columns))
	positions := make([]int, len(target.Columns))
	for i, c := range target.Columns {
		idx, ok := index[c.Name]
		if !ok {
			// Unreachable after validation; kept as a guard for direct use.
			return nil, nil, &typemap.ConversionError{
				Column: c.Name,
				Row:    -1,
				Target: c.Type,
				Err:    errMissingColumn,
			}
		}
		columns[i] = c.Name
		positions[i] = idx
	}

	rows := make([][]any, len(ds.Rows))
	for r, raw := range ds.Rows {
		row := make([]any, len(target.Columns))
		for i, c := range target.Columns {
			cell := ""
			if positions[i] < len(raw) {
				cell = raw[positions[i]]
			}
			v, err := typemap.Convert(cell, c.Type)
			if err != nil {
				return nil, nil, &typemap.ConversionError{
					Column: c.Name,
					Row:    r,
					Raw:    cell,
					Target: c.Type,
					Err:    err,
				}
			}
			row[i] = v
		}
		rows[r] = row
	}
	return columns, rows, nil
}

// applyDiff computes the post-evolution target schema: removed columns drop
// out, added columns append in incoming order.
func applyDiff(current schema.Table, diff *schema.Diff) schema.Table {
	removed := make(map[string]bool, len(diff.Remove))
	for _, name := range diff.Remove {
		removed[name] = true
	}

	out := schema.Table{Name: current.Name, PrimaryKeys: current.PrimaryKeys}
	for _, c := range current.Columns {
		if !removed[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	out.Columns = append(out.Columns, diff.Add...)
	return out
}

// inferPrimaryKey picks the first column whose values are unique and
// non-null across the whole dataset, or "" when none qualifies.
func inferPrimaryKey(ds *source.Dataset) string {
	for i, name := range ds.Columns {
		seen := make(map[string]bool, len(ds.Rows))
		ok := true
		for _, row := range ds.Rows {
			if i >= len(row) || row[i] == "" || seen[row[i]] {
				ok = false
				break
			}
			seen[row[i]] = true
		}
		if ok && len(ds.Rows) > 0 {
			return name
		}
	}
	return ""
}
