// Command datamove moves a tabular dataset into a relational table,
// reconciling schemas under a chosen policy.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"datamove/internal/config"
	"datamove/internal/logger"
	"datamove/internal/metrics"
	"datamove/internal/metrics/datadog"
	"datamove/internal/metrics/prom"
	"datamove/internal/mover"
	"datamove/internal/schema"
	"datamove/internal/source"
	"datamove/internal/storage"

	_ "datamove/internal/storage/postgres"
	_ "datamove/internal/storage/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "datamove",
		Short:         "Move tabular datasets into a relational store with schema reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMoveCommand(false), newMoveCommand(true))
	return root
}

type moveFlags struct {
	table         string
	policy        string
	dryRun        bool
	batchSize     int
	primaryKeys   []string
	metricsKind   string
	metricsListen string
	metricsTags   string
}

func newMoveCommand(preview bool) *cobra.Command {
	use, short := "move <dataset-path>", "Validate and load a dataset into a table"
	if preview {
		use, short = "preview <dataset-path>", "Validate a dataset against a table without writing"
	}

	var f moveFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd.Context(), args[0], f, preview)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.table, "table", "t", "", "target table name (required)")
	flags.StringVar(&f.policy, "policy", "", "reconciliation policy: existing_schema or new_schema")
	flags.IntVar(&f.batchSize, "batch-size", 0, "rows per insert batch (0 uses the configured default)")
	flags.StringSliceVar(&f.primaryKeys, "pk", nil, "primary key column(s) for a newly created table")
	flags.StringVar(&f.metricsKind, "metrics", "none", "metrics backend: none, datadog, or prometheus")
	flags.StringVar(&f.metricsListen, "metrics-listen", ":9090", "scrape address when --metrics=prometheus")
	flags.StringVar(&f.metricsTags, "metrics-tags", "", "extra datadog tags, e.g. env:prod,service:loader")
	if !preview {
		flags.BoolVar(&f.dryRun, "dry-run", false, "validate and plan without writing")
	}
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runMove(parent context.Context, path string, f moveFlags, preview bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	policy, err := schema.ParsePolicy(f.policy)
	if err != nil {
		return err
	}

	backend, err := buildMetrics(ctx, f, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	store, err := storage.New(ctx, storage.Config{Kind: cfg.Store.Kind, DSN: cfg.Store.DSN})
	if err != nil {
		return err
	}
	defer store.Close()

	loader, err := source.ForPath(path, source.S3Config{
		Endpoint:  cfg.Object.Endpoint,
		AccessKey: cfg.Object.AccessKey,
		SecretKey: cfg.Object.SecretKey,
		Region:    cfg.Object.Region,
		UseSSL:    cfg.Object.UseSSL,
	})
	if err != nil {
		return err
	}

	m := mover.New(store, loader, mover.WithLogger(log), mover.WithMetrics(backend))

	req := mover.MoveRequest{
		Path:        path,
		Table:       f.table,
		Policy:      policy,
		DryRun:      f.dryRun || preview,
		BatchSize:   firstPositive(f.batchSize, cfg.Move.BatchSize),
		PrimaryKeys: f.primaryKeys,
		SampleSize:  cfg.Move.SampleSize,
	}

	outcome, err := m.Move(ctx, req)
	if err != nil {
		var vErr *mover.ValidationFailedError
		if errors.As(err, &vErr) {
			printReport(os.Stdout, vErr.Report)
		}
		return err
	}

	printOutcome(os.Stdout, outcome)
	return nil
}

func buildMetrics(ctx context.Context, f moveFlags, log *zap.Logger) (metrics.Backend, error) {
	switch f.metricsKind {
	case "", "none":
		return metrics.Noop{}, nil
	case "datadog":
		return datadog.NewBackend(ctx, datadog.Options{
			JobName: "datamove",
			Tags:    datadog.ParseTagsCSV(f.metricsTags),
		})
	case "prometheus":
		b := prom.NewBackend()
		go func() {
			if err := http.ListenAndServe(f.metricsListen, b.Handler()); err != nil {
				log.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		return b, nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", f.metricsKind)
	}
}

func printOutcome(w *os.File, out *schema.Outcome) {
	fmt.Fprintf(w, "operation %s\n", out.OperationID)
	if out.Report != nil {
		printReport(w, out.Report)
	}
	switch {
	case out.Committed:
		fmt.Fprintf(w, "committed: %d rows in %d batches (%s)\n", out.Rows, out.Batches, out.Elapsed.Round(1e6))
	default:
		fmt.Fprintf(w, "dry run: no writes performed (%s)\n", out.Elapsed.Round(1e6))
	}
	if out.TableCreated {
		fmt.Fprintln(w, "table created")
	}
	if out.SchemaEvolved {
		fmt.Fprintln(w, "schema evolved")
	}
}

func printReport(w *os.File, r *schema.Report) {
	fmt.Fprintf(w, "validation (%s): valid=%v\n", r.Policy, r.Valid)
	for _, c := range r.CaseConflicts {
		fmt.Fprintf(w, "  case conflict: %q vs %q\n", c.Existing, c.Incoming)
	}
	for _, m := range r.TypeMismatches {
		kind := "advisory"
		if m.Blocking {
			kind = "blocking"
		}
		fmt.Fprintf(w, "  type mismatch (%s): column %q is %s, incoming %s\n", kind, m.Column, m.Expected, m.Actual)
	}
	for _, name := range r.MissingColumns {
		fmt.Fprintf(w, "  missing column: %q\n", name)
	}
	for _, name := range r.ExtraColumns {
		fmt.Fprintf(w, "  extra column: %q\n", name)
	}
	if !r.Diff.Empty() {
		for _, c := range r.Diff.Add {
			fmt.Fprintf(w, "  will add column %q %s\n", c.Name, c.Type)
		}
		for _, name := range r.Diff.Remove {
			fmt.Fprintf(w, "  will remove column %q\n", name)
		}
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  recommendation: %s\n", rec)
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
