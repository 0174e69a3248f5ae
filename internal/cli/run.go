package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query.yaml>",
		Short: "Compile a query and execute it against SQLite",
		Long: `Compile a query model and execute the command against a SQLite database.

Rows are materialized through the row projection and printed one per line
as canonical JSON. Scalar and single-item queries print one value.

Example:
  relq run --mapping ./mapping.yaml --db ./kitchen.db ./queries/cooks.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *RunOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger()

	schema, model, err := load(opts.RootOptions, formatter, queryPath)
	if err != nil {
		return err
	}
	compiled, err := compileModel(opts.RootOptions, formatter, schema, queryPath, model)
	if err != nil {
		return err
	}

	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	r, err := runner.OpenSQLite(opts.Database, runner.WithLogger(logger))
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := r.Execute(ctx, compiled)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}
	logger.Debug("query executed", "db", opts.Database, "query", queryPath)

	return outputRows(formatter, plain(out))
}

// outputRows prints a query result. A sequence prints one line per item.
func outputRows(formatter *OutputFormatter, result any) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	items, ok := result.([]any)
	if !ok {
		items = []any{result}
	}
	for _, item := range items {
		line, err := ir.MarshalCanonical(item)
		if err != nil {
			return WrapExitError(ExitFailure, "rendering row", err)
		}
		fmt.Fprintln(formatter.Writer, string(line))
	}
	return nil
}

// plain turns materialized objects and entities into maps so they can be
// encoded.
func plain(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	case *projection.Object:
		out := make(map[string]any, len(v.Members))
		for i, m := range v.Members {
			out[m] = plain(v.Values[i])
		}
		return out
	case *projection.EntityValue:
		out := make(map[string]any, len(v.Fields))
		for k, f := range v.Fields {
			out[k] = plain(f)
		}
		return out
	}
	return v
}
