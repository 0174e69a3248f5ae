// Package runner executes compiled commands through database/sql and
// materializes the result rows.
//
// The runner is a thin collaborator around the compiler: it binds the
// command's parameters positionally (@1..@n), hands each row to the command's
// projection through a RowAccessor, and applies the result shape recorded in
// the command's DataInfo.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/sqlgen"
	"github.com/roach88/relq/internal/sqlstmt"
)

var (
	// ErrNoElements is returned for First/Single/Last without a default
	// when the command returns no row.
	ErrNoElements = errors.New("sequence contains no elements")

	// ErrMoreThanOneElement is returned for Single when the command returns
	// more than one row.
	ErrMoreThanOneElement = errors.New("sequence contains more than one element")
)

// Runner runs commands against one database.
type Runner struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for query debug output.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New returns a runner over db. The caller keeps ownership of db.
func New(db *sql.DB, opts ...Option) *Runner {
	r := &Runner{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenSQLite opens a SQLite database at path and returns a runner that owns
// it. Use ":memory:" for a private in-memory database.
//
// SQLite accepts bracket-quoted identifiers and @N parameters, so commands
// that avoid T-SQL-only constructs (TOP, APPLY) run unchanged.
func OpenSQLite(path string, opts ...Option) (*Runner, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// One connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return New(db, opts...), nil
}

// DB returns the underlying sql.DB.
func (r *Runner) DB() *sql.DB {
	return r.db
}

// Close closes the underlying database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Query runs cmd and materializes every row.
//
// Returns an empty slice (not nil) when there are no rows.
func (r *Runner) Query(ctx context.Context, cmd *sqlgen.Command) ([]any, error) {
	r.logger.Debug("running command", "text", cmd.Text, "parameters", len(cmd.Parameters))

	rows, err := r.db.QueryContext(ctx, cmd.Text, cmd.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if want := projection.Reads(cmd.Projection); want > len(cols) {
		return nil, fmt.Errorf("projection reads %d columns, result has %d", want, len(cols))
	}

	out := []any{}
	values := make(row, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out), err)
		}
		item, err := projection.Materialize(cmd.Projection, values)
		if err != nil {
			return nil, fmt.Errorf("materialize row %d: %w", len(out), err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Execute runs cmd and shapes the result by its DataInfo: a sequence
// returns []any, a scalar returns the single value, and a single item
// returns the item, nil for an empty result with a default, or an error.
func (r *Runner) Execute(ctx context.Context, cmd *sqlgen.Command) (any, error) {
	items, err := r.Query(ctx, cmd)
	if err != nil {
		return nil, err
	}
	switch info := cmd.DataInfo.(type) {
	case *sqlstmt.StreamedScalar:
		if len(items) != 1 {
			return nil, fmt.Errorf("scalar query returned %d rows", len(items))
		}
		return items[0], nil
	case *sqlstmt.StreamedSingle:
		switch {
		case len(items) > 1:
			return nil, ErrMoreThanOneElement
		case len(items) == 0 && info.ReturnDefaultWhenEmpty:
			return nil, nil
		case len(items) == 0:
			return nil, ErrNoElements
		}
		return items[0], nil
	}
	return items, nil
}
