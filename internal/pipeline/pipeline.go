// Package pipeline runs the three compilation stages over one query model.
//
// Compile is Prepare, then Resolve, then Generate. Each call owns a fresh
// Context (identifier counter, join cache, registries); nothing is shared
// between compilations except read-only registries and the mapping resolver.
//
// CRITICAL: A Context must never be reused. Aliases and joins are only unique
// within the compilation that produced them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/mapping"
	"github.com/roach88/relq/internal/prepare"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/resolve"
	"github.com/roach88/relq/internal/sqlgen"
)

var _ resolve.MappingResolver = (*mapping.Resolver)(nil)

// Context is the state of one compilation.
type Context struct {
	Prepare  *prepare.Context
	Resolve  *resolve.Context
	Generate sqlgen.Options
	Logger   *slog.Logger
}

type config struct {
	logger     *slog.Logger
	methods    *prepare.MethodRegistry
	evaluators *projection.EvaluatorRegistry
	workers    int
}

// Option configures a compilation.
type Option func(*config)

// WithLogger sets the logger for stage debug output.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMethodTransformers extends the built-in method transformers. register
// receives a private copy of the defaults, so the built-in registry is never
// modified.
func WithMethodTransformers(register func(r *prepare.MethodRegistry)) Option {
	return func(c *config) {
		if c.methods == nil {
			c.methods = prepare.DefaultMethods().Clone()
		}
		register(c.methods)
	}
}

// WithEvaluators sets the in-memory evaluators for method calls without a
// SQL translation in the top-level projection.
func WithEvaluators(r *projection.EvaluatorRegistry) Option {
	return func(c *config) {
		c.evaluators = r
	}
}

// WithWorkers bounds the number of parallel compilations in CompileAll.
//
// Default: runtime.GOMAXPROCS(0)
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

func newConfig(opts []Option) *config {
	c := &config{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.methods == nil {
		c.methods = prepare.DefaultMethods()
	}
	return c
}

// NewContext returns a fresh context for one compilation against resolver.
func NewContext(resolver resolve.MappingResolver, opts ...Option) *Context {
	return newConfig(opts).context(resolver)
}

func (c *config) context(resolver resolve.MappingResolver) *Context {
	return &Context{
		Prepare:  &prepare.Context{Methods: c.methods, Logger: c.logger},
		Resolve:  resolve.NewContext(resolver, c.logger),
		Generate: sqlgen.Options{Evaluators: c.evaluators},
		Logger:   c.logger,
	}
}

// Compile lowers model into a command. On error no partial result is
// returned.
func Compile(model *querymodel.QueryModel, resolver resolve.MappingResolver, opts ...Option) (*sqlgen.Command, error) {
	return NewContext(resolver, opts...).Compile(model)
}

// Compile runs the three stages with c.
func (c *Context) Compile(model *querymodel.QueryModel) (*sqlgen.Command, error) {
	prepared, err := prepare.Prepare(model, c.Prepare)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	c.Logger.Debug("prepared statement", "statement", prepared.String(), "tables", len(prepared.SqlTables))

	resolved, err := resolve.Resolve(prepared, c.Resolve)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	c.Logger.Debug("resolved statement", "statement", resolved.String())

	cmd, err := sqlgen.Generate(resolved, c.Generate)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if c.Logger.Enabled(context.Background(), slog.LevelDebug) {
		fp, err := ir.Fingerprint(cmd.Text, cmd.Args())
		if err != nil {
			fp = "unavailable: " + err.Error()
		}
		c.Logger.Debug("generated command",
			"fingerprint", fp,
			"parameters", len(cmd.Parameters),
			"projection", fmt.Sprint(cmd.Projection))
	}
	return cmd, nil
}

// CompileAll compiles models in parallel, each with its own Context. The
// result slice is in input order. The first failure cancels the remaining
// compilations and is returned with the index of the failing model.
func CompileAll(ctx context.Context, models []*querymodel.QueryModel, resolver resolve.MappingResolver, opts ...Option) ([]*sqlgen.Command, error) {
	cfg := newConfig(opts)
	out := make([]*sqlgen.Command, len(models))

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.workers > 0 {
		eg.SetLimit(cfg.workers)
	}
	for i, m := range models {
		i, m := i, m
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			cmd, err := cfg.context(resolver).Compile(m)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = cmd
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
