package harness

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/mapping"
	"github.com/roach88/relq/internal/pipeline"
	"github.com/roach88/relq/internal/querymodel"
)

// Harness compiles scenarios against one mapping schema.
type Harness struct {
	schema *mapping.Schema
	opts   []pipeline.Option
}

// New returns a harness for schema. Compilation logs are discarded unless
// opts set a logger.
func New(schema *mapping.Schema, opts ...pipeline.Option) *Harness {
	quiet := pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &Harness{schema: schema, opts: append([]pipeline.Option{quiet}, opts...)}
}

// Run loads the scenario's mapping, compiles its query and evaluates its
// assertions.
//
// A compile error is part of the result, not a Run error: scenarios may
// assert that a query fails. Run fails only when the scenario itself cannot
// be loaded.
func Run(scenario *Scenario, opts ...pipeline.Option) (*Result, error) {
	if scenario.Mapping == "" {
		return nil, fmt.Errorf("scenario %s: no mapping", scenario.Name)
	}
	schema, err := mapping.Load(scenario.Mapping)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	return New(schema, opts...).Run(scenario)
}

// Run compiles one scenario against the harness schema.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	model, err := h.decode(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: query: %w", scenario.Name, err)
	}

	result := NewResult()
	cmd, err := pipeline.Compile(model, mapping.NewResolver(h.schema), h.opts...)
	if err != nil {
		result.CompileError = err
	} else {
		result.Command = cmd
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// decode turns the embedded query node back into a querymodel document.
func (h *Harness) decode(scenario *Scenario) (*querymodel.QueryModel, error) {
	doc, err := yaml.Marshal(&scenario.Query)
	if err != nil {
		return nil, err
	}
	return querymodel.Decode(bytes.NewReader(doc), h.schema)
}
