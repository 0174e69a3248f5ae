package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/mapping"
	"github.com/roach88/relq/internal/pipeline"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlgen"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled command in printable form.
type CompilationResult struct {
	Text        string           `json:"text"`
	Parameters  []ParameterValue `json:"parameters"`
	Projection  string           `json:"projection"`
	ResultType  string           `json:"result_type"`
	Fingerprint string           `json:"fingerprint"`
}

// ParameterValue is one bound parameter.
type ParameterValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query.yaml>",
		Short: "Compile a query model to a T-SQL command",
		Long: `Compile a query model document to a parameterized T-SQL command.

The query is decoded against the mapping, run through preparation, mapping
resolution and generation, and printed with its parameters, row projection
and fingerprint.

Example:
  relq compile --mapping ./mapping.yaml ./queries/cooks.yaml
  relq compile -m ./mapping.cue ./queries/cooks.yaml --format json -o cooks.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled command as JSON to this file")

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func runCompile(opts *CompileOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	schema, model, err := load(opts.RootOptions, formatter, queryPath)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %d mapped entities from %s", len(schema.Entities), opts.Mapping)

	compiled, err := compileModel(opts.RootOptions, formatter, schema, queryPath, model)
	if err != nil {
		return err
	}

	result, err := newCompilationResult(compiled)
	if err != nil {
		return outputCompileError(formatter, ErrCodeCompile, err.Error())
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, queryPath, result, opts.Output)
}

// compileModel compiles model and reports a compile error through formatter.
func compileModel(opts *RootOptions, formatter *OutputFormatter, schema *mapping.Schema, queryPath string, model *querymodel.QueryModel) (*sqlgen.Command, error) {
	compiled, err := pipeline.Compile(model, mapping.NewResolver(schema), pipeline.WithLogger(opts.Logger()))
	if err != nil {
		code := string(ir.CodeOf(err))
		if code == "" {
			code = ErrCodeCompile
		}
		formatter.VerboseLog("Compiling %s failed", queryPath)
		return nil, outputCompileError(formatter, code, err.Error())
	}
	return compiled, nil
}

func newCompilationResult(c *sqlgen.Command) (*CompilationResult, error) {
	fp, err := ir.Fingerprint(c.Text, c.Args())
	if err != nil {
		return nil, err
	}
	r := &CompilationResult{
		Text:        c.Text,
		Parameters:  make([]ParameterValue, len(c.Parameters)),
		Projection:  fmt.Sprint(c.Projection),
		Fingerprint: fp,
	}
	if c.DataInfo != nil {
		r.ResultType = c.DataInfo.DataType().String()
	}
	for i, p := range c.Parameters {
		r.Parameters[i] = ParameterValue{Name: p.Name, Value: p.Value}
	}
	return r, nil
}

// outputCompileSuccess outputs the compiled command.
func outputCompileSuccess(formatter *OutputFormatter, queryPath string, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	formatter.Pass("Compiled %s", queryPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, result.Text)
	fmt.Fprintln(w)

	if len(result.Parameters) > 0 {
		fmt.Fprintln(w, "Parameters:")
		for _, p := range result.Parameters {
			fmt.Fprintf(w, "  %s = %#v\n", p.Name, p.Value)
		}
	}
	fmt.Fprintf(w, "Projection: %s\n", result.Projection)
	fmt.Fprintf(w, "Result: %s\n", result.ResultType)
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote command to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a compilation error. A query that does not
// compile is a query failure (exit code 1).
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitFailure, fmt.Sprintf("%s: %s", code, message), nil)
}

// writeResultToFile writes the compilation result to a file as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
