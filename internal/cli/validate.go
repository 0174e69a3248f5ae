package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/querymodel"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <query.yaml>",
		Short: "Check a query model without compiling it",
		Long: `Check a query model for structural problems without compiling it.

Reports missing sources and arguments, references to unknown sources, item
references outside result operators, and operators with no SQL translation.
Faster than compile for development feedback; a query that validates may
still fail mapping resolution.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	_, model, err := load(opts, formatter, queryPath)
	if err != nil {
		return err
	}

	v := querymodel.Validate(model)
	result := ValidationResult{Valid: v.IsCompilable, Warnings: v.Warnings}

	if formatter.Format == "json" {
		if !result.Valid {
			_ = formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error: &CLIError{
					Code:    ErrCodeNotCompilable,
					Message: fmt.Sprintf("%d problem(s) found", len(result.Warnings)),
				},
			})
			return NewExitError(ExitFailure, "validation failed")
		}
		return formatter.Success(result)
	}

	if result.Valid {
		formatter.Pass("%s is valid", queryPath)
		return nil
	}
	formatter.Fail("%s: %d problem(s) found", queryPath, len(result.Warnings))
	for _, w := range result.Warnings {
		formatter.Warn("%s", w)
	}
	return NewExitError(ExitFailure, "validation failed")
}
