package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/mapping"
)

// MappingOptions holds flags for the mapping command.
type MappingOptions struct {
	*RootOptions
	Normalized bool
}

// EntitySummary describes one mapped entity.
type EntitySummary struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	Base        string   `json:"base,omitempty"`
	Keys        []string `json:"keys"`
	Navigations []string `json:"navigations,omitempty"`
}

// NewMappingCommand creates the mapping command.
func NewMappingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MappingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Show the loaded entity mapping",
		Long: `Load the mapping and list every entity with its table.

Tables left out of the mapping are shown with their conventional name.
With --normalized the whole mapping is printed as YAML with the
conventional table names filled in.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMapping(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Normalized, "normalized", false, "print the normalized mapping as YAML")

	return cmd
}

func runMapping(opts *MappingOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	schema, err := LoadMapping(opts.RootOptions)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	if opts.Normalized {
		data, err := mapping.Marshal(schema)
		if err != nil {
			_ = formatter.Error(ErrCodeMapping, err.Error(), nil)
			return WrapExitError(ExitCommandError, "marshaling mapping", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(string(data))
		}
		fmt.Fprint(formatter.Writer, string(data))
		return nil
	}

	if formatter.Format == "json" {
		return formatter.Success(summarize(schema))
	}
	fmt.Fprint(formatter.Writer, mapping.NewResolver(schema).Describe())
	return nil
}

func summarize(schema *mapping.Schema) []EntitySummary {
	out := make([]EntitySummary, 0, len(schema.Entities))
	for _, e := range schema.Entities {
		s := EntitySummary{Name: e.Name, Table: e.Table, Base: e.Base, Keys: []string{}}
		for _, k := range e.Keys() {
			s.Keys = append(s.Keys, k.Member)
		}
		for _, n := range e.AllNavigations() {
			s.Navigations = append(s.Navigations, n.Member)
		}
		out = append(out, s)
	}
	return out
}
