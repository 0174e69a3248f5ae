package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
//
// Every field may also come from .relq.yaml in the working directory (or the
// file named by --config) and from RELQ_* environment variables. Flags win.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Mapping string // mapping file or CUE directory
	Config  string // explicit config file

	config *viper.Viper
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Logger returns the logger configured by --verbose. Before the root command
// has run it discards everything.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// NewRootCommand creates the root command for the relq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{config: viper.New()}

	cmd := &cobra.Command{
		Use:   "relq",
		Short: "relq - relational query compiler",
		Long: `Compile structured query models into parameterized T-SQL commands
with a row projection, against an entity-to-table mapping.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return WrapExitError(ExitCommandError, "reading configuration", err)
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Format == "json" {
				color.NoColor = true
			}

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))
			if used := opts.config.ConfigFileUsed(); used != "" {
				opts.logger.Debug("using config file", "path", used)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Mapping, "mapping", "m", "", "mapping file (.yaml) or CUE directory")
	flags.StringVar(&opts.Config, "config", "", "config file (default ./.relq.yaml)")
	cobra.CheckErr(bindFlags(opts.config, cmd, "verbose", "format", "mapping"))

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewMappingCommand(opts))

	return cmd
}

// bindFlags binds the named persistent flags of cmd to v.
func bindFlags(v *viper.Viper, cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if err := v.BindPFlag(name, cmd.PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// load merges the config file and environment into opts.
func (o *RootOptions) load() error {
	v := o.config
	if o.Config != "" {
		v.SetConfigFile(o.Config)
	} else {
		v.SetConfigName(".relq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("RELQ")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.Config != "" || !errors.As(err, &notFound) {
			return err
		}
	}
	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.Mapping = v.GetString("mapping")
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
