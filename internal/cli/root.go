// Package cli implements the keepsake command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // .cue file or directory; empty means the embedded default
	LogFile string

	Store       string // "sqlite" | "redis" | "memory"
	DB          string
	Redis       string
	RedisPrefix string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidStores defines the allowed answer stores.
var ValidStores = []string{"sqlite", "redis", "memory"}

// NewRootCommand creates the keepsake root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "keepsake",
		Short: "keepsake - an anniversary in nine scenes",
		Long: `A small interactive keepsake: journeys, a "who said it" quiz,
tap counters and a letter you tear open, played in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidStores, opts.Store) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid store %q: must be one of %v", opts.Store, ValidStores))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Config, "config", "c", "", "experience config (.cue file or directory)")
	flags.StringVar(&opts.LogFile, "log-file", "", "append JSON logs to this file")
	flags.StringVar(&opts.Store, "store", "sqlite", "answer store (sqlite|redis|memory)")
	flags.StringVar(&opts.DB, "db", "keepsake.db", "SQLite database path")
	flags.StringVar(&opts.Redis, "redis", "localhost:6379", "Redis address")
	flags.StringVar(&opts.RedisPrefix, "redis-prefix", "keepsake:", "Redis key prefix")

	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewAnswersCommand(opts))

	return cmd
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger builds the process logger writing text to w.
func (o *RootOptions) logger(w io.Writer) (*slog.Logger, func() error, error) {
	l, closeFn, err := logging.New(logging.Options{Writer: w, Verbose: o.Verbose, File: o.LogFile})
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	return l, closeFn, nil
}

// loadConfig loads the configured experience, reporting every error.
func (o *RootOptions) loadConfig(f *OutputFormatter) (*config.Experience, error) {
	exp, errs := config.Load(o.Config)
	if len(errs) > 0 {
		return nil, outputConfigErrors(f, o.Config, errs)
	}
	if o.Config == "" {
		f.VerboseLog("Using embedded default experience")
	} else {
		f.VerboseLog("Loaded experience from %s", o.Config)
	}
	return exp, nil
}
