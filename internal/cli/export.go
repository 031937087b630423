package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/kv"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export [config]",
		Short: "Export the resolved experience as canonical JSON",
		Long: `Load an experience config, apply schema defaults, and write the
result as canonical JSON. Identical configs always export identical bytes.

Examples:
  keepsake export
  keepsake export ./anniversary.cue -o experience.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Config = args[0]
			}
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	exp, err := opts.loadConfig(f)
	if err != nil {
		return err
	}

	data, err := kv.Encode(exp)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode experience", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		if f.json() {
			return f.Success(map[string]any{"output": opts.Output, "bytes": len(data)})
		}
		fmt.Fprintf(f.Writer, "✓ Exported %q to %s\n", exp.Title, opts.Output)
		return nil
	}

	if f.json() {
		return f.Success(json.RawMessage(data))
	}
	fmt.Fprintln(f.Writer, string(data))
	return nil
}
