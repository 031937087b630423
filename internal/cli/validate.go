package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/config"
)

// ConfigIssue is one configuration error.
type ConfigIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Errors  []ConfigIssue  `json:"errors,omitempty"`
	Summary *ConfigSummary `json:"summary,omitempty"`
}

// ConfigSummary counts what a valid config defines.
type ConfigSummary struct {
	Title    string `json:"title"`
	Scenes   int    `json:"scenes"`
	Journeys int    `json:"journeys"`
	Steps    int    `json:"steps"`
	Messages int    `json:"messages"`
	Assets   int    `json:"assets"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate an experience config",
		Long: `Validate an experience config against the schema.

Checks CUE syntax, schema constraints, unique ids, and that every
graded answer is one of its choices. With no argument the --config
flag is used, and with neither the embedded default is checked.

Exit codes:
  0 - Config valid
  1 - Config invalid
  2 - Config not found`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	exp, errs := config.Load(path)
	if len(errs) > 0 {
		return outputConfigErrors(f, path, errs)
	}

	summary := summarize(exp)
	f.VerboseLog("%d scenes, %d journeys, %d messages", summary.Scenes, summary.Journeys, summary.Messages)

	if f.json() {
		return f.Success(ValidationResult{Valid: true, Summary: &summary})
	}
	fmt.Fprintf(f.Writer, "✓ Config valid: %q\n", summary.Title)
	fmt.Fprintf(f.Writer, "  %d scenes, %d journeys (%d steps), %d messages, %d assets\n",
		summary.Scenes, summary.Journeys, summary.Steps, summary.Messages, summary.Assets)
	return nil
}

func summarize(exp *config.Experience) ConfigSummary {
	s := ConfigSummary{
		Title:    exp.Title,
		Scenes:   len(exp.Scenes),
		Journeys: len(exp.Journeys),
		Messages: len(exp.Messages),
		Assets:   len(exp.Preload.Assets),
	}
	for _, j := range exp.Journeys {
		s.Steps += len(j.Steps)
	}
	return s
}

// issues converts load errors, keeping positions when known.
func issues(errs []error) []ConfigIssue {
	out := make([]ConfigIssue, 0, len(errs))
	for _, err := range errs {
		var le *config.LoadError
		if !errors.As(err, &le) {
			out = append(out, ConfigIssue{Code: config.ErrCodeGeneric, Message: err.Error()})
			continue
		}
		issue := ConfigIssue{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			issue.File = le.Pos.Filename()
			issue.Line = le.Pos.Line()
			issue.Column = le.Pos.Column()
		}
		out = append(out, issue)
	}
	return out
}

// outputConfigErrors reports config errors and returns the exit error.
// A missing config is a command error, anything else a failure.
func outputConfigErrors(f *OutputFormatter, path string, errs []error) error {
	list := issues(errs)

	code := ExitFailure
	if list[0].Code == config.ErrCodeNotFound {
		code = ExitCommandError
	}
	msg := fmt.Sprintf("config invalid with %d error(s)", len(list))

	if f.json() {
		if err := f.Respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: list},
			Error:  &CLIError{Code: list[0].Code, Message: list[0].Message},
		}); err != nil {
			return err
		}
		return NewExitError(code, msg)
	}

	name := path
	if name == "" {
		name = "default"
	}
	fmt.Fprintf(f.Writer, "✗ Config %s invalid\n\n", name)
	for _, is := range list {
		if is.Line > 0 {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n", is.File, is.Line, is.Column)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", is.Code, is.Message)
	}
	return NewExitError(code, msg)
}
