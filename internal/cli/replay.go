package cli

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/harness"
	"github.com/roach88/keepsake/internal/logging"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Runs int
}

// ReplayResult reports whether repeated runs agreed.
type ReplayResult struct {
	Scenario      string   `json:"scenario"`
	Runs          int      `json:"runs"`
	Deterministic bool     `json:"deterministic"`
	Digests       []string `json:"digests"`
	FirstDiff     int      `json:"first_diff,omitempty"` // run index of the first divergence
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a scenario and verify determinism",
		Long: `Run a scenario several times and verify that every run produces the
same canonical trace and final state, byte for byte.

Exit codes:
  0 - All runs identical
  1 - Runs diverged
  2 - Command error

Examples:
  keepsake replay ./scenarios/letter_keyboard.yaml
  keepsake replay ./scenarios/letter_keyboard.yaml --runs 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 3, "number of runs to compare")
	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Runs < 2 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--runs must be at least 2, got %d", opts.Runs))
	}
	f := opts.formatter(cmd)

	sc, err := harness.LoadScenario(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result := ReplayResult{Scenario: sc.Name, Runs: opts.Runs, Deterministic: true}
	var first []byte
	for i := range opts.Runs {
		res, err := harness.Run(ctx, sc, harness.WithLogger(logging.Discard()))
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run %d failed", i+1), err)
		}
		data, err := harness.Snapshot(sc.Name, res).Marshal()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to marshal trace", err)
		}
		sum := sha256.Sum256(data)
		result.Digests = append(result.Digests, hex.EncodeToString(sum[:8]))
		f.VerboseLog("run %d: %d trace entries, %s", i+1, len(res.Trace), result.Digests[i])

		if i == 0 {
			first = data
			continue
		}
		if result.Deterministic && !bytes.Equal(first, data) {
			result.Deterministic = false
			result.FirstDiff = i + 1
		}
	}

	if f.json() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_NONDETERMINISTIC", Message: fmt.Sprintf("run %d diverged from run 1", result.FirstDiff)}
		}
		if err := f.Respond(resp); err != nil {
			return err
		}
	} else {
		for i, d := range result.Digests {
			fmt.Fprintf(f.Writer, "run %d  %s\n", i+1, d)
		}
		fmt.Fprintln(f.Writer)
		if result.Deterministic {
			fmt.Fprintf(f.Writer, "✓ %s: %d runs identical\n", sc.Name, result.Runs)
		} else {
			fmt.Fprintf(f.Writer, "✗ %s: run %d diverged from run 1\n", sc.Name, result.FirstDiff)
		}
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}
