package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/harness"
	"github.com/roach88/keepsake/internal/logging"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Kind   string // only session events of this kind
	Action string // only invokes of this action
}

// TraceResult holds the trace of one scenario run.
type TraceResult struct {
	Scenario string               `json:"scenario"`
	Timeline []harness.TraceEvent `json:"timeline"`
	State    map[string]any       `json:"state"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats summarises a trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Invokes     int            `json:"invokes"`
	Events      int            `json:"events"`
	ByKind      map[string]int `json:"by_kind"`
	DurationMs  int64          `json:"duration_ms"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario.yaml>",
		Short: "Show the event timeline of a scenario",
		Long: `Run one scenario and print its timeline: every action the script
performed, interleaved with the session events it caused (scene changes,
tear stages, counter pulses, persisted answers, undo).

Assertions are not checked; use test for that.

Examples:
  keepsake trace ./scenarios/letter_keyboard.yaml
  keepsake trace ./scenarios/letter_keyboard.yaml --kind stage
  keepsake trace ./scenarios/boot_and_navigate.yaml --action next --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only session events of this kind")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only invokes of this action")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	sc, err := harness.LoadScenario(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	res, err := harness.Run(ctx, sc, harness.WithLogger(logging.Discard()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	result := TraceResult{
		Scenario: sc.Name,
		Timeline: filterTrace(res.Trace, opts.Kind, opts.Action),
		State:    res.State,
		Stats:    traceStats(res.Trace),
	}

	if f.json() {
		return f.Success(result)
	}
	return outputTraceText(f, result)
}

// filterTrace keeps entries selected by kind or action. With neither set
// everything is kept; with both, either may select.
func filterTrace(trace []harness.TraceEvent, kind, action string) []harness.TraceEvent {
	if kind == "" && action == "" {
		return trace
	}
	out := make([]harness.TraceEvent, 0, len(trace))
	for _, e := range trace {
		switch {
		case kind != "" && e.Type == harness.TraceSession && e.Kind == kind:
			out = append(out, e)
		case action != "" && e.Type == harness.TraceInvoke && e.Action == action:
			out = append(out, e)
		}
	}
	return out
}

func traceStats(trace []harness.TraceEvent) TraceStats {
	s := TraceStats{TotalEvents: len(trace), ByKind: make(map[string]int)}
	for _, e := range trace {
		if e.Type == harness.TraceInvoke {
			s.Invokes++
			continue
		}
		s.Events++
		s.ByKind[e.Kind]++
	}
	if n := len(trace); n > 0 {
		s.DurationMs = trace[n-1].At - trace[0].At
	}
	return s
}

func outputTraceText(f *OutputFormatter, r TraceResult) error {
	w := f.Writer
	fmt.Fprintf(w, "Scenario: %s\n\n", r.Scenario)

	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "No matching events.")
	}
	for _, e := range r.Timeline {
		fmt.Fprintf(w, "[%3d] +%5dms  %s\n", e.Seq, e.At, traceLine(e))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d entries: %d invokes, %d events over %dms\n",
		r.Stats.TotalEvents, r.Stats.Invokes, r.Stats.Events, r.Stats.DurationMs)
	if f.Verbose {
		for _, kind := range slices.Sorted(maps.Keys(r.Stats.ByKind)) {
			fmt.Fprintf(w, "  %-8s %d\n", kind, r.Stats.ByKind[kind])
		}
		fmt.Fprintln(w, "\nFinal state:")
		for _, k := range slices.Sorted(maps.Keys(r.State)) {
			fmt.Fprintf(w, "  %s = %v\n", k, r.State[k])
		}
	}
	return nil
}

// traceLine renders one entry without its seq and time.
func traceLine(e harness.TraceEvent) string {
	if e.Type == harness.TraceInvoke {
		line := "→ " + e.Action
		if len(e.Args) > 0 {
			line += " " + formatArgs(e.Args)
		}
		if e.Result != nil {
			line += fmt.Sprintf(" = %v", e.Result)
		}
		return line
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(e.Kind)
	switch {
	case e.From != "" && e.To != "":
		fmt.Fprintf(&b, " %s → %s", e.From, e.To)
	case e.To != "":
		fmt.Fprintf(&b, " %s", e.To)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " %s", e.Key)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " = %s", e.Value)
	}
	return b.String()
}

// formatArgs renders args as {k: v, ...} in key order.
func formatArgs(args map[string]any) string {
	parts := make([]string, 0, len(args))
	for _, k := range slices.Sorted(maps.Keys(args)) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case map[string]any:
		return formatArgs(x)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", x)
	}
}
