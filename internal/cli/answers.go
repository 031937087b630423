package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/kv"
	"github.com/roach88/keepsake/internal/quiz"
)

// AnswersOptions holds flags for the answers command.
type AnswersOptions struct {
	*RootOptions
	Clear bool
}

// AnswersResult is everything the store holds for the quiz.
type AnswersResult struct {
	Store     string                 `json:"store"`
	Answers   []quiz.Answer          `json:"answers"`
	Responses []quiz.JourneyResponse `json:"responses"`
	Stats     *quiz.Stats            `json:"stats,omitempty"`
	Cleared   int                    `json:"cleared,omitempty"`
}

// NewAnswersCommand creates the answers command.
func NewAnswersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnswersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "answers",
		Short: "Show or clear persisted answers",
		Long: `List the quiz answers, journey responses and stats persisted in the
answer store. With --clear, delete them instead.

Examples:
  keepsake answers
  keepsake answers --store redis --redis localhost:6379
  keepsake answers --clear`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnswers(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "delete every persisted answer")
	return cmd
}

func runAnswers(ctx context.Context, opts *AnswersOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	logger, closeLog, err := opts.logger(f.GetErrWriter())
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := openStore(ctx, opts.RootOptions, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open answer store", err)
	}
	defer st.Close()

	result := AnswersResult{Store: opts.Store}
	if opts.Clear {
		n, err := clearQuiz(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to clear answers", err)
		}
		result.Cleared = n
		if f.json() {
			return f.Success(result)
		}
		fmt.Fprintf(f.Writer, "✓ Cleared %d record(s) from %s store\n", n, opts.Store)
		return nil
	}

	answers := quiz.New(st, quiz.WithLogger(logger))
	result.Answers = answers.Answers(ctx)
	result.Responses = answers.JourneyResponses(ctx)
	if stats, ok := answers.LoadStats(ctx); ok {
		result.Stats = &stats
	}

	if f.json() {
		return f.Success(result)
	}
	outputAnswersText(f.Writer, result)
	return nil
}

// clearQuiz deletes every quiz record and returns how many there were.
func clearQuiz(ctx context.Context, st kv.Store) (int, error) {
	keys, err := st.Keys(ctx, "quiz.")
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := st.Delete(ctx, k); err != nil {
			return 0, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return len(keys), nil
}

func outputAnswersText(w io.Writer, r AnswersResult) {
	if len(r.Answers) == 0 && len(r.Responses) == 0 {
		fmt.Fprintf(w, "No answers in %s store.\n", r.Store)
		return
	}

	if len(r.Answers) > 0 {
		fmt.Fprintln(w, "Who said it:")
		for _, a := range r.Answers {
			fmt.Fprintf(w, "  %-10s %s\n", a.ID, a.Answer)
		}
		fmt.Fprintln(w)
	}

	if len(r.Responses) > 0 {
		fmt.Fprintln(w, "Journeys:")
		for _, jr := range r.Responses {
			mark := ""
			if jr.IsCorrect != nil {
				mark = " ✗"
				if *jr.IsCorrect {
					mark = " ✓"
				}
			}
			fmt.Fprintf(w, "  %-22s %s%s\n", jr.StorageKey, strings.TrimSpace(jr.Answer), mark)
		}
		fmt.Fprintln(w)
	}

	if r.Stats != nil {
		fmt.Fprintf(w, "Answered %d, correct %d of %d graded (%.0f%%)\n",
			r.Stats.Answered, r.Stats.Correct, r.Stats.Graded, r.Stats.Score()*100)
	}
}
