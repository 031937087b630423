package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/keepsake/internal/experience"
	"github.com/roach88/keepsake/internal/loop"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/tui"
)

// closeTimeout bounds the final Close posted to the loop.
const closeTimeout = 2 * time.Second

// Program runs the front-end over a started session until the user quits.
type Program func(ctx context.Context, sess *experience.Session, caller tui.Caller, opts ...tui.Option) error

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	ReducedMotion bool

	// Program defaults to tui.Run.
	Program Program
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts, Program: tui.Run}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the experience in the terminal",
		Long: `Play the experience full-screen in the terminal.

Answers persist in the answer store (--store), so a second visit
remembers what was chosen. If the store cannot be opened the session
still runs and answers are kept in memory only.

The terminal belongs to the program while it runs; use --log-file to
keep logs.

Examples:
  keepsake play
  keepsake play --config ./anniversary.cue --reduced-motion
  keepsake play --store redis --redis localhost:6379`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ReducedMotion, "reduced-motion", false, "disable particles and animated transitions")
	return cmd
}

func runPlay(ctx context.Context, opts *PlayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	exp, err := opts.loadConfig(f)
	if err != nil {
		return err
	}

	logger, closeLog, err := opts.logger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStoreOrMemory(ctx, opts.RootOptions, logger)
	defer st.Close()

	lp := loop.New(loop.WithLogger(logger))
	answers := quiz.New(st, quiz.WithNow(lp.Now), quiz.WithLogger(logger))
	sess, err := experience.New(exp, lp, answers,
		experience.WithPoster(lp),
		experience.WithLogger(logger),
		experience.WithReducedMotion(opts.ReducedMotion),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lp.Run(gctx)
	})
	g.Go(func() error {
		defer lp.Stop()
		defer closeSession(lp, sess)

		var startErr error
		if err := lp.Call(gctx, func() { startErr = sess.Start(gctx) }); err != nil {
			return err
		}
		if startErr != nil {
			return startErr
		}
		logger.Info("playing", "session", sess.ID(), "title", exp.Title)
		return opts.Program(gctx, sess, lp,
			tui.WithLogger(logger),
			tui.WithReducedMotion(opts.ReducedMotion),
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "session ended with an error", err)
	}
	return nil
}

// closeSession closes sess on its loop, giving up after closeTimeout.
func closeSession(lp *loop.Loop, sess *experience.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = lp.Call(ctx, sess.Close)
}
