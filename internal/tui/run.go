package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/keepsake/internal/experience"
)

// Run shows sess full-screen until the user quits or ctx is done.
func Run(ctx context.Context, sess *experience.Session, caller Caller, opts ...Option) error {
	m, err := New(ctx, sess, caller, opts...)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run program: %w", err)
	}
	if fm, ok := final.(Model); ok {
		if err := fm.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
