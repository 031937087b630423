package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/experience"
	"github.com/roach88/keepsake/internal/kv"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tui"
)

func play(t *testing.T, root *RootOptions, program Program) error {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return runPlay(context.Background(), &PlayOptions{RootOptions: root, Program: program}, cmd)
}

func TestPlayRunsSessionOnLoopAndPersists(t *testing.T) {
	db := filepath.Join(t.TempDir(), "play.db")

	var (
		current  scene.ID
		selected bool
	)
	root := sqliteOpts("text", db)
	err := play(t, root, func(ctx context.Context, sess *experience.Session, caller tui.Caller, opts ...tui.Option) error {
		assert.Len(t, opts, 2)
		return caller.Call(ctx, func() {
			sess.GoTo(scene.Messages)
			selected = sess.SelectMessage(ctx, "msg-1", "Sam")
			current = sess.Scene()
		})
	})
	require.NoError(t, err)
	assert.Equal(t, scene.Messages, current)
	assert.True(t, selected)

	st, err := kv.OpenSQLite(db)
	require.NoError(t, err)
	defer st.Close()
	a, ok := quiz.New(st).LoadAnswer(context.Background(), "msg-1")
	require.True(t, ok, "answer persisted after the session closed")
	assert.Equal(t, "Sam", a.Answer)
}

func TestPlayFallsBackToMemory(t *testing.T) {
	root := &RootOptions{Format: "text", Store: "redis", Redis: "127.0.0.1:1", RedisPrefix: "test:"}

	var id string
	err := play(t, root, func(ctx context.Context, sess *experience.Session, caller tui.Caller, _ ...tui.Option) error {
		return caller.Call(ctx, func() { id = sess.ID() })
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestPlayProgramError(t *testing.T) {
	boom := errors.New("terminal gone")
	err := play(t, textOpts(), func(context.Context, *experience.Session, tui.Caller, ...tui.Option) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPlayInvalidConfig(t *testing.T) {
	root := textOpts()
	root.Config = filepath.Join(t.TempDir(), "missing.cue")

	called := false
	err := play(t, root, func(context.Context, *experience.Session, tui.Caller, ...tui.Option) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, called)
}
