// Package tui is the terminal front-end: a bubbletea program that renders a
// session and turns key presses into session actions.
//
// The program runs on its own goroutine. Every session access goes through
// Caller, which runs the closure on the session's loop and waits for it.
// Terminals report no key releases, so a held tear key is released after
// KeyRelease passes without another press.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/roach88/keepsake/internal/experience"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tear"
)

// Timing of the front-end.
const (
	FrameInterval = 33 * time.Millisecond
	KeyRelease    = 600 * time.Millisecond
	HintDuration  = 1500 * time.Millisecond
)

// NoHistoryHint is flashed when there is nothing to undo.
const NoHistoryHint = "nothing to go back to"

// Caller runs fn on the session's loop and waits for it to finish.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

type (
	frameMsg   time.Time
	releaseMsg struct{ gen int }
	hintMsg    struct{ gen int }
)

// Model is the bubbletea model of a running session.
type Model struct {
	ctx    context.Context
	sess   *experience.Session
	caller Caller
	logger *slog.Logger

	keys     keyMap
	help     help.Model
	styles   Styles
	progress progress.Model
	input    textinput.Model
	renderer *glamour.TermRenderer

	frame  Frame
	cursor int
	typing bool

	hint    string
	hintGen int

	held    bool
	keyGen  int
	reduced bool

	lastFrame time.Time
	width     int
	err       error
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The terminal belongs to the program, so this
// should write to a file.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

// WithReducedMotion sets the initial reduced-motion preference.
func WithReducedMotion(on bool) Option {
	return func(m *Model) {
		m.reduced = on
	}
}

// WithStyles overrides the palette.
func WithStyles(s Styles) Option {
	return func(m *Model) {
		m.styles = s
	}
}

// New creates a model over sess and captures the first frame.
func New(ctx context.Context, sess *experience.Session, caller Caller, opts ...Option) (Model, error) {
	input := textinput.New()
	input.Placeholder = "type your answer"
	input.CharLimit = 200

	m := Model{
		ctx:      ctx,
		sess:     sess,
		caller:   caller,
		logger:   slog.Default(),
		keys:     defaultKeyMap(),
		help:     help.New(),
		styles:   DefaultStyles(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		input:    input,
	}
	for _, opt := range opts {
		opt(&m)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(72),
	)
	if err != nil {
		return Model{}, err
	}
	m.renderer = renderer

	reduced := m.reduced
	m.exec(func() { sess.SetReducedMotion(reduced) })
	if m.err != nil {
		return Model{}, m.err
	}
	return m, nil
}

// Frame returns the last captured frame.
func (m Model) Frame() Frame {
	return m.frame
}

// Hint returns the transient hint, if any.
func (m Model) Hint() string {
	return m.hint
}

// Err returns the error that ended the program, if any.
func (m Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.nextFrame())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-12, 10), 72)
		return m, nil

	case frameMsg:
		now := time.Time(msg)
		dt := FrameInterval
		if !m.lastFrame.IsZero() {
			dt = now.Sub(m.lastFrame)
		}
		m.lastFrame = now
		sess := m.sess
		m.exec(func() { sess.Tick(dt) })
		return m, m.after(m.nextFrame())

	case releaseMsg:
		if msg.gen != m.keyGen || !m.held {
			return m, nil
		}
		m.held = false
		m.tear(func(t *tear.Machine) { t.KeyUp(tear.KeySpace) })
		return m, m.after(nil)

	case hintMsg:
		if msg.gen == m.hintGen {
			m.hint = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.progress, cmd = m.progressUpdate(msg)
	return m, cmd
}

func (m Model) progressUpdate(msg tea.Msg) (progress.Model, tea.Cmd) {
	pm, cmd := m.progress.Update(msg)
	if p, ok := pm.(progress.Model); ok {
		return p, cmd
	}
	return m.progress, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.typing {
		return m.handleTyping(msg)
	}

	sess := m.sess
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		var undone bool
		var err error
		m.exec(func() { undone, err = sess.Back(m.ctx) })
		if err != nil {
			m.logger.Warn("undo failed", "error", err)
		}
		m.cursor = 0
		if !undone {
			return m, m.after(m.flash(NoHistoryHint))
		}
		return m, m.after(nil)

	case key.Matches(msg, m.keys.Restart):
		m.exec(sess.Restart)
		m.cursor = 0
		return m, m.after(nil)

	case key.Matches(msg, m.keys.Motion):
		m.reduced = !m.reduced
		reduced := m.reduced
		m.exec(func() { sess.SetReducedMotion(reduced) })
		return m, m.after(nil)
	}

	switch m.frame.Scene {
	case scene.Letter:
		if key.Matches(msg, m.keys.Act) || msg.Type == tea.KeyEnter {
			return m.pressTear()
		}
	case scene.Likes, scene.Links, scene.Media:
		if key.Matches(msg, m.keys.Act) {
			m.exec(func() { sess.Pulse() })
			return m, m.after(nil)
		}
	case scene.Messages:
		if mm, cmd, ok := m.handleMessages(msg); ok {
			return mm, cmd
		}
	case scene.Journeys:
		if mm, cmd, ok := m.handleJourneys(msg); ok {
			return mm, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.exec(func() { sess.Next() })
		m.cursor = 0
	case key.Matches(msg, m.keys.Previous):
		m.exec(func() { sess.Previous() })
		m.cursor = 0
	}
	return m, m.after(nil)
}

// pressTear sends a key press to the tear gesture. A press within
// KeyRelease of the previous one is an auto-repeat.
func (m Model) pressTear() (tea.Model, tea.Cmd) {
	repeat := m.held
	m.held = true
	m.keyGen++
	gen := m.keyGen
	m.tear(func(t *tear.Machine) { t.KeyDown(tear.KeySpace, repeat) })
	return m, m.after(tea.Tick(KeyRelease, func(time.Time) tea.Msg {
		return releaseMsg{gen: gen}
	}))
}

func (m Model) handleMessages(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	n := len(m.frame.Messages)
	switch {
	case n == 0:
		return m, nil, false
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor - 1 + n) % n
		return m, nil, true
	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % n
		return m, nil, true
	}

	choice, ok := digit(msg)
	if !ok {
		return m, nil, false
	}
	mv := m.frame.Messages[min(m.cursor, n-1)]
	if choice >= len(mv.Choices) {
		return m, nil, true
	}
	sess, ctx := m.sess, m.ctx
	m.exec(func() { sess.SelectMessage(ctx, mv.ID, mv.Choices[choice]) })
	return m, m.after(nil), true
}

func (m Model) handleJourneys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	steps := m.frame.steps()
	n := len(steps)
	switch {
	case n == 0:
		return m, nil, false
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor - 1 + n) % n
		return m, nil, true
	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % n
		return m, nil, true
	}

	ref := steps[min(m.cursor, n-1)]
	if key.Matches(msg, m.keys.Type) && len(ref.Step.Choices) == 0 {
		m.typing = true
		m.input.SetValue("")
		cmd := m.input.Focus()
		return m, cmd, true
	}

	choice, ok := digit(msg)
	if !ok || choice >= len(ref.Step.Choices) {
		return m, nil, ok
	}
	m.answer(ref, ref.Step.Choices[choice])
	return m, m.after(nil), true
}

func (m Model) handleTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.typing = false
		m.input.Blur()
		steps := m.frame.steps()
		if len(steps) > 0 {
			if value := m.input.Value(); value != "" {
				m.answer(steps[min(m.cursor, len(steps)-1)], value)
			}
		}
		return m, m.after(nil)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) answer(ref stepRef, value string) {
	sess, ctx := m.sess, m.ctx
	m.exec(func() { sess.AnswerStep(ctx, ref.Journey, ref.Step.ID, value) })
}

func (m *Model) tear(fn func(*tear.Machine)) {
	sess := m.sess
	m.exec(func() {
		if t := sess.Tear(); t != nil {
			fn(t)
		}
	})
}

// exec runs fn on the loop and refreshes the frame in the same call.
func (m *Model) exec(fn func()) {
	var f Frame
	sess, ctx := m.sess, m.ctx
	err := m.caller.Call(ctx, func() {
		fn()
		f = Capture(ctx, sess)
	})
	if err != nil {
		m.err = err
		return
	}
	m.frame = f
}

// after quits once the loop is gone, otherwise returns cmd.
func (m Model) after(cmd tea.Cmd) tea.Cmd {
	if m.err != nil {
		if !errors.Is(m.err, context.Canceled) {
			m.logger.Error("session loop unavailable", "error", m.err)
		}
		return tea.Quit
	}
	return cmd
}

func (m *Model) flash(hint string) tea.Cmd {
	m.hint = hint
	m.hintGen++
	gen := m.hintGen
	return tea.Tick(HintDuration, func(time.Time) tea.Msg {
		return hintMsg{gen: gen}
	})
}

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// digit maps "1".."9" to a zero-based choice.
func digit(msg tea.KeyMsg) (int, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(string(msg.Runes))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
