package tui

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/experience"
	"github.com/roach88/keepsake/internal/kv"
	"github.com/roach88/keepsake/internal/loop"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tap"
	"github.com/roach88/keepsake/internal/tear"
	"github.com/roach88/keepsake/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// inline runs closures on the calling goroutine.
type inline struct{}

func (inline) Call(_ context.Context, fn func()) error {
	fn()
	return nil
}

type stopped struct{}

func (stopped) Call(context.Context, func()) error {
	return loop.ErrStopped
}

var (
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type fixture struct {
	sess  *experience.Session
	sched *testutil.ManualScheduler
	exp   *config.Experience
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	exp := config.MustDefault()
	exp.Preload.Assets = nil
	for _, c := range []*config.Counter{&exp.Counters.Likes, &exp.Counters.Links, &exp.Counters.Media} {
		c.Target = 2
		c.Start = 0
		c.Lines = []string{"one"}
		c.LineDelay = config.Duration(100 * time.Millisecond)
		c.CTADelay = config.Duration(100 * time.Millisecond)
	}

	sched := testutil.NewManualScheduler()
	answers := quiz.New(kv.NewMemory(), quiz.WithNow(sched.Now), quiz.WithLogger(discard))
	sess, err := experience.New(exp, sched, answers,
		experience.WithLogger(discard),
		experience.WithMeterProvider(noop.NewMeterProvider()),
	)
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Close)
	return &fixture{sess: sess, sched: sched, exp: exp}
}

func (f *fixture) boot() {
	f.sched.Advance(f.exp.Boot.Delay.D())
}

func (f *fixture) model(t *testing.T, opts ...Option) Model {
	t.Helper()
	m, err := New(context.Background(), f.sess, inline{}, append([]Option{WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	return m
}

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m, cmd
}

func TestModel_NavigationWaitsForBoot(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	assert.Equal(t, scene.Intro, m.Frame().Scene)
	assert.Equal(t, scene.BootLoading, m.Frame().Boot)

	m, _ = send(t, m, keyRight)
	assert.Equal(t, scene.Intro, m.Frame().Scene, "locked while booting")

	f.boot()
	m, _ = send(t, m, keyRight)
	assert.Equal(t, scene.Prologue, m.Frame().Scene)
	assert.Equal(t, 1, m.Frame().Index)
	assert.True(t, m.Frame().CanGoBack)
}

func TestModel_BackFlashesHintWhenHistoryEmpty(t *testing.T) {
	f := newFixture(t)
	f.boot()
	m := f.model(t)

	m, _ = send(t, m, keyRight, runes("b"))
	assert.Equal(t, scene.Intro, m.Frame().Scene)
	assert.Empty(t, m.Hint())

	m, cmd := send(t, m, runes("b"))
	assert.Equal(t, NoHistoryHint, m.Hint())
	assert.NotNil(t, cmd)

	m, _ = send(t, m, hintMsg{gen: 0})
	assert.Equal(t, NoHistoryHint, m.Hint(), "stale hint timer")
	m, _ = send(t, m, hintMsg{gen: 1})
	assert.Empty(t, m.Hint())
}

func TestModel_CounterPulses(t *testing.T) {
	f := newFixture(t)
	f.boot()
	require.True(t, f.sess.GoTo(scene.Likes))
	m := f.model(t)

	require.NotNil(t, m.Frame().Counter)
	assert.Equal(t, tap.PhasePlay, m.Frame().Counter.Phase)

	m, _ = send(t, m, keySpace, keySpace)
	c := m.Frame().Counter
	assert.Equal(t, 2, c.Count)
	assert.InDelta(t, 1.0, c.Ratio, 1e-9)
	assert.False(t, c.CanAdvance)

	f.sched.Advance(200 * time.Millisecond)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = send(t, m, runes("x"))
	c = m.Frame().Counter
	assert.Equal(t, []string{"one"}, c.Lines)
	assert.True(t, c.CanAdvance)

	m, _ = send(t, m, keyRight)
	assert.Equal(t, scene.Links, m.Frame().Scene)
}

func TestModel_TearWithSimulatedRelease(t *testing.T) {
	f := newFixture(t)
	f.boot()
	require.True(t, f.sess.GoTo(scene.Letter))
	f.sched.Advance(f.exp.Tear.IntroDelay.D())
	m := f.model(t)
	require.NotNil(t, m.Frame().Tear)
	assert.Equal(t, tear.StageIdle, m.Frame().Tear.Stage)

	m, cmd := send(t, m, keySpace)
	assert.NotNil(t, cmd)
	assert.Equal(t, tear.StageTearing, m.Frame().Tear.Stage)
	for m.Frame().Tear.Progress < f.exp.Tear.CompletionThreshold {
		m, _ = send(t, m, keySpace)
	}

	m, _ = send(t, m, releaseMsg{gen: m.keyGen - 1})
	assert.NotEqual(t, tear.StageBurst, m.Frame().Tear.Stage, "stale release is ignored")

	m, _ = send(t, m, releaseMsg{gen: m.keyGen})
	assert.Equal(t, tear.StageBurst, m.Frame().Tear.Stage)

	f.sched.Advance(f.exp.Tear.RevealDelay.D())
	m, _ = send(t, m, keyRight)
	assert.Equal(t, scene.Result, m.Frame().Scene)
	assert.True(t, m.Frame().LetterOpened)
}

func TestModel_MessagesSelectByDigit(t *testing.T) {
	f := newFixture(t)
	f.boot()
	require.True(t, f.sess.GoTo(scene.Messages))
	m := f.model(t)
	require.Len(t, m.Frame().Messages, 3)

	m, _ = send(t, m, keyDown, runes("2"))
	second := m.Frame().Messages[1]
	assert.Equal(t, "Sam", second.Answer)
	assert.True(t, second.Locked)
	assert.Empty(t, m.Frame().Messages[0].Answer)

	m, _ = send(t, m, runes("1"))
	assert.Equal(t, "Sam", m.Frame().Messages[1].Answer, "locked after save")

	m, _ = send(t, m, runes("9"))
	assert.Equal(t, scene.Messages, m.Frame().Scene)
}

func TestModel_JourneyAnswers(t *testing.T) {
	f := newFixture(t)
	f.boot()
	require.True(t, f.sess.GoTo(scene.Journeys))
	m := f.model(t)

	m, _ = send(t, m, runes("1"))
	drink := m.Frame().Journeys[0].Steps[0]
	require.True(t, drink.Answered)
	assert.Equal(t, "Hot chocolate", drink.Answer)
	require.NotNil(t, drink.Correct)
	assert.True(t, *drink.Correct)
	assert.InDelta(t, 12.0, m.Frame().Distance, 1e-9)

	m, _ = send(t, m, keyDown, runes("a"))
	assert.True(t, m.typing)
	m, _ = send(t, m, runes("the rain"))
	assert.Contains(t, m.View(), "the rain")

	m, _ = send(t, m, keyEnter)
	assert.False(t, m.typing)
	remember := m.Frame().Journeys[0].Steps[1]
	assert.True(t, remember.Answered)
	assert.Equal(t, "the rain", remember.Answer)
	assert.Nil(t, remember.Correct)
	assert.InDelta(t, 12.0, m.Frame().Distance, 1e-9, "distance added once per journey")
}

func TestModel_TypingEscCancels(t *testing.T) {
	f := newFixture(t)
	f.boot()
	require.True(t, f.sess.GoTo(scene.Journeys))
	m := f.model(t)

	m, _ = send(t, m, keyDown, runes("a"), runes("nope"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.typing)
	assert.False(t, m.Frame().Journeys[0].Steps[1].Answered)
}

func TestModel_RestartAndMotion(t *testing.T) {
	f := newFixture(t)
	f.boot()
	m := f.model(t)

	m, _ = send(t, m, keyRight, keyRight)
	require.Equal(t, scene.Journeys, m.Frame().Scene)

	m, _ = send(t, m, runes("r"))
	assert.Equal(t, scene.Intro, m.Frame().Scene)

	m, _ = send(t, m, runes("m"))
	assert.True(t, m.reduced)
}

func TestModel_ViewShowsSceneAndProgress(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	out := m.View()
	assert.Contains(t, out, f.exp.Title)
	assert.Contains(t, out, "1/")

	f.boot()
	m, _ = send(t, m, runes("x"))
	assert.Contains(t, m.View(), "press → to begin")

	require.True(t, f.sess.GoTo(scene.Result))
	m, _ = send(t, m, runes("x"))
	assert.Contains(t, m.View(), "answered")
}

func TestModel_FrameTickAndQuit(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	m, cmd := send(t, m, frameMsg(testutil.Epoch))
	assert.NotNil(t, cmd)
	assert.Equal(t, testutil.Epoch, m.lastFrame)

	_, cmd = send(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_QuitsWhenLoopStops(t *testing.T) {
	f := newFixture(t)
	_, err := New(context.Background(), f.sess, stopped{}, WithLogger(discard))
	assert.ErrorIs(t, err, loop.ErrStopped)
}

func TestCapture_OnlyActiveScenes(t *testing.T) {
	f := newFixture(t)
	f.boot()
	ctx := context.Background()

	fr := Capture(ctx, f.sess)
	assert.Nil(t, fr.Counter)
	assert.Nil(t, fr.Tear)
	assert.Empty(t, fr.Journeys)
	assert.Equal(t, len(f.exp.Scenes), fr.Total)

	require.True(t, f.sess.GoTo(scene.Prologue))
	fr = Capture(ctx, f.sess)
	assert.Equal(t, f.exp.Prologue.Lines, fr.Prologue)

	require.True(t, f.sess.GoTo(scene.Journeys))
	fr = Capture(ctx, f.sess)
	require.Len(t, fr.Journeys, len(f.exp.Journeys))
	assert.Len(t, fr.steps(), 4)
}
