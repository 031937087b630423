package experience

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/kv"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tap"
	"github.com/roach88/keepsake/internal/tear"
	"github.com/roach88/keepsake/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	s       *Session
	sched   *testutil.ManualScheduler
	answers *quiz.Store
}

func newFixture(t *testing.T, exp *config.Experience, opts ...Option) *fixture {
	t.Helper()
	sched := testutil.NewManualScheduler()
	answers := quiz.New(kv.NewMemory(), quiz.WithNow(sched.Now), quiz.WithLogger(discard))

	base := []Option{WithLogger(discard), WithMeterProvider(noop.NewMeterProvider())}
	s, err := New(exp, sched, answers, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return &fixture{s: s, sched: sched, answers: answers}
}

// booted returns a fixture past the boot sequence.
func booted(t *testing.T, exp *config.Experience, opts ...Option) *fixture {
	t.Helper()
	f := newFixture(t, exp, opts...)
	f.sched.Advance(exp.Boot.Delay.D())
	require.Equal(t, scene.BootReady, f.s.Sequencer().BootState())
	return f
}

// smallCounters shortens the counter scenes so tests can finish them.
func smallCounters(exp *config.Experience) *config.Experience {
	for _, c := range []*config.Counter{&exp.Counters.Likes, &exp.Counters.Links, &exp.Counters.Media} {
		c.Target = 2
		c.Start = 0
		c.Lines = []string{"one"}
	}
	return exp
}

func (f *fixture) openLetter(t *testing.T) {
	t.Helper()
	if f.s.Scene() != scene.Letter {
		require.True(t, f.s.GoTo(scene.Letter))
	}
	m := f.s.Tear()
	require.NotNil(t, m)

	f.sched.Advance(f.s.Experience().Tear.IntroDelay.D())
	require.True(t, m.KeyDown(tear.KeySpace, false))
	for m.Progress() < 0.82 {
		require.True(t, m.KeyDown(tear.KeySpace, true))
	}
	require.True(t, m.KeyUp(tear.KeySpace))
	require.Equal(t, tear.StageBurst, m.Stage())
	f.sched.Advance(f.s.Experience().Tear.RevealDelay.D())
	require.Equal(t, tear.StageRevealed, m.Stage())
}

func (f *fixture) finishCounter(t *testing.T) {
	t.Helper()
	c := f.s.Counter()
	require.NotNil(t, c)
	for f.s.Pulse() {
	}
	f.sched.Advance(10 * time.Second)
	require.Equal(t, tap.PhaseCTA, c.Phase())
}

func TestSession_BootLockReleasedAfterPreload(t *testing.T) {
	exp := config.MustDefault()
	f := newFixture(t, exp)

	assert.True(t, f.s.Preloader().Complete(), "no assets completes at start")
	assert.False(t, f.s.Next(), "boot lock holds until the boot delay elapses")
	assert.Equal(t, scene.Intro, f.s.Scene())

	f.sched.Advance(exp.Boot.Delay.D())
	assert.True(t, f.s.Next())
	assert.Equal(t, scene.Prologue, f.s.Scene())
}

func TestSession_IDIsVersion7(t *testing.T) {
	f := newFixture(t, config.MustDefault())
	id, err := uuid.Parse(f.s.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	fixed := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	g := newFixture(t, config.MustDefault(), WithID(fixed))
	assert.Equal(t, fixed.String(), g.s.ID())
}

func TestSession_LetterGatesUntilRevealed(t *testing.T) {
	f := booted(t, config.MustDefault())
	require.True(t, f.s.GoTo(scene.Letter))
	assert.False(t, f.s.Next(), "letter is sealed")

	f.sched.Advance(time.Second)
	m := f.s.Tear()
	m.KeyDown(tear.KeyEnter, false)
	m.KeyUp(tear.KeyEnter)
	assert.Equal(t, tear.StageIdle, m.Stage(), "small keyboard tear resets")
	assert.False(t, f.s.Next())

	f.openLetter(t)
	assert.True(t, f.s.LetterOpened())
	assert.True(t, f.s.Next())
	assert.Equal(t, scene.Result, f.s.Scene())
}

func TestSession_LetterStaysOpenAcrossRemount(t *testing.T) {
	f := booted(t, config.MustDefault())
	f.openLetter(t)
	require.True(t, f.s.Next())
	assert.Nil(t, f.s.Tear(), "letter unmounted")

	require.True(t, f.s.Previous())
	require.NotNil(t, f.s.Tear())
	assert.Equal(t, tear.StageIntro, f.s.Tear().Stage(), "fresh machine")
	assert.True(t, f.s.Next(), "gate remembers the opened letter")
}

func TestSession_LeavingLetterStopsGestureTimers(t *testing.T) {
	f := booted(t, config.MustDefault())
	require.True(t, f.s.GoTo(scene.Letter))
	require.Equal(t, 1, f.sched.Pending(), "intro timer")

	require.True(t, f.s.Previous())
	assert.Equal(t, 0, f.sched.Pending())
}

func TestSession_CounterGatesUntilCTA(t *testing.T) {
	f := booted(t, smallCounters(config.MustDefault()))
	require.True(t, f.s.GoTo(scene.Likes))
	assert.False(t, f.s.Next())

	f.finishCounter(t)
	assert.Equal(t, []string{"one"}, f.s.Counter().VisibleLines())
	assert.True(t, f.s.Next())
	assert.Equal(t, scene.Links, f.s.Scene())
	assert.Equal(t, "links", f.s.Counter().Name())
}

func TestSession_CounterResumesAfterRemount(t *testing.T) {
	exp := config.MustDefault()
	f := booted(t, exp)
	require.True(t, f.s.GoTo(scene.Likes))
	start := exp.Counters.Likes.Start
	f.s.Pulse()
	f.s.Pulse()
	require.Equal(t, start+2, f.s.Counter().Count())

	require.True(t, f.s.Previous())
	assert.Nil(t, f.s.Counter())
	assert.False(t, f.s.Pulse())

	require.True(t, f.s.GoTo(scene.Likes))
	assert.Equal(t, start+2, f.s.Counter().Count())
}

func TestSession_DefaultCountersMountWithHeadStart(t *testing.T) {
	f := booted(t, config.MustDefault())
	for _, id := range []scene.ID{scene.Likes, scene.Links, scene.Media} {
		require.True(t, f.s.GoTo(id))
		c := f.s.Counter()
		require.NotNil(t, c, id)
		assert.Positive(t, c.Count(), id)
		assert.Less(t, c.Count(), c.Target(), id)
		assert.Equal(t, tap.PhasePlay, c.Phase(), id)
	}
}

func TestSession_MessagesLockAfterSave(t *testing.T) {
	f := booted(t, config.MustDefault())
	ctx := context.Background()

	assert.False(t, f.s.SelectMessage(ctx, "msg-1", "Sam"), "selectors exist only on the messages scene")

	require.True(t, f.s.GoTo(scene.Messages))
	assert.True(t, f.s.SelectMessage(ctx, "msg-1", "Sam"))
	assert.False(t, f.s.SelectMessage(ctx, "msg-1", "Alex"), "locked after save")
	assert.False(t, f.s.SelectMessage(ctx, "nope", "Alex"))

	sel, ok := f.s.Selector("msg-1")
	require.True(t, ok)
	assert.True(t, sel.Locked())

	stored, ok := f.answers.LoadAnswer(ctx, "msg-1")
	require.True(t, ok)
	assert.Equal(t, "Sam", stored.Answer)
}

func TestSession_AnswerStepGradesAndAddsDistanceOnce(t *testing.T) {
	f := booted(t, config.MustDefault())
	ctx := context.Background()
	require.True(t, f.s.GoTo(scene.Journeys))
	assert.True(t, f.s.Sequencer().ShowsDistance())

	r, ok := f.s.AnswerStep(ctx, "first-date", "drink", " Hot chocolate ")
	require.True(t, ok)
	require.NotNil(t, r.IsCorrect)
	assert.True(t, *r.IsCorrect)
	assert.Equal(t, "first-date.drink", r.StorageKey)
	assert.Equal(t, "choice", r.QuestionType)
	assert.InDelta(t, 12.0, f.s.Sequencer().Distance(), 1e-9)

	r, ok = f.s.AnswerStep(ctx, "first-date", "remember", "the rain")
	require.True(t, ok)
	assert.Nil(t, r.IsCorrect, "open question")
	assert.InDelta(t, 12.0, f.s.Sequencer().Distance(), 1e-9, "distance added once per journey")

	_, ok = f.s.AnswerStep(ctx, "lisbon", "tram", "15")
	require.True(t, ok)
	assert.InDelta(t, 1462.0, f.s.Sequencer().Distance(), 1e-9)

	_, ok = f.s.AnswerStep(ctx, "lisbon", "missing", "x")
	assert.False(t, ok)
	_, ok = f.s.AnswerStep(ctx, "mars", "tram", "x")
	assert.False(t, ok)

	assert.Len(t, f.answers.JourneyResponses(ctx), 3)
}

func TestSession_UndoJourneyVisit(t *testing.T) {
	f := booted(t, config.MustDefault())
	ctx := context.Background()
	require.True(t, f.s.GoTo(scene.Journeys))
	_, ok := f.s.AnswerStep(ctx, "kyoto", "wish", "to come back")
	require.True(t, ok)
	require.InDelta(t, 9600.0, f.s.Sequencer().Distance(), 1e-9)

	undone, err := f.s.Back(ctx)
	require.NoError(t, err)
	require.True(t, undone)
	assert.Zero(t, f.s.Sequencer().Distance())
	assert.Equal(t, scene.Journeys, f.s.Scene(), "visit is its own entry")

	_, ok = f.s.AnswerStep(ctx, "kyoto", "wish", "again")
	require.True(t, ok)
	assert.InDelta(t, 9600.0, f.s.Sequencer().Distance(), 1e-9, "visit counts again after undo")
}

func TestSession_BackReportsEmptyHistory(t *testing.T) {
	f := newFixture(t, config.MustDefault())
	ok, err := f.s.Back(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.s.CanGoBack())
}

func TestSession_BackUndoesNavigation(t *testing.T) {
	f := booted(t, config.MustDefault())
	require.True(t, f.s.Next())
	require.True(t, f.s.Next())
	require.Equal(t, scene.Journeys, f.s.Scene())

	ok, err := f.s.Back(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scene.Prologue, f.s.Scene())
}

func TestSession_ResultRefreshesStats(t *testing.T) {
	f := booted(t, config.MustDefault())
	ctx := context.Background()

	require.True(t, f.s.GoTo(scene.Journeys))
	f.s.AnswerStep(ctx, "first-date", "drink", "Hot chocolate")
	f.s.AnswerStep(ctx, "lisbon", "tram", "12")
	f.s.AnswerStep(ctx, "kyoto", "wish", "anything")

	require.True(t, f.s.GoTo(scene.Messages))
	f.s.SelectMessage(ctx, "msg-1", "Sam")
	f.s.SelectMessage(ctx, "msg-2", "Sam")

	require.True(t, f.s.GoTo(scene.Result))
	st := f.s.Stats()
	assert.Equal(t, 5, st.Answered)
	assert.Equal(t, 4, st.Graded)
	assert.Equal(t, 2, st.Correct)

	persisted, ok := f.answers.LoadStats(ctx)
	require.True(t, ok)
	assert.Equal(t, st.Correct, persisted.Correct)
}

func TestSession_RestartReplaysExperience(t *testing.T) {
	exp := smallCounters(config.MustDefault())
	f := booted(t, exp)
	ctx := context.Background()

	require.True(t, f.s.GoTo(scene.Journeys))
	f.s.AnswerStep(ctx, "lisbon", "tram", "28")
	require.True(t, f.s.GoTo(scene.Likes))
	f.finishCounter(t)
	f.openLetter(t)
	before := f.s.History().Len()

	f.s.Restart()
	assert.Equal(t, scene.Intro, f.s.Scene())
	assert.Equal(t, scene.BootLoading, f.s.Sequencer().BootState())
	assert.Zero(t, f.s.Sequencer().Distance())
	assert.False(t, f.s.LetterOpened())
	assert.Equal(t, before+1, f.s.History().Len(), "restart is one entry")

	f.sched.Advance(exp.Boot.Delay.D())
	assert.Equal(t, scene.BootReady, f.s.Sequencer().BootState(), "boot replays without reloading")

	require.True(t, f.s.GoTo(scene.Likes))
	assert.Equal(t, tap.PhasePlay, f.s.Counter().Phase(), "counter replays")
	assert.Zero(t, f.s.Counter().Count())

	_, ok := f.s.AnswerStep(ctx, "lisbon", "tram", "28")
	require.True(t, ok)
	assert.InDelta(t, 1450.0, f.s.Sequencer().Distance(), 1e-9, "journey counts again")
}

func TestSession_UndoRestart(t *testing.T) {
	exp := smallCounters(config.MustDefault())
	f := booted(t, exp)
	ctx := context.Background()

	require.True(t, f.s.GoTo(scene.Journeys))
	f.s.AnswerStep(ctx, "lisbon", "tram", "28")
	require.True(t, f.s.GoTo(scene.Likes))
	f.finishCounter(t)
	f.openLetter(t)

	f.s.Restart()
	ok, err := f.s.Back(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, scene.Letter, f.s.Scene())
	assert.Equal(t, scene.BootReady, f.s.Sequencer().BootState())
	assert.InDelta(t, 1450.0, f.s.Sequencer().Distance(), 1e-9)
	assert.True(t, f.s.LetterOpened())

	require.True(t, f.s.GoTo(scene.Likes))
	assert.Equal(t, tap.PhaseCTA, f.s.Counter().Phase(), "counter state restored")
}

func TestSession_RestartBeforePreloadWaitsForIt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "letter.md")
	require.NoError(t, os.WriteFile(path, []byte("# hi"), 0o644))

	exp := config.MustDefault()
	exp.Preload.Assets = []config.Asset{{Name: "letter", Path: path}}

	posts := make(chan func(), 4)
	f := newFixture(t, exp, WithPoster(chanPoster(posts)))
	assert.False(t, f.s.Preloader().Complete())

	f.sched.Advance(time.Minute)
	assert.Equal(t, scene.BootLoading, f.s.Sequencer().BootState(), "boot waits for assets")

	for !f.s.Preloader().Complete() {
		select {
		case fn := <-posts:
			fn()
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for preload")
		}
	}
	b, ok := f.s.Asset("letter")
	require.True(t, ok)
	assert.Equal(t, "# hi", string(b))

	f.sched.Advance(exp.Boot.Delay.D())
	assert.Equal(t, scene.BootReady, f.s.Sequencer().BootState())
}

func TestSession_StartWithoutPoster(t *testing.T) {
	exp := config.MustDefault()
	exp.Preload.Assets = []config.Asset{{Name: "x", Path: "x"}}

	s, err := New(exp, testutil.NewManualScheduler(), quiz.New(kv.NewMemory()), WithLogger(discard))
	require.NoError(t, err)
	defer s.Close()
	assert.ErrorIs(t, s.Start(context.Background()), ErrNoPoster)
}

func TestSession_CloseStopsEverything(t *testing.T) {
	f := booted(t, config.MustDefault())
	require.True(t, f.s.GoTo(scene.Letter))
	require.NotZero(t, f.sched.Pending())

	f.s.Close()
	f.s.Close()
	assert.Equal(t, 0, f.sched.Pending())
}

func TestSession_ReducedMotionReachesTear(t *testing.T) {
	f := booted(t, config.MustDefault(), WithReducedMotion(true))
	require.True(t, f.s.GoTo(scene.Letter))
	f.sched.Advance(time.Second)

	f.s.Tick(16 * time.Millisecond)
	assert.False(t, f.s.Tear().Pool().Empty(), "tick seeds the resting pool")

	f.s.SetReducedMotion(false)
	f.s.Tick(16 * time.Millisecond)
}

func TestSession_TearConfigFromExperience(t *testing.T) {
	exp := config.MustDefault()
	exp.Tear.CompletionThreshold = 0.5
	cfg := TearConfig(exp.Tear)
	assert.Equal(t, 0.5, cfg.CompletionThreshold)
	assert.Equal(t, tear.DefaultPoolSize, cfg.PoolSize, "untuned fields keep defaults")
}

type chanPoster chan func()

func (c chanPoster) Post(fn func()) bool {
	c <- fn
	return true
}
