package tap

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/history"
	"github.com/roach88/keepsake/internal/testutil"
)

func likesConfig() Config {
	return Config{
		Name:      "likes",
		Target:    10,
		Increment: 3,
		Lines:     []string{"you like cats", "and rainy days"},
		LineDelay: 400 * time.Millisecond,
		CTADelay:  800 * time.Millisecond,
	}
}

func TestCounter_PlayToCTA(t *testing.T) {
	sched := testutil.NewManualScheduler()
	c := New(likesConfig(), sched, history.New())

	var phases []Phase
	var counts []int
	var lines []string
	c.OnPhase(func(p Phase) { phases = append(phases, p) })
	c.OnPulse(func(n int) { counts = append(counts, n) })
	c.OnLine(func(_ int, l string) { lines = append(lines, l) })

	assert.Equal(t, PhasePlay, c.Phase())
	for i := 0; i < 4; i++ {
		require.True(t, c.Pulse())
	}
	assert.Equal(t, []int{3, 6, 9, 10}, counts, "clamped to target")
	assert.Equal(t, PhaseAnnounce, c.Phase())
	assert.False(t, c.Pulse(), "pulses ignored outside play")
	assert.True(t, c.Disabled())

	sched.Advance(400 * time.Millisecond)
	assert.Equal(t, []string{"you like cats"}, c.VisibleLines())
	assert.False(t, c.CanAdvance())

	sched.Advance(400 * time.Millisecond)
	assert.Equal(t, []string{"you like cats", "and rainy days"}, lines)

	sched.Advance(799 * time.Millisecond)
	assert.Equal(t, PhaseAnnounce, c.Phase())
	sched.Advance(time.Millisecond)
	assert.Equal(t, PhaseCTA, c.Phase())
	assert.True(t, c.CanAdvance())

	assert.Equal(t, []Phase{PhaseAnnounce, PhaseCTA}, phases, "announce fires exactly once")
}

func TestCounter_ZeroTargetStartsInAnnounce(t *testing.T) {
	sched := testutil.NewManualScheduler()
	cfg := likesConfig()
	cfg.Target = 0
	c := New(cfg, sched, history.New())

	assert.Equal(t, PhaseAnnounce, c.Phase())
	assert.False(t, c.Pulse())
	assert.Equal(t, 1.0, c.Ratio())

	sched.Advance(2 * time.Second)
	assert.Equal(t, PhaseCTA, c.Phase())
}

func TestCounter_NoLinesGoesStraightToCTA(t *testing.T) {
	sched := testutil.NewManualScheduler()
	c := New(Config{Name: "links", Target: 1, CTADelay: time.Second}, sched, history.New())

	require.True(t, c.Pulse())
	assert.Equal(t, PhaseAnnounce, c.Phase())
	sched.Advance(time.Second)
	assert.Equal(t, PhaseCTA, c.Phase())
}

func TestCounter_CloseCancelsTimers(t *testing.T) {
	sched := testutil.NewManualScheduler()
	c := New(likesConfig(), sched, history.New())
	for c.Pulse() {
	}
	require.Equal(t, 1, sched.Pending())

	c.Close()
	assert.Equal(t, 0, sched.Pending())
	sched.Advance(time.Minute)
	assert.Empty(t, c.VisibleLines())
	assert.False(t, c.Pulse())
	c.Close()
}

func TestCounter_RemountResumes(t *testing.T) {
	sched := testutil.NewManualScheduler()
	store := history.New()

	c := New(likesConfig(), sched, store)
	c.Pulse()
	c.Pulse()
	c.Close()

	again := New(likesConfig(), sched, store)
	assert.Equal(t, 6, again.Count())
	assert.Equal(t, PhasePlay, again.Phase())
	assert.Equal(t, 0, store.Len(), "pulses are not undo entries")
}

func TestCounter_RemountMidRevealContinues(t *testing.T) {
	sched := testutil.NewManualScheduler()
	store := history.New()

	c := New(likesConfig(), sched, store)
	for c.Pulse() {
	}
	sched.Advance(400 * time.Millisecond)
	c.Close()

	again := New(likesConfig(), sched, store)
	assert.Equal(t, PhaseAnnounce, again.Phase())
	assert.Len(t, again.VisibleLines(), 1)

	sched.Advance(400*time.Millisecond + 800*time.Millisecond)
	assert.Equal(t, PhaseCTA, again.Phase())
	assert.Len(t, again.VisibleLines(), 2)
}

func TestCounter_StartClamped(t *testing.T) {
	sched := testutil.NewManualScheduler()
	cfg := likesConfig()
	cfg.Start = 50
	c := New(cfg, sched, history.New())
	assert.Equal(t, 10, c.Count())
	assert.Equal(t, PhaseAnnounce, c.Phase())
}

func TestCounter_CountersAreIndependent(t *testing.T) {
	sched := testutil.NewManualScheduler()
	store := history.New()
	likes := New(likesConfig(), sched, store)
	media := New(Config{Name: "media", Target: 5, Increment: 1}, sched, store)

	likes.Pulse()
	assert.Equal(t, 3, likes.Count())
	assert.Equal(t, 0, media.Count())
}

// Property: count never exceeds the target and announce fires at most once.
func TestProperty_CountClamped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("0 <= count <= target", prop.ForAll(
		func(target, increment, pulses int) bool {
			sched := testutil.NewManualScheduler()
			c := New(Config{Name: "p", Target: target, Increment: increment}, sched, history.New())
			announces := 0
			c.OnPhase(func(p Phase) {
				if p == PhaseAnnounce {
					announces++
				}
			})
			for i := 0; i < pulses; i++ {
				c.Pulse()
				if c.Count() < 0 || c.Count() > target {
					return false
				}
			}
			return announces <= 1
		},
		gen.IntRange(0, 50),
		gen.IntRange(1, 20),
		gen.IntRange(0, 80),
	))

	properties.TestingRun(t)
}
