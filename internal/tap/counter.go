// Package tap implements the tap-to-accumulate counters used by the likes,
// links and media scenes.
package tap

import (
	"log/slog"
	"time"

	"github.com/roach88/keepsake/internal/history"
	"github.com/roach88/keepsake/internal/loop"
	"github.com/roach88/keepsake/internal/tracked"
)

// Phase is the counter's progression phase.
type Phase string

const (
	PhasePlay     Phase = "play"
	PhaseAnnounce Phase = "announce"
	PhaseCTA      Phase = "cta"
)

// Config parameterizes one counter scene.
type Config struct {
	// Name scopes the snapshot keys, e.g. "likes".
	Name      string
	Target    int
	Increment int
	Start     int
	// Lines are revealed one per LineDelay once the target is reached.
	Lines     []string
	LineDelay time.Duration
	// CTADelay separates the last line from the call to action.
	CTADelay time.Duration
}

// Counter accumulates pulses toward a target and then plays its reveal.
//
// Not goroutine-safe; timers arrive through the Scheduler on the owning loop.
type Counter struct {
	cfg    Config
	sched  loop.Scheduler
	logger *slog.Logger

	count *tracked.Cell[int]
	phase *tracked.Cell[Phase]
	shown *tracked.Cell[int]

	timer loop.Timer

	pulseListeners []func(count int)
	phaseListeners []func(Phase)
	lineListeners  []func(i int, line string)
	closed         bool
}

// Option configures a Counter.
type Option func(*Counter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = l
	}
}

// New mounts a counter. State is resumed from the snapshot store, so a
// remounted counter continues where the previous one stopped, including a
// reveal that was still in progress.
func New(cfg Config, sched loop.Scheduler, store *history.Store, opts ...Option) *Counter {
	if cfg.Target < 0 {
		cfg.Target = 0
	}
	if cfg.Increment <= 0 {
		cfg.Increment = 1
	}
	cfg.Start = clamp(cfg.Start, 0, cfg.Target)

	c := &Counter{cfg: cfg, sched: sched, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	prefix := "tap." + cfg.Name + "."
	c.count = tracked.New(store, prefix+"count", cfg.Start, tracked.WithLogger(c.logger))
	c.phase = tracked.New(store, prefix+"phase", PhasePlay, tracked.WithLogger(c.logger))
	c.shown = tracked.New(store, prefix+"shown", 0, tracked.WithLogger(c.logger))

	switch {
	case c.phase.Get() == PhaseAnnounce:
		c.scheduleReveal()
	case c.phase.Get() == PhasePlay && c.count.Get() >= cfg.Target:
		c.announce()
	}
	return c
}

// Name returns the counter's name.
func (c *Counter) Name() string {
	return c.cfg.Name
}

// Count returns the accumulated count.
func (c *Counter) Count() int {
	return c.count.Get()
}

// Target returns the target count.
func (c *Counter) Target() int {
	return c.cfg.Target
}

// Phase returns the current phase.
func (c *Counter) Phase() Phase {
	return c.phase.Get()
}

// Ratio returns count/target in [0,1]. A zero target is complete.
func (c *Counter) Ratio() float64 {
	if c.cfg.Target == 0 {
		return 1
	}
	return float64(c.count.Get()) / float64(c.cfg.Target)
}

// Disabled reports whether pulses are currently ignored.
func (c *Counter) Disabled() bool {
	return c.closed || c.phase.Get() != PhasePlay
}

// CanAdvance reports whether the call to action is visible.
func (c *Counter) CanAdvance() bool {
	return c.phase.Get() == PhaseCTA
}

// VisibleLines returns the reveal lines shown so far.
func (c *Counter) VisibleLines() []string {
	n := clamp(c.shown.Get(), 0, len(c.cfg.Lines))
	return append([]string(nil), c.cfg.Lines[:n]...)
}

// Pulse adds one increment. Returns false when the pulse was ignored.
func (c *Counter) Pulse() bool {
	if c.Disabled() {
		return false
	}
	next := clamp(c.count.Get()+c.cfg.Increment, 0, c.cfg.Target)
	c.count.Set(next, tracked.WithoutRecord())
	for _, fn := range c.pulseListeners {
		fn(next)
	}
	if next >= c.cfg.Target {
		c.announce()
	}
	return true
}

// OnPulse registers fn to run after every accepted pulse.
func (c *Counter) OnPulse(fn func(count int)) {
	c.pulseListeners = append(c.pulseListeners, fn)
}

// OnPhase registers fn to run after every phase change.
func (c *Counter) OnPhase(fn func(Phase)) {
	c.phaseListeners = append(c.phaseListeners, fn)
}

// OnLine registers fn to run when a reveal line appears.
func (c *Counter) OnLine(fn func(i int, line string)) {
	c.lineListeners = append(c.lineListeners, fn)
}

// Close cancels pending reveal timers and flushes state to the snapshot
// store.
func (c *Counter) Close() {
	if c.closed {
		return
	}
	c.closed = true
	loop.StopAll(c.timer)
	c.timer = nil
	c.count.Unmount()
	c.phase.Unmount()
	c.shown.Unmount()
}

func (c *Counter) announce() {
	if c.phase.Get() != PhasePlay {
		return
	}
	c.setPhase(PhaseAnnounce)
	c.scheduleReveal()
}

// scheduleReveal arms the timer for the next reveal step.
func (c *Counter) scheduleReveal() {
	if c.closed {
		return
	}
	if c.shown.Get() < len(c.cfg.Lines) {
		c.timer = c.sched.AfterFunc(c.cfg.LineDelay, func() {
			i := c.shown.Get()
			c.shown.Set(i+1, tracked.WithoutRecord())
			for _, fn := range c.lineListeners {
				fn(i, c.cfg.Lines[i])
			}
			c.scheduleReveal()
		})
		return
	}
	c.timer = c.sched.AfterFunc(c.cfg.CTADelay, func() {
		c.setPhase(PhaseCTA)
	})
}

func (c *Counter) setPhase(p Phase) {
	if !c.phase.Set(p, tracked.WithoutRecord()) {
		return
	}
	c.logger.Debug("tap phase changed", "counter", c.cfg.Name, "phase", p, "count", c.count.Get())
	for _, fn := range c.phaseListeners {
		fn(p)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
