package tear

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/keepsake/internal/loop"
)

type driver int

const (
	driverNone driver = iota
	driverPointer
	driverKeyboard
)

// Machine is the tear-to-open gesture state machine.
//
// Not goroutine-safe; timers arrive through the Scheduler on the owning loop.
type Machine struct {
	cfg      Config
	sched    loop.Scheduler
	capturer Capturer
	rng      *rand.Rand
	logger   *slog.Logger

	bounds        Rect
	reducedMotion bool
	state         State

	// Active gesture.
	driver     driver
	pointerID  int
	captured   bool
	origin     Point
	baseline   float64
	required   float64
	backtrack  float64
	lastSample time.Time
	lastValue  float64

	pool Pool

	introTimer  loop.Timer
	alignTimer  loop.Timer
	revealTimer loop.Timer

	listeners []func(from, to Stage)
	closed    bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(m *Machine) {
		m.cfg = cfg
	}
}

// WithCapturer sets the pointer capture target.
func WithCapturer(c Capturer) Option {
	return func(m *Machine) {
		m.capturer = c
	}
}

// WithRand sets the particle random source.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) {
		m.rng = r
	}
}

// WithBounds sets the element rectangle.
func WithBounds(r Rect) Option {
	return func(m *Machine) {
		m.bounds = r
	}
}

// WithReducedMotion sets the initial reduced-motion preference.
func WithReducedMotion(on bool) Option {
	return func(m *Machine) {
		m.reducedMotion = on
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// New creates a machine in the intro stage and arms the intro timer.
func New(sched loop.Scheduler, opts ...Option) *Machine {
	m := &Machine{
		cfg:    DefaultConfig(),
		sched:  sched,
		rng:    rand.New(rand.NewPCG(uint64(sched.Now().UnixNano()), 0x7ea5)),
		bounds: Rect{W: 360, H: 480},
		logger: slog.Default(),
		state: State{
			Stage:       StageIntro,
			Speed:       SpeedIdle,
			PointerMode: PointerUnknown,
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.introTimer = sched.AfterFunc(m.cfg.IntroDelay, func() {
		if m.state.Stage == StageIntro {
			m.setStage(StageIdle)
		}
	})
	return m
}

// State returns the current gesture state.
func (m *Machine) State() State {
	return m.state
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	return m.state.Stage
}

// Progress returns the current progress in [0,1].
func (m *Machine) Progress() float64 {
	return m.state.Progress
}

// Revealed reports whether the content behind the envelope is visible.
func (m *Machine) Revealed() bool {
	return m.state.Stage == StageRevealed
}

// Pool returns the particle pool. The slice must not be modified.
func (m *Machine) Pool() Pool {
	return m.pool
}

// Edge returns the current torn edge.
func (m *Machine) Edge() Curve {
	return WaveCurve(m.state.Stage, m.state.Progress, m.cfg.Physics.TearDepth)
}

// OnStageChange registers fn to run after every stage transition.
func (m *Machine) OnStageChange(fn func(from, to Stage)) {
	m.listeners = append(m.listeners, fn)
}

// SetBounds updates the element rectangle, e.g. after a resize.
func (m *Machine) SetBounds(r Rect) {
	m.bounds = r
}

// SetReducedMotion updates the reduced-motion preference.
func (m *Machine) SetReducedMotion(on bool) {
	m.reducedMotion = on
}

// PointerDown starts a gesture or an aligning prompt.
func (m *Machine) PointerDown(ev PointerEvent) {
	if !m.acceptsInput() || m.driver != driverNone || m.bounds.Empty() {
		return
	}
	n := m.bounds.normalize(Point{ev.X, ev.Y})
	tune := m.cfg.mode(ev.Mode)

	switch m.state.Stage {
	case StagePrimed:
		if !inCutlineBand(n, m.cfg.CutlineBand, tune.ZoneExtension) {
			m.logger.Debug("tear: primed down outside cutline band ignored")
			return
		}
		m.beginPointer(ev, m.state.Progress, true)
	case StageIdle, StageAligning:
		if inStartZone(n, m.cfg.StartZone, tune.ZoneExtension) {
			m.beginPointer(ev, 0, false)
			return
		}
		m.driver = driverPointer
		m.pointerID = ev.ID
		m.state.PointerMode = ev.Mode
		m.capture(ev.ID)
		m.enterAligning()
	}
}

// PointerMove updates progress while tearing, or starts the tear when an
// aligning pointer drags into the start zone.
func (m *Machine) PointerMove(ev PointerEvent) {
	if m.closed || m.driver != driverPointer || ev.ID != m.pointerID {
		return
	}
	switch m.state.Stage {
	case StageTearing:
		m.updateFromPointer(Point{ev.X, ev.Y})
		if m.state.Progress >= 1 {
			m.complete()
		}
	case StageAligning:
		n := m.bounds.normalize(Point{ev.X, ev.Y})
		if inStartZone(n, m.cfg.StartZone, m.cfg.mode(ev.Mode).ZoneExtension) {
			m.release()
			m.beginPointer(ev, 0, false)
		}
	}
}

// PointerUp ends the gesture: completes above the threshold, resets below.
func (m *Machine) PointerUp(ev PointerEvent) {
	if m.closed || m.driver != driverPointer || ev.ID != m.pointerID {
		return
	}
	m.release()
	if m.state.Stage == StageTearing {
		m.finish()
		return
	}
	// An aligning prompt outlives the pointer until its timer reverts it.
	m.driver = driverNone
}

// PointerCancel is treated like PointerUp.
func (m *Machine) PointerCancel(ev PointerEvent) {
	m.PointerUp(ev)
}

// PointerLeave pauses a partial tear in the primed stage.
func (m *Machine) PointerLeave(ev PointerEvent) {
	if m.closed || m.driver != driverPointer || ev.ID != m.pointerID {
		return
	}
	m.release()
	m.driver = driverNone
	if m.state.Stage != StageTearing {
		return
	}
	switch p := m.state.Progress; {
	case p >= m.cfg.CompletionThreshold:
		m.complete()
	case p > 0:
		m.state.Speed = SpeedIdle
		m.setStage(StagePrimed)
	default:
		m.state.Speed = SpeedIdle
		m.setStage(StageIdle)
	}
}

// KeyDown advances the tear by one keyboard step. repeat marks auto-repeat
// presses. Returns whether the key was consumed.
func (m *Machine) KeyDown(k Key, repeat bool) bool {
	if !k.activates() || !m.acceptsInput() || m.driver == driverPointer {
		return false
	}
	step := m.cfg.FirstKeyStep
	if repeat {
		step = m.cfg.RepeatKeyStep
	}
	if m.driver == driverNone {
		stopTimer(&m.alignTimer)
		m.driver = driverKeyboard
		m.lastSample = m.sched.Now()
		m.lastValue = m.state.Progress
		m.setStage(StageTearing)
	}
	m.setProgress(m.state.Progress + step)
	if m.state.Progress >= 1 {
		m.complete()
	}
	return true
}

// KeyUp ends a keyboard tear.
func (m *Machine) KeyUp(k Key) bool {
	if !k.activates() || m.closed || m.driver != driverKeyboard {
		return false
	}
	m.driver = driverNone
	if m.state.Stage == StageTearing {
		m.finish()
	}
	return true
}

// Tick advances the particle simulation by dt, clamped to MaxFrameStep.
func (m *Machine) Tick(dt time.Duration) {
	if m.closed || dt <= 0 {
		return
	}
	if dt > m.cfg.MaxFrameStep {
		dt = m.cfg.MaxFrameStep
	}
	if m.pool.Empty() && !m.pool.Decaying && m.state.Stage.resting() {
		m.reseed()
	}
	m.pool = Simulate(m.pool, dt.Seconds(), Env{
		Stage:         m.state.Stage,
		Progress:      m.state.Progress,
		Speed:         m.state.Speed,
		ReducedMotion: m.reducedMotion,
		Boundary:      Boundary{CornerRadius: m.cfg.Physics.CornerRadius, Edge: m.Edge()},
		Physics:       m.cfg.Physics,
	}, m.rng)
}

// Close stops every pending timer and releases pointer capture.
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.closed = true
	loop.StopAll(m.introTimer, m.alignTimer, m.revealTimer)
	m.release()
	m.driver = driverNone
}

func (m *Machine) acceptsInput() bool {
	if m.closed {
		return false
	}
	return m.state.Stage != StageIntro && !m.state.Stage.Terminal()
}

func (m *Machine) beginPointer(ev PointerEvent, baseline float64, resumed bool) {
	stopTimer(&m.alignTimer)
	tune := m.cfg.mode(ev.Mode)

	required := m.bounds.Diagonal() * tune.RequiredFraction
	if required < m.cfg.MinRequiredDistance {
		required = m.cfg.MinRequiredDistance
	}
	if resumed {
		required *= m.cfg.PrimedFactor
	}

	m.driver = driverPointer
	m.pointerID = ev.ID
	m.state.PointerMode = ev.Mode
	m.capture(ev.ID)
	m.origin = Point{ev.X, ev.Y}
	m.baseline = baseline
	m.required = required
	m.backtrack = tune.BacktrackRatio * required
	m.lastSample = m.sched.Now()
	m.lastValue = baseline
	m.state.Progress = baseline
	m.setStage(StageTearing)
}

func (m *Machine) updateFromPointer(p Point) {
	dir := m.bounds.direction()
	along := p.sub(m.origin).dot(dir)
	if along < -m.backtrack {
		// Rebase so moving back toward the tear direction counts at once.
		m.origin = m.origin.add(dir.scale(along + m.backtrack))
		along = -m.backtrack
	}
	m.setProgress(m.baseline + along/m.required)
}

func (m *Machine) setProgress(v float64) {
	v = clamp01(v)
	now := m.sched.Now()
	if dt := now.Sub(m.lastSample).Seconds(); dt > 0 {
		vel := (v - m.lastValue) / dt
		if vel < 0 {
			vel = -vel
		}
		switch {
		case vel > m.cfg.FastVelocity:
			m.state.Speed = SpeedFast
		case vel > m.cfg.SlowVelocity:
			m.state.Speed = SpeedSlow
		default:
			m.state.Speed = SpeedIdle
		}
		m.lastSample = now
		m.lastValue = v
	}
	m.state.Progress = v
}

// finish resolves a released gesture.
func (m *Machine) finish() {
	m.driver = driverNone
	m.state.Speed = SpeedIdle
	aborted := m.state.Progress
	if aborted >= m.cfg.CompletionThreshold {
		m.complete()
		return
	}
	m.state.Progress = 0
	if aborted > m.cfg.AlignPromptThreshold {
		m.enterAligning()
		return
	}
	m.setStage(StageIdle)
}

func (m *Machine) complete() {
	stopTimer(&m.alignTimer)
	m.release()
	m.driver = driverNone
	m.state.Progress = 1
	m.state.Speed = SpeedIdle
	m.setStage(StageBurst)

	m.pool = Burst(m.pool, RepulsionCenter(m.Edge()), m.cfg.Physics.BurstImpulse)
	m.revealTimer = m.sched.AfterFunc(m.cfg.RevealDelay, func() {
		if m.state.Stage == StageBurst {
			m.setStage(StageRevealed)
		}
	})
}

func (m *Machine) enterAligning() {
	m.setStage(StageAligning)
	stopTimer(&m.alignTimer)
	m.alignTimer = m.sched.AfterFunc(m.cfg.AlignTimeout, func() {
		if m.state.Stage != StageAligning {
			return
		}
		m.release()
		m.driver = driverNone
		m.setStage(StageIdle)
	})
}

func (m *Machine) setStage(s Stage) {
	from := m.state.Stage
	if from == s {
		return
	}
	m.state.Stage = s
	m.logger.Debug("tear stage changed", "from", from, "to", s, "progress", m.state.Progress)
	if s.resting() && m.pool.Empty() && !m.pool.Decaying {
		m.reseed()
	}
	for _, fn := range m.listeners {
		fn(from, s)
	}
}

func (m *Machine) reseed() {
	m.pool = Seed(m.cfg.PoolSize, m.Edge(), m.rng)
}

func (m *Machine) capture(id int) {
	if m.captured {
		return
	}
	m.captured = true
	if m.capturer != nil {
		m.capturer.Capture(id)
	}
}

func (m *Machine) release() {
	if !m.captured {
		return
	}
	m.captured = false
	if m.capturer != nil {
		m.capturer.Release(m.pointerID)
	}
}

func stopTimer(t *loop.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
