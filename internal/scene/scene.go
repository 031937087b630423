// Package scene sequences the fixed list of full-screen scenes.
//
// The cursor and the distance readout are tracked cells, so every navigation
// is one undoable history entry and a remounted sequencer resumes where the
// previous one stopped.
package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/keepsake/internal/history"
	"github.com/roach88/keepsake/internal/tracked"
)

// ID identifies a scene.
type ID string

const (
	Intro    ID = "intro"
	Prologue ID = "prologue"
	Journeys ID = "journeys"
	Messages ID = "messages"
	Likes    ID = "likes"
	Links    ID = "links"
	Media    ID = "media"
	Letter   ID = "letter"
	Result   ID = "result"
)

// DefaultOrder is the full experience sequence.
var DefaultOrder = []ID{Intro, Prologue, Journeys, Messages, Likes, Links, Media, Letter, Result}

// BootState is the state of the intro boot sequence.
type BootState string

const (
	BootLoading BootState = "loading"
	BootReady   BootState = "ready"
)

// Snapshot keys used by the sequencer's tracked cells.
const (
	IndexKey    = "scene.index"
	DistanceKey = "scene.distance"
)

// ErrEmptyOrder is returned by New when no scenes are given.
var ErrEmptyOrder = errors.New("scene: order must not be empty")

// Sequencer owns the scene cursor.
//
// Not goroutine-safe; drive it from the session loop.
type Sequencer struct {
	order         []ID
	pos           map[ID]int
	history       *history.Store
	index         *tracked.Cell[int]
	distance      *tracked.Cell[float64]
	boot          BootState
	lockedScene   ID
	distanceScene ID
	gates         map[ID]func() bool
	listeners     []func(from, to ID)
	bootListeners []func(BootState)
	restartHooks  []func() (restore func())
	logger        *slog.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLockedScene sets the scene navigation is pinned to while booting.
// Defaults to the first scene of the order.
func WithLockedScene(id ID) Option {
	return func(s *Sequencer) {
		s.lockedScene = id
	}
}

// WithDistanceScene sets the scene that shows the distance readout.
// Defaults to Journeys.
func WithDistanceScene(id ID) Option {
	return func(s *Sequencer) {
		s.distanceScene = id
	}
}

// WithBootState sets the initial boot state. Defaults to BootLoading.
func WithBootState(b BootState) Option {
	return func(s *Sequencer) {
		s.boot = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// New mounts a sequencer over order. Duplicate IDs are rejected.
func New(store *history.Store, order []ID, opts ...Option) (*Sequencer, error) {
	if len(order) == 0 {
		return nil, ErrEmptyOrder
	}

	pos := make(map[ID]int, len(order))
	for i, id := range order {
		if _, dup := pos[id]; dup {
			return nil, fmt.Errorf("scene: duplicate scene %q", id)
		}
		pos[id] = i
	}

	s := &Sequencer{
		order:         append([]ID(nil), order...),
		pos:           pos,
		history:       store,
		boot:          BootLoading,
		lockedScene:   order[0],
		distanceScene: Journeys,
		gates:         make(map[ID]func() bool),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.index = tracked.New(store, IndexKey, 0, tracked.WithLogger(s.logger))
	s.distance = tracked.New(store, DistanceKey, 0.0, tracked.WithLogger(s.logger))

	// A snapshot from a longer order must not put the cursor out of range.
	if i := s.index.Get(); i < 0 || i >= len(s.order) {
		s.index.Set(clamp(i, 0, len(s.order)-1), tracked.WithoutRecord())
	}

	s.index.OnChange(func(prev, next int) {
		from, to := s.order[clamp(prev, 0, len(s.order)-1)], s.order[clamp(next, 0, len(s.order)-1)]
		s.logger.Debug("scene changed", "from", from, "to", to)
		for _, fn := range s.listeners {
			fn(from, to)
		}
	})

	return s, nil
}

// Order returns a copy of the scene order.
func (s *Sequencer) Order() []ID {
	return append([]ID(nil), s.order...)
}

// Index returns the cursor.
func (s *Sequencer) Index() int {
	return s.index.Get()
}

// Current returns the active scene.
func (s *Sequencer) Current() ID {
	return s.order[s.index.Get()]
}

// Has reports whether id is part of the order.
func (s *Sequencer) Has(id ID) bool {
	_, ok := s.pos[id]
	return ok
}

// Locked reports whether the boot lock is active.
func (s *Sequencer) Locked() bool {
	return s.boot != BootReady
}

// BootState returns the boot state.
func (s *Sequencer) BootState() BootState {
	return s.boot
}

// SetBootState changes the boot state. Not recorded in history.
func (s *Sequencer) SetBootState(b BootState) {
	if s.boot == b {
		return
	}
	s.boot = b
	s.logger.Debug("boot state changed", "state", b)
	for _, fn := range s.bootListeners {
		fn(b)
	}
}

// SetGate installs a readiness check for id. Next from id is refused while
// ready returns false. A nil ready removes the gate.
func (s *Sequencer) SetGate(id ID, ready func() bool) {
	if ready == nil {
		delete(s.gates, id)
		return
	}
	s.gates[id] = ready
}

// Ready reports whether the current scene allows moving forward.
func (s *Sequencer) Ready() bool {
	if s.Locked() {
		return false
	}
	if gate, ok := s.gates[s.Current()]; ok {
		return gate()
	}
	return true
}

// GoTo jumps to id. Unknown ids are ignored. While booting, only the locked
// scene is reachable. Returns whether the cursor moved.
func (s *Sequencer) GoTo(id ID) bool {
	i, ok := s.pos[id]
	if !ok {
		return false
	}
	if s.Locked() && id != s.lockedScene {
		return false
	}
	return s.index.Set(i, tracked.WithLabel("scene.goto:"+string(id)))
}

// Next advances by one, clamped to the last scene. Refused while booting or
// while the current scene's gate is closed.
func (s *Sequencer) Next() bool {
	if !s.Ready() {
		return false
	}
	next := clamp(s.index.Get()+1, 0, len(s.order)-1)
	return s.index.Set(next, tracked.WithLabel("scene.next"))
}

// Previous steps back by one, clamped to the first scene. Always allowed.
func (s *Sequencer) Previous() bool {
	prev := clamp(s.index.Get()-1, 0, len(s.order)-1)
	return s.index.Set(prev, tracked.WithLabel("scene.previous"))
}

// Restart returns to the first scene and clears scene-scoped state: distance,
// boot state and whatever OnRestart hooks reset. The whole reset is one
// history entry.
func (s *Sequencer) Restart() {
	prevIndex, prevDistance, prevBoot := s.index.Get(), s.distance.Get(), s.boot

	var restores []func()
	s.history.SuspendRecording(func() {
		s.index.Set(0)
		s.distance.Set(0)
		s.SetBootState(BootLoading)
		for _, reset := range s.restartHooks {
			if restore := reset(); restore != nil {
				restores = append(restores, restore)
			}
		}
	})

	if prevIndex == 0 && prevDistance == 0 && prevBoot == BootLoading && len(restores) == 0 {
		return
	}

	store := s.history
	store.Record(func(context.Context) error {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		store.Restore(DistanceKey, prevDistance)
		s.SetBootState(prevBoot)
		store.Restore(IndexKey, prevIndex)
		return nil
	}, history.WithLabel("scene.restart"))
}

// OnRestart registers reset to run inside Restart with recording suspended.
// reset returns a function undoing it, or nil when it changed nothing.
func (s *Sequencer) OnRestart(reset func() (restore func())) {
	s.restartHooks = append(s.restartHooks, reset)
}

// AddDistance adds km to the distance readout.
func (s *Sequencer) AddDistance(km float64) {
	if km == 0 {
		return
	}
	s.distance.Update(func(d float64) float64 { return d + km }, tracked.WithLabel("scene.distance"))
}

// Distance returns the accumulated distance in km.
func (s *Sequencer) Distance() float64 {
	return s.distance.Get()
}

// ShowsDistance reports whether the distance readout is visible.
func (s *Sequencer) ShowsDistance() bool {
	return s.Current() == s.distanceScene
}

// OnChange registers fn to run after the active scene changes, including
// changes made by undo.
func (s *Sequencer) OnChange(fn func(from, to ID)) {
	s.listeners = append(s.listeners, fn)
}

// OnBootChange registers fn to run after the boot state changes.
func (s *Sequencer) OnBootChange(fn func(BootState)) {
	s.bootListeners = append(s.bootListeners, fn)
}

// Unmount flushes tracked state to the snapshot store.
func (s *Sequencer) Unmount() {
	s.index.Unmount()
	s.distance.Unmount()
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
