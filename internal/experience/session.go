// Package experience wires the engine components into one running session:
// the scene sequencer, the scene-scoped interactive components it mounts and
// unmounts, quiz persistence, the asset preloader and the boot sequence.
//
// A Session is not goroutine-safe. Drive it from the loop that owns its
// Scheduler; front-ends hand events over with loop.Post.
package experience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/history"
	"github.com/roach88/keepsake/internal/loop"
	"github.com/roach88/keepsake/internal/preload"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tap"
	"github.com/roach88/keepsake/internal/tear"
	"github.com/roach88/keepsake/internal/tracked"
)

// ErrNoPoster is returned by Start when assets must be loaded but no Poster
// was configured to deliver the results.
var ErrNoPoster = errors.New("experience: assets configured without a poster")

// Session is one run through the experience.
type Session struct {
	id      uuid.UUID
	exp     *config.Experience
	sched   loop.Scheduler
	history *history.Store
	seq     *scene.Sequencer
	quiz    *quiz.Store
	key     quiz.AnswerKey
	preload *preload.Preloader
	metrics *metrics
	logger  *slog.Logger
	ctx     context.Context

	// Options.
	poster        preload.Poster
	meterProvider metric.MeterProvider
	capturer      tear.Capturer
	rng           *rand.Rand
	bounds        tear.Rect
	reducedMotion bool

	opened  *tracked.Cell[bool]
	visited map[string]*tracked.Cell[bool]

	// Scene-scoped components, present only while their scene is active.
	tear      *tear.Machine
	counter   *tap.Counter
	selectors map[string]*quiz.Selector

	assets    map[string][]byte
	stats     quiz.Stats
	bootTimer loop.Timer
	observers []func(Event)
	closed    bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithPoster sets how preload results reach the session's loop.
func WithPoster(p preload.Poster) Option {
	return func(s *Session) {
		s.poster = p
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Session) {
		s.meterProvider = mp
	}
}

// WithCapturer sets the pointer capture target of the tear gesture.
func WithCapturer(c tear.Capturer) Option {
	return func(s *Session) {
		s.capturer = c
	}
}

// WithRand sets the particle random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rng = r
	}
}

// WithBounds sets the letter element rectangle.
func WithBounds(r tear.Rect) Option {
	return func(s *Session) {
		s.bounds = r
	}
}

// WithReducedMotion sets the initial reduced-motion preference.
func WithReducedMotion(on bool) Option {
	return func(s *Session) {
		s.reducedMotion = on
	}
}

// WithID fixes the session id instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New creates a session over exp. Answers are persisted through answers.
// The first scene is mounted immediately; Start begins preloading.
func New(exp *config.Experience, sched loop.Scheduler, answers *quiz.Store, opts ...Option) (*Session, error) {
	s := &Session{
		exp:     exp,
		sched:   sched,
		quiz:    answers,
		key:     quiz.AnswerKey(exp.AnswerKey()),
		logger:  slog.Default(),
		ctx:     context.Background(),
		visited: make(map[string]*tracked.Cell[bool], len(exp.Journeys)),
		assets:  make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.id == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		s.id = id
	}
	s.logger = s.logger.With("session", s.id.String())

	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	m, err := newMetrics(s.meterProvider)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	s.history = history.New(history.WithNow(sched.Now), history.WithLogger(s.logger))

	seq, err := scene.New(s.history, sceneOrder(exp), scene.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("create sequencer: %w", err)
	}
	s.seq = seq

	s.opened = tracked.New(s.history, OpenedKey, false, tracked.WithLogger(s.logger))
	for _, j := range exp.Journeys {
		s.visited[j.ID] = tracked.New(s.history, VisitedPrefix+j.ID, false, tracked.WithLogger(s.logger))
	}

	s.seq.SetGate(scene.Letter, s.opened.Get)
	for _, id := range counterScenes {
		s.seq.SetGate(id, func() bool {
			return s.counter != nil && s.counter.CanAdvance()
		})
	}
	s.seq.OnChange(s.sceneChanged)
	s.seq.OnBootChange(s.bootChanged)
	s.seq.OnRestart(s.resetDerived)

	s.preload = preload.New(sched, s.preloadAssets(),
		preload.WithSoftCompletion(exp.Preload.SoftAfter.D(), exp.Preload.SoftRatio),
		preload.WithConcurrency(exp.Preload.Concurrency),
		preload.WithLogger(s.logger),
	)
	s.preload.OnComplete(func(soft bool) {
		s.logger.Info("assets ready", "soft", soft)
		value := "complete"
		if soft {
			value = "soft"
		}
		s.emit(Event{Kind: EventAssets, Value: value})
		s.armBoot()
	})

	s.mount(s.seq.Current())
	return s, nil
}

// Start begins preloading assets. The boot lock is released BootDelay after
// the preloader completes.
func (s *Session) Start(ctx context.Context) error {
	if len(s.exp.Preload.Assets) > 0 && s.poster == nil {
		return ErrNoPoster
	}
	s.ctx = ctx
	s.logger.Info("session started", "scenes", len(s.exp.Scenes), "assets", len(s.exp.Preload.Assets))
	s.preload.Start(ctx, s.poster)
	return nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id.String()
}

// Experience returns the configuration the session runs.
func (s *Session) Experience() *config.Experience {
	return s.exp
}

// Sequencer returns the scene sequencer.
func (s *Session) Sequencer() *scene.Sequencer {
	return s.seq
}

// History returns the session's action history.
func (s *Session) History() *history.Store {
	return s.history
}

// Preloader returns the asset preloader.
func (s *Session) Preloader() *preload.Preloader {
	return s.preload
}

// Scene returns the active scene.
func (s *Session) Scene() scene.ID {
	return s.seq.Current()
}

// Next advances to the next scene if the current one allows it.
func (s *Session) Next() bool {
	return s.seq.Next()
}

// Previous steps back one scene.
func (s *Session) Previous() bool {
	return s.seq.Previous()
}

// GoTo jumps to id.
func (s *Session) GoTo(id scene.ID) bool {
	return s.seq.GoTo(id)
}

// Restart returns to the first scene and replays the experience: distance,
// journeys visited, the opened letter and the tap counters are all reset.
// Preloaded assets are kept, so the boot sequence replays without reloading.
func (s *Session) Restart() {
	s.logger.Info("restarting")
	s.seq.Restart()
}

// CanGoBack reports whether there is anything to undo.
func (s *Session) CanGoBack() bool {
	return s.history.CanGoBack()
}

// Back undoes the most recent entry. It returns false when the history is
// empty, which front-ends surface as a transient "no history" hint.
func (s *Session) Back(ctx context.Context) (bool, error) {
	var label string
	if entries := s.history.Entries(); len(entries) > 0 {
		label = entries[len(entries)-1].Label
	}
	ok, err := s.history.GoBack(ctx)
	if err != nil {
		return false, fmt.Errorf("go back: %w", err)
	}
	if ok {
		s.metrics.undone(ctx, label)
		s.emit(Event{Kind: EventUndo, Key: label})
	}
	return ok, nil
}

// Tear returns the gesture machine of the letter scene, or nil when the
// letter is not the active scene.
func (s *Session) Tear() *tear.Machine {
	return s.tear
}

// LetterOpened reports whether the letter was torn open.
func (s *Session) LetterOpened() bool {
	return s.opened.Get()
}

// Counter returns the active tap counter, or nil on other scenes.
func (s *Session) Counter() *tap.Counter {
	return s.counter
}

// Pulse sends one pulse to the active tap counter.
func (s *Session) Pulse() bool {
	if s.counter == nil {
		return false
	}
	return s.counter.Pulse()
}

// Selector returns the answer selector of message id while the messages
// scene is active.
func (s *Session) Selector(id string) (*quiz.Selector, bool) {
	sel, ok := s.selectors[id]
	return sel, ok
}

// SelectMessage answers "who said it" for message id. It is refused outside
// the messages scene, for unknown ids and once the message is answered.
func (s *Session) SelectMessage(ctx context.Context, id, value string) bool {
	sel, ok := s.selectors[id]
	if !ok {
		return false
	}
	return sel.Select(ctx, value)
}

// AnswerStep persists the answer to a journey step, graded against the
// step's known answer if it has one. The first answer within a journey adds
// the journey's distance to the readout.
func (s *Session) AnswerStep(ctx context.Context, journeyID, stepID, answer string) (quiz.JourneyResponse, bool) {
	j, ok := s.exp.Journey(journeyID)
	if !ok {
		return quiz.JourneyResponse{}, false
	}
	var step config.Step
	found := false
	for _, st := range j.Steps {
		if st.ID == stepID {
			step, found = st, true
			break
		}
	}
	if !found {
		return quiz.JourneyResponse{}, false
	}

	r := quiz.JourneyResponse{
		JourneyID:     j.ID,
		StepID:        step.ID,
		StorageKey:    step.StorageKey(j.ID),
		Prompt:        step.Prompt,
		Answer:        answer,
		QuestionType:  step.Type,
		CorrectAnswer: step.Answer,
		RecordedAt:    s.sched.Now().UTC(),
	}
	if correct, known := s.key.Grade(r.StorageKey, answer); known {
		r.IsCorrect = &correct
	}
	r = s.quiz.SaveJourneyResponse(ctx, r)
	s.logger.Debug("journey step answered", "journey", j.ID, "step", step.ID)
	s.emit(Event{Kind: EventResponse, Key: r.StorageKey, Value: answer})

	s.visit(j)
	return r, true
}

// Responses returns the persisted journey responses.
func (s *Session) Responses(ctx context.Context) []quiz.JourneyResponse {
	return s.quiz.JourneyResponses(ctx)
}

// Stats returns the quiz statistics computed when the result scene was last
// entered.
func (s *Session) Stats() quiz.Stats {
	return s.stats
}

// Asset returns the bytes of a preloaded file asset.
func (s *Session) Asset(name string) ([]byte, bool) {
	b, ok := s.assets[name]
	return b, ok
}

// SetReducedMotion updates the reduced-motion preference.
func (s *Session) SetReducedMotion(on bool) {
	s.reducedMotion = on
	if s.tear != nil {
		s.tear.SetReducedMotion(on)
	}
}

// Tick advances frame-driven state by dt.
func (s *Session) Tick(dt time.Duration) {
	if s.tear != nil {
		s.tear.Tick(dt)
	}
}

// Close unmounts the active scene, cancels pending timers and loads, and
// flushes tracked state. Idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	loop.StopAll(s.bootTimer)
	s.unmount(s.seq.Current())
	s.preload.Close()
	s.seq.Unmount()
	s.opened.Unmount()
	for _, c := range s.visited {
		c.Unmount()
	}
	s.logger.Info("session closed")
}

func (s *Session) visit(j config.Journey) {
	cell := s.visited[j.ID]
	if cell == nil || cell.Get() {
		return
	}

	prevDistance := s.seq.Distance()
	s.history.SuspendRecording(func() {
		cell.Set(true)
		s.seq.AddDistance(j.DistanceKm)
	})

	store := s.history
	store.Record(func(context.Context) error {
		store.Restore(scene.DistanceKey, prevDistance)
		store.Restore(VisitedPrefix+j.ID, false)
		return nil
	}, history.WithLabel("journey.visit:"+j.ID))
}

func (s *Session) preloadAssets() []preload.Asset {
	assets := make([]preload.Asset, 0, len(s.exp.Preload.Assets))
	for _, a := range s.exp.Preload.Assets {
		name := a.Name
		assets = append(assets, preload.FileAsset(name, a.Path, func(b []byte) {
			// Runs on a loader goroutine; hand the bytes to the loop.
			s.poster.Post(func() { s.assets[name] = b })
		}))
	}
	return assets
}

func (s *Session) armBoot() {
	if s.seq.BootState() == scene.BootReady {
		return
	}
	loop.StopAll(s.bootTimer)
	s.bootTimer = s.sched.AfterFunc(s.exp.Boot.Delay.D(), func() {
		s.seq.SetBootState(scene.BootReady)
	})
}

func (s *Session) bootChanged(b scene.BootState) {
	s.emit(Event{Kind: EventBoot, To: string(b)})
	switch b {
	case scene.BootLoading:
		if s.preload.Complete() {
			s.armBoot()
		}
	case scene.BootReady:
		loop.StopAll(s.bootTimer)
		s.logger.Info("boot complete")
	}
}

func (s *Session) sceneChanged(from, to scene.ID) {
	s.metrics.transition(s.ctx, string(from), string(to))
	s.logger.Info("scene changed", "from", from, "to", to)
	s.unmount(from)
	s.mount(to)
	s.emit(Event{Kind: EventScene, From: string(from), To: string(to)})
}

// resetDerived clears the session-owned state a restart replays. It runs
// inside the sequencer's restart with recording suspended and returns the
// inverse for the restart's history entry.
func (s *Session) resetDerived() func() {
	store := s.history
	var restores []func()

	if s.opened.Get() {
		s.opened.Set(false)
		restores = append(restores, func() { store.Restore(OpenedKey, true) })
	}
	for id, cell := range s.visited {
		if cell.Get() {
			cell.Set(false)
			key := VisitedPrefix + id
			restores = append(restores, func() { store.Restore(key, true) })
		}
	}

	// Counters resume from their snapshots, so forgetting the snapshots
	// resets them. The active scene is remounted around the change in case
	// it is a counter scene.
	prev := make(map[string]any)
	for _, id := range counterScenes {
		for _, key := range counterKeys(id) {
			if v, ok := store.Snapshot(key); ok {
				prev[key] = v
			}
		}
	}
	if len(prev) > 0 {
		s.remount(func() {
			for key := range prev {
				store.DeleteSnapshot(key)
			}
		})
		restores = append(restores, func() {
			s.remount(func() {
				for key, v := range prev {
					store.SetSnapshot(key, v)
				}
			})
		})
	}

	if len(restores) == 0 {
		return nil
	}
	return func() {
		for _, r := range restores {
			r()
		}
	}
}

func (s *Session) remount(fn func()) {
	current := s.seq.Current()
	s.unmount(current)
	fn()
	s.mount(current)
}

func (s *Session) mount(id scene.ID) {
	switch {
	case id == scene.Letter:
		s.mountLetter()
	case isCounterScene(id):
		s.mountCounter(id)
	case id == scene.Messages:
		s.mountMessages()
	case id == scene.Result:
		s.refreshStats()
	}
}

func (s *Session) unmount(id scene.ID) {
	switch {
	case id == scene.Letter && s.tear != nil:
		s.tear.Close()
		s.tear = nil
	case isCounterScene(id) && s.counter != nil:
		s.counter.Close()
		s.counter = nil
	case id == scene.Messages:
		s.selectors = nil
	}
}

func (s *Session) mountLetter() {
	opts := []tear.Option{
		tear.WithConfig(TearConfig(s.exp.Tear)),
		tear.WithReducedMotion(s.reducedMotion),
		tear.WithLogger(s.logger),
	}
	if s.capturer != nil {
		opts = append(opts, tear.WithCapturer(s.capturer))
	}
	if s.rng != nil {
		opts = append(opts, tear.WithRand(s.rng))
	}
	if !s.bounds.Empty() {
		opts = append(opts, tear.WithBounds(s.bounds))
	}

	m := tear.New(s.sched, opts...)
	m.OnStageChange(func(from, to tear.Stage) {
		s.emit(Event{Kind: EventStage, From: string(from), To: string(to)})
		switch to {
		case tear.StageBurst:
			s.metrics.tearCompleted(s.ctx, string(m.State().PointerMode))
		case tear.StageRevealed:
			s.opened.Set(true, tracked.WithoutRecord())
			s.logger.Info("letter opened")
		}
	})
	s.tear = m
}

func (s *Session) mountCounter(id scene.ID) {
	cfg, _ := CounterConfig(s.exp, id)
	c := tap.New(cfg, s.sched, s.history, tap.WithLogger(s.logger))
	c.OnPulse(func(count int) {
		s.metrics.pulsed(s.ctx, cfg.Name)
		s.emit(Event{Kind: EventPulse, Key: cfg.Name, Value: strconv.Itoa(count)})
	})
	c.OnPhase(func(p tap.Phase) {
		s.emit(Event{Kind: EventPhase, Key: cfg.Name, To: string(p)})
	})
	c.OnLine(func(_ int, line string) {
		s.emit(Event{Kind: EventLine, Key: cfg.Name, Value: line})
	})
	s.counter = c
}

func (s *Session) mountMessages() {
	s.selectors = make(map[string]*quiz.Selector, len(s.exp.Messages))
	for _, m := range s.exp.Messages {
		sel := quiz.NewSelector(s.ctx, s.quiz, m.ID)
		id := m.ID
		sel.OnAnswered(func(value string) {
			correct, _ := s.key.Grade(id, value)
			s.logger.Debug("message answered", "message", id, "correct", correct)
			s.emit(Event{Kind: EventAnswer, Key: id, Value: value})
		})
		s.selectors[m.ID] = sel
	}
}

func (s *Session) refreshStats() {
	var extra []quiz.Graded
	for _, m := range s.exp.Messages {
		a, ok := s.quiz.LoadAnswer(s.ctx, m.ID)
		if !ok {
			continue
		}
		correct, _ := s.key.Grade(m.ID, a.Answer)
		extra = append(extra, quiz.Graded{Correct: correct, RecordedAt: a.RecordedAt})
	}
	s.stats = s.quiz.RefreshStats(s.ctx, extra...)
	s.logger.Info("quiz stats", "answered", s.stats.Answered, "correct", s.stats.Correct)
}
