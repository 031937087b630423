package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/roach88/keepsake/internal/config"
	"github.com/roach88/keepsake/internal/experience"
	"github.com/roach88/keepsake/internal/kv"
	"github.com/roach88/keepsake/internal/logging"
	"github.com/roach88/keepsake/internal/quiz"
	"github.com/roach88/keepsake/internal/scene"
	"github.com/roach88/keepsake/internal/tear"
	"github.com/roach88/keepsake/internal/testutil"
)

// SessionID is the fixed id of every scripted session.
var SessionID = uuid.MustParse("0190a5c0-0000-7000-8000-000000000001")

// Bounds is the letter rectangle pointer actions are expressed in.
var Bounds = tear.Rect{X: 0, Y: 0, W: 360, H: 480}

type options struct {
	store         kv.Store
	logger        *slog.Logger
	meterProvider metric.MeterProvider
}

// Option configures a run.
type Option func(*options)

// WithStore persists answers to s instead of a fresh in-memory store.
func WithStore(s kv.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLogger sets the session logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider records session metrics to mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// runner executes one scenario.
type runner struct {
	ctx    context.Context
	sched  *testutil.ManualScheduler
	sess   *experience.Session
	result *Result
	seq    int64
}

// Run executes a scenario and evaluates its expectations and assertions.
// The returned error reports a scenario that could not run; failed checks
// are recorded on the Result.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger:        logging.Discard(),
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = kv.NewMemory()
	}

	exp, err := loadExperience(sc.Config)
	if err != nil {
		return nil, err
	}
	exp.Preload.Assets = nil

	sched := testutil.NewManualScheduler()
	answers := quiz.New(o.store, quiz.WithNow(sched.Now), quiz.WithLogger(o.logger))
	sess, err := experience.New(exp, sched, answers,
		experience.WithID(SessionID),
		experience.WithRand(rand.New(rand.NewPCG(1, 2))),
		experience.WithBounds(Bounds),
		experience.WithReducedMotion(sc.ReducedMotion),
		experience.WithLogger(o.logger),
		experience.WithMeterProvider(o.meterProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer sess.Close()

	r := &runner{
		ctx:    ctx,
		sched:  sched,
		sess:   sess,
		result: NewResult(),
	}
	sess.OnEvent(r.observe)

	if err := sess.Start(ctx); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	for i, step := range sc.Steps {
		if err := r.step(i, step); err != nil {
			return nil, err
		}
	}

	r.result.State = snapshotState(sess)
	for _, msg := range EvaluateAssertions(r.result, sc.Assertions) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

func loadExperience(path string) (*config.Experience, error) {
	if path == "" {
		return config.MustDefault(), nil
	}
	exp, errs := config.Load(path)
	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %w", errors.Join(errs...))
	}
	return exp, nil
}

func (r *runner) now() int64 {
	return r.sched.Now().Sub(testutil.Epoch).Milliseconds()
}

func (r *runner) observe(ev experience.Event) {
	r.seq++
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Seq:   r.seq,
		At:    r.now(),
		Type:  TraceSession,
		Kind:  string(ev.Kind),
		From:  ev.From,
		To:    ev.To,
		Key:   ev.Key,
		Value: ev.Value,
	})
}

func (r *runner) step(i int, step Step) error {
	act := actions[step.Do]
	if act == nil {
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Do)
	}

	// The invocation precedes the events it causes.
	r.seq++
	idx := len(r.result.Trace)
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Seq:    r.seq,
		At:     r.now(),
		Type:   TraceInvoke,
		Action: step.Do,
		Args:   step.Args,
	})

	res, err := act(r, step.Args)
	if err != nil {
		return fmt.Errorf("steps[%d] %s: %w", i, step.Do, err)
	}
	r.result.Trace[idx].Result = res

	if step.Expect == nil {
		return nil
	}
	if step.Expect.OK != nil {
		ok, isBool := res.(bool)
		switch {
		case !isBool:
			r.result.AddError(fmt.Sprintf("steps[%d] %s: expected ok=%t, action has no boolean result", i, step.Do, *step.Expect.OK))
		case ok != *step.Expect.OK:
			r.result.AddError(fmt.Sprintf("steps[%d] %s: expected ok=%t, got %t", i, step.Do, *step.Expect.OK, ok))
		}
	}
	if step.Expect.Scene != "" && string(r.sess.Scene()) != step.Expect.Scene {
		r.result.AddError(fmt.Sprintf("steps[%d] %s: expected scene %s, got %s", i, step.Do, step.Expect.Scene, r.sess.Scene()))
	}
	return nil
}

// action executes one step. A nil result is omitted from the trace.
type action func(r *runner, args map[string]any) (any, error)

var actions map[string]action

func init() {
	actions = map[string]action{
		"advance": func(r *runner, args map[string]any) (any, error) {
			d, err := argDuration(args, "duration")
			if err != nil {
				return nil, err
			}
			r.sched.Advance(d)
			return nil, nil
		},
		"tick": func(r *runner, args map[string]any) (any, error) {
			d, err := argDuration(args, "duration")
			if err != nil {
				return nil, err
			}
			r.sess.Tick(d)
			return nil, nil
		},
		"next": func(r *runner, _ map[string]any) (any, error) {
			return r.sess.Next(), nil
		},
		"previous": func(r *runner, _ map[string]any) (any, error) {
			return r.sess.Previous(), nil
		},
		"goto": func(r *runner, args map[string]any) (any, error) {
			id, err := argString(args, "scene")
			if err != nil {
				return nil, err
			}
			return r.sess.GoTo(scene.ID(id)), nil
		},
		"restart": func(r *runner, _ map[string]any) (any, error) {
			r.sess.Restart()
			return nil, nil
		},
		"back": func(r *runner, _ map[string]any) (any, error) {
			return r.sess.Back(r.ctx)
		},
		"pulse": func(r *runner, args map[string]any) (any, error) {
			times, err := argIntOr(args, "times", 1)
			if err != nil {
				return nil, err
			}
			all := true
			for range times {
				all = r.sess.Pulse() && all
			}
			return all, nil
		},
		"key_down": func(r *runner, args map[string]any) (any, error) {
			k, err := argString(args, "key")
			if err != nil {
				return nil, err
			}
			repeat, err := argBoolOr(args, "repeat", false)
			if err != nil {
				return nil, err
			}
			times, err := argIntOr(args, "times", 1)
			if err != nil {
				return nil, err
			}
			all := true
			for n := range times {
				m := r.sess.Tear()
				if m == nil {
					return false, nil
				}
				// Presses after the first are auto-repeats.
				all = m.KeyDown(tear.Key(k), repeat || n > 0) && all
			}
			return all, nil
		},
		"key_up": func(r *runner, args map[string]any) (any, error) {
			k, err := argString(args, "key")
			if err != nil {
				return nil, err
			}
			m := r.sess.Tear()
			if m == nil {
				return false, nil
			}
			return m.KeyUp(tear.Key(k)), nil
		},
		"pointer_down":   pointer((*tear.Machine).PointerDown),
		"pointer_move":   pointer((*tear.Machine).PointerMove),
		"pointer_up":     pointer((*tear.Machine).PointerUp),
		"pointer_cancel": pointer((*tear.Machine).PointerCancel),
		"pointer_leave":  pointer((*tear.Machine).PointerLeave),
		"select": func(r *runner, args map[string]any) (any, error) {
			id, err := argString(args, "message")
			if err != nil {
				return nil, err
			}
			value, err := argString(args, "value")
			if err != nil {
				return nil, err
			}
			return r.sess.SelectMessage(r.ctx, id, value), nil
		},
		"answer": func(r *runner, args map[string]any) (any, error) {
			journey, err := argString(args, "journey")
			if err != nil {
				return nil, err
			}
			step, err := argString(args, "step")
			if err != nil {
				return nil, err
			}
			answer, err := argString(args, "answer")
			if err != nil {
				return nil, err
			}
			_, ok := r.sess.AnswerStep(r.ctx, journey, step, answer)
			return ok, nil
		},
		"reduced_motion": func(r *runner, args map[string]any) (any, error) {
			on, err := argBoolOr(args, "on", true)
			if err != nil {
				return nil, err
			}
			r.sess.SetReducedMotion(on)
			return nil, nil
		},
	}
}

func pointer(fn func(*tear.Machine, tear.PointerEvent)) action {
	return func(r *runner, args map[string]any) (any, error) {
		x, err := argFloat(args, "x")
		if err != nil {
			return nil, err
		}
		y, err := argFloat(args, "y")
		if err != nil {
			return nil, err
		}
		id, err := argIntOr(args, "id", 1)
		if err != nil {
			return nil, err
		}
		mode := tear.PointerMouse
		if v, ok := args["mode"]; ok {
			mode = tear.ParsePointerMode(fmt.Sprint(v))
		}
		m := r.sess.Tear()
		if m == nil {
			return false, nil
		}
		fn(m, tear.PointerEvent{ID: id, Mode: mode, X: x, Y: y})
		return true, nil
	}
}

// State keys reported after a run. Tear and counter keys are present only
// while their scene is active.
var stateKeys = map[string]bool{
	"scene":          true,
	"boot":           true,
	"distance":       true,
	"history.len":    true,
	"letter.opened":  true,
	"tear.stage":     true,
	"tear.progress":  true,
	"counter.count":  true,
	"counter.phase":  true,
	"stats.answered": true,
	"stats.graded":   true,
	"stats.correct":  true,
}

func snapshotState(s *experience.Session) map[string]any {
	stats := s.Stats()
	state := map[string]any{
		"scene":          string(s.Scene()),
		"boot":           string(s.Sequencer().BootState()),
		"distance":       s.Sequencer().Distance(),
		"history.len":    s.History().Len(),
		"letter.opened":  s.LetterOpened(),
		"stats.answered": stats.Answered,
		"stats.graded":   stats.Graded,
		"stats.correct":  stats.Correct,
	}
	if m := s.Tear(); m != nil {
		state["tear.stage"] = string(m.Stage())
		state["tear.progress"] = m.Progress()
	}
	if c := s.Counter(); c != nil {
		state["counter.count"] = c.Count()
		state["counter.phase"] = string(c.Phase())
	}
	return state
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	return fmt.Sprint(v), nil
}

// argDuration accepts a Go duration string or a number of milliseconds.
func argDuration(args map[string]any, key string) (time.Duration, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", key, err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case float64:
		return time.Duration(d * float64(time.Millisecond)), nil
	}
	return 0, fmt.Errorf("argument %q: want duration, got %T", key, v)
}

func argFloat(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("argument %q: want number, got %T", key, v)
}

func argIntOr(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	n, ok := v.(int)
	if !ok || n < 0 {
		return 0, fmt.Errorf("argument %q: want non-negative integer, got %v", key, v)
	}
	return n, nil
}

func argBoolOr(args map[string]any, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q: want boolean, got %T", key, v)
	}
	return b, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
