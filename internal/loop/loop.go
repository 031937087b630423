package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Call when the loop no longer accepts tasks.
var ErrStopped = errors.New("loop stopped")

// Loop is the single-writer event loop.
//
// Thread-safety model:
//   - Post(), Call(), AfterFunc(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - posted closures and timer callbacks execute only inside Run
type Loop struct {
	queue  *taskQueue
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for loop lifecycle and task panics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// WithNow overrides the wall clock reported by Now.
func WithNow(now func() time.Time) Option {
	return func(lp *Loop) {
		lp.now = now
	}
}

// New creates a Loop. Call Run to start processing.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:  newTaskQueue(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post submits fn for execution on the loop goroutine.
// Returns false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Enqueue(fn)
}

// Call posts fn and waits for it to finish.
// Returns ErrStopped if the loop is stopped before fn runs, or ctx.Err()
// if ctx is done first.
//
// Must not be called from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return l.now()
}

// AfterFunc implements Scheduler. The callback is posted to the loop when the
// wall-clock timer expires.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			lt.fired.Store(true)
			fn()
		})
	})
	return lt
}

// Run executes posted tasks until ctx is cancelled or Stop is called.
//
// A task that panics is logged and the loop continues with the next task,
// so a faulty callback cannot wedge the session.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")

	for {
		task, ok := l.queue.TryDequeue()
		if ok {
			l.execute(task)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel is closed by Stop; drain what is left first.
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the remaining tasks are drained.
func (l *Loop) Stop() {
	l.queue.Close()
}

func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	task()
}

type loopTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
	fired   atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if t.fired.Load() {
		return false
	}
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	t.timer.Stop()
	return true
}
