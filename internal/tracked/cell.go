// Package tracked provides state cells whose writes are undoable and
// survive remounts through the history snapshot store.
package tracked

import (
	"context"
	"log/slog"

	"github.com/roach88/keepsake/internal/history"
)

// Cell holds one named value.
//
// A Cell is owned by exactly one mounted component at a time. Creating a new
// Cell for a key takes ownership from any previous Cell for the same key.
//
// Cells are not goroutine-safe; use them from the owning loop only.
type Cell[T comparable] struct {
	store     *history.Store
	key       string
	value     T
	mounted   bool
	release   func()
	listeners []func(prev, next T)
	logger    *slog.Logger
}

// Option configures a Cell.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report snapshot type mismatches.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New mounts a cell for key. The initial value comes from the snapshot
// store when it holds a value of type T, otherwise from initial.
func New[T comparable](store *history.Store, key string, initial T, opts ...Option) *Cell[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cell[T]{
		store:   store,
		key:     key,
		value:   initial,
		mounted: true,
		logger:  o.logger,
	}

	if snap, ok := store.Snapshot(key); ok {
		if v, ok := snap.(T); ok {
			c.value = v
		} else {
			c.logger.Warn("tracked snapshot has unexpected type", "key", key, "value", snap)
		}
	}

	c.release = store.Claim(key, c.applyRestored)
	return c
}

// Key returns the cell's snapshot key.
func (c *Cell[T]) Key() string {
	return c.key
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	return c.value
}

// Mounted reports whether Unmount has not been called yet.
func (c *Cell[T]) Mounted() bool {
	return c.mounted
}

// SetOption configures a single write.
type SetOption func(*setOptions)

type setOptions struct {
	record bool
	label  string
}

// WithoutRecord commits the write without an undo entry.
func WithoutRecord() SetOption {
	return func(o *setOptions) {
		o.record = false
	}
}

// WithLabel labels the undo entry.
func WithLabel(label string) SetOption {
	return func(o *setOptions) {
		o.label = label
	}
}

// Set commits v. Writing the current value is a no-op: no history entry and
// no snapshot write. Returns whether the value changed.
func (c *Cell[T]) Set(v T, opts ...SetOption) bool {
	so := setOptions{record: true, label: c.key}
	for _, opt := range opts {
		opt(&so)
	}

	prev := c.value
	if prev == v {
		return false
	}

	c.value = v
	c.store.SetSnapshot(c.key, v)

	if so.record {
		store, key := c.store, c.key
		store.Record(func(context.Context) error {
			store.Restore(key, prev)
			return nil
		}, history.WithLabel(so.label))
	}

	c.notify(prev, v)
	return true
}

// Update commits fn(current).
func (c *Cell[T]) Update(fn func(T) T, opts ...SetOption) bool {
	return c.Set(fn(c.value), opts...)
}

// OnChange registers fn to run after every commit or restoration.
func (c *Cell[T]) OnChange(fn func(prev, next T)) {
	c.listeners = append(c.listeners, fn)
}

// Unmount flushes the latest value to the snapshot store and gives up
// ownership of the key. Later writes to this cell are still committed to
// the snapshot store but nothing observes them live.
func (c *Cell[T]) Unmount() {
	if !c.mounted {
		return
	}
	c.store.SetSnapshot(c.key, c.value)
	c.mounted = false
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

func (c *Cell[T]) applyRestored(v any) {
	if !c.mounted {
		return
	}
	tv, ok := v.(T)
	if !ok {
		c.logger.Warn("tracked restore has unexpected type", "key", c.key, "value", v)
		return
	}
	prev := c.value
	if prev == tv {
		return
	}
	c.value = tv
	c.notify(prev, tv)
}

func (c *Cell[T]) notify(prev, next T) {
	for _, fn := range c.listeners {
		fn(prev, next)
	}
}
