package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the maximum number of retained entries.
const DefaultCapacity = 10

// ErrRestoring is returned by GoBack while another undo is still running.
var ErrRestoring = errors.New("history: restore already in progress")

// UndoFunc reverses one recorded change. It may block; GoBack waits for it.
type UndoFunc func(ctx context.Context) error

// Entry is one reversible change.
type Entry struct {
	ID        int64
	Label     string
	CreatedAt time.Time
	Undo      UndoFunc
}

// Store is the action history plus the snapshot store.
//
// Thread-safety: methods may be called from any goroutine, but undo
// functions run on the goroutine calling GoBack, outside the internal lock,
// so they are free to call Record, Restore or SetSnapshot.
type Store struct {
	mu        sync.Mutex
	entries   []Entry
	capacity  int
	restoring bool
	suspended int
	seq       sequence
	now       func() time.Time
	logger    *slog.Logger

	snapshots map[string]*slot
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithNow sets the time source for Entry.CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		capacity:  DefaultCapacity,
		now:       time.Now,
		logger:    slog.Default(),
		snapshots: make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.entries = make([]Entry, 0, s.capacity+1)
	return s
}

// RecordOption configures a single Record call.
type RecordOption func(*Entry)

// WithLabel attaches a human-readable label to the entry.
func WithLabel(label string) RecordOption {
	return func(e *Entry) {
		e.Label = label
	}
}

// Record registers undo as the inverse of a change that just happened.
//
// Returns false without recording while an undo is running or recording is
// suspended. When the stack exceeds its capacity the oldest entry is dropped.
func (s *Store) Record(undo UndoFunc, opts ...RecordOption) bool {
	if undo == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restoring || s.suspended > 0 {
		return false
	}

	e := Entry{
		ID:        s.seq.Next(),
		CreatedAt: s.now(),
		Undo:      undo,
	}
	for _, opt := range opts {
		opt(&e)
	}

	s.entries = append(s.entries, e)

	// Each call adds exactly one entry, so a single eviction restores the bound.
	if len(s.entries) > s.capacity {
		evicted := s.entries[0]
		s.entries[0] = Entry{}
		s.entries = s.entries[1:]
		s.logger.Debug("history entry evicted", "id", evicted.ID, "label", evicted.Label)
	}

	s.logger.Debug("history entry recorded", "id", e.ID, "label", e.Label, "depth", len(s.entries))
	return true
}

// CanGoBack reports whether there is anything to undo.
func (s *Store) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) > 0
}

// Restoring reports whether an undo is currently running.
func (s *Store) Restoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoring
}

// GoBack pops the newest entry and runs its undo.
//
// Returns (false, nil) when the history is empty and ErrRestoring when
// another GoBack has not finished. An error from the undo itself is returned
// wrapped; the entry stays discarded either way. Recording resumes once the
// undo has returned, even if it fails or panics.
func (s *Store) GoBack(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.restoring {
		s.mu.Unlock()
		return false, ErrRestoring
	}
	n := len(s.entries)
	if n == 0 {
		s.mu.Unlock()
		return false, nil
	}
	e := s.entries[n-1]
	s.entries[n-1] = Entry{}
	s.entries = s.entries[:n-1]
	s.restoring = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.restoring = false
		s.mu.Unlock()
	}()

	s.logger.Debug("history undo", "id", e.ID, "label", e.Label)
	if err := e.Undo(ctx); err != nil {
		return true, fmt.Errorf("undo %d (%s): %w", e.ID, e.Label, err)
	}
	return true, nil
}

// SuspendRecording runs fn with Record disabled. Calls may nest; the prior
// state is restored even if fn panics.
func (s *Store) SuspendRecording(fn func()) {
	s.mu.Lock()
	s.suspended++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.suspended--
		s.mu.Unlock()
	}()

	fn()
}

// Entries returns a copy of the stack, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops every entry. Snapshots are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	s.entries = s.entries[:0]
}
