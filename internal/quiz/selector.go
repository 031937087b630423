package quiz

import "context"

// Selector is the consumer side of one stored answer. With lock-after-save
// (the default) the first saved selection is final.
type Selector struct {
	store         *Store
	id            string
	lockAfterSave bool

	answer    Answer
	hasAnswer bool
	listeners []func(value string)
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLockAfterSave sets whether a saved answer rejects later selections.
func WithLockAfterSave(lock bool) SelectorOption {
	return func(s *Selector) {
		s.lockAfterSave = lock
	}
}

// NewSelector loads any stored answer for id.
func NewSelector(ctx context.Context, store *Store, id string, opts ...SelectorOption) *Selector {
	s := &Selector{store: store, id: id, lockAfterSave: true}
	for _, opt := range opts {
		opt(s)
	}
	s.answer, s.hasAnswer = store.LoadAnswer(ctx, id)
	return s
}

// ID returns the question id.
func (s *Selector) ID() string {
	return s.id
}

// Answer returns the current answer.
func (s *Selector) Answer() (Answer, bool) {
	return s.answer, s.hasAnswer
}

// Locked reports whether selections are rejected.
func (s *Selector) Locked() bool {
	return s.lockAfterSave && s.hasAnswer
}

// Select saves value. Returns false when the selector is locked.
func (s *Selector) Select(ctx context.Context, value string) bool {
	if s.Locked() {
		return false
	}
	s.answer = s.store.SaveAnswer(ctx, s.id, value)
	s.hasAnswer = true
	for _, fn := range s.listeners {
		fn(value)
	}
	return true
}

// OnAnswered registers fn to run after every accepted selection.
func (s *Selector) OnAnswered(fn func(value string)) {
	s.listeners = append(s.listeners, fn)
}
