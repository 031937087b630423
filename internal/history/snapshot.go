package history

// slot holds the last committed value for one key and its current owner.
type slot struct {
	value    any
	hasValue bool
	owner    *claim
}

type claim struct {
	apply func(any)
}

// Snapshot returns the last value written for key.
func (s *Store) Snapshot(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.snapshots[key]
	if !ok || !sl.hasValue {
		return nil, false
	}
	return sl.value, true
}

// SetSnapshot overwrites the value for key. The owner is not notified.
func (s *Store) SetSnapshot(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotLocked(key)
	sl.value = value
	sl.hasValue = true
}

// DeleteSnapshot forgets the value for key. Ownership is kept.
func (s *Store) DeleteSnapshot(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.snapshots[key]; ok {
		sl.value = nil
		sl.hasValue = false
	}
}

// Restore writes value for key and hands it to the key's current owner, if
// any. Undo functions of tracked cells use this so a remounted cell picks up
// the restored value even though a previous instance recorded the change.
func (s *Store) Restore(key string, value any) {
	s.mu.Lock()
	sl := s.slotLocked(key)
	sl.value = value
	sl.hasValue = true
	var apply func(any)
	if sl.owner != nil {
		apply = sl.owner.apply
	}
	s.mu.Unlock()

	if apply != nil {
		apply(value)
	}
}

// Claim makes apply the owner of key. A later Claim replaces it. The returned
// release func gives up ownership if it is still held by this claim.
func (s *Store) Claim(key string, apply func(any)) (release func()) {
	c := &claim{apply: apply}

	s.mu.Lock()
	s.slotLocked(key).owner = c
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sl, ok := s.snapshots[key]; ok && sl.owner == c {
			sl.owner = nil
		}
	}
}

func (s *Store) slotLocked(key string) *slot {
	sl, ok := s.snapshots[key]
	if !ok {
		sl = &slot{}
		s.snapshots[key] = sl
	}
	return sl
}
