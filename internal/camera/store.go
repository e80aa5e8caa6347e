package camera

import "sync"

const DefaultHistoryLimit = 50

type Options struct {
	HistoryLimit int
}

// Store holds the current camera state plus bounded undo/redo stacks.
type Store struct {
	mu      sync.Mutex
	current State
	past    []State
	future  []State
	limit   int
}

func NewStore(opts Options) *Store {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store{
		current: Default(),
		limit:   limit,
	}
}

func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

func (s *Store) Update(p Patch) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setLocked(s.current.Apply(p))
}

// UpdateFunc derives the patch from the current state under the store lock,
// so relative changes made concurrently are never lost.
func (s *Store) UpdateFunc(fn func(State) Patch) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setLocked(s.current.Apply(fn(s.current)))
}

func (s *Store) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setLocked(Default())
}

// Restore replaces the current state with a stored snapshot.
func (s *Store) Restore(st State) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setLocked(st.Clamped())
}

func (s *Store) Undo() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.past) == 0 {
		return s.current, false
	}
	prev := s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.future = pushBounded(s.future, s.current, s.limit)
	s.current = prev
	return s.current, true
}

func (s *Store) Redo() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.future) == 0 {
		return s.current, false
	}
	next := s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]
	s.past = pushBounded(s.past, s.current, s.limit)
	s.current = next
	return s.current, true
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.past) > 0
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.future) > 0
}

// setLocked records the previous state only when something actually changed.
func (s *Store) setLocked(next State) State {
	if next == s.current {
		return s.current
	}
	s.past = pushBounded(s.past, s.current, s.limit)
	s.future = nil
	s.current = next
	return s.current
}

func pushBounded(stack []State, st State, limit int) []State {
	stack = append(stack, st)
	if len(stack) > limit {
		stack = stack[len(stack)-limit:]
	}
	return stack
}
