package selection

import (
	"maps"

	"github.com/ziadkadry99/apiview/internal/catalog"
)

// Observer is called after a dispatch changed the state.
type Observer func(prev, next State)

// Store owns the selection state of one session. It is not safe for
// concurrent use; callers serialize events.
type Store struct {
	index     catalog.Index
	state     State
	observers []Observer
}

// NewStore creates a store initialized from the route params.
func NewStore(idx catalog.Index, params RouteParams) *Store {
	return &Store{index: idx, state: Init(idx, params)}
}

// Index returns the index the store resolves against.
func (s *Store) Index() catalog.Index { return s.index }

// State returns the current state.
func (s *Store) State() State { return s.state }

// Observe registers an observer.
func (s *Store) Observe(fn Observer) {
	s.observers = append(s.observers, fn)
}

// Dispatch applies ev and returns the new state right away, so callers can
// act on it (e.g. build a URL) without waiting for observers. On error the
// state is left unchanged.
func (s *Store) Dispatch(ev Event) (State, error) {
	next, err := Transition(s.index, s.state, ev)
	if err != nil {
		return s.state, err
	}
	prev := s.state
	s.state = next
	if changed(prev, next) {
		for _, fn := range s.observers {
			fn(prev, next)
		}
	}
	return next, nil
}

func changed(prev, next State) bool {
	return prev.Params() != next.Params() || !maps.Equal(prev.LastSelected, next.LastSelected)
}
