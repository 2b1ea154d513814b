package session

import (
	"context"
	"sync"
)

// MemoryStore keeps session state in process memory. It backs local
// development and tests where no Redis is available; state does not survive
// a restart.
type MemoryStore struct {
	mu      sync.Mutex
	state   State
	present bool
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores the full session state.
func (s *MemoryStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy the user record so later caller mutations cannot alias stored state.
	if state.UserJSON != nil {
		userJSON := make([]byte, len(state.UserJSON))
		copy(userJSON, state.UserJSON)
		state.UserJSON = userJSON
	}

	s.state = state
	s.present = true
	return nil
}

// Load retrieves the persisted session state.
// Returns ErrNoSession when nothing has been saved.
func (s *MemoryStore) Load(_ context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.present {
		return State{}, ErrNoSession
	}
	return s.state, nil
}

// Clear removes the stored state.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	s.present = false
	return nil
}
