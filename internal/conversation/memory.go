package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

// MemoryStore keeps conversation state in a process-local map.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]domain.ConversationState
}

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]domain.ConversationState)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[id]
	if !ok {
		return domain.ConversationState{}, fmt.Errorf("conversation %q: %w", id, domain.ErrConversationNotFound)
	}
	return cloneState(state), nil
}

// Append implements Store. The exchange is applied under a single lock so
// readers never observe a user turn without its assistant turn.
func (s *MemoryStore) Append(_ context.Context, id string, user, assistant domain.Turn, queryType domain.QueryType, filters domain.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok {
		state = domain.ConversationState{ID: id}
	}
	state.Turns = append(state.Turns, user, assistant)
	state.LastQueryType = queryType
	state.LastFilters = filters
	s.states[id] = state
	return nil
}

// cloneState copies the turn slice so callers cannot mutate stored state.
func cloneState(state domain.ConversationState) domain.ConversationState {
	out := state
	out.Turns = make([]domain.Turn, len(state.Turns))
	copy(out.Turns, state.Turns)
	return out
}
