package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/db"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

const convKeyPrefix = "stay:conv:"

// RedisStore keeps conversation state as JSON values in a key-value store.
type RedisStore struct {
	kv db.KVStore
}

// NewRedisStore creates a conversation store over a key-value backend.
func NewRedisStore(kv db.KVStore) *RedisStore {
	return &RedisStore{kv: kv}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (domain.ConversationState, error) {
	raw, err := s.kv.Get(ctx, convKeyPrefix+id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ConversationState{}, fmt.Errorf("conversation %q: %w", id, domain.ErrConversationNotFound)
		}
		return domain.ConversationState{}, fmt.Errorf("get conversation %q: %w", id, err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.ConversationState{}, fmt.Errorf("decode conversation %q: %w", id, err)
	}
	return state, nil
}

// Append implements Store. The whole state is written back as one value,
// so the user turn and assistant turn become visible together.
func (s *RedisStore) Append(ctx context.Context, id string, user, assistant domain.Turn, queryType domain.QueryType, filters domain.Filter) error {
	state, err := s.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrConversationNotFound) {
			return err
		}
		state = domain.ConversationState{ID: id}
	}

	state.Turns = append(state.Turns, user, assistant)
	state.LastQueryType = queryType
	state.LastFilters = filters

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode conversation %q: %w", id, err)
	}
	if err := s.kv.Set(ctx, convKeyPrefix+id, raw); err != nil {
		return fmt.Errorf("set conversation %q: %w", id, err)
	}
	return nil
}
