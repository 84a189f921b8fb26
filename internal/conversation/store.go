// Package conversation persists multi-turn chat state keyed by
// conversation id. Two backends mirror the index backends: an in-process
// map for single-node deployments and a Redis key-value store for shared
// ones.
package conversation

import (
	"context"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

// Store reads and appends conversation state.
type Store interface {
	// Get returns the state for id, or domain.ErrConversationNotFound.
	Get(ctx context.Context, id string) (domain.ConversationState, error)

	// Append records one completed exchange: the user turn and the
	// assistant turn land together with the classification and filter
	// carryover, or not at all.
	Append(ctx context.Context, id string, user, assistant domain.Turn, queryType domain.QueryType, filters domain.Filter) error
}
