// Package index defines the storage-agnostic nearest-neighbor search
// contract shared by the in-memory and persistent backends.
package index

import (
	"context"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

// SimilarityIndex is the nearest-neighbor search contract. Both backends
// behave identically at this surface: vectors are L2-normalized at index
// time and query time so inner-product search equals cosine similarity.
type SimilarityIndex interface {
	// Index embeds each record's searchable text in document mode and
	// commits, replacing any existing entry with the same id. An empty
	// batch returns 0 without error. Embedding failures surface as
	// domain.ErrEmbeddingUnavailable.
	Index(ctx context.Context, records []domain.Record) (int, error)

	// Search embeds the query in query mode, fetches the k nearest
	// candidates, applies the filter engine, and returns matches in
	// descending similarity order. k bounds the candidate window, not the
	// filtered result count: the result may be shorter than k and the
	// window is not re-expanded.
	Search(ctx context.Context, query string, k int, f domain.Filter) ([]domain.SearchResult, error)

	// SimilarTo searches with the stored vector for id (no re-embedding),
	// excluding the source record itself. Returns
	// domain.ErrRecordNotFound if id is absent.
	SimilarTo(ctx context.Context, id string, k int) ([]domain.SearchResult, error)

	// Save persists a snapshot. No-op for the persistent backend.
	Save(ctx context.Context) error

	// Load restores state, returning whether anything was loaded. For the
	// persistent backend this verifies reachability and a non-empty
	// corpus.
	Load(ctx context.Context) (bool, error)

	// Count reports the number of indexed records.
	Count(ctx context.Context) (int, error)
}
