// Package memory implements the in-process similarity index: all vectors
// and metadata live in memory, searched by exact inner product, with an
// optional flat-file snapshot pair for persistence across restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/index"
)

// Compile-time check: Index implements index.SimilarityIndex.
var _ index.SimilarityIndex = (*Index)(nil)

// Index is the in-memory similarity index. Index/Load take the write
// lock (administrative, batch, infrequent); searches share the read lock
// and may run concurrently with each other.
type Index struct {
	docEmbedder   domain.BatchEmbedder
	queryEmbedder domain.Embedder
	snapshotDir   string
	logger        *zap.Logger

	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	records []domain.Record
	byID    map[string]int
	loaded  bool
}

// New creates an in-memory index. snapshotDir may be empty, in which case
// Save and Load are disabled.
func New(docEmbedder domain.BatchEmbedder, queryEmbedder domain.Embedder, snapshotDir string, logger *zap.Logger) *Index {
	return &Index{
		docEmbedder:   docEmbedder,
		queryEmbedder: queryEmbedder,
		snapshotDir:   snapshotDir,
		logger:        logger,
		byID:          make(map[string]int),
	}
}

// Index embeds and stores the batch. Same-id records replace their prior
// vector and attributes, never duplicate. An empty batch returns 0 and
// marks the index loaded, for idempotence.
func (idx *Index) Index(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		idx.mu.Lock()
		idx.loaded = true
		idx.mu.Unlock()
		return 0, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.SearchableText
	}

	batch, err := idx.docEmbedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(batch.Embeddings) != len(records) {
		return 0, fmt.Errorf("embed batch: got %d vectors for %d records", len(batch.Embeddings), len(records))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Validate the whole batch before committing anything: a mismatch
	// must reject the batch, not leave a prefix of it searchable.
	dim := idx.dim
	vectors := make([][]float32, len(records))
	for i, rec := range records {
		vec := index.Normalize(batch.Embeddings[i])
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return 0, fmt.Errorf("record %s: %w: got %d, want %d",
				rec.ID, domain.ErrVectorDimMismatch, len(vec), dim)
		}
		vectors[i] = vec
	}

	idx.dim = dim
	for i, rec := range records {
		if pos, ok := idx.byID[rec.ID]; ok {
			idx.vectors[pos] = vectors[i]
			idx.records[pos] = rec
		} else {
			idx.byID[rec.ID] = len(idx.records)
			idx.vectors = append(idx.vectors, vectors[i])
			idx.records = append(idx.records, rec)
		}
	}
	idx.loaded = true

	idx.logger.Info("indexed records",
		zap.Int("count", len(records)),
		zap.Int("total", len(idx.records)),
		zap.Int("dimensions", idx.dim),
	)
	return len(records), nil
}

// Search embeds the query and returns the filtered top-k candidates in
// descending similarity order.
func (idx *Index) Search(ctx context.Context, query string, k int, f domain.Filter) ([]domain.SearchResult, error) {
	emb, err := idx.queryEmbedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	qv := index.Normalize(emb.Embedding)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.loaded {
		return nil, domain.ErrIndexNotLoaded
	}
	return idx.searchVector(qv, k, f, -1), nil
}

// SimilarTo searches with id's stored vector, excluding id itself.
func (idx *Index) SimilarTo(_ context.Context, id string, k int) ([]domain.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.loaded {
		return nil, domain.ErrIndexNotLoaded
	}
	pos, ok := idx.byID[id]
	if !ok {
		return nil, fmt.Errorf("similar to %q: %w", id, domain.ErrRecordNotFound)
	}
	// k+1 candidates so the self hit does not consume the window.
	results := idx.searchVector(idx.vectors[pos], k+1, domain.Filter{}, pos)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count reports the number of indexed records.
func (idx *Index) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records), nil
}

// searchVector is the shared brute-force scan over normalized vectors.
// Caller must hold at least the read lock. exclude is a position to skip,
// or -1. Candidates are cut to k before filtering: filters narrow the
// window, they do not re-expand it.
func (idx *Index) searchVector(qv []float32, k int, f domain.Filter, exclude int) []domain.SearchResult {
	if len(idx.records) == 0 || k <= 0 {
		return []domain.SearchResult{}
	}

	type scored struct {
		pos   int
		score float64
	}
	candidates := make([]scored, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		if i == exclude {
			continue
		}
		candidates = append(candidates, scored{pos: i, score: index.Dot(qv, v)})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		rec := idx.records[c.pos]
		if !domain.MatchesFilter(rec, f) {
			continue
		}
		results = append(results, domain.SearchResult{
			Record: rec,
			Score:  c.score,
			Rank:   len(results),
		})
	}
	return results
}
