// Package redis implements the persistent similarity index: vectors and
// record metadata live as hash rows in Redis, searched with the native
// KNN primitive. Concurrency control is the backing store's concern; no
// additional locking happens here.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/db"
	dbredis "github.com/Baah-Danso-Kenneth/StackNStay/internal/db/redis"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/index"
)

// KeyPrefix namespaces all retrieval rows in the shared store.
const KeyPrefix = "stay:"

// Row field names. __attrs carries the full attribute mapping as JSON and
// is the source of truth on read; the flattened fields exist only so the
// FT index can pre-filter server-side.
const (
	fieldContent = "__content"
	fieldVector  = "__vector"
	fieldAttrs   = "__attrs"
)

// store is the consumer interface for index operations.
type store interface {
	db.Pinger
	db.HashStore
	db.IndexManager
	db.Searcher
}

// Compile-time check: Index implements index.SimilarityIndex.
var _ index.SimilarityIndex = (*Index)(nil)

// HNSWConfig holds index construction parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Index is the persistent similarity index for one corpus.
type Index struct {
	store         store
	corpus        string
	dim           int
	hnsw          HNSWConfig
	docEmbedder   domain.BatchEmbedder
	queryEmbedder domain.Embedder
	logger        *zap.Logger
}

// New creates a persistent index for the named corpus.
func New(s store, corpus string, dim int, hnsw HNSWConfig,
	docEmbedder domain.BatchEmbedder, queryEmbedder domain.Embedder, logger *zap.Logger,
) *Index {
	return &Index{
		store:         s,
		corpus:        corpus,
		dim:           dim,
		hnsw:          hnsw,
		docEmbedder:   docEmbedder,
		queryEmbedder: queryEmbedder,
		logger:        logger,
	}
}

func (idx *Index) indexName() string { return fmt.Sprintf("%s%s:idx", KeyPrefix, idx.corpus) }
func (idx *Index) rowPrefix() string { return fmt.Sprintf("%s%s:", KeyPrefix, idx.corpus) }
func (idx *Index) rowKey(id string) string { return idx.rowPrefix() + id }

// Index embeds the batch and upserts one hash row per record. Rows are
// deleted before rewrite so a re-indexed record cannot keep stale
// flattened filter fields. Commits through the store; the FT index is
// created on first use.
func (idx *Index) Index(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	if err := idx.ensureIndex(ctx); err != nil {
		return 0, fmt.Errorf("ensure index %s: %w", idx.indexName(), err)
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

	keys := make([]string, len(records))
	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		vec := index.Normalize(batch.Embeddings[i])
		if len(vec) != idx.dim {
			return 0, fmt.Errorf("record %s: %w: got %d, want %d",
				rec.ID, domain.ErrVectorDimMismatch, len(vec), idx.dim)
		}
		fields, err := rowFields(rec, vec)
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		keys[i] = idx.rowKey(rec.ID)
		items[i] = db.HashSetItem{Key: keys[i], Fields: fields}
	}

	if err := idx.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("clear rows: %w", err)
	}
	if err := idx.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("write rows: %w", err)
	}

	idx.logger.Info("indexed records",
		zap.String("corpus", idx.corpus),
		zap.Int("count", len(records)),
	)
	return len(records), nil
}

// Search embeds the query and runs KNN with a partial server-side
// pre-filter; every candidate is re-checked by the filter engine so the
// semantics match the in-memory backend exactly.
func (idx *Index) Search(ctx context.Context, query string, k int, f domain.Filter) ([]domain.SearchResult, error) {
	emb, err := idx.queryEmbedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return idx.searchVector(ctx, index.Normalize(emb.Embedding), k, f, "")
}

// SimilarTo reads the stored vector for id and searches with it directly,
// excluding the source row.
func (idx *Index) SimilarTo(ctx context.Context, id string, k int) ([]domain.SearchResult, error) {
	key := idx.rowKey(id)
	fields, err := idx.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read row %s: %w", key, err)
	}
	blob, ok := fields[fieldVector]
	if !ok {
		return nil, fmt.Errorf("similar to %q: %w", id, domain.ErrRecordNotFound)
	}

	// k+1 candidates so the self hit does not consume the window.
	results, err := idx.searchVector(ctx, dbredis.BytesToVector(blob), k+1, domain.Filter{}, key)
	if err != nil {
		return nil, err
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Save is a no-op: durability is the backing store's property.
func (idx *Index) Save(_ context.Context) error { return nil }

// Load verifies the store is reachable and the corpus has at least one row.
func (idx *Index) Load(ctx context.Context) (bool, error) {
	if err := idx.store.Ping(ctx); err != nil {
		return false, fmt.Errorf("ping store: %w", err)
	}
	exists, err := idx.store.IndexExists(ctx, idx.indexName())
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	if !exists {
		return false, nil
	}
	n, err := idx.store.SearchCount(ctx, idx.indexName(), "*")
	if err != nil {
		return false, fmt.Errorf("count rows: %w", err)
	}
	return n > 0, nil
}

// Count reports the number of indexed records.
func (idx *Index) Count(ctx context.Context) (int, error) {
	exists, err := idx.store.IndexExists(ctx, idx.indexName())
	if err != nil || !exists {
		return 0, err
	}
	return idx.store.SearchCount(ctx, idx.indexName(), "*")
}

func (idx *Index) searchVector(
	ctx context.Context, qv []float32, k int, f domain.Filter, excludeKey string,
) ([]domain.SearchResult, error) {
	sr, err := idx.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    idx.indexName(),
		Prefilter:    buildPrefilter(f),
		Vector:       qv,
		K:            k,
		ReturnFields: []string{fieldContent, fieldAttrs, "__vector_score"},
		ExcludeKey:   excludeKey,
	})
	if err != nil {
		if isUnknownIndex(err) {
			return nil, domain.ErrIndexNotLoaded
		}
		return nil, fmt.Errorf("search knn %s: %w", idx.corpus, err)
	}

	results := make([]domain.SearchResult, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		rec, err := recordFromRow(entry.Key[len(idx.rowPrefix()):], entry.Fields)
		if err != nil {
			idx.logger.Warn("skipping undecodable row",
				zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		if !domain.MatchesFilter(rec, f) {
			continue
		}
		results = append(results, domain.SearchResult{
			Record: rec,
			Score:  entry.Score,
			Rank:   len(results),
		})
	}
	return results, nil
}

func (idx *Index) ensureIndex(ctx context.Context) error {
	def := &db.IndexDefinition{
		Name:     idx.indexName(),
		Prefixes: []string{idx.rowPrefix()},
		Fields: []db.IndexField{
			{Name: domain.AttrCity, Type: db.IndexFieldTag},
			{Name: domain.AttrPrice, Type: db.IndexFieldNumeric},
			{Name: domain.AttrBedrooms, Type: db.IndexFieldNumeric},
			{Name: domain.AttrMaxGuests, Type: db.IndexFieldNumeric},
			{Name: fieldContent, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorDim:         idx.dim,
				VectorM:           idx.hnsw.M,
				VectorEFConstruct: idx.hnsw.EFConstruct,
			},
		},
	}
	if err := idx.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return err
	}
	return nil
}

// rowFields flattens a record into hash fields: the canonical JSON
// attribute mapping plus the filterable fields the FT index knows about.
func rowFields(rec domain.Record, vec []float32) (map[string]string, error) {
	attrs, err := json.Marshal(rec.Attrs)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		fieldContent: rec.SearchableText,
		fieldVector:  dbredis.VectorToBytes(vec),
		fieldAttrs:   string(attrs),
	}
	if city, ok := rec.Attrs.Str(domain.AttrCity); ok {
		fields[domain.AttrCity] = city
	}
	for _, key := range []string{domain.AttrPrice, domain.AttrBedrooms, domain.AttrMaxGuests} {
		if n, ok := rec.Attrs.Num(key); ok {
			fields[key] = fmt.Sprintf("%g", n)
		}
	}
	return fields, nil
}

func recordFromRow(id string, fields map[string]string) (domain.Record, error) {
	var attrs domain.Attributes
	if raw, ok := fields[fieldAttrs]; ok {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			return domain.Record{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return domain.Record{
		ID:             id,
		SearchableText: fields[fieldContent],
		Attrs:          attrs,
	}, nil
}

func isUnknownIndex(err error) bool {
	var dbErr *db.Error
	if ok := asDBError(err, &dbErr); !ok {
		return false
	}
	if dbErr.Op != db.OpSearch {
		return false
	}
	msg := dbErr.Err.Error()
	return containsIgnoreCase(msg, "no such index") || containsIgnoreCase(msg, "unknown index name")
}
