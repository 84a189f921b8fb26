// Package corpus owns the indexing lifecycle (ingest, embed, store) and
// query lifecycle (embed, search, post-filter, rank) for one named
// collection of records. All vector math is delegated to the similarity
// index; the store contributes only the deterministic searchable text.
package corpus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/chunker"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/index"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/metrics"
)

// Corpus names.
const (
	Properties = "properties"
	Knowledge  = "knowledge"
)

// Store is one corpus over a similarity index.
type Store struct {
	name   string
	idx    index.SimilarityIndex
	logger *zap.Logger
}

// NewPropertyStore creates the property catalog corpus.
func NewPropertyStore(idx index.SimilarityIndex, logger *zap.Logger) *Store {
	return &Store{name: Properties, idx: idx, logger: logger}
}

// NewKnowledgeStore creates the knowledge/FAQ corpus.
func NewKnowledgeStore(idx index.SimilarityIndex, logger *zap.Logger) *Store {
	return &Store{name: Knowledge, idx: idx, logger: logger}
}

// Name returns the corpus name.
func (s *Store) Name() string { return s.name }

// Ingest derives searchable text for each record, indexes the batch, and
// persists a snapshot. Records that already carry searchable text keep
// it. Indexing failures surface to the administrative caller: a failed
// build must not silently leave a stale or empty index.
func (s *Store) Ingest(ctx context.Context, records []domain.Record) (int, error) {
	for i := range records {
		if records[i].SearchableText == "" {
			records[i].SearchableText = propertyText(records[i].Attrs)
		}
	}

	n, err := s.idx.Index(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", s.name, err)
	}
	if n > 0 {
		if err := s.idx.Save(ctx); err != nil {
			return 0, fmt.Errorf("save %s: %w", s.name, err)
		}
	}
	return n, nil
}

// IngestDocument chunks a markdown document at header boundaries and
// indexes the chunks as knowledge records. Chunk ids are derived from the
// title so re-ingesting the same document replaces rather than duplicates.
func (s *Store) IngestDocument(ctx context.Context, content string) (int, error) {
	chunks := chunker.Split(content)
	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		records[i] = domain.Record{
			ID:             chunkID(i, c.Title),
			SearchableText: chunkText(c.Section, c.Title, c.Body),
			Attrs: domain.Attributes{
				domain.AttrSection:     domain.String(c.Section),
				domain.AttrTitle:       domain.String(c.Title),
				domain.AttrDescription: domain.String(c.Body),
			},
		}
	}

	n, err := s.idx.Index(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("ingest %s document: %w", s.name, err)
	}
	if n > 0 {
		if err := s.idx.Save(ctx); err != nil {
			return 0, fmt.Errorf("save %s: %w", s.name, err)
		}
	}
	return n, nil
}

// Query runs a filtered semantic search over the corpus.
func (s *Store) Query(ctx context.Context, text string, k int, f domain.Filter) ([]domain.SearchResult, error) {
	results, err := s.idx.Search(ctx, text, k, f)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(s.name, "error").Inc()
		return nil, fmt.Errorf("query %s: %w", s.name, err)
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(s.name, "success").Inc()
	return results, nil
}

// Similar returns records similar to an indexed id, excluding the id itself.
func (s *Store) Similar(ctx context.Context, id string, k int) ([]domain.SearchResult, error) {
	results, err := s.idx.SimilarTo(ctx, id, k)
	if err != nil {
		return nil, fmt.Errorf("similar %s: %w", s.name, err)
	}
	return results, nil
}

// Load restores the corpus from its backend (snapshot or store probe).
func (s *Store) Load(ctx context.Context) (bool, error) {
	ok, err := s.idx.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", s.name, err)
	}
	if ok {
		s.logger.Info("corpus loaded", zap.String("corpus", s.name))
	}
	return ok, nil
}

// Count reports the number of indexed records.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.idx.Count(ctx)
}

func chunkID(i int, title string) string {
	return fmt.Sprintf("chunk-%03d-%s", i, slug(title))
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	return string(out)
}
