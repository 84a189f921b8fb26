package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/db"
	dbredis "github.com/Baah-Danso-Kenneth/StackNStay/internal/db/redis"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

type fakeStore struct {
	pingErr    error
	indexed    bool
	createErr  error
	count      int
	countErr   error
	rows       map[string]map[string]string
	deleted    []string
	written    []db.HashSetItem
	knnResult  *db.SearchResult
	knnErr     error
	gotQuery   *db.KNNQuery
	created    []*db.IndexDefinition
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) HSet(_ context.Context, key string, fields map[string]string) error {
	f.written = append(f.written, db.HashSetItem{Key: key, Fields: fields})
	return nil
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.written = append(f.written, items...)
	return nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if row, ok := f.rows[key]; ok {
		return row, nil
	}
	return map[string]string{}, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.created = append(f.created, def)
	if f.createErr != nil {
		return f.createErr
	}
	f.indexed = true
	return nil
}

func (f *fakeStore) DropIndex(context.Context, string) error { return nil }

func (f *fakeStore) IndexExists(context.Context, string) (bool, error) { return f.indexed, nil }

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.gotQuery = q
	if f.knnErr != nil {
		return nil, f.knnErr
	}
	if f.knnResult == nil {
		return &db.SearchResult{}, nil
	}
	out := &db.SearchResult{Total: f.knnResult.Total}
	for _, e := range f.knnResult.Entries {
		if q.ExcludeKey != "" && e.Key == q.ExcludeKey {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

func (f *fakeStore) SearchCount(context.Context, string, string) (int, error) {
	return f.count, f.countErr
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, f.dim)}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func newTestIndex(s *fakeStore, dim int) *Index {
	emb := &fakeEmbedder{dim: dim}
	return New(s, "properties", dim, HNSWConfig{M: 16, EFConstruct: 200}, emb, emb, zap.NewNop())
}

func entryFor(id string, attrs domain.Attributes, score float64) db.SearchEntry {
	raw, _ := json.Marshal(attrs)
	return db.SearchEntry{
		Key:   "stay:properties:" + id,
		Score: score,
		Fields: map[string]string{
			"__content": "text for " + id,
			"__attrs":   string(raw),
		},
	}
}

func TestIndex_WritesRows(t *testing.T) {
	s := &fakeStore{}
	idx := newTestIndex(s, 4)

	records := []domain.Record{
		{ID: "p1", SearchableText: "accra villa", Attrs: domain.Attributes{
			domain.AttrCity:  domain.String("Accra"),
			domain.AttrPrice: domain.Number(100),
		}},
	}
	n, err := idx.Index(context.Background(), records)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}

	if len(s.deleted) != 1 || s.deleted[0] != "stay:properties:p1" {
		t.Errorf("rows not cleared before rewrite: %v", s.deleted)
	}
	if len(s.written) != 1 {
		t.Fatalf("wrote %d rows, want 1", len(s.written))
	}
	fields := s.written[0].Fields
	if fields[domain.AttrCity] != "Accra" {
		t.Errorf("city not flattened for prefilter: %v", fields)
	}
	if fields[domain.AttrPrice] != "100" {
		t.Errorf("price not flattened: %v", fields)
	}
	if fields["__content"] != "accra villa" {
		t.Errorf("content field = %q", fields["__content"])
	}
	if _, ok := fields["__attrs"]; !ok {
		t.Error("canonical attribute JSON missing from row")
	}

	if len(s.created) == 0 {
		t.Fatal("FT index never created")
	}
	if s.created[0].Name != "stay:properties:idx" {
		t.Errorf("index name = %q", s.created[0].Name)
	}
}

func TestIndex_EmptyBatch(t *testing.T) {
	s := &fakeStore{}
	idx := newTestIndex(s, 4)

	n, err := idx.Index(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("Index(nil) = %d, %v", n, err)
	}
	if len(s.created) != 0 || len(s.written) != 0 {
		t.Error("empty batch should touch nothing")
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	s := &fakeStore{}
	emb := &fakeEmbedder{dim: 3}
	idx := New(s, "properties", 4, HNSWConfig{}, emb, emb, zap.NewNop())

	_, err := idx.Index(context.Background(), []domain.Record{{ID: "p1", SearchableText: "x"}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("err = %v, want ErrVectorDimMismatch", err)
	}
	if len(s.written) != 0 {
		t.Error("mismatched batch must not be written")
	}
}

func TestIndex_EmbedderFailure(t *testing.T) {
	s := &fakeStore{}
	emb := &fakeEmbedder{dim: 4, err: errors.New("provider down")}
	idx := New(s, "properties", 4, HNSWConfig{}, emb, emb, zap.NewNop())

	_, err := idx.Index(context.Background(), []domain.Record{{ID: "p1", SearchableText: "x"}})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestSearch_PostFilterRecheck(t *testing.T) {
	// The store returns a Tokyo row even though the prefilter asked for
	// Accra, as a lossy backend might; the engine re-check must drop it.
	s := &fakeStore{knnResult: &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			entryFor("p1", domain.Attributes{domain.AttrCity: domain.String("Accra")}, 0.9),
			entryFor("p2", domain.Attributes{domain.AttrCity: domain.String("Tokyo")}, 0.8),
		},
	}}
	idx := newTestIndex(s, 4)

	city := "Accra"
	results, err := idx.Search(context.Background(), "villa", 5, domain.Filter{City: &city})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "p1" {
		t.Fatalf("results = %+v, want only p1", results)
	}
	if results[0].Rank != 0 {
		t.Errorf("rank = %d, want 0", results[0].Rank)
	}
	if s.gotQuery.Prefilter == "" {
		t.Error("city filter was not pushed down")
	}
}

func TestSearch_UnknownIndexIsNotLoaded(t *testing.T) {
	s := &fakeStore{knnErr: &db.Error{
		Op:  db.OpSearch,
		Err: errors.New("no such index stay:properties:idx"),
	}}
	idx := newTestIndex(s, 4)

	_, err := idx.Search(context.Background(), "villa", 5, domain.Filter{})
	if !errors.Is(err, domain.ErrIndexNotLoaded) {
		t.Errorf("err = %v, want ErrIndexNotLoaded", err)
	}
}

func TestSimilarTo_UsesStoredVector(t *testing.T) {
	vec := dbredis.VectorToBytes([]float32{1, 0, 0, 0})
	s := &fakeStore{
		rows: map[string]map[string]string{
			"stay:properties:p1": {"__vector": vec},
		},
		knnResult: &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "stay:properties:p1", Score: 1, Fields: map[string]string{"__attrs": "{}"}},
				entryFor("p2", domain.Attributes{}, 0.7),
			},
		},
	}
	idx := newTestIndex(s, 4)

	results, err := idx.SimilarTo(context.Background(), "p1", 1)
	if err != nil {
		t.Fatalf("SimilarTo: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "p2" {
		t.Fatalf("results = %+v, want only p2", results)
	}
	if s.gotQuery.ExcludeKey != "stay:properties:p1" {
		t.Errorf("exclude key = %q", s.gotQuery.ExcludeKey)
	}
	if s.gotQuery.K != 2 {
		t.Errorf("candidate window = %d, want k+1", s.gotQuery.K)
	}
}

func TestSimilarTo_UnknownID(t *testing.T) {
	s := &fakeStore{rows: map[string]map[string]string{}}
	idx := newTestIndex(s, 4)

	_, err := idx.SimilarTo(context.Background(), "ghost", 3)
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("ping failure", func(t *testing.T) {
		idx := newTestIndex(&fakeStore{pingErr: errors.New("down")}, 4)
		if _, err := idx.Load(context.Background()); err == nil {
			t.Error("expected error when store unreachable")
		}
	})

	t.Run("no index", func(t *testing.T) {
		idx := newTestIndex(&fakeStore{}, 4)
		ok, err := idx.Load(context.Background())
		if err != nil || ok {
			t.Errorf("Load = %v, %v, want false, nil", ok, err)
		}
	})

	t.Run("populated", func(t *testing.T) {
		idx := newTestIndex(&fakeStore{indexed: true, count: 7}, 4)
		ok, err := idx.Load(context.Background())
		if err != nil || !ok {
			t.Errorf("Load = %v, %v, want true, nil", ok, err)
		}
	})

	t.Run("index exists but empty", func(t *testing.T) {
		idx := newTestIndex(&fakeStore{indexed: true, count: 0}, 4)
		ok, err := idx.Load(context.Background())
		if err != nil || ok {
			t.Errorf("Load = %v, %v, want false, nil", ok, err)
		}
	})
}

func TestCount_NoIndex(t *testing.T) {
	idx := newTestIndex(&fakeStore{count: 9}, 4)

	n, err := idx.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d before index exists, want 0", n)
	}
}
