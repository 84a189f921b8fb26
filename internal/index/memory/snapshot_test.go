package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"accra apartment": {1, 0, 0},
		"tokyo loft":      {0, 1, 0},
		"apartment":       {0.9, 0.1, 0},
	}}
	ctx := context.Background()

	src := New(emb, emb, dir, zap.NewNop())
	if _, err := src.Index(ctx, []domain.Record{ghanaProperty(), tokyoProperty()}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := src.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := New(emb, emb, dir, zap.NewNop())
	ok, err := restored.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load returned false for an existing snapshot")
	}

	n, err := restored.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("restored count = %d, want 2", n)
	}

	results, err := restored.Search(ctx, "apartment", 2, domain.Filter{})
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if results[0].Record.ID != "p1" {
		t.Errorf("nearest after restore = %q, want p1", results[0].Record.ID)
	}
	if city, _ := results[0].Record.Attrs.Str(domain.AttrCity); city != "Accra" {
		t.Errorf("attributes lost in round trip: city = %q", city)
	}
	if len(results) == 2 && results[0].Score <= results[1].Score {
		t.Errorf("ranking lost in round trip: %v <= %v", results[0].Score, results[1].Score)
	}
}

func TestLoad_NoSnapshot(t *testing.T) {
	idx := New(&fakeEmbedder{}, &fakeEmbedder{}, t.TempDir(), zap.NewNop())

	ok, err := idx.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Error("Load = true with no snapshot on disk")
	}
}

func TestLoad_IncompletePair(t *testing.T) {
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	ctx := context.Background()

	src := New(emb, emb, dir, zap.NewNop())
	if _, err := src.Index(ctx, []domain.Record{{ID: "p1", SearchableText: "x"}}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := src.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, victim := range []string{vectorsFile, metadataFile} {
		t.Run(victim, func(t *testing.T) {
			// Restore the full pair, then delete one artifact.
			if err := src.Save(ctx); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := os.Remove(filepath.Join(dir, victim)); err != nil {
				t.Fatalf("Remove: %v", err)
			}

			restored := New(emb, emb, dir, zap.NewNop())
			_, err := restored.Load(ctx)
			if !errors.Is(err, domain.ErrSnapshotCorrupt) {
				t.Errorf("err = %v, want ErrSnapshotCorrupt", err)
			}
		})
	}
}

func TestLoad_CorruptVectorBlob(t *testing.T) {
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	ctx := context.Background()

	src := New(emb, emb, dir, zap.NewNop())
	if _, err := src.Index(ctx, []domain.Record{{ID: "p1", SearchableText: "x"}}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := src.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), []byte("not a blob"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	restored := New(emb, emb, dir, zap.NewNop())
	_, err := restored.Load(ctx)
	if !errors.Is(err, domain.ErrSnapshotCorrupt) {
		t.Errorf("err = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestLoad_PairDisagrees(t *testing.T) {
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	ctx := context.Background()

	src := New(emb, emb, dir, zap.NewNop())
	if _, err := src.Index(ctx, []domain.Record{{ID: "p1", SearchableText: "x"}}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := src.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Metadata claims two records while the blob holds one vector.
	if err := os.WriteFile(filepath.Join(dir, metadataFile),
		[]byte(`[{"id":"p1"},{"id":"p2"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	restored := New(emb, emb, dir, zap.NewNop())
	_, err := restored.Load(ctx)
	if !errors.Is(err, domain.ErrSnapshotCorrupt) {
		t.Errorf("err = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestSnapshot_NoDirectoryDisabled(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := New(emb, emb, "", zap.NewNop())
	ctx := context.Background()

	// Indexing still works; only persistence is disabled.
	if _, err := idx.Index(ctx, []domain.Record{{ID: "p1", SearchableText: "x"}}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Save(ctx); err != nil {
		t.Errorf("Save with no snapshot directory should be a no-op, got %v", err)
	}
	ok, err := idx.Load(ctx)
	if err != nil || ok {
		t.Errorf("Load with no snapshot directory = %v, %v, want false, nil", ok, err)
	}
}

func TestEncodeDecodeVectors(t *testing.T) {
	vectors := [][]float32{{0.1, -0.5, 1}, {0, 0.25, -1}}

	blob, err := encodeVectors(3, vectors)
	if err != nil {
		t.Fatalf("encodeVectors: %v", err)
	}
	dim, got, err := decodeVectors(blob)
	if err != nil {
		t.Fatalf("decodeVectors: %v", err)
	}
	if dim != 3 || len(got) != 2 {
		t.Fatalf("dim=%d count=%d, want 3/2", dim, len(got))
	}
	for i := range vectors {
		for j := range vectors[i] {
			if got[i][j] != vectors[i][j] {
				t.Errorf("vector[%d][%d] = %v, want %v", i, j, got[i][j], vectors[i][j])
			}
		}
	}
}
