package memory

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

// Snapshot artifact names within the snapshot directory. The pair is
// written together on every Save; loading one without the other is an
// inconsistent state and is rejected.
const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.json"
)

// vector blob header: magic, format version, metric, dimension, count.
var snapshotMagic = [4]byte{'S', 'N', 'S', 'V'}

const (
	snapshotVersion    = 1
	metricInnerProduct = 1
)

// Save writes the vector blob and the metadata list. Both artifacts are
// staged to temp files and renamed into place only after both writes
// succeed, so a crash mid-save leaves the previous pair intact. With no
// snapshot directory configured, Save is a no-op like Load.
func (idx *Index) Save(_ context.Context) error {
	if idx.snapshotDir == "" {
		return nil
	}

	idx.mu.RLock()
	blob, err := encodeVectors(idx.dim, idx.vectors)
	var meta []byte
	if err == nil {
		meta, err = json.Marshal(idx.records)
	}
	idx.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(idx.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	vecPath := filepath.Join(idx.snapshotDir, vectorsFile)
	metaPath := filepath.Join(idx.snapshotDir, metadataFile)
	vecTmp := vecPath + ".tmp"
	metaTmp := metaPath + ".tmp"

	if err := os.WriteFile(vecTmp, blob, 0o644); err != nil {
		return fmt.Errorf("write vector blob: %w", err)
	}
	if err := os.WriteFile(metaTmp, meta, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(vecTmp, vecPath); err != nil {
		return fmt.Errorf("commit vector blob: %w", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}

	idx.logger.Info("saved snapshot",
		zap.String("dir", idx.snapshotDir),
		zap.Int("records", len(idx.records)),
	)
	return nil
}

// Load restores the snapshot pair. Returns (false, nil) when no snapshot
// exists, and domain.ErrSnapshotCorrupt when only one artifact is present
// or the pair disagrees.
func (idx *Index) Load(_ context.Context) (bool, error) {
	if idx.snapshotDir == "" {
		return false, nil
	}

	blob, vecErr := os.ReadFile(filepath.Join(idx.snapshotDir, vectorsFile))
	meta, metaErr := os.ReadFile(filepath.Join(idx.snapshotDir, metadataFile))

	switch {
	case os.IsNotExist(vecErr) && os.IsNotExist(metaErr):
		return false, nil
	case os.IsNotExist(vecErr) || os.IsNotExist(metaErr):
		return false, fmt.Errorf("snapshot pair incomplete: %w", domain.ErrSnapshotCorrupt)
	case vecErr != nil:
		return false, fmt.Errorf("read vector blob: %w", vecErr)
	case metaErr != nil:
		return false, fmt.Errorf("read metadata: %w", metaErr)
	}

	dim, vectors, err := decodeVectors(blob)
	if err != nil {
		return false, fmt.Errorf("decode vector blob: %w: %v", domain.ErrSnapshotCorrupt, err)
	}

	var records []domain.Record
	if err := json.Unmarshal(meta, &records); err != nil {
		return false, fmt.Errorf("decode metadata: %w: %v", domain.ErrSnapshotCorrupt, err)
	}
	if len(records) != len(vectors) {
		return false, fmt.Errorf("snapshot pair disagrees: %d vectors, %d records: %w",
			len(vectors), len(records), domain.ErrSnapshotCorrupt)
	}

	byID := make(map[string]int, len(records))
	for i, rec := range records {
		byID[rec.ID] = i
	}

	idx.mu.Lock()
	idx.dim = dim
	idx.vectors = vectors
	idx.records = records
	idx.byID = byID
	idx.loaded = true
	idx.mu.Unlock()

	idx.logger.Info("loaded snapshot",
		zap.String("dir", idx.snapshotDir),
		zap.Int("records", len(records)),
		zap.Int("dimensions", dim),
	)
	return true, nil
}

func encodeVectors(dim int, vectors [][]float32) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	buf.WriteByte(snapshotVersion)
	buf.WriteByte(metricInnerProduct)

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(dim))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(vectors)))
	buf.Write(hdr[:])

	var scratch [4]byte
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector length %d, dimension %d", len(v), dim)
		}
		for _, f := range v {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(f))
			buf.Write(scratch[:])
		}
	}
	return buf.Bytes(), nil
}

func decodeVectors(blob []byte) (int, [][]float32, error) {
	const headerLen = 4 + 1 + 1 + 8
	if len(blob) < headerLen {
		return 0, nil, errors.New("blob too short")
	}
	if !bytes.Equal(blob[:4], snapshotMagic[:]) {
		return 0, nil, errors.New("bad magic")
	}
	if blob[4] != snapshotVersion {
		return 0, nil, fmt.Errorf("unsupported version %d", blob[4])
	}
	if blob[5] != metricInnerProduct {
		return 0, nil, fmt.Errorf("unsupported metric %d", blob[5])
	}

	dim := int(binary.LittleEndian.Uint32(blob[6:10]))
	count := int(binary.LittleEndian.Uint32(blob[10:14]))
	payload := blob[headerLen:]
	if len(payload) != dim*count*4 {
		return 0, nil, fmt.Errorf("payload %d bytes, want %d", len(payload), dim*count*4)
	}

	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return dim, vectors, nil
}
