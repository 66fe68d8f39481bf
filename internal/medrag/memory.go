package medrag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process VectorIndex used by tests and index-less
// development runs. It keeps records and vectors in a map guarded by a
// mutex and ranks matches by cosine similarity, mirroring the ordering
// contract of the Qdrant backend.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// memoryEntry pairs a stored record with its embedding vector.
type memoryEntry struct {
	record Record
	vector []float32
}

// NewMemoryIndex returns an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

// Upsert stores or fully replaces records keyed by ID (last write wins).
func (m *MemoryIndex) Upsert(_ context.Context, records []Record, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fmt.Errorf("medrag: %d records but %d embeddings", len(records), len(embeddings))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range records {
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		m.entries[rec.ID] = memoryEntry{record: rec, vector: vec}
	}
	return nil
}

// Search returns the top-k records by cosine similarity, descending.
func (m *MemoryIndex) Search(_ context.Context, queryEmbedding []float32, topK int, opts SearchOptions) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Record, 0, len(m.entries))
	for _, e := range m.entries {
		if !matchesFilter(e.record, opts.Filter) {
			continue
		}
		score := cosineSimilarity(queryEmbedding, e.vector)
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}
		rec := e.record
		rec.Score = score
		matches = append(matches, rec)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count reports the number of stored records.
func (m *MemoryIndex) Count(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries)), nil
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }

// matchesFilter reports whether the record's metadata contains every
// key-value pair in filter. An empty filter matches everything.
func matchesFilter(rec Record, filter map[string]string) bool {
	for k, v := range filter {
		if rec.Metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
