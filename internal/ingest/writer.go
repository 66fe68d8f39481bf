// Package ingest implements the ingestion half of the pipeline: it embeds
// normalized records in fixed-size chunks and upserts them into the vector
// index, reporting per-chunk failures with enough information to resume.
// The writer is the sole mutator of the collection; upserts are serialized
// so concurrent sources can never interleave a partial record write.
package ingest

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"golang.org/x/time/rate"

	"github.com/medkb/medqa-go/internal/medrag"
)

// defaultBatchSize matches the upstream batch-of-50 insert loop. Chunked
// writes bound memory during large corpus ingestion and amortize index
// round trips.
const defaultBatchSize = 50

// WriterConfig tunes the index writer.
type WriterConfig struct {
	// BatchSize is the number of records embedded and upserted per chunk.
	// Defaults to 50 if zero.
	BatchSize int

	// EmbedRPS caps embedding-service calls per second across all sources.
	// Zero disables pacing.
	EmbedRPS float64
}

// Writer embeds and upserts records into a named collection.
// It is safe for concurrent use by multiple ingestion workers.
type Writer struct {
	// index is the target vector index handle.
	index medrag.VectorIndex

	// embedder converts record text into vectors before upserting.
	embedder medrag.Embedder

	// batchSize is the resolved chunk size.
	batchSize int

	// limiter paces embedding calls, nil when pacing is disabled.
	limiter *rate.Limiter

	// mu serializes upserts to the collection so chunk writes from
	// concurrent sources never interleave.
	mu sync.Mutex
}

// NewWriter constructs a Writer from the given index and embedder.
func NewWriter(index medrag.VectorIndex, embedder medrag.Embedder, cfg WriterConfig) (*Writer, error) {
	if index == nil {
		return nil, fmt.Errorf("ingest: index must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	w := &Writer{
		index:     index,
		embedder:  embedder,
		batchSize: cfg.BatchSize,
	}
	if cfg.EmbedRPS > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRPS), 1)
	}
	return w, nil
}

// ChunkError reports the failure of one upsert chunk. Offset is the index
// of the chunk's first record within the stream, so a caller can resume
// ingestion from there without re-processing earlier chunks (re-running
// them is harmless anyway, upserts are idempotent).
type ChunkError struct {
	// Offset is the stream index of the first record in the failed chunk.
	Offset int
	// Size is the number of records in the failed chunk.
	Size int
	// Err is the underlying embedding or index failure.
	Err error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("ingest: chunk at offset %d (%d records) failed: %v", e.Offset, e.Size, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Write consumes the lazy record sequence, embedding and upserting it in
// chunks of the configured batch size. It returns the number of records
// actually written. On a chunk failure it stops and returns a *ChunkError;
// records from earlier chunks remain written.
func (w *Writer) Write(ctx context.Context, records iter.Seq[medrag.Record]) (int, error) {
	var (
		chunk   = make([]medrag.Record, 0, w.batchSize)
		written int
	)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := w.flush(ctx, chunk); err != nil {
			return &ChunkError{Offset: written, Size: len(chunk), Err: err}
		}
		written += len(chunk)
		chunk = chunk[:0]
		return nil
	}

	for rec := range records {
		chunk = append(chunk, rec)
		if len(chunk) >= w.batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// flush embeds one chunk and upserts it under the writer lock.
func (w *Writer) flush(ctx context.Context, chunk []medrag.Record) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("awaiting embed slot: %w", err)
		}
	}

	texts := make([]string, len(chunk))
	for i, rec := range chunk {
		texts[i] = rec.Text
	}

	embeddings, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		return &medrag.ServiceError{Service: "embedding", Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index.Upsert(ctx, chunk, embeddings)
}
