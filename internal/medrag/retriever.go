package medrag

import (
	"context"
	"fmt"
)

// RetrieverConfig tunes query-time retrieval. The zero value is usable:
// top-k falls back to 5, no score threshold, no source filter.
type RetrieverConfig struct {
	// DefaultTopK is the number of results when the caller passes topK=0.
	DefaultTopK int

	// MinScore drops matches below the threshold. Zero disables the
	// cutoff: retrieval returns whatever the index considers top-k,
	// even distant matches.
	MinScore float32

	// Filter restricts retrieval to records carrying the given metadata
	// values (e.g. MetaSourceName → "MedQuAD"). Nil searches all sources.
	Filter map[string]string
}

// Retriever embeds a query and performs nearest-neighbor search against
// the index. It refuses to search an empty collection so callers can
// distinguish "knowledge base not built" from "no relevant match".
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index VectorIndex

	// cfg holds the resolved retrieval configuration.
	cfg RetrieverConfig
}

// NewRetriever constructs a Retriever from the given Embedder and VectorIndex.
func NewRetriever(embedder Embedder, index VectorIndex, cfg RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("medrag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("medrag: index must not be nil")
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg}, nil
}

// Retrieve returns up to topK records ranked by descending similarity.
// If topK is 0 the configured default is used. Returns ErrEmptyIndex when
// the collection has zero entries; on a populated index with no close
// matches it still returns whatever the index provides, unless a MinScore
// threshold was configured.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Record, error) {
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}

	count, err := r.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("medrag: counting index entries: %w", err)
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &ServiceError{Service: "embedding", Err: err}
	}
	if len(embeddings) == 0 {
		return nil, &ServiceError{Service: "embedding", Err: fmt.Errorf("empty result for query")}
	}

	records, err := r.index.Search(ctx, embeddings[0], topK, SearchOptions{
		MinScore: r.cfg.MinScore,
		Filter:   r.cfg.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("medrag: vector search: %w", err)
	}

	return records, nil
}
