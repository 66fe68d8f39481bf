package medrag

import "context"

// SearchOptions narrows a similarity search. The zero value means no
// filtering: all ingested sources are searched uniformly and every match
// the index returns is kept.
type SearchOptions struct {
	// MinScore drops matches scoring below the threshold. Zero disables
	// the cutoff; top-k results are returned regardless of similarity.
	MinScore float32

	// Filter restricts matches to records whose metadata contains every
	// listed key-value pair (e.g. MetaSourceName → "MedQuAD").
	Filter map[string]string
}

// VectorIndex is the interface for the persistent nearest-neighbor index.
// The pipeline never inspects embedding vectors. It relies only on the
// index's cosine similarity ordering contract. Implementations must be
// safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert stores or fully replaces a batch of records keyed by ID.
	// The embeddings slice is parallel to records: embeddings[i] is the
	// vector for records[i]. Re-upserting an existing ID overwrites its
	// text and metadata; it never creates a duplicate.
	Upsert(ctx context.Context, records []Record, embeddings [][]float32) error

	// Search returns the top-k most similar records for the query
	// embedding, ordered by descending score, narrowed by opts.
	Search(ctx context.Context, queryEmbedding []float32, topK int, opts SearchOptions) ([]Record, error)

	// Count reports the number of records currently in the collection.
	Count(ctx context.Context) (uint64, error)

	// Close releases any resources held by the index.
	Close() error
}

// Embedder converts text into dense vector embeddings. Implementations
// must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the text-completion service consumed by the answer
// synthesizer: one prompt in, one completion out, no conversation state.
type Generator interface {
	// Generate produces a completion for the prompt. The call blocks until
	// the service responds or ctx expires.
	Generate(ctx context.Context, prompt string) (string, error)
}
