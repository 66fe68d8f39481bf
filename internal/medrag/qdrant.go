package medrag

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the embedder the collection is used with.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant collection.
// It is the only process-side handle to the persistent index state; no
// ambient or global client exists.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex connects to Qdrant, ensures the target collection exists
// (creating it with cosine distance if necessary), and returns a
// ready-to-use VectorIndex.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, &ConfigError{Key: "collection", Reason: "collection name must not be empty"}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &ServiceError{Service: "index", Err: fmt.Errorf("create client: %w", err)}
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// ensureCollection creates the collection if it does not already exist.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return &ServiceError{Service: "index", Err: fmt.Errorf("check collection: %w", err)}
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return &ServiceError{Service: "index", Err: fmt.Errorf("create collection %q: %w", q.cfg.Collection, err)}
	}

	return nil
}

// Upsert stores or fully replaces a batch of records with their embeddings.
// Point IDs are derived deterministically from record IDs, so re-upserting
// the same record replaces its payload in place (last write wins).
func (q *QdrantIndex) Upsert(ctx context.Context, records []Record, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fmt.Errorf("medrag: %d records but %d embeddings", len(records), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, rec := range records {
		payload := map[string]interface{}{
			"record_id": rec.ID,
			"text":      rec.Text,
		}
		for k, v := range rec.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(rec.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return &ServiceError{Service: "index", Err: fmt.Errorf("upsert: %w", err)}
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k records
// ordered by descending score. Metadata filters and the optional score
// threshold are applied server-side.
func (q *QdrantIndex) Search(ctx context.Context, queryEmbedding []float32, topK int, opts SearchOptions) ([]Record, error) {
	limit := uint64(topK) //nolint:gosec // topK is validated positive by the retriever

	query := &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.MinScore > 0 {
		threshold := opts.MinScore
		query.ScoreThreshold = &threshold
	}
	if len(opts.Filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(opts.Filter))
		for k, v := range opts.Filter {
			conditions = append(conditions, qdrant.NewMatch(k, v))
		}
		query.Filter = &qdrant.Filter{Must: conditions}
	}

	results, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, &ServiceError{Service: "index", Err: fmt.Errorf("search: %w", err)}
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		rec := Record{
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		for k, v := range r.Payload {
			switch k {
			case "record_id":
				rec.ID = v.GetStringValue()
			case "text":
				rec.Text = v.GetStringValue()
			default:
				rec.Metadata[k] = v.GetStringValue()
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// Count reports the number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (uint64, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.cfg.Collection,
	})
	if err != nil {
		return 0, &ServiceError{Service: "index", Err: fmt.Errorf("count: %w", err)}
	}
	return n, nil
}

// Client exposes the underlying gRPC client for health probes.
func (q *QdrantIndex) Client() *qdrant.Client {
	return q.client
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// pointID maps a record ID onto a deterministic UUID-shaped string, which
// Qdrant requires for point identity. The mapping is pure, so the same
// record always lands on the same point.
func pointID(recordID string) string {
	h := sha256.Sum256([]byte(recordID))
	return fmt.Sprintf("%x-%x-%x-%x-%x", h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}
