package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/medkb/medqa-go/internal/answer"
	"github.com/medkb/medqa-go/internal/embedder"
	"github.com/medkb/medqa-go/internal/generator"
	"github.com/medkb/medqa-go/internal/ingest"
	"github.com/medkb/medqa-go/internal/medrag"
	"github.com/medkb/medqa-go/internal/normalize"
	"github.com/medkb/medqa-go/internal/pipeline"
	"github.com/medkb/medqa-go/internal/store"
)

// defaultCollection is the Qdrant collection records are indexed into when
// QDRANT_COLLECTION is not set.
const defaultCollection = "medquad_qa"

// buildIndex connects to the configured vector index and returns it with a
// close function. MEDQA_INDEX=memory selects the in-process index for
// development runs without a Qdrant instance; anything ingested into it is
// lost when the process exits.
func buildIndex(ctx context.Context, log *slog.Logger) (medrag.VectorIndex, func(), error) {
	if getEnvOrDefault("MEDQA_INDEX", "qdrant") == "memory" {
		log.Info("index: using in-process memory index, contents are not persisted")
		return medrag.NewMemoryIndex(), func() {}, nil
	}

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	backend := embedder.ResolveBackend()
	vectorSize := uint64(embedder.DefaultDimensions(backend)) //nolint:gosec // dimensions are bounded

	idx, err := medrag.NewQdrantIndex(ctx, &medrag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("index: qdrant ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return idx, func() { _ = idx.Close() }, nil
}

// openHistory opens the answer/ingestion history ledger. MEDQA_HISTORY_DB
// overrides the default path (~/.medqa/history.db); set it to "disabled" to
// skip persistence. Failures disable history rather than aborting, so a
// read-only home directory never blocks a query.
func openHistory(log *slog.Logger) (store.HistoryStore, func()) {
	dbPath := os.Getenv("MEDQA_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via MEDQA_HISTORY_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
		dbPath = p
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// buildQueryPipeline wires the full question-answering path: embedder,
// index, retriever, generator, and synthesizer. The index handle is
// returned alongside the pipeline so callers can probe it; the close
// function releases the index connection and the history store.
func buildQueryPipeline(ctx context.Context, log *slog.Logger, topK int, threshold float64, source string, maxContext int) (*pipeline.Pipeline, medrag.VectorIndex, func(), error) {
	if err := embedder.Preflight(log); err != nil {
		return nil, nil, nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialising embedder: %w", err)
	}

	idx, closeIndex, err := buildIndex(ctx, log)
	if err != nil {
		return nil, nil, nil, err
	}

	var filter map[string]string
	if source != "" {
		filter = map[string]string{medrag.MetaSourceName: source}
	}
	retriever, err := medrag.NewRetriever(emb, idx, medrag.RetrieverConfig{
		DefaultTopK: topK,
		MinScore:    float32(threshold),
		Filter:      filter,
	})
	if err != nil {
		closeIndex()
		return nil, nil, nil, err
	}

	gen, err := generator.NewFromEnv(ctx)
	if err != nil {
		closeIndex()
		return nil, nil, nil, fmt.Errorf("initialising model provider: %w", err)
	}
	synth := answer.NewSynthesizer(gen, 0, log)

	history, closeHistory := openHistory(log)

	p := pipeline.New(retriever, synth, nil, history, pipeline.Config{
		TopK:            topK,
		MaxContextChars: maxContext,
	}, log)

	closeAll := func() {
		closeHistory()
		closeIndex()
	}
	return p, idx, closeAll, nil
}

// buildIngestRunner wires the ingestion path: embedder, index, writer, and
// normalizer, tuned from MEDQA_* env vars with flag overrides applied by
// the caller.
func buildIngestRunner(idx medrag.VectorIndex, log *slog.Logger, batchSize, workers, minBodyLen int, embedRPS float64) (*ingest.Runner, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("initialising embedder: %w", err)
	}

	writer, err := ingest.NewWriter(idx, emb, ingest.WriterConfig{
		BatchSize: batchSize,
		EmbedRPS:  embedRPS,
	})
	if err != nil {
		return nil, err
	}

	normalizer := normalize.New(minBodyLen)
	return ingest.NewRunner(normalizer, writer, workers, log), nil
}

// printCitations renders numbered citations under an answer.
func printCitations(citations []medrag.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, c := range citations {
		line := fmt.Sprintf("  [%d] %s", i+1, c.Label)
		if c.SourceName != "" {
			line += " (" + c.SourceName + ")"
		}
		if c.URL != "" {
			line += " " + c.URL
		}
		fmt.Println(line)
	}
}

// getEnvOrDefault returns the env var value, or fallback when unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the env var parsed as float64, or fallback when unset
// or unparsable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
