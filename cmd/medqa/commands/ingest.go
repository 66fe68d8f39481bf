package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/medkb/medqa-go/internal/embedder"
	"github.com/medkb/medqa-go/internal/ingest"
	"github.com/medkb/medqa-go/internal/logging"
	"github.com/medkb/medqa-go/internal/pipeline"
)

// NewIngestCmd constructs the `medqa ingest` command, which normalizes and
// indexes medical source files into the vector store.
func NewIngestCmd() *cobra.Command {
	var files []string
	var sourceName string
	var batchSize int
	var workers int
	var embedRPS float64
	var minBodyLen int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest medical source files into the vector index",
		Long: `Normalize and index medical reference content into the Qdrant vector store.

Each --file is a JSONL file of raw units, one JSON object per line. Q&A units
("kind": "qa") carry a question and answer; article units ("kind": "article")
carry a title, body, and optional URL. Units the normalizer rejects (missing
fields, body too short) are counted and skipped; a bad line never aborts the
run. Record IDs are deterministic, so re-ingesting a file updates records in
place instead of duplicating them.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: medquad_qa)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure, gemini (default: ollama)
  EMBEDDING_*          Backend overrides (MODEL, API_KEY, ENDPOINT, DIMENSIONS)

Examples:
  medqa ingest --file data/medquad.jsonl
  medqa ingest --file data/medquad.jsonl --file data/encyclopedia.jsonl
  medqa ingest --file data/custom.jsonl --source-name "Hospital FAQ"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}
			if sourceName != "" && len(files) > 1 {
				return fmt.Errorf("ingest: --source-name applies to a single --file")
			}

			if err := embedder.Preflight(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("embedder configured", slog.String("provider", embedder.ResolveBackend()))

			idx, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeIndex()

			runner, err := buildIngestRunner(idx, log, batchSize, workers, minBodyLen, embedRPS)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			history, closeHistory := openHistory(log)
			defer closeHistory()

			sources := make([]ingest.Source, 0, len(files))
			for _, f := range files {
				sources = append(sources, ingest.FileSource(sourceName, f))
			}

			log.Info("starting ingestion",
				slog.Int("sources", len(sources)),
				slog.Int("batch_size", batchSize),
				slog.Int("workers", workers),
			)

			p := pipeline.New(nil, nil, runner, history, pipeline.Config{}, log)
			summary := p.Ingest(ctx, sources)

			fmt.Println(summary.String())
			if summary.HasFailures() {
				return fmt.Errorf("ingest: completed with failures")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "JSONL source file to ingest (repeatable)")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "Source label override (single --file only; default: file name)")
	cmd.Flags().IntVar(&batchSize, "batch-size", getEnvInt("MEDQA_BATCH_SIZE", 50), "Records embedded and upserted per chunk")
	cmd.Flags().IntVar(&workers, "workers", getEnvInt("MEDQA_INGEST_WORKERS", 2), "Sources processed concurrently")
	cmd.Flags().Float64Var(&embedRPS, "embed-rps", getEnvFloat("MEDQA_EMBED_RPS", 0), "Embedding calls per second, 0 = unpaced")
	cmd.Flags().IntVar(&minBodyLen, "min-body-len", getEnvInt("MEDQA_MIN_BODY_LEN", 0), "Minimum article body length accepted (0 = default)")

	return cmd
}
