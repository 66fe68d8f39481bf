package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/medkb/medqa-go/internal/embedder"
	"github.com/medkb/medqa-go/internal/logging"
	"github.com/medkb/medqa-go/internal/medrag"
	"github.com/medkb/medqa-go/internal/server"
	"github.com/medkb/medqa-go/internal/tracing"
)

// NewServeCmd constructs the `medqa serve` command, which starts the HTTP
// query server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the medqa HTTP query server",
		Long: `Start the medqa HTTP server on localhost.

The server exposes a JSON API for grounded question answering:

  POST /api/ask      answer a question with citations
  GET  /api/health   liveness probe
  GET  /api/ready    readiness probe (index and embedding backend)
  GET  /metrics      Prometheus metrics

Examples:
  medqa serve
  medqa serve --port 9090
  MODEL_PROVIDER=ollama medqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing. Opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			p, idx, closePipeline, err := buildQueryPipeline(ctx, log,
				getEnvInt("MEDQA_TOP_K", 5),
				getEnvFloat("MEDQA_THRESHOLD", 0),
				"",
				getEnvInt("MEDQA_MAX_CONTEXT_CHARS", 0),
			)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closePipeline()

			srv, err := server.New(p, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(idx),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers assembles the readiness probes for GET /api/ready: the
// vector index, plus the local Ollama instance when it serves embeddings
// or generation.
func buildPingers(idx medrag.VectorIndex) []server.Pinger {
	var pingers []server.Pinger

	if q, ok := idx.(*medrag.QdrantIndex); ok {
		pingers = append(pingers, server.NewQdrantPinger(q.Client()))
	} else {
		pingers = append(pingers, server.NewIndexPinger("index", idx.Count))
	}

	usesOllama := embedder.ResolveBackend() == "ollama" ||
		getEnvOrDefault("MODEL_PROVIDER", "gemini") == "ollama"
	if usesOllama {
		host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		pingers = append(pingers, server.NewHTTPPinger("ollama", host+"/api/tags"))
	}

	return pingers
}
