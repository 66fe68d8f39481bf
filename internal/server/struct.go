package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medkb/medqa-go/internal/answer"
	"github.com/medkb/medqa-go/internal/medrag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds the end-to-end handling of one question,
	// retrieval and generation included (default: 2 minutes).
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// MetricsRegistry receives all server metric registrations. If nil, a
	// fresh private registry is created together with MetricsGatherer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Must correspond to
	// MetricsRegistry when both are set.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface handleAsk calls to answer a question.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type asker interface {
	// Ask answers a single question, retrieving topK records for context.
	// topK <= 0 selects the pipeline default.
	Ask(ctx context.Context, question string, topK int) (answer.Answer, error)
}

// Server is the HTTP server that exposes the question-answering pipeline.
type Server struct {
	// asker answers /api/ask questions.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's medical question.
	Question string `json:"question"`
	// TopK overrides the number of records retrieved for context. Optional.
	TopK int `json:"topK,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`
	// Grounded reports whether the answer was produced from retrieved context.
	Grounded bool `json:"grounded"`
	// Citations lists the provenance of the context the answer drew from.
	Citations []medrag.Citation `json:"citations"`
}

// errorResponse is the JSON body for error statuses.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
