package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// HTTPPinger probes an HTTP dependency with a plain GET, accepting any
// 2xx/3xx/4xx status as "reachable". It covers the embedding and generation
// backends (Ollama, OpenAI-compatible gateways) without spending tokens on a
// real completion call.
type HTTPPinger struct {
	// name identifies the dependency in readiness responses (e.g. "ollama").
	name string
	// url is the endpoint to probe.
	url string
	// client is the HTTP client with a short timeout.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for the given dependency name and URL.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues a GET against the probe URL. Any HTTP response counts as
// reachable; only transport-level failures (refused, DNS, timeout) fail
// the probe. 5xx still fails: the dependency is up but unhealthy.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// countPinger adapts a VectorIndex Count call into a Pinger so memory-backed
// dev deployments still get a meaningful readiness probe.
type countPinger struct {
	name  string
	count func(ctx context.Context) (uint64, error)
}

// NewIndexPinger constructs a Pinger that probes a vector index by counting
// its records within the probe timeout.
func NewIndexPinger(name string, count func(ctx context.Context) (uint64, error)) Pinger {
	return &countPinger{name: name, count: count}
}

func (p *countPinger) Name() string { return p.name }

func (p *countPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := p.count(ctx); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}
