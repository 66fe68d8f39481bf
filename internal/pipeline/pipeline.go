// Package pipeline wires retrieval, context assembly, and answer synthesis
// into the two operating modes of the system: ingestion (sources into the
// vector index) and query (question in, grounded answer out). It is the only
// package that sees the whole flow; the stages below it stay independently
// testable.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/medkb/medqa-go/internal/answer"
	"github.com/medkb/medqa-go/internal/ingest"
	"github.com/medkb/medqa-go/internal/medrag"
	"github.com/medkb/medqa-go/internal/store"
)

// Defaults applied when Config fields are zero.
const (
	defaultTopK            = 5
	defaultMaxContextChars = 8000
)

// Config holds query-mode tuning knobs.
type Config struct {
	// TopK is the number of records retrieved per question (default 5).
	TopK int
	// MaxContextChars caps the assembled context size (default 8000,
	// <= -1 disables the cap).
	MaxContextChars int
}

// Pipeline orchestrates the query and ingestion flows.
type Pipeline struct {
	retriever *medrag.Retriever
	synth     *answer.Synthesizer
	runner    *ingest.Runner
	history   store.HistoryStore
	cfg       Config
	log       *slog.Logger
}

// New constructs a Pipeline. runner and history may be nil: a query-only
// deployment (the HTTP server) passes no runner, and history persistence is
// optional everywhere.
func New(retriever *medrag.Retriever, synth *answer.Synthesizer, runner *ingest.Runner, history store.HistoryStore, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.MaxContextChars == 0 {
		cfg.MaxContextChars = defaultMaxContextChars
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		retriever: retriever,
		synth:     synth,
		runner:    runner,
		history:   history,
		cfg:       cfg,
		log:       log,
	}
}

// Ask answers a single question. The retrieval count defaults to the
// configured TopK when topK <= 0.
//
// Error handling follows the pipeline's degradation rules: an empty index or
// an invalid question is returned as an error (the caller has to fix
// something), while a downstream service failure degrades to an ungrounded
// answer so the user always gets a response.
func (p *Pipeline) Ask(ctx context.Context, question string, topK int) (answer.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return answer.Answer{}, &medrag.ValidationError{Unit: "question", Reason: "empty"}
	}
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	records, err := p.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		if errors.Is(err, medrag.ErrEmptyIndex) {
			return answer.Answer{}, err
		}
		var svcErr *medrag.ServiceError
		if errors.As(err, &svcErr) {
			p.log.Error("pipeline: retrieval failed, degrading",
				slog.String("service", svcErr.Service),
				slog.String("error", svcErr.Error()),
			)
			return answer.Answer{Text: answer.UnavailableMessage}, nil
		}
		return answer.Answer{}, err
	}

	block := answer.Assemble(records, p.cfg.MaxContextChars)
	if block.Truncated {
		p.log.Warn("pipeline: context truncated",
			slog.Int("max_chars", p.cfg.MaxContextChars),
			slog.Int("retrieved", len(records)),
		)
	}

	ans := p.synth.Synthesize(ctx, question, block)
	p.recordAnswer(ctx, question, ans)
	return ans, nil
}

// Ingest runs all sources through the normalizer and writer, then persists
// the per-source counts to the history ledger.
func (p *Pipeline) Ingest(ctx context.Context, sources []ingest.Source) ingest.Summary {
	summary := p.runner.Run(ctx, sources)
	p.recordIngestRun(ctx, summary)
	return summary
}

// recordAnswer persists an answered question. History is best-effort: a
// storage failure is logged, never surfaced to the user.
func (p *Pipeline) recordAnswer(ctx context.Context, question string, ans answer.Answer) {
	if p.history == nil {
		return
	}
	err := p.history.RecordAnswer(ctx, store.Answer{
		Question:  question,
		Text:      ans.Text,
		Grounded:  ans.Grounded,
		Citations: len(ans.Citations),
	})
	if err != nil {
		p.log.Warn("pipeline: recording answer failed", slog.String("error", err.Error()))
	}
}

// recordIngestRun persists per-source ingestion counts, best-effort.
func (p *Pipeline) recordIngestRun(ctx context.Context, summary ingest.Summary) {
	if p.history == nil {
		return
	}
	runs := make([]store.IngestRun, 0, len(summary.Reports))
	for _, rep := range summary.Reports {
		runs = append(runs, store.IngestRun{
			Source:   rep.Source,
			Accepted: rep.Accepted,
			Rejected: rep.Rejected,
			Failed:   rep.Failed,
		})
	}
	if err := p.history.RecordIngestRun(ctx, runs); err != nil {
		p.log.Warn("pipeline: recording ingest run failed", slog.String("error", err.Error()))
	}
}
