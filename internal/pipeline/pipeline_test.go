package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/medkb/medqa-go/internal/answer"
	"github.com/medkb/medqa-go/internal/ingest"
	"github.com/medkb/medqa-go/internal/medrag"
	"github.com/medkb/medqa-go/internal/normalize"
	"github.com/medkb/medqa-go/internal/store"
)

// stubEmbedder produces deterministic vectors so search ordering is stable.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

// stubGenerator scripts the generation backend.
type stubGenerator struct {
	reply string
	err   error
	delay time.Duration
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", &medrag.ServiceError{Service: "generation", Err: ctx.Err()}
		}
	}
	return g.reply, g.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPipeline assembles a full pipeline over an in-memory index and
// in-memory history store.
func newTestPipeline(t *testing.T, gen *stubGenerator, synthTimeout time.Duration) (*Pipeline, *medrag.MemoryIndex, *store.SQLiteStore) {
	t.Helper()

	index := medrag.NewMemoryIndex()
	emb := stubEmbedder{}

	writer, err := ingest.NewWriter(index, emb, ingest.WriterConfig{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	runner := ingest.NewRunner(normalize.New(0), writer, 1, quietLogger())

	retriever, err := medrag.NewRetriever(emb, index, medrag.RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	synth := answer.NewSynthesizer(gen, synthTimeout, quietLogger())

	history, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = history.Close() })

	return New(retriever, synth, runner, history, Config{}, quietLogger()), index, history
}

func qaSource(name string, units ...normalize.RawUnit) ingest.Source {
	return ingest.Source{
		Name: name,
		Units: func(yield func(normalize.RawUnit, error) bool) {
			for _, u := range units {
				if !yield(u, nil) {
					return
				}
			}
		},
	}
}

func TestPipeline_IngestThenAsk(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{reply: "Flu is a viral infection of the respiratory tract."}
	p, _, history := newTestPipeline(t, gen, 0)
	ctx := context.Background()

	summary := p.Ingest(ctx, []ingest.Source{qaSource("medquad",
		normalize.RawUnit{Kind: normalize.KindQA, Question: "What is flu?", Answer: "Flu is a viral infection.", SourceFile: "flu.xml"},
	)})
	if summary.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", summary.Accepted)
	}

	ans, err := p.Ask(ctx, "flu", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !ans.Grounded {
		t.Error("answer should be grounded")
	}
	if ans.Text != gen.reply {
		t.Errorf("answer text = %q", ans.Text)
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("got %d citations, want 1", len(ans.Citations))
	}
	if ans.Citations[0].Label != "What is flu?" {
		t.Errorf("citation label = %q", ans.Citations[0].Label)
	}

	// The exchange and the run both land in the history ledger.
	answers, err := history.RecentAnswers(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAnswers: %v", err)
	}
	if len(answers) != 1 || !answers[0].Grounded {
		t.Errorf("history answers = %+v", answers)
	}
	runs, err := history.RecentIngestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentIngestRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Accepted != 1 {
		t.Errorf("history ingest runs = %+v", runs)
	}
}

func TestPipeline_EmptyIndexFatalNoGeneration(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{reply: "should never run"}
	p, _, _ := newTestPipeline(t, gen, 0)

	_, err := p.Ask(context.Background(), "anything", 0)
	if !errors.Is(err, medrag.ErrEmptyIndex) {
		t.Fatalf("err = %v, want ErrEmptyIndex", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times on empty index", gen.calls)
	}
}

func TestPipeline_GenerationTimeoutDegrades(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{reply: "too late", delay: time.Second}
	p, _, _ := newTestPipeline(t, gen, 10*time.Millisecond)
	ctx := context.Background()

	p.Ingest(ctx, []ingest.Source{qaSource("medquad",
		normalize.RawUnit{Kind: normalize.KindQA, Question: "What is flu?", Answer: "Flu is a viral infection.", SourceFile: "flu.xml"},
	)})

	ans, err := p.Ask(ctx, "flu", 0)
	if err != nil {
		t.Fatalf("Ask must not fail on generation timeout: %v", err)
	}
	if ans.Grounded {
		t.Error("degraded answer must not be grounded")
	}
	if len(ans.Citations) != 0 {
		t.Errorf("degraded answer carries %d citations, want 0", len(ans.Citations))
	}
	if !strings.Contains(ans.Text, "unavailable") {
		t.Errorf("degraded answer text = %q, want a failure notice", ans.Text)
	}
}

func TestPipeline_DuplicateIDLastWriteWins(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{reply: "ok"}
	p, index, _ := newTestPipeline(t, gen, 0)
	ctx := context.Background()

	// Same source file and ordinal yield the same derived ID.
	first := normalize.RawUnit{Kind: normalize.KindQA, Question: "What is flu?", Answer: "Old answer.", SourceFile: "flu.xml", Ordinal: 1}
	second := normalize.RawUnit{Kind: normalize.KindQA, Question: "What is flu?", Answer: "New answer.", SourceFile: "flu.xml", Ordinal: 1}

	p.Ingest(ctx, []ingest.Source{qaSource("medquad", first)})
	p.Ingest(ctx, []ingest.Source{qaSource("medquad", second)})

	count, err := index.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("collection size = %d, want 1", count)
	}

	emb := stubEmbedder{}
	vec, _ := emb.Embed(ctx, []string{"flu"})
	records, err := index.Search(ctx, vec[0], 1, medrag.SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := records[0].Metadata[medrag.MetaAnswer]; got != "New answer." {
		t.Errorf("metadata answer = %q, want the later write", got)
	}
}

func TestPipeline_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{}
	p, _, _ := newTestPipeline(t, gen, 0)

	_, err := p.Ask(context.Background(), "   ", 0)
	var vErr *medrag.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestPipeline_EmbeddingFailureDegrades(t *testing.T) {
	t.Parallel()

	index := medrag.NewMemoryIndex()
	// Seed directly so the index is non-empty.
	rec := medrag.Record{ID: "seed", Text: "seed text"}
	if err := index.Upsert(context.Background(), []medrag.Record{rec}, [][]float32{{1, 1}}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	retriever, err := medrag.NewRetriever(failingEmbedder{}, index, medrag.RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	gen := &stubGenerator{reply: "unused"}
	synth := answer.NewSynthesizer(gen, 0, quietLogger())
	p := New(retriever, synth, nil, nil, Config{}, quietLogger())

	ans, err := p.Ask(context.Background(), "flu", 0)
	if err != nil {
		t.Fatalf("Ask must degrade, not fail: %v", err)
	}
	if ans.Grounded || !strings.Contains(ans.Text, "unavailable") {
		t.Errorf("answer = %+v, want ungrounded failure notice", ans)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times after embedding failure", gen.calls)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}
