package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medkb/medqa-go/internal/answer"
	"github.com/medkb/medqa-go/internal/medrag"
)

// fakeAsker is a test double for the pipeline. It returns the scripted
// answer or error and records the questions it was asked.
type fakeAsker struct {
	ans       answer.Answer
	err       error
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, question string, _ int) (answer.Answer, error) {
	f.questions = append(f.questions, question)
	return f.ans, f.err
}

// newTestServer builds a Server over a fakeAsker with a hermetic metrics
// registry and a quiet logger.
func newTestServer(t *testing.T) (*Server, *fakeAsker) {
	t.Helper()
	fake := &fakeAsker{}
	reg := prometheus.NewRegistry()
	s, err := New(fake, &Config{
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
		AskTimeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s, fake
}

func postAsk(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleAsk(w, req)
	return w
}

func TestHandleAsk_OK(t *testing.T) {
	t.Parallel()
	s, fake := newTestServer(t)
	fake.ans = answer.Answer{
		Text:     "Flu is a viral infection.",
		Grounded: true,
		Citations: []medrag.Citation{
			{SourceName: "medquad", Label: "What is flu?"},
		},
	}

	w := postAsk(t, s, `{"question":"What is flu?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Grounded || resp.Answer != "Flu is a viral infection." {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Label != "What is flu?" {
		t.Errorf("citations = %+v", resp.Citations)
	}
	if len(fake.questions) != 1 || fake.questions[0] != "What is flu?" {
		t.Errorf("pipeline received questions %v", fake.questions)
	}
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	t.Parallel()
	s, fake := newTestServer(t)

	w := postAsk(t, s, `{"question":""}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(fake.questions) != 0 {
		t.Errorf("pipeline must not be called for empty questions")
	}
}

func TestHandleAsk_MalformedBody(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	w := postAsk(t, s, `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleAsk_EmptyIndex(t *testing.T) {
	t.Parallel()
	s, fake := newTestServer(t)
	fake.err = medrag.ErrEmptyIndex

	w := postAsk(t, s, `{"question":"What is flu?"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Error, "ingestion") {
		t.Errorf("error body = %q, want an ingestion hint", resp.Error)
	}
}

func TestHandleAsk_InternalError(t *testing.T) {
	t.Parallel()
	s, fake := newTestServer(t)
	fake.err = errors.New("index exploded")

	w := postAsk(t, s, `{"question":"What is flu?"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "exploded") {
		t.Error("internal error details must not leak to the client")
	}
}

func TestHandleAsk_UngroundedAnswerStill200(t *testing.T) {
	t.Parallel()
	s, fake := newTestServer(t)
	fake.ans = answer.Answer{Text: answer.UnavailableMessage}

	w := postAsk(t, s, `{"question":"What is flu?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Grounded {
		t.Error("degraded answer must report grounded:false")
	}
	if resp.Citations == nil {
		t.Error("citations must encode as [] even when empty")
	}
}
