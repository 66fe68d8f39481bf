package store

import (
	"context"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecentAnswers(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordAnswer(ctx, Answer{
		Question:  "What is influenza?",
		Text:      "Influenza is a contagious respiratory illness.",
		Grounded:  true,
		Citations: 3,
	}); err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if err := s.RecordAnswer(ctx, Answer{
		Question: "What is xyzzy?",
		Text:     "The available information does not cover this question.",
	}); err != nil {
		t.Fatalf("record ungrounded answer: %v", err)
	}

	answers, err := s.RecentAnswers(ctx, 10)
	if err != nil {
		t.Fatalf("recent answers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("want 2 answers, got %d", len(answers))
	}
	// Newest first.
	if answers[0].Question != "What is xyzzy?" {
		t.Errorf("answers[0].Question = %q, want the newest question", answers[0].Question)
	}
	if answers[0].Grounded {
		t.Error("answers[0] should be ungrounded")
	}
	if !answers[1].Grounded || answers[1].Citations != 3 {
		t.Errorf("answers[1]: grounded=%v citations=%d, want grounded with 3 citations",
			answers[1].Grounded, answers[1].Citations)
	}
}

func Test_Store_RecentAnswersLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.RecordAnswer(ctx, Answer{Question: "q", Text: "a", Grounded: true}); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	answers, err := s.RecentAnswers(ctx, 4)
	if err != nil {
		t.Fatalf("recent answers: %v", err)
	}
	if len(answers) != 4 {
		t.Errorf("want 4 answers, got %d", len(answers))
	}
}

func Test_Store_RecordIngestRunAtomic(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	runs := []IngestRun{
		{Source: "medquad", Accepted: 120, Rejected: 4, Failed: 0},
		{Source: "medlineplus", Accepted: 30, Rejected: 2, Failed: 1},
	}
	if err := s.RecordIngestRun(ctx, runs); err != nil {
		t.Fatalf("record ingest run: %v", err)
	}

	got, err := s.RecentIngestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("recent ingest runs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 run rows, got %d", len(got))
	}
	bySource := map[string]IngestRun{}
	for _, r := range got {
		bySource[r.Source] = r
	}
	if r := bySource["medquad"]; r.Accepted != 120 || r.Rejected != 4 {
		t.Errorf("medquad row = %+v", r)
	}
	if r := bySource["medlineplus"]; r.Failed != 1 {
		t.Errorf("medlineplus row = %+v", r)
	}
}

func Test_Store_RecordIngestRunEmptyIsNoop(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordIngestRun(ctx, nil); err != nil {
		t.Fatalf("record empty ingest run: %v", err)
	}
	got, err := s.RecentIngestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("recent ingest runs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want 0 run rows, got %d", len(got))
	}
}

func Test_Store_EmptyHistoryReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	answers, err := s.RecentAnswers(ctx, 10)
	if err != nil {
		t.Fatalf("recent answers empty: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("want 0 answers, got %d", len(answers))
	}
}
