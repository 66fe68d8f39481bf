package medrag

import (
	"context"
	"testing"
)

func qaRecord(id, question, answer, source string) Record {
	return Record{
		ID:   id,
		Text: "Question: " + question + "\nAnswer: " + answer,
		Metadata: map[string]string{
			MetaQuestion:   question,
			MetaAnswer:     answer,
			MetaSourceName: source,
		},
	}
}

func TestMemoryIndex_SearchOrdersByCosineSimilarity(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex()
	ctx := context.Background()

	records := []Record{
		qaRecord("a", "What is influenza?", "A viral infection.", "MedQuAD"),
		qaRecord("b", "What causes diabetes?", "Insulin resistance.", "MedQuAD"),
		qaRecord("c", "What is hypertension?", "High blood pressure.", "MedQuAD"),
	}
	// Unit vectors at increasing angles from the query direction.
	vectors := [][]float32{
		{0.5, 0.5},
		{1, 0},
		{0, 1},
	}
	if err := idx.Upsert(ctx, records, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := idx.Search(ctx, []float32{1, 0}, 3, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	wantOrder := []string{"b", "a", "c"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("result %d: expected ID %q, got %q", i, id, got[i].ID)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at index %d: %f > %f", i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestMemoryIndex_SearchRespectsTopK(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex()
	ctx := context.Background()

	records := []Record{
		qaRecord("a", "q1", "a1", "MedQuAD"),
		qaRecord("b", "q2", "a2", "MedQuAD"),
		qaRecord("c", "q3", "a3", "MedQuAD"),
	}
	vectors := [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}
	if err := idx.Upsert(ctx, records, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := idx.Search(ctx, []float32{1, 0}, 2, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results with topK=2, got %d", len(got))
	}

	// Asking for more than the index holds returns everything.
	got, err = idx.Search(ctx, []float32{1, 0}, 10, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all 3 results with topK=10, got %d", len(got))
	}
}

func TestMemoryIndex_SearchFiltersByMetadata(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex()
	ctx := context.Background()

	records := []Record{
		qaRecord("a", "q1", "a1", "MedQuAD"),
		qaRecord("b", "q2", "a2", "MedlinePlus Encyclopedia"),
		qaRecord("c", "q3", "a3", "MedQuAD"),
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	if err := idx.Upsert(ctx, records, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := idx.Search(ctx, []float32{1, 0}, 10, SearchOptions{
		Filter: map[string]string{MetaSourceName: "MedQuAD"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 MedQuAD results, got %d", len(got))
	}
	for _, rec := range got {
		if rec.Metadata[MetaSourceName] != "MedQuAD" {
			t.Errorf("record %q leaked through source filter", rec.ID)
		}
	}
}

func TestMemoryIndex_SearchMinScoreCutoff(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex()
	ctx := context.Background()

	records := []Record{
		qaRecord("near", "q1", "a1", "MedQuAD"),
		qaRecord("far", "q2", "a2", "MedQuAD"),
	}
	// "near" is parallel to the query, "far" is orthogonal.
	vectors := [][]float32{{1, 0}, {0, 1}}
	if err := idx.Upsert(ctx, records, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := idx.Search(ctx, []float32{1, 0}, 10, SearchOptions{MinScore: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result above threshold, got %d", len(got))
	}
	if got[0].ID != "near" {
		t.Errorf("expected record %q, got %q", "near", got[0].ID)
	}
}

func TestMemoryIndex_UpsertLastWriteWins(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex()
	ctx := context.Background()

	first := qaRecord("dup", "What is flu?", "Old answer.", "MedQuAD")
	if err := idx.Upsert(ctx, []Record{first}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second := qaRecord("dup", "What is flu?", "New answer.", "MedQuAD")
	if err := idx.Upsert(ctx, []Record{second}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry after re-upsert, got %d", count)
	}

	got, err := idx.Search(ctx, []float32{1, 0}, 1, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got[0].Metadata[MetaAnswer] != "New answer." {
		t.Errorf("expected overwritten answer, got %q", got[0].Metadata[MetaAnswer])
	}
}

func TestMemoryIndex_UpsertLengthMismatch(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex()
	err := idx.Upsert(context.Background(), []Record{{ID: "a", Text: "t"}}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched records/embeddings lengths")
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRecordCitation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		record    Record
		wantLabel string
	}{
		{
			name:      "qa record labelled by question",
			record:    qaRecord("a", "What is flu?", "A virus.", "MedQuAD"),
			wantLabel: "What is flu?",
		},
		{
			name: "article labelled by title",
			record: Record{
				ID: "b",
				Metadata: map[string]string{
					MetaTitle:      "Influenza",
					MetaSourceName: "MedlinePlus Encyclopedia",
					MetaURL:        "https://medlineplus.gov/ency/article/000080.htm",
				},
			},
			wantLabel: "Influenza",
		},
		{
			name: "fallback to source file",
			record: Record{
				ID:       "c",
				Metadata: map[string]string{MetaSourceFile: "data/records.jsonl"},
			},
			wantLabel: "data/records.jsonl",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := tt.record.Citation()
			if c.Label != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, c.Label)
			}
		})
	}
}
