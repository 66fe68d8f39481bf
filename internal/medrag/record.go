// Package medrag defines the core types and interfaces for the medical
// question-answering retrieval pipeline: indexable records, vector index
// access, query-time retrieval, and the embedding/generation service
// contracts. Concrete backends (Qdrant, the in-memory index, the embedding
// and model clients) satisfy these interfaces so the pipeline layer never
// depends on a specific service.
package medrag

// Metadata keys carried on every Record. Together they are sufficient to
// reconstruct a human-readable citation for the record.
const (
	// MetaQuestion is the original question of a Q&A record.
	MetaQuestion = "question"
	// MetaAnswer is the original answer of a Q&A record.
	MetaAnswer = "answer"
	// MetaTitle is the article title of an encyclopedia record.
	MetaTitle = "title"
	// MetaURL is the source URL of an encyclopedia record, when known.
	MetaURL = "url"
	// MetaSourceName identifies the corpus a record came from
	// (e.g. "MedQuAD", "MedlinePlus Encyclopedia").
	MetaSourceName = "source_name"
	// MetaSourceFile is the relative path of the file the record was
	// extracted from, when the source is file-based.
	MetaSourceFile = "source_file"
)

// Record is one normalized, indexable unit of source content.
// ID is stable and derived from the source unit, so re-ingesting the same
// unit always addresses the same index entry. Text is the searchable body;
// Metadata carries provenance. Records are written once and never mutated
// after indexing.
type Record struct {
	// ID is the deterministic identifier, unique within the collection.
	ID string

	// Text is the non-empty searchable body of the record.
	Text string

	// Metadata holds provenance key-value pairs (see the Meta* constants).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval.
	// Scores are comparable only within a single query. Zero value means
	// the record did not come from a search.
	Score float32
}

// Citation is the human-readable provenance of one record, printed after
// every answer and returned by the HTTP API.
type Citation struct {
	// SourceName identifies the corpus (e.g. "MedQuAD").
	SourceName string `json:"source_name"`

	// Label is the record's question (Q&A sources) or title (articles).
	Label string `json:"label"`

	// URL is the source URL, or empty when the record has none.
	URL string `json:"url,omitempty"`
}

// Citation builds the citation for this record from its metadata.
// Q&A records are labelled by their question, article records by their
// title; a record with neither falls back to its source file path.
func (r Record) Citation() Citation {
	c := Citation{
		SourceName: r.Metadata[MetaSourceName],
		URL:        r.Metadata[MetaURL],
	}
	switch {
	case r.Metadata[MetaQuestion] != "":
		c.Label = r.Metadata[MetaQuestion]
	case r.Metadata[MetaTitle] != "":
		c.Label = r.Metadata[MetaTitle]
	default:
		c.Label = r.Metadata[MetaSourceFile]
	}
	return c
}
