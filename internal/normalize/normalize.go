// Package normalize converts heterogeneous raw source units (structured
// question/answer pairs and long-form encyclopedia articles) into the
// uniform medrag.Record shape with stable identity and provenance metadata.
// Normalization is a pure transform: malformed units are reported per-unit
// and never abort a batch.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/medkb/medqa-go/internal/medrag"
)

// Kind discriminates the two raw unit shapes the pipeline accepts.
type Kind string

const (
	// KindQA is a structured question/answer pair (MedQuAD-style).
	KindQA Kind = "qa"
	// KindArticle is a scraped long-form article (MedlinePlus-style).
	KindArticle Kind = "article"
)

// RawUnit is one unit of source content as supplied by the external
// collaborators (the XML extractor, the web crawler). The pipeline never
// fetches or parses raw XML/HTML itself.
type RawUnit struct {
	// Kind selects the unit shape: "qa" or "article".
	Kind Kind `json:"kind"`

	// Question and Answer are set for qa units.
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`

	// Title, Body, and URL are set for article units.
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	URL   string `json:"url,omitempty"`

	// SourceName identifies the corpus the unit came from.
	SourceName string `json:"source_name,omitempty"`

	// SourceFile is the relative path of the originating file, when the
	// source is file-based.
	SourceFile string `json:"source_file,omitempty"`

	// Ordinal is the unit's position within its source file, used for
	// stable qa record identity.
	Ordinal int `json:"ordinal,omitempty"`
}

// defaultMinBodyLen matches the upstream crawler's guard against
// near-empty or boilerplate encyclopedia pages.
const defaultMinBodyLen = 100

// Normalizer turns RawUnits into Records.
type Normalizer struct {
	// minBodyLen is the minimum cleaned article body length; shorter
	// articles are rejected.
	minBodyLen int
}

// New constructs a Normalizer. minBodyLen <= 0 selects the default of 100.
func New(minBodyLen int) *Normalizer {
	if minBodyLen <= 0 {
		minBodyLen = defaultMinBodyLen
	}
	return &Normalizer{minBodyLen: minBodyLen}
}

// Normalize produces the Record for one raw unit. It returns a
// *medrag.ValidationError when required fields are missing or the text is
// too short; callers skip the unit and continue the batch.
//
// The same raw unit always yields the same record ID, which makes
// re-ingestion idempotent.
func (n *Normalizer) Normalize(unit RawUnit) (medrag.Record, error) {
	switch unit.Kind {
	case KindQA:
		return n.normalizeQA(unit)
	case KindArticle:
		return n.normalizeArticle(unit)
	default:
		return medrag.Record{}, &medrag.ValidationError{
			Unit:   unitLabel(unit),
			Reason: fmt.Sprintf("unknown kind %q", unit.Kind),
		}
	}
}

// normalizeQA renders "Question: {q}\nAnswer: {a}" so the embedding covers
// both halves of the pair.
func (n *Normalizer) normalizeQA(unit RawUnit) (medrag.Record, error) {
	question := strings.TrimSpace(unit.Question)
	answer := strings.TrimSpace(unit.Answer)
	if question == "" || answer == "" {
		return medrag.Record{}, &medrag.ValidationError{
			Unit:   unitLabel(unit),
			Reason: "qa unit requires both question and answer",
		}
	}

	return medrag.Record{
		ID:   fmt.Sprintf("%s#qa-%d", unit.SourceFile, unit.Ordinal),
		Text: fmt.Sprintf("Question: %s\nAnswer: %s", question, answer),
		Metadata: map[string]string{
			medrag.MetaQuestion:   question,
			medrag.MetaAnswer:     answer,
			medrag.MetaSourceName: unit.SourceName,
			medrag.MetaSourceFile: unit.SourceFile,
		},
	}, nil
}

// normalizeArticle keeps the title in metadata only; prepending it to the
// text would skew the embedding toward the title instead of the content.
func (n *Normalizer) normalizeArticle(unit RawUnit) (medrag.Record, error) {
	title := strings.TrimSpace(unit.Title)
	body := collapseWhitespace(unit.Body)
	if title == "" {
		return medrag.Record{}, &medrag.ValidationError{
			Unit:   unitLabel(unit),
			Reason: "article unit requires a title",
		}
	}
	if len(body) < n.minBodyLen {
		return medrag.Record{}, &medrag.ValidationError{
			Unit:   unitLabel(unit),
			Reason: fmt.Sprintf("article body is %d chars, below minimum %d", len(body), n.minBodyLen),
		}
	}

	return medrag.Record{
		ID:   articleID(unit, title),
		Text: body,
		Metadata: map[string]string{
			medrag.MetaTitle:      title,
			medrag.MetaURL:        unit.URL,
			medrag.MetaSourceName: unit.SourceName,
			medrag.MetaSourceFile: unit.SourceFile,
		},
	}, nil
}

// articleID derives a stable identifier from the article's URL, falling
// back to source name plus title for URL-less articles.
func articleID(unit RawUnit, title string) string {
	key := unit.URL
	if key == "" {
		key = unit.SourceName + "#" + title
	}
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("article#%x", h[:16])
}

// collapseWhitespace trims the text and squeezes internal runs of
// whitespace to single spaces, the way the upstream crawler cleans
// scraped page text.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// unitLabel identifies a unit for error reporting.
func unitLabel(unit RawUnit) string {
	if unit.SourceFile != "" {
		return fmt.Sprintf("%s#%d", unit.SourceFile, unit.Ordinal)
	}
	if unit.URL != "" {
		return unit.URL
	}
	return fmt.Sprintf("unit#%d", unit.Ordinal)
}
