// Package answer implements the query half of the pipeline downstream of
// retrieval: assembling retrieved records into a bounded context block,
// building the grounding prompt, and synthesizing the final cited answer.
package answer

import (
	"strings"

	"github.com/medkb/medqa-go/internal/medrag"
)

// segmentSeparator joins record texts inside the context block.
const segmentSeparator = "\n\n"

// ContextBlock is the bounded concatenation of retrieved record texts,
// with citations index-aligned to the included segments: Citations[i]
// always belongs to the i-th segment of Text. Truncation drops trailing
// records and their citations together, never one without the other.
type ContextBlock struct {
	// Text is the concatenated record texts, best match first.
	Text string

	// Citations has exactly one entry per included record.
	Citations []medrag.Citation

	// Truncated is true when the character budget dropped trailing records,
	// or when a single oversized first record blew the budget.
	Truncated bool
}

// Empty reports whether no records made it into the block.
func (b ContextBlock) Empty() bool { return len(b.Citations) == 0 }

// Assemble selects a greedy prefix of the ranked records that fits within
// maxChars and concatenates their texts. It never splits a record across
// the boundary. If even the first record exceeds the budget it is included
// whole (the context must never be empty when at least one record was
// retrieved) and the block is flagged truncated. maxChars <= 0 disables
// the budget.
func Assemble(records []medrag.Record, maxChars int) ContextBlock {
	var block ContextBlock
	if len(records) == 0 {
		return block
	}

	var b strings.Builder
	for i, rec := range records {
		needed := len(rec.Text)
		if i > 0 {
			needed += len(segmentSeparator)
		}
		if maxChars > 0 && b.Len()+needed > maxChars {
			if i == 0 {
				// Oversized first record: keep it whole rather than
				// answering from nothing.
				b.WriteString(rec.Text)
				block.Citations = append(block.Citations, rec.Citation())
			}
			block.Truncated = true
			break
		}
		if i > 0 {
			b.WriteString(segmentSeparator)
		}
		b.WriteString(rec.Text)
		block.Citations = append(block.Citations, rec.Citation())
	}

	block.Text = b.String()
	return block
}
