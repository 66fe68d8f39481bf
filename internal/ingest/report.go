package ingest

import (
	"fmt"
	"strings"
)

// SourceReport holds the per-source outcome of one ingestion run.
type SourceReport struct {
	// Source is the source label.
	Source string

	// Accepted is the number of records actually written to the index.
	Accepted int

	// Rejected is the number of units the normalizer refused (too short,
	// missing fields).
	Rejected int

	// Failed is the number of units that could not be read or landed in a
	// failed chunk.
	Failed int

	// Err is the error that aborted this source, nil when it completed.
	Err error
}

// Summary aggregates the reports of one ingestion run.
type Summary struct {
	// Reports are the per-source outcomes, in source order.
	Reports []SourceReport

	// Accepted, Rejected, and Failed are totals across all sources.
	Accepted int
	Rejected int
	Failed   int
}

// Summarize computes run totals from per-source reports.
func Summarize(reports []SourceReport) Summary {
	s := Summary{Reports: reports}
	for _, r := range reports {
		s.Accepted += r.Accepted
		s.Rejected += r.Rejected
		s.Failed += r.Failed
	}
	return s
}

// HasFailures reports whether any source ended with an error.
func (s Summary) HasFailures() bool {
	for _, r := range s.Reports {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// String renders the run summary for CLI output.
func (s Summary) String() string {
	var b strings.Builder
	for _, r := range s.Reports {
		fmt.Fprintf(&b, "%s: accepted=%d rejected=%d failed=%d", r.Source, r.Accepted, r.Rejected, r.Failed)
		if r.Err != nil {
			fmt.Fprintf(&b, " error=%v", r.Err)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "total: accepted=%d rejected=%d failed=%d", s.Accepted, s.Rejected, s.Failed)
	return b.String()
}
