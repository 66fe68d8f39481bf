package ingest

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/medkb/medqa-go/internal/medrag"
	"github.com/medkb/medqa-go/internal/normalize"
)

// Source is one stream of raw units to ingest. Units is a lazy sequence so
// large corpora never have to fit in memory; a non-nil error element marks
// a unit that could not be decoded.
type Source struct {
	// Name labels the source in reports and is applied as the default
	// source_name metadata for units that carry none.
	Name string

	// Units yields the raw units, or a decode error per bad unit.
	Units iter.Seq2[normalize.RawUnit, error]
}

// Runner drives ingestion mode: for each source it streams raw units
// through the normalizer into the writer, collecting per-source counts.
// Sources are independent: a failure in one never aborts the others.
type Runner struct {
	// normalizer converts raw units to records.
	normalizer *normalize.Normalizer

	// writer embeds and upserts the normalized records.
	writer *Writer

	// workers bounds how many sources are processed concurrently.
	workers int

	// log receives per-unit skip reports and progress.
	log *slog.Logger
}

// NewRunner constructs a Runner. workers <= 0 selects single-worker
// sequential ingestion; correctness never depends on concurrency.
func NewRunner(normalizer *normalize.Normalizer, writer *Writer, workers int, log *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{normalizer: normalizer, writer: writer, workers: workers, log: log}
}

// Run ingests all sources and returns the per-source reports plus totals.
// It never returns an error: per-source failures are captured in the
// reports, summarized, and left to the caller to surface.
func (r *Runner) Run(ctx context.Context, sources []Source) Summary {
	reports := make([]SourceReport, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, src := range sources {
		g.Go(func() error {
			reports[i] = r.runSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return Summarize(reports)
}

// runSource streams one source through normalize → write.
func (r *Runner) runSource(ctx context.Context, src Source) SourceReport {
	rep := SourceReport{Source: src.Name}

	records := func(yield func(medrag.Record) bool) {
		for unit, err := range src.Units {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				rep.Failed++
				r.log.Warn("ingest: unreadable unit",
					slog.String("source", src.Name),
					slog.Any("error", err),
				)
				continue
			}
			if unit.SourceName == "" {
				unit.SourceName = src.Name
			}

			rec, nerr := r.normalizer.Normalize(unit)
			if nerr != nil {
				rep.Rejected++
				r.log.Debug("ingest: unit rejected",
					slog.String("source", src.Name),
					slog.Any("reason", nerr),
				)
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}

	written, err := r.writer.Write(ctx, records)
	rep.Accepted = written
	if err != nil {
		rep.Err = err
		var chunkErr *ChunkError
		if errors.As(err, &chunkErr) {
			rep.Failed += chunkErr.Size
		}
		r.log.Warn("ingest: source aborted",
			slog.String("source", src.Name),
			slog.Int("written", written),
			slog.Any("error", err),
		)
	}
	return rep
}
