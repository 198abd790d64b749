// Package pipeline runs one reconciliation pass: load the reference stops,
// enrich every stored record's stop list, and write the results back in
// batches.
//
// Steps run strictly in sequence. A failure to read either source aborts the
// run before anything is written; a failed batch aborts the remaining ones.
// Stops without a reference entry never abort the run, they are collected in
// the Summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/busgeo/route-geocoder/internal/batch"
	"github.com/busgeo/route-geocoder/internal/config"
	"github.com/busgeo/route-geocoder/internal/geo"
	"github.com/busgeo/route-geocoder/internal/metrics"
	"github.com/busgeo/route-geocoder/internal/models"
)

// ErrSourceRead marks failures to read reference data or stored records.
var ErrSourceRead = errors.New("source read failed")

// ReferenceSource supplies raw reference entries.
type ReferenceSource interface {
	Load(ctx context.Context) ([]models.ReferenceEntry, error)
}

// RecordSource supplies the stored records to enrich.
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]models.StoredRecord, error)
}

// Runner wires the collaborators of a run.
type Runner struct {
	Reference ReferenceSource
	Records   RecordSource
	Writer    batch.Writer
	BatchSize int
	DryRun    bool
	Logger    zerolog.Logger
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	RunID            string                  `json:"run_id"`
	ReferenceEntries int                     `json:"reference_entries"`
	IndexSize        int                     `json:"index_size"`
	Fetched          int                     `json:"fetched"`
	Eligible         int                     `json:"eligible"`
	Skipped          int                     `json:"skipped"`
	Stops            int                     `json:"stops"`
	Resolved         int                     `json:"resolved"`
	Misses           []geo.Miss              `json:"misses"`
	MissesByName     []geo.NameCount         `json:"misses_by_name"`
	Batches          batch.Report            `json:"batches"`
	DryRun           bool                    `json:"dry_run"`
	Duration         time.Duration           `json:"duration"`
	Records          []models.EnrichedRecord `json:"-"`
}

// Prepared is the output of the read and enrich phases.
type Prepared struct {
	Index   *geo.Index
	Records []models.EnrichedRecord
	Diag    *geo.Diagnostics
	Entries int
	Fetched int
	Skipped int
	Stops   int
}

// Prepare loads both sources and enriches every eligible record. It writes
// nothing.
func (r *Runner) Prepare(ctx context.Context) (*Prepared, error) {
	if r.Reference == nil || r.Records == nil {
		return nil, fmt.Errorf("%w: reference and record sources are required", config.ErrInvalid)
	}

	entries, err := r.Reference.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reference data: %w", ErrSourceRead, err)
	}
	idx := geo.Build(entries)
	metrics.ReferenceEntries.Set(float64(idx.Len()))
	r.Logger.Info().
		Int("entries", len(entries)).
		Int("dropped", idx.Dropped()).
		Int("duplicates", idx.Duplicates()).
		Msgf("Loaded %d geocoded stops", idx.Len())

	stored, err := r.Records.FetchRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: stored records: %w", ErrSourceRead, err)
	}
	r.Logger.Info().Int("records", len(stored)).Msgf("Found %d records", len(stored))

	p := &Prepared{
		Index:   idx,
		Records: make([]models.EnrichedRecord, 0, len(stored)),
		Diag:    &geo.Diagnostics{},
		Entries: len(entries),
		Fetched: len(stored),
	}

	for _, rec := range stored {
		names, ok := models.NameList(rec.Names)
		if !ok {
			p.Skipped++
			metrics.RecordsTotal.WithLabelValues("skipped").Inc()
			r.Logger.Debug().Int64("record_id", rec.ID).Msg("names is not a list, skipping")
			continue
		}

		recordID := rec.ID
		stops := geo.Enrich(names, idx, func(pos int, name string) {
			p.Diag.Record(geo.Miss{RecordID: recordID, Position: pos, Name: name})
			r.Logger.Warn().
				Int64("record_id", recordID).
				Int("position", pos).
				Str("stop", name).
				Msgf("No geocode found for stop %q", name)
		})
		p.Stops += len(stops)
		p.Records = append(p.Records, models.EnrichedRecord{ID: rec.ID, Names: stops})
		metrics.RecordsTotal.WithLabelValues("enriched").Inc()
	}

	metrics.StopsTotal.WithLabelValues("miss").Add(float64(p.Diag.Len()))
	metrics.StopsTotal.WithLabelValues("hit").Add(float64(p.Stops - p.Diag.Len()))
	r.Logger.Info().Int("updates", len(p.Records)).Msgf("Prepared updates for %d records", len(p.Records))

	return p, nil
}

// Run executes a full pass and returns its summary. The summary is filled
// as far as the run got even when an error is returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{
		RunID:  ulid.Make().String(),
		DryRun: r.DryRun,
	}

	run := *r
	run.Logger = r.Logger.With().Str("run_id", summary.RunID).Logger()
	return run.execute(ctx, start, summary)
}

func (r *Runner) execute(ctx context.Context, start time.Time, summary Summary) (Summary, error) {
	finish := func(err error) (Summary, error) {
		summary.Duration = time.Since(start)
		metrics.RunDuration.Set(summary.Duration.Seconds())
		metrics.RunsTotal.WithLabelValues(Outcome(err)).Inc()
		if err == nil {
			metrics.LastRunSuccess.SetToCurrentTime()
		}
		r.logSummary(summary, err)
		return summary, err
	}

	if r.BatchSize <= 0 {
		return finish(fmt.Errorf("%w: %w", config.ErrInvalid, batch.ErrInvalidBatchSize))
	}
	if r.Writer == nil && !r.DryRun {
		return finish(fmt.Errorf("%w: batch writer is required", config.ErrInvalid))
	}

	p, err := r.Prepare(ctx)
	if err != nil {
		return finish(err)
	}
	summary.ReferenceEntries = p.Entries
	summary.IndexSize = p.Index.Len()
	summary.Fetched = p.Fetched
	summary.Eligible = len(p.Records)
	summary.Skipped = p.Skipped
	summary.Stops = p.Stops
	summary.Resolved = p.Stops - p.Diag.Len()
	summary.Misses = p.Diag.Misses()
	summary.MissesByName = p.Diag.ByName()
	summary.Records = p.Records

	summary.Batches, err = batch.Run(ctx, p.Records, r.BatchSize, r.writer(), r.Logger)
	return finish(err)
}

// writer wraps the configured writer with metrics, or returns a logging no-op
// on dry runs.
func (r *Runner) writer() batch.Writer {
	if r.DryRun {
		return batch.WriterFunc(func(_ context.Context, records []models.EnrichedRecord) error {
			metrics.BatchesTotal.WithLabelValues("dry_run").Inc()
			for _, rec := range records {
				r.Logger.Info().
					Int64("record_id", rec.ID).
					Int("stops", len(rec.Names)).
					Msg("dry-run: would upsert record")
			}
			return nil
		})
	}
	return batch.WriterFunc(func(ctx context.Context, records []models.EnrichedRecord) error {
		started := time.Now()
		err := r.Writer.UpsertBatch(ctx, records)
		metrics.BatchDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.BatchesTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.BatchesTotal.WithLabelValues("success").Inc()
		return nil
	})
}

func (r *Runner) logSummary(s Summary, err error) {
	ev := r.Logger.Info()
	if err != nil {
		ev = r.Logger.Error().Err(err)
	}

	missed := zerolog.Arr()
	for _, nc := range s.MissesByName {
		missed.Dict(zerolog.Dict().Str("stop", nc.Name).Int("count", nc.Count))
	}

	ev.
		Int("fetched", s.Fetched).
		Int("eligible", s.Eligible).
		Int("skipped", s.Skipped).
		Int("stops", s.Stops).
		Int("resolved", s.Resolved).
		Int("misses", len(s.Misses)).
		Int("distinct_misses", len(s.MissesByName)).
		Array("missed_stops", missed).
		Int("batches", s.Batches.TotalBatches).
		Int("written", s.Batches.TotalRecords).
		Bool("dry_run", s.DryRun).
		Dur("duration", s.Duration).
		Msg("run finished")
}

// Outcome classifies err for metrics and exit codes.
func Outcome(err error) string {
	var perr *batch.PersistError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, config.ErrInvalid), errors.Is(err, batch.ErrInvalidBatchSize):
		return "config_error"
	case errors.Is(err, ErrSourceRead):
		return "source_error"
	case errors.As(err, &perr):
		return "persist_error"
	default:
		return "error"
	}
}
