// Package batch writes enriched records to storage in fixed-size batches,
// one batch at a time, stopping at the first failed batch.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/busgeo/route-geocoder/internal/models"
)

// DefaultSize is the number of records written per batch.
const DefaultSize = 100

// ErrInvalidBatchSize is returned when the batch size is not positive.
var ErrInvalidBatchSize = errors.New("batch size must be greater than zero")

// Writer persists one batch with insert-or-update semantics keyed by record id.
type Writer interface {
	UpsertBatch(ctx context.Context, records []models.EnrichedRecord) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, records []models.EnrichedRecord) error

// UpsertBatch calls f.
func (f WriterFunc) UpsertBatch(ctx context.Context, records []models.EnrichedRecord) error {
	return f(ctx, records)
}

// Report describes the batches written so far.
type Report struct {
	TotalRecords int   `json:"total_records"`
	TotalBatches int   `json:"total_batches"`
	BatchSizes   []int `json:"batch_sizes"`
}

func (r *Report) add(size int) {
	r.TotalRecords += size
	r.TotalBatches++
	r.BatchSizes = append(r.BatchSizes, size)
}

// PersistError reports the batch that failed and what had been written
// before it. Earlier batches stay persisted.
type PersistError struct {
	BatchIndex int
	Offset     int
	Size       int
	Completed  Report
	Err        error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist batch %d (records %d-%d): %v", e.BatchIndex, e.Offset, e.Offset+e.Size-1, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Partition splits records into consecutive slices of at most size elements.
// The returned slices share the backing array of records.
func Partition[T any](records []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	batches := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end:end])
	}
	return batches, nil
}

// Run writes records through w in batches of size, strictly in order. The
// first failing batch stops the run and is returned as a *PersistError.
func Run(ctx context.Context, records []models.EnrichedRecord, size int, w Writer, logger zerolog.Logger) (Report, error) {
	report := Report{BatchSizes: []int{}}

	batches, err := Partition(records, size)
	if err != nil {
		return report, err
	}
	if w == nil {
		return report, errors.New("batch writer is required")
	}

	offset := 0
	for i, chunk := range batches {
		if err := w.UpsertBatch(ctx, chunk); err != nil {
			logger.Error().
				Err(err).
				Int("batch", i).
				Int("size", len(chunk)).
				Int("offset", offset).
				Msg("batch upsert failed")
			return report, &PersistError{
				BatchIndex: i,
				Offset:     offset,
				Size:       len(chunk),
				Completed:  report,
				Err:        err,
			}
		}
		report.add(len(chunk))
		offset += len(chunk)

		logger.Info().
			Int("batch", i).
			Int("size", len(chunk)).
			Int("done", offset).
			Int("total", len(records)).
			Msgf("Upserted %d rows (%d/%d)", len(chunk), offset, len(records))
	}

	return report, nil
}
