package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Aggregator computes usage snapshots from a ContentStore.
// Nothing is cached between calls.
type Aggregator struct {
	store ContentStore
	now   func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock overrides the time source used for Snapshot.ComputedAt.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an Aggregator over store.
// Panics if store is nil.
func NewAggregator(store ContentStore, opts ...AggregatorOption) *Aggregator {
	if store == nil {
		panic("usage: ContentStore is required")
	}

	a := &Aggregator{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeUsage streams every record of the tenant and returns its snapshot.
// A tenant without records yields an all-zero snapshot. Any store, iterator
// or decode failure is wrapped in ErrDataSource.
func (a *Aggregator) ComputeUsage(ctx context.Context, tenantID uuid.UUID) (Snapshot, error) {
	it, err := a.store.ListTenantRecords(ctx, tenantID)
	if err != nil {
		return Snapshot{}, errors.Join(ErrDataSource, err)
	}

	var (
		b       Breakdown
		items   int64
		seconds int64
	)
	for it.Next(ctx) {
		r := it.Record()
		b.Content += int64(len(r.Content))
		b.Transcription += int64(len(r.TranscriptionText))
		b.Analysis += int64(len(r.AnalysisSummary)) + KeyPointBytes*int64(len(r.AnalysisKeyPoints))
		b.Metadata += MetadataOverheadBytes
		seconds += max(r.TranscriptionSeconds, 0)
		items++
	}

	iterErr := it.Err()
	closeErr := it.Close(ctx)
	if iterErr != nil {
		return Snapshot{}, errors.Join(ErrDataSource, fmt.Errorf("tenant %s: %w", tenantID, iterErr))
	}
	if closeErr != nil {
		return Snapshot{}, errors.Join(ErrDataSource, closeErr)
	}

	return Snapshot{
		TenantID:             tenantID,
		TotalBytes:           b.Sum(),
		Breakdown:            b,
		ItemCount:            items,
		TranscriptionMinutes: (seconds + 59) / 60,
		ComputedAt:           a.now().UTC(),
	}, nil
}
