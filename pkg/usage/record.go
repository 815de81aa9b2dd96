package usage

import (
	"context"

	"github.com/google/uuid"
)

// Record is the byte-countable projection of a stored content item.
// Missing fields are zero values, never an error.
type Record struct {
	Content              string   `bson:"content" json:"content"`
	TranscriptionText    string   `bson:"transcription_text" json:"transcription_text"`
	AnalysisSummary      string   `bson:"analysis_summary" json:"analysis_summary"`
	AnalysisKeyPoints    []string `bson:"analysis_key_points" json:"analysis_key_points"`
	TranscriptionSeconds int64    `bson:"transcription_seconds" json:"transcription_seconds"`
}

// RecordIterator streams records. Next returns false when the stream is
// exhausted or failed; Err tells the two apart.
type RecordIterator interface {
	Next(ctx context.Context) bool
	Record() Record
	Err() error
	Close(ctx context.Context) error
}

// ContentStore lists the records owned by a tenant.
type ContentStore interface {
	ListTenantRecords(ctx context.Context, tenantID uuid.UUID) (RecordIterator, error)
}

// sliceIterator iterates over an in-memory copy of records.
type sliceIterator struct {
	records []Record
	pos     int
	closed  bool
	err     error
}

func newSliceIterator(records []Record) *sliceIterator {
	return &sliceIterator{records: records, pos: -1}
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.closed {
		it.err = ErrIteratorClosed
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.pos+1 >= len(it.records) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Record() Record {
	if it.pos < 0 || it.pos >= len(it.records) {
		return Record{}
	}
	return it.records[it.pos]
}

func (it *sliceIterator) Err() error {
	return it.err
}

func (it *sliceIterator) Close(context.Context) error {
	it.closed = true
	return nil
}
