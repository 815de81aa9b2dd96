package usage

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoSource reads records from a MongoDB collection whose documents carry
// a tenant_id string field.
type MongoSource struct {
	coll      *mongo.Collection
	batchSize int32
}

// MongoSourceOption configures a MongoSource.
type MongoSourceOption func(*MongoSource)

// WithBatchSize sets the cursor batch size.
func WithBatchSize(n int32) MongoSourceOption {
	return func(s *MongoSource) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewMongoSource creates a ContentStore backed by coll.
// Panics if coll is nil.
func NewMongoSource(coll *mongo.Collection, opts ...MongoSourceOption) *MongoSource {
	if coll == nil {
		panic("usage: mongo collection is required")
	}
	s := &MongoSource{coll: coll, batchSize: 500}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var recordProjection = bson.M{
	"_id":                   0,
	"content":               1,
	"transcription_text":    1,
	"analysis_summary":      1,
	"analysis_key_points":   1,
	"transcription_seconds": 1,
}

// ListTenantRecords opens a cursor over the tenant's documents.
func (s *MongoSource) ListTenantRecords(ctx context.Context, tenantID uuid.UUID) (RecordIterator, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"tenant_id": tenantID.String()},
		options.Find().SetProjection(recordProjection).SetBatchSize(s.batchSize),
	)
	if err != nil {
		return nil, err
	}
	return &cursorIterator{cur: cur}, nil
}

type cursorIterator struct {
	cur *mongo.Cursor
	rec Record
	err error
}

func (it *cursorIterator) Next(ctx context.Context) bool {
	if it.err != nil || !it.cur.Next(ctx) {
		return false
	}
	var r Record
	if err := it.cur.Decode(&r); err != nil {
		it.err = err
		return false
	}
	it.rec = r
	return true
}

func (it *cursorIterator) Record() Record { return it.rec }

func (it *cursorIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.cur.Err()
}

func (it *cursorIterator) Close(ctx context.Context) error {
	return it.cur.Close(ctx)
}
