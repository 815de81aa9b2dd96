package usage

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemorySource is an in-memory ContentStore.
type MemorySource struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]Record
	err     error
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{records: make(map[uuid.UUID][]Record)}
}

// Add appends records for the tenant.
func (s *MemorySource) Add(tenantID uuid.UUID, records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tenantID] = append(s.records[tenantID], records...)
}

// Reset drops all records of the tenant.
func (s *MemorySource) Reset(tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tenantID)
}

// FailWith makes subsequent listings fail with err. Pass nil to recover.
func (s *MemorySource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ListTenantRecords returns an iterator over a copy of the tenant's records.
func (s *MemorySource) ListTenantRecords(ctx context.Context, tenantID uuid.UUID) (RecordIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, len(s.records[tenantID]))
	for i, r := range s.records[tenantID] {
		r.AnalysisKeyPoints = slices.Clone(r.AnalysisKeyPoints)
		records[i] = r
	}
	return newSliceIterator(records), nil
}
