package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

type state struct {
	tenants map[uuid.UUID]tenant.Tenant
	order   []uuid.UUID
	events  map[string]ledger.Entry
}

func (s *state) clone() *state {
	return &state{
		tenants: maps.Clone(s.tenants),
		order:   slices.Clone(s.order),
		events:  maps.Clone(s.events),
	}
}

// Store holds tenants and ledger entries in memory. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: &state{
		tenants: make(map[uuid.UUID]tenant.Tenant),
		events:  make(map[string]ledger.Entry),
	}}
}

// Put inserts or replaces a tenant. Tenant creation is outside the engine,
// so this is only used for seeding.
func (s *Store) Put(t tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.tenants[t.ID]; !ok {
		s.st.order = append(s.st.order, t.ID)
	}
	s.st.tenants[t.ID] = t
}

// Entries returns every ledger entry ordered by ReceivedAt.
func (s *Store) Entries() []ledger.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntries(s.st.events, func(ledger.Entry) bool { return true })
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.st}.Get(ctx, id)
}

func (s *Store) FindByCustomerID(ctx context.Context, customerID string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.st}.FindByCustomerID(ctx, customerID)
}

func (s *Store) ListAll(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.st}.ListAll(ctx)
}

func (s *Store) UpdateUsage(ctx context.Context, id uuid.UUID, u tenant.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.UpdateUsage(ctx, id, u)
}

func (s *Store) UpdateBilling(ctx context.Context, id uuid.UUID, b tenant.BillingRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.UpdateBilling(ctx, id, b)
}

func (s *Store) UpdateTier(ctx context.Context, id uuid.UUID, t tier.Tier, q tier.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.UpdateTier(ctx, id, t, q)
}

func (s *Store) Exists(ctx context.Context, externalEventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.st}.Exists(ctx, externalEventID)
}

func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.Append(ctx, e)
}

func (s *Store) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.st}.ListByTenant(ctx, tenantID)
}

// WithinTx runs fn against a copy of the state and publishes the copy only
// if fn succeeds. Units of work are serialized.
func (s *Store) WithinTx(ctx context.Context, fn ledger.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	v := view{staged}
	if err := fn(ctx, v, v); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func sortedEntries(events map[string]ledger.Entry, keep func(ledger.Entry) bool) []ledger.Entry {
	out := make([]ledger.Entry, 0, len(events))
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ExternalEventID < out[j].ExternalEventID
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out
}

var (
	_ tenant.Store      = (*Store)(nil)
	_ ledger.Ledger     = (*Store)(nil)
	_ ledger.UnitOfWork = (*Store)(nil)
)
