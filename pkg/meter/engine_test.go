package meter_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/memstore"
	"github.com/dmitrymomot/meterkit/pkg/meter"
	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/trigger"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

const webhookSecret = "whsec_engine"

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type sent struct {
	to   notify.Recipient
	kind notify.TemplateKind
	v    notify.Violation
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sent
}

func (d *recordingDispatcher) Send(_ context.Context, to notify.Recipient, kind notify.TemplateKind, v notify.Violation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sent{to: to, kind: kind, v: v})
	return nil
}

func (d *recordingDispatcher) all() []sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sent(nil), d.sent...)
}

// smallPolicies scales quotas down to bytes so tests can hold the content in memory.
func smallPolicies() *tier.Table {
	return tier.NewTable(map[tier.Tier]tier.Policy{
		tier.Starter: {Tier: tier.Starter, Name: "Starter", Quota: tier.Quota{StorageBytes: 1000, Minutes: 60}},
		tier.Growth:  {Tier: tier.Growth, Name: "Growth", Quota: tier.Quota{StorageBytes: 10_000, Minutes: 600}, PriceRef: "price_growth"},
	})
}

type env struct {
	store      *memstore.Store
	content    *usage.MemorySource
	dispatcher *recordingDispatcher
	engine     *meter.Engine
}

func newEnv(opts ...meter.Option) *env {
	e := &env{
		store:      memstore.New(),
		content:    usage.NewMemorySource(),
		dispatcher: &recordingDispatcher{},
	}
	opts = append([]meter.Option{
		meter.WithPolicies(smallPolicies()),
		meter.WithDispatcher(e.dispatcher),
		meter.WithWebhookParsers(billing.NewStripeWebhookParser(webhookSecret)),
		meter.WithClock(func() time.Time { return now }),
	}, opts...)
	e.engine = meter.New(e.content, e.store, opts...)
	return e
}

func (e *env) addTenant(tr tier.Tier, contentBytes int) uuid.UUID {
	id := uuid.New()
	p := smallPolicies().Resolve(tr)
	e.store.Put(tenant.Tenant{ID: id, Name: "Acme", Email: "owner@acme.test", Tier: p.Tier, Quota: p.Quota})
	if contentBytes > 0 {
		e.content.Add(id, usage.Record{Content: strings.Repeat("a", contentBytes)})
	}
	return id
}

func signedStripeEvent(id, typ, object string) ([]byte, string) {
	payload := []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":%d,"api_version":"2024-09-30.acacia","data":{"object":%s}}`,
		id, typ, now.Add(-time.Hour).Unix(), object))
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + "." + string(payload)))
	return payload, fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestEngine_Reconcile(t *testing.T) {
	t.Parallel()

	e := newEnv()
	warn := e.addTenant(tier.Starter, 850)
	ok := e.addTenant(tier.Starter, 100)

	s, err := e.engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Succeeded)
	assert.Zero(t, s.Failed)

	got := e.dispatcher.all()
	require.Len(t, got, 1)
	assert.Equal(t, warn, got[0].v.TenantID)
	assert.Equal(t, notify.TemplateUsageWarning, got[0].kind)
	assert.Equal(t, "owner@acme.test", got[0].to.Ref)

	stored, err := e.engine.Tenant(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.Usage.StorageBytes)

	// same usage in the same period does not notify again
	_, err = e.engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, e.dispatcher.all(), 1)

	res, err := e.engine.ReconcileOne(context.Background(), warn)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, int64(850), res.Snapshot.TotalBytes)

	snap, err := e.engine.ComputeUsage(context.Background(), warn)
	require.NoError(t, err)
	assert.Equal(t, now, snap.ComputedAt)
}

func TestEngine_HandleWebhook(t *testing.T) {
	t.Parallel()

	e := newEnv()
	id := e.addTenant(tier.Starter, 0)

	payload, sig := signedStripeEvent("evt_upgrade", "customer.subscription.updated", fmt.Sprintf(
		`{"id":"sub_1","object":"subscription","customer":"cus_1","status":"active","current_period_start":%d,"current_period_end":%d,"metadata":{"tenant_id":%q},"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_growth","object":"price"}}]}}`,
		now.AddDate(0, 0, -14).Unix(), now.AddDate(0, 0, 16).Unix(), id))

	require.NoError(t, e.engine.HandleWebhook(context.Background(), billing.ProviderStripe, payload, sig))
	// redelivery is a no-op
	require.NoError(t, e.engine.HandleWebhook(context.Background(), billing.ProviderStripe, payload, sig))

	got, err := e.engine.Tenant(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, tier.Growth, got.Tier)
	assert.Equal(t, int64(10_000), got.Quota.StorageBytes)
	assert.Equal(t, tenant.StatusActive, got.Billing.Status)
	assert.Equal(t, "cus_1", got.Billing.CustomerID)

	events, err := e.engine.BillingEvents(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.StatusApplied, events[0].Status)

	t.Run("bad signature", func(t *testing.T) {
		err := e.engine.HandleWebhook(context.Background(), billing.ProviderStripe, payload, "t=1,v1=00")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("unsupported event", func(t *testing.T) {
		payload, sig := signedStripeEvent("evt_other", "customer.created", `{"id":"cus_2","object":"customer"}`)
		err := e.engine.HandleWebhook(context.Background(), billing.ProviderStripe, payload, sig)
		assert.ErrorIs(t, err, billing.ErrUnsupportedEvent)
	})

	t.Run("unknown provider", func(t *testing.T) {
		err := e.engine.HandleWebhook(context.Background(), "braintree", payload, sig)
		assert.ErrorIs(t, err, meter.ErrUnknownProvider)
	})
}

func TestEngine_WithoutProcessor(t *testing.T) {
	t.Parallel()

	e := newEnv()
	id := e.addTenant(tier.Starter, 0)

	_, err := e.engine.CreateSubscription(context.Background(), id, "price_growth")
	assert.ErrorIs(t, err, billing.ErrProcessorNotConfigured)
	assert.Equal(t, []string{billing.ProviderStripe}, e.engine.Providers())
}

func TestEngine_Schedule(t *testing.T) {
	t.Parallel()

	e := newEnv()
	id := e.addTenant(tier.Starter, 1200)

	runner, err := e.engine.Schedule(trigger.Every(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{meter.ReconcileJob}, runner.Jobs())

	require.NoError(t, runner.RunNow(context.Background(), meter.ReconcileJob))

	got := e.dispatcher.all()
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].v.TenantID)
	assert.Equal(t, notify.TemplateUsageOverage, got[0].kind)
	assert.Equal(t, int64(200), got[0].v.OverageBytes)
}

func TestConfig(t *testing.T) {
	t.Parallel()

	cfg := meter.Config{ReconcileInterval: "daily at 02:30"}
	s, err := cfg.Schedule()
	require.NoError(t, err)
	assert.Equal(t, "daily at 02:30", s.String())

	table, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, tier.Growth, table.Resolve(tier.Growth).Tier)

	_, err = meter.Config{TiersFile: "testdata/missing.yaml"}.Policies()
	assert.ErrorIs(t, err, tier.ErrFailedToLoadTiers)

	_, err = meter.Config{ReconcileInterval: "sometimes"}.Schedule()
	assert.ErrorIs(t, err, trigger.ErrInvalidSchedule)
}
