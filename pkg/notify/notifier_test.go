package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/email"
	"github.com/dmitrymomot/meterkit/pkg/memstore"
	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/tenant"
	"github.com/dmitrymomot/meterkit/pkg/tier"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(ctx context.Context, to notify.Recipient, kind notify.TemplateKind, v notify.Violation) error {
	return m.Called(ctx, to, kind, v).Error(0)
}

type failingMarker struct{}

func (failingMarker) Mark(context.Context, uuid.UUID, time.Time, notify.Bucket) (bool, error) {
	return false, notify.ErrMarkerFailure
}

func (failingMarker) Unmark(context.Context, uuid.UUID, time.Time, notify.Bucket) error {
	return notify.ErrMarkerFailure
}

type captureSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (s *captureSender) SendEmail(_ context.Context, p email.SendEmailParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p)
	return nil
}

var period = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func violation(id uuid.UUID, bucket notify.Bucket) notify.Violation {
	return notify.Violation{
		TenantID:    id,
		Tier:        tier.Growth,
		Percent:     float64(bucket) + 5,
		Bucket:      bucket,
		TotalBytes:  8_500_000_000,
		QuotaBytes:  10_000_000_000,
		OverageCost: decimal.Zero,
		PeriodStart: period,
	}
}

func staticRecipient(ref string) notify.RecipientResolver {
	return notify.RecipientFunc(func(context.Context, uuid.UUID) (notify.Recipient, error) {
		return notify.Recipient{Ref: ref}, nil
	})
}

func TestBucketFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, notify.BucketNone, notify.BucketFor(79.999))
	assert.Equal(t, notify.BucketWarning, notify.BucketFor(80))
	assert.Equal(t, notify.BucketWarning, notify.BucketFor(99.9))
	assert.Equal(t, notify.BucketOverLimit, notify.BucketFor(100))
	assert.Equal(t, notify.TemplateUsageWarning, notify.BucketWarning.Template())
	assert.Equal(t, notify.TemplateUsageOverage, notify.BucketOverLimit.Template())
}

func TestNotifier_DeduplicatesPerBucketAndPeriod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	id := uuid.New()
	d := &mockDispatcher{}
	d.On("Send", mock.Anything, notify.Recipient{Ref: "ops@acme.test"}, notify.TemplateUsageWarning, mock.Anything).Return(nil).Once()
	d.On("Send", mock.Anything, notify.Recipient{Ref: "ops@acme.test"}, notify.TemplateUsageOverage, mock.Anything).Return(nil).Once()

	n := notify.New(d, staticRecipient("ops@acme.test"))

	n.Notify(ctx, violation(id, notify.BucketWarning))
	n.Notify(ctx, violation(id, notify.BucketWarning)) // same bucket, same period
	n.Notify(ctx, violation(id, notify.BucketOverLimit))
	n.Notify(ctx, violation(id, notify.BucketOverLimit))

	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Send", 2)
}

func TestNotifier_NewPeriodNotifiesAgain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	id := uuid.New()
	d := &mockDispatcher{}
	d.On("Send", mock.Anything, mock.Anything, notify.TemplateUsageWarning, mock.Anything).Return(nil).Twice()

	n := notify.New(d, staticRecipient("ops@acme.test"))
	v := violation(id, notify.BucketWarning)
	n.Notify(ctx, v)
	v.PeriodStart = period.AddDate(0, 1, 0)
	n.Notify(ctx, v)

	d.AssertExpectations(t)
}

func TestNotifier_OverLimitSuppressesLaterWarning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	id := uuid.New()
	d := &mockDispatcher{}
	d.On("Send", mock.Anything, mock.Anything, notify.TemplateUsageOverage, mock.Anything).Return(nil).Once()

	n := notify.New(d, staticRecipient("ops@acme.test"))
	n.Notify(ctx, violation(id, notify.BucketOverLimit))
	n.Notify(ctx, violation(id, notify.BucketWarning))

	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Send", 1)
}

func TestNotifier_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("marker failure still sends", func(t *testing.T) {
		t.Parallel()
		d := &mockDispatcher{}
		d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		n := notify.New(d, staticRecipient("ops@acme.test"), notify.WithMarker(failingMarker{}))
		n.Notify(ctx, violation(uuid.New(), notify.BucketWarning))
		d.AssertExpectations(t)
	})

	t.Run("dispatch failure is swallowed", func(t *testing.T) {
		t.Parallel()
		d := &mockDispatcher{}
		d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		n := notify.New(d, staticRecipient("ops@acme.test"))
		assert.NotPanics(t, func() { n.Notify(ctx, violation(uuid.New(), notify.BucketWarning)) })
		d.AssertExpectations(t)
	})

	t.Run("failed send is retried next cycle", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		d := &mockDispatcher{}
		d.On("Send", mock.Anything, mock.Anything, notify.TemplateUsageWarning, mock.Anything).Return(errors.New("smtp down")).Once()
		d.On("Send", mock.Anything, mock.Anything, notify.TemplateUsageWarning, mock.Anything).Return(nil).Once()

		n := notify.New(d, staticRecipient("ops@acme.test"))
		n.Notify(ctx, violation(id, notify.BucketWarning))
		n.Notify(ctx, violation(id, notify.BucketWarning))
		n.Notify(ctx, violation(id, notify.BucketWarning))

		d.AssertExpectations(t)
		d.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("failed over-limit send keeps warning open", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		d := &mockDispatcher{}
		d.On("Send", mock.Anything, mock.Anything, notify.TemplateUsageOverage, mock.Anything).Return(errors.New("smtp down")).Once()
		d.On("Send", mock.Anything, mock.Anything, notify.TemplateUsageWarning, mock.Anything).Return(nil).Once()

		n := notify.New(d, staticRecipient("ops@acme.test"))
		n.Notify(ctx, violation(id, notify.BucketOverLimit))
		n.Notify(ctx, violation(id, notify.BucketWarning))

		d.AssertExpectations(t)
	})

	t.Run("unresolved recipient is retried next cycle", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		d := &mockDispatcher{}
		d.On("Send", mock.Anything, notify.Recipient{Ref: "ops@acme.test"}, notify.TemplateUsageWarning, mock.Anything).Return(nil).Once()

		calls := 0
		recipients := notify.RecipientFunc(func(context.Context, uuid.UUID) (notify.Recipient, error) {
			calls++
			if calls == 1 {
				return notify.Recipient{}, notify.ErrNoRecipient
			}
			return notify.Recipient{Ref: "ops@acme.test"}, nil
		})

		n := notify.New(d, recipients)
		n.Notify(ctx, violation(id, notify.BucketWarning))
		n.Notify(ctx, violation(id, notify.BucketWarning))

		d.AssertExpectations(t)
		assert.Equal(t, 2, calls)
	})

	t.Run("no bucket is ignored", func(t *testing.T) {
		t.Parallel()
		d := &mockDispatcher{}
		n := notify.New(d, staticRecipient("ops@acme.test"))
		n.Notify(ctx, violation(uuid.New(), notify.BucketNone))
		d.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTenantRecipients(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	withEmail := tenant.Tenant{ID: uuid.New(), Name: "Acme", Email: "ops@acme.test"}
	without := tenant.Tenant{ID: uuid.New()}
	store.Put(withEmail)
	store.Put(without)

	r := notify.TenantRecipients(store)

	got, err := r.Resolve(ctx, withEmail.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.Recipient{Ref: "ops@acme.test", Name: "Acme"}, got)

	_, err = r.Resolve(ctx, without.ID)
	assert.ErrorIs(t, err, notify.ErrNoRecipient)

	_, err = r.Resolve(ctx, uuid.New())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestEmailDispatcher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sender := &captureSender{}
	d := notify.NewEmailDispatcher(sender)
	to := notify.Recipient{Ref: "ops@acme.test", Name: "Acme"}

	warning := violation(uuid.New(), notify.BucketWarning)
	warning.Percent = 85
	require.NoError(t, d.Send(ctx, to, notify.TemplateUsageWarning, warning))

	over := violation(uuid.New(), notify.BucketOverLimit)
	over.Percent = 110
	over.TotalBytes = 11_000_000_000
	over.OverageBytes = 1_000_000_000
	over.OverageCost = decimal.RequireFromString("0.25")
	require.NoError(t, d.Send(ctx, to, notify.TemplateUsageOverage, over))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "You have used 85% of your storage quota", sender.sent[0].Subject)
	assert.Equal(t, "usage_warning", sender.sent[0].Tag)
	assert.Contains(t, sender.sent[0].BodyHTML, "Growth plan")
	assert.Contains(t, sender.sent[0].BodyHTML, "85.0%")

	assert.Equal(t, "usage_overage", sender.sent[1].Tag)
	assert.Contains(t, sender.sent[1].BodyHTML, "1,000,000,000 bytes")
	assert.Contains(t, sender.sent[1].BodyHTML, "$0.25")

	assert.ErrorIs(t, d.Send(ctx, to, "unknown", warning), notify.ErrUnknownTemplate)

	sender.err = errors.New("postmark down")
	assert.ErrorIs(t, d.Send(ctx, to, notify.TemplateUsageWarning, warning), notify.ErrDispatchFailure)
}
