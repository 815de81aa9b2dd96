package notify_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/notify"
)

func TestWebhookDispatcher(t *testing.T) {
	t.Parallel()

	v := notify.Violation{TenantID: uuid.New(), Bucket: notify.BucketOverLimit, TotalBytes: 11, QuotaBytes: 10}
	to := notify.Recipient{Ref: "owner@acme.test"}

	t.Run("signed delivery", func(t *testing.T) {
		t.Parallel()
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mac := hmac.New(sha256.New, []byte("s3cret"))
			mac.Write([]byte(r.Header.Get(notify.WebhookTimestampHeader) + "." + string(body)))
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get(notify.WebhookSignatureHeader))
			assert.NotEmpty(t, r.Header.Get(notify.WebhookIDHeader))
			assert.NoError(t, json.Unmarshal(body, &got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		d, err := notify.NewWebhookDispatcher(notify.WebhookConfig{URL: srv.URL, Secret: "s3cret"})
		require.NoError(t, err)
		require.NoError(t, d.Send(context.Background(), to, notify.TemplateUsageOverage, v))
		assert.Equal(t, string(notify.TemplateUsageOverage), got["type"])
		assert.Equal(t, "owner@acme.test", got["recipient"])
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d, err := notify.NewWebhookDispatcher(notify.WebhookConfig{URL: srv.URL, MaxRetries: 3},
			notify.WithWebhookBackoff(time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, d.Send(context.Background(), to, notify.TemplateUsageWarning, v))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusGone)
		}))
		defer srv.Close()

		d, err := notify.NewWebhookDispatcher(notify.WebhookConfig{URL: srv.URL, MaxRetries: 3},
			notify.WithWebhookBackoff(time.Millisecond, time.Millisecond))
		require.NoError(t, err)
		err = d.Send(context.Background(), to, notify.TemplateUsageWarning, v)
		assert.ErrorIs(t, err, notify.ErrDispatchFailure)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		_, err := notify.NewWebhookDispatcher(notify.WebhookConfig{URL: "ftp://example.com"})
		assert.ErrorIs(t, err, notify.ErrDispatchFailure)
	})
}

type funcDispatcher func() error

func (f funcDispatcher) Send(context.Context, notify.Recipient, notify.TemplateKind, notify.Violation) error {
	return f()
}

func TestMultiDispatcher(t *testing.T) {
	t.Parallel()

	var ok atomic.Int32
	boom := errors.New("boom")
	m := notify.MultiDispatcher{
		funcDispatcher(func() error { return boom }),
		funcDispatcher(func() error { ok.Add(1); return nil }),
	}
	err := m.Send(context.Background(), notify.Recipient{}, notify.TemplateUsageWarning, notify.Violation{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), ok.Load())
}
