package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Headers set on every outgoing usage webhook. The signature is
// hex(HMAC-SHA256(secret, timestamp + "." + body)).
const (
	WebhookSignatureHeader = "X-Meter-Signature"
	WebhookTimestampHeader = "X-Meter-Timestamp"
	WebhookIDHeader        = "X-Meter-Delivery"
)

// WebhookConfig configures the optional usage webhook channel.
type WebhookConfig struct {
	URL        string        `env:"NOTIFY_WEBHOOK_URL"`
	Secret     string        `env:"NOTIFY_WEBHOOK_SECRET"`
	Timeout    time.Duration `env:"NOTIFY_WEBHOOK_TIMEOUT" envDefault:"10s"`
	MaxRetries int           `env:"NOTIFY_WEBHOOK_MAX_RETRIES" envDefault:"3"`
}

// Enabled reports whether a webhook endpoint is configured.
func (c WebhookConfig) Enabled() bool { return c.URL != "" }

// webhookPayload is the JSON body of a usage webhook.
type webhookPayload struct {
	ID        string       `json:"id"`
	Type      TemplateKind `json:"type"`
	Recipient string       `json:"recipient,omitempty"`
	Violation Violation    `json:"violation"`
	SentAt    time.Time    `json:"sent_at"`
}

// WebhookDispatcher posts signed violation events to an HTTP endpoint,
// retrying transient failures with exponential backoff.
type WebhookDispatcher struct {
	endpoint   string
	secret     string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	now        func() time.Time
}

// WebhookOption configures a WebhookDispatcher.
type WebhookOption func(*WebhookDispatcher)

// WithWebhookClient replaces the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(d *WebhookDispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithWebhookBackoff sets the first retry delay and its cap.
func WithWebhookBackoff(base, maxDelay time.Duration) WebhookOption {
	return func(d *WebhookDispatcher) {
		if base > 0 {
			d.baseDelay = base
		}
		if maxDelay >= base {
			d.maxDelay = maxDelay
		}
	}
}

// NewWebhookDispatcher validates cfg and returns a dispatcher for it.
func NewWebhookDispatcher(cfg WebhookConfig, opts ...WebhookOption) (*WebhookDispatcher, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid webhook url %q", ErrDispatchFailure, cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &WebhookDispatcher{
		endpoint:   u.String(),
		secret:     cfg.Secret,
		client:     &http.Client{Timeout: timeout},
		maxRetries: max(cfg.MaxRetries, 0),
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *WebhookDispatcher) Send(ctx context.Context, to Recipient, kind TemplateKind, v Violation) error {
	body, err := json.Marshal(webhookPayload{
		ID:        uuid.NewString(),
		Type:      kind,
		Recipient: to.Ref,
		Violation: v,
		SentAt:    d.now().UTC(),
	})
	if err != nil {
		return errors.Join(ErrDispatchFailure, err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrDispatchFailure, ctx.Err())
			case <-time.After(d.backoff(attempt)):
			}
		}

		status, err := d.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if permanent(status) {
			break
		}
	}
	return errors.Join(ErrDispatchFailure, lastErr)
}

func (d *WebhookDispatcher) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "meterd-webhook/1.0")
	req.Header.Set(WebhookIDHeader, uuid.NewString())
	if d.secret != "" {
		ts := strconv.FormatInt(d.now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(d.secret))
		mac.Write([]byte(ts + "."))
		mac.Write(body)
		req.Header.Set(WebhookTimestampHeader, ts)
		req.Header.Set(WebhookSignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (d *WebhookDispatcher) backoff(attempt int) time.Duration {
	delay := d.baseDelay << (attempt - 1)
	if delay <= 0 || delay > d.maxDelay {
		return d.maxDelay
	}
	return delay
}

// permanent reports 4xx responses that a retry will not fix.
func permanent(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}

// MultiDispatcher sends through every dispatcher and joins their errors.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) Send(ctx context.Context, to Recipient, kind TemplateKind, v Violation) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, to, kind, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
