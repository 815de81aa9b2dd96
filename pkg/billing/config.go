package billing

import "time"

// ProcessorTimeout bounds every call to the billing processor.
const ProcessorTimeout = 10 * time.Second

// StripeConfig configures the Stripe processor and webhook parser.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// Enabled reports whether Stripe API calls are configured.
func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

// PaddleConfig configures the Paddle processor and webhook verification.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// Enabled reports whether Paddle webhooks are accepted.
func (c PaddleConfig) Enabled() bool { return c.WebhookSecret != "" }

// ProcessorEnabled reports whether Paddle API calls are configured.
func (c PaddleConfig) ProcessorEnabled() bool { return c.APIKey != "" }
