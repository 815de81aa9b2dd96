package meter

import (
	"time"

	"github.com/dmitrymomot/meterkit/pkg/tier"
	"github.com/dmitrymomot/meterkit/pkg/trigger"
)

// Config holds the engine settings read from the environment.
type Config struct {
	Concurrency       int           `env:"METER_CONCURRENCY" envDefault:"4"`
	ProcessorTimeout  time.Duration `env:"METER_PROCESSOR_TIMEOUT" envDefault:"10s"`
	ReconcileInterval string        `env:"METER_RECONCILE_INTERVAL" envDefault:"every 15m"`
	TiersFile         string        `env:"METER_TIERS_FILE"`
	// LockTTL is how long a crashed instance keeps a key locked. Live holders
	// renew every LockTTL/3, so runs may last longer than the TTL.
	LockTTL time.Duration `env:"METER_LOCK_TTL" envDefault:"2m"`
	// LockBackend is "redis" for multi-instance deployments or "local".
	LockBackend string `env:"METER_LOCK_BACKEND" envDefault:"redis"`
	// ReportDir archives run summaries on disk when S3 is not configured.
	ReportDir string `env:"METER_REPORT_DIR"`
}

// DistributedLocks reports whether locks and notification markers live in Redis.
func (c Config) DistributedLocks() bool {
	return c.LockBackend != "local"
}

// Policies returns the tier table: DefaultPolicies, overlaid with TiersFile
// when set.
func (c Config) Policies() (*tier.Table, error) {
	if c.TiersFile == "" {
		return tier.NewTable(tier.DefaultPolicies()), nil
	}
	return tier.LoadYAML(c.TiersFile)
}

// Schedule parses ReconcileInterval.
func (c Config) Schedule() (trigger.Schedule, error) {
	return trigger.ParseSchedule(c.ReconcileInterval)
}

// Options converts the numeric settings to engine options.
func (c Config) Options() []Option {
	return []Option{
		WithConcurrency(c.Concurrency),
		WithProcessorTimeout(c.ProcessorTimeout),
	}
}
