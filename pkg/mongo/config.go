package mongo

import "time"

type Config struct {
	ConnectionURL     string        `env:"MONGODB_URL,required"`                                    // ConnectionURL is the URL of the content database.
	Database          string        `env:"MONGODB_DATABASE" envDefault:"content"`                   // Database holds the content records.
	ContentCollection string        `env:"MONGODB_CONTENT_COLLECTION" envDefault:"content_records"` // ContentCollection is read by usage.MongoSource.
	ConnectTimeout    time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`                // ConnectTimeout is the timeout for connecting to the database.
	MaxPoolSize       uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"50"`                   // MaxPoolSize is the maximum number of pooled connections.
	MinPoolSize       uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`                    // MinPoolSize is the minimum number of pooled connections.
	MaxConnIdleTime   time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`            // MaxConnIdleTime is how long an idle connection stays pooled.
	RetryReads        bool          `env:"MONGODB_RETRY_READS" envDefault:"true"`                   // RetryReads retries reads once on transient errors.
	RetryAttempts     int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`                   // RetryAttempts is the number of attempts to connect.
	RetryInterval     time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`                  // RetryInterval is the delay between attempts.
}
