package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every instance using the same Redis server.
// A held lock is extended every renew interval until Unlock is called, so
// the TTL only bounds how long a crashed owner blocks the key.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	renew  time.Duration
	retry  time.Duration
	prefix string
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets how long a lock survives a crashed owner. Default 5m.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRenewInterval sets how often a held lock is extended. Default TTL/3.
func WithRenewInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.renew = d
		}
	}
}

// WithRetryInterval sets the polling interval used by Lock. Default 50ms.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a Redis locker. Panics if client is nil.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	if client == nil {
		panic("lock: redis client is required")
	}
	r := &Redis{
		client: client,
		ttl:    5 * time.Minute,
		retry:  50 * time.Millisecond,
		prefix: "lock",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.renew <= 0 || r.renew >= r.ttl {
		r.renew = r.ttl / 3
	}
	return r
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) TryLock(ctx context.Context, key string) (Unlock, error) {
	k := r.key(key)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return nil, errors.Join(ErrLockBackend, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	stop := make(chan struct{})
	go r.keepAlive(k, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// the caller's context may already be canceled
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{k}, token).Err()
		})
	}, nil
}

// keepAlive extends the lock until stop is closed or the key is no longer ours.
func (r *Redis) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.renew)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.renew)
			n, err := extendScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		unlock, err := r.TryLock(ctx, key)
		if !errors.Is(err, ErrLocked) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
