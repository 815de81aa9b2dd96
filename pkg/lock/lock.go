package lock

import "context"

// Unlock releases a lock. It is safe to call more than once.
type Unlock func()

// Locker grants exclusive ownership of a key.
type Locker interface {
	// TryLock acquires key without waiting. Returns ErrLocked if it is held.
	TryLock(ctx context.Context, key string) (Unlock, error)
	// Lock waits for key until ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}
