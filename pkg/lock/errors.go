package lock

import "errors"

var (
	// ErrLocked is returned by TryLock when another owner holds the key.
	ErrLocked = errors.New("lock is held by another owner")

	ErrLockBackend = errors.New("lock backend failure")
)
