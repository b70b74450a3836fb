package service

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Locker grants exclusive access to a key, e.g. "escrow:<id>". The returned
// func releases the lock and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
