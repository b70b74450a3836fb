package usecase

import (
	"context"
	stderrors "errors"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
)

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == entity.RoleAdmin
}

const lockWait = 10 * time.Second

// acquire takes the locks in the order given and returns a func releasing all
// of them. Callers lock escrows before cases.
func acquire(ctx context.Context, locker service.Locker, keys ...string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range keys {
		unlock, err := locker.Lock(waitCtx, key)
		if err != nil {
			release()
			if stderrors.Is(err, service.ErrLockTimeout) {
				return nil, errors.Conflict("Resource is busy, please retry")
			}
			return nil, errors.Internal("Failed to acquire lock", err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// notifyAll hands notices to the notifier after a successful commit.
func notifyAll(ctx context.Context, notifier service.Notifier, notices []service.Notice) {
	if notifier == nil {
		return
	}
	for _, n := range notices {
		if n.RecipientID == "" {
			continue
		}
		notifier.Notify(ctx, n)
	}
}

func logOutcome(escrowID, action, actorID string, err error) {
	if err != nil && !errors.Is(err, errors.CodeInternal) {
		logger.Debug("escrow %s %s by %s rejected: %v", escrowID, action, actorID, err)
		return
	}
	logger.LogEscrowEvent(escrowID, action, actorID, err)
}
