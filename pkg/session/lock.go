package session

import (
	"context"
	"sync"
	"time"
)

// closeOwner marks the lock as held by Close.
const closeOwner = ^uint64(0)

// openLock serializes open and close. It is a one-slot semaphore that
// remembers which open generation holds it, so a callback can release it
// only on behalf of the open that acquired it.
type openLock struct {
	sem chan struct{}

	mu    sync.Mutex
	owner uint64
}

func newOpenLock() *openLock {
	return &openLock{sem: make(chan struct{}, 1)}
}

// acquire waits at most timeout. It returns false on timeout and ctx's
// error on cancellation.
func (l *openLock) acquire(ctx context.Context, timeout time.Duration, owner uint64) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		l.setOwner(owner)
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// acquireBlocking waits until the lock is free.
func (l *openLock) acquireBlocking(owner uint64) {
	l.sem <- struct{}{}
	l.setOwner(owner)
}

// handOver changes the owner of a held lock.
func (l *openLock) handOver(from, to uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != from {
		return false
	}
	l.owner = to
	return true
}

// releaseIfOwner releases the lock if owner holds it and reports whether it
// did.
func (l *openLock) releaseIfOwner(owner uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != owner || len(l.sem) == 0 {
		return false
	}
	l.owner = 0
	<-l.sem
	return true
}

// held reports whether the lock is currently held.
func (l *openLock) held() bool {
	return len(l.sem) == 1
}

func (l *openLock) setOwner(owner uint64) {
	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
}
