package lock

import (
	"context"
	"fmt"
	"sync"

	"auction-core/internal/biddingerrors"
)

// Locker grants exclusive access to one listing at a time.
type Locker interface {
	// Lock blocks until the listing is held or ctx is done. The returned
	// unlock func is safe to call more than once.
	Lock(ctx context.Context, listingID string) (unlock func(), err error)
}

// LocalLocker is an in-process Locker keyed by listing ID.
// Entries are reference counted so idle listings do not accumulate.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates an empty in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*entry)}
}

// Lock acquires the listing's lock or fails with ErrLockUnavailable when ctx ends first
func (l *LocalLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lock listing %s: %w: %w", listingID, biddingerrors.ErrLockUnavailable, err)
	}

	l.mu.Lock()
	e, ok := l.entries[listingID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[listingID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.release(listingID, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(listingID, e)
		return nil, fmt.Errorf("lock listing %s: %w: %w", listingID, biddingerrors.ErrLockUnavailable, ctx.Err())
	}
}

func (l *LocalLocker) release(listingID string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, listingID)
	}
}

// size reports how many listings currently have holders or waiters
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
