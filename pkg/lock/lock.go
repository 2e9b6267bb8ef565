// Package lock serializes row-number allocation. The table backends only
// expose read-last-row and write-row, so two appends racing between those
// calls would pick the same row unless something holds them apart.
package lock

import (
	"context"
	"sync"
)

// Locker guards a critical section identified by key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases
	// the lock and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process Locker. It is enough when a single server writes the
// table.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocal returns a ready Local locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
