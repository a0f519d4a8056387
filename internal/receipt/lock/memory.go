// Package lock provides per-transaction single-writer locks for the issuance pipeline.
//
// TryLock never waits. A lock held by another request returns sentinel.ErrAlreadyUsed so the
// caller can reject the submission instead of queueing it behind a slow conversion.
package lock

import (
	"context"
	"fmt"
	"sync"

	"feedesk/pkg/platform/sentinel"
)

// InMemory locks transaction IDs within this process.
type InMemory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{held: make(map[string]struct{})}
}

// TryLock returns a release func that is safe to call more than once.
func (l *InMemory) TryLock(ctx context.Context, transactionID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[transactionID]; ok {
		return nil, fmt.Errorf("lock transaction %s: %w", transactionID, sentinel.ErrAlreadyUsed)
	}
	l.held[transactionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, transactionID)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports how many transaction IDs are currently locked.
func (l *InMemory) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Noop never contends. It restores the unguarded dedup window.
type Noop struct{}

func (Noop) TryLock(context.Context, string) (func(), error) {
	return func() {}, nil
}
