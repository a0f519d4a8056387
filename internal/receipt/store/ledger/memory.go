package ledger

import (
	"context"
	"fmt"
	"sync"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/sentinel"
)

// InMemory is a process-local ledger for tests and local development.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.RegistrationEntry
	index   map[string]int
}

func NewInMemory() *InMemory {
	return &InMemory{index: make(map[string]int)}
}

func (s *InMemory) Load(_ context.Context) ([]models.RegistrationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RegistrationEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *InMemory) Exists(_ context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[transactionID]
	return ok, nil
}

func (s *InMemory) Find(_ context.Context, transactionID string) (*models.RegistrationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	entry := s.entries[i]
	return &entry, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *InMemory) Append(_ context.Context, entry models.RegistrationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[entry.TransactionID]; ok {
		return fmt.Errorf("append transaction %s: %w", entry.TransactionID, sentinel.ErrConflict)
	}
	s.index[entry.TransactionID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}
