// Package ledger persists issued receipts. Every backend returns sentinel.ErrConflict
// from Append when the transaction ID is already recorded.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/sentinel"
)

// YAMLStore keeps the ledger as one YAML sequence of entries. Reads load the whole file;
// appends rewrite it through a temp file and rename. Writers in this process are serialized;
// other processes writing the same file are not coordinated.
type YAMLStore struct {
	path string
	mu   sync.Mutex
}

func NewYAML(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

func (s *YAMLStore) Path() string {
	return s.path
}

// Load returns entries in file order. A missing file is an empty ledger.
func (s *YAMLStore) Load(ctx context.Context) ([]models.RegistrationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

func (s *YAMLStore) read() ([]models.RegistrationEntry, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.RegistrationEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}
	var entries []models.RegistrationEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w: %v", s.path, sentinel.ErrInvalidState, err)
	}
	if entries == nil {
		entries = []models.RegistrationEntry{}
	}
	return entries, nil
}

func (s *YAMLStore) Exists(ctx context.Context, transactionID string) (bool, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := find(entries, transactionID)
	return ok, nil
}

func (s *YAMLStore) Find(ctx context.Context, transactionID string) (*models.RegistrationEntry, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := find(entries, transactionID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	entry := entries[i]
	return &entry, nil
}

func (s *YAMLStore) Count(ctx context.Context) (int, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Append re-reads the file under the writer lock so a concurrent append of the same
// transaction ID in this process is rejected.
func (s *YAMLStore) Append(ctx context.Context, entry models.RegistrationEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := find(entries, entry.TransactionID); ok {
		return fmt.Errorf("append transaction %s: %w", entry.TransactionID, sentinel.ErrConflict)
	}
	entries = append(entries, entry)

	raw, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return writeAtomic(s.path, raw)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func find(entries []models.RegistrationEntry, transactionID string) (int, bool) {
	for i := range entries {
		if entries[i].TransactionID == transactionID {
			return i, true
		}
	}
	return -1, false
}
