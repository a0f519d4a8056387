// Package artifact stores rendered receipts and returns a reference callers can hand out.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"feedesk/internal/receipt/models"
)

var ErrInvalidName = errors.New("invalid artifact name")

// Local writes artifacts into one output directory; the reference is the file path.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) Save(ctx context.Context, a models.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.Base(a.Name)
	if name != a.Name || name == "." || name == ".." || name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, a.Name)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}
