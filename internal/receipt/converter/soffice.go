// Package converter turns filled DOCX documents into PDF.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"feedesk/internal/receipt/models"
)

// Converter is implemented by every backend in this package.
type Converter interface {
	Convert(ctx context.Context, doc models.Artifact) ([]byte, error)
}

// ErrNoOutput is returned when the converter exits cleanly without producing a PDF.
var ErrNoOutput = errors.New("converter produced no output")

const (
	defaultInputName = "receipt.docx"
	// waitDelay bounds how long Run waits for output pipes after the process is killed.
	waitDelay = 5 * time.Second
)

// Soffice runs a local LibreOffice in headless mode. Each call gets its own working
// directory and user profile so conversions can run in parallel.
type Soffice struct {
	binary string
}

func NewSoffice(binary string) *Soffice {
	if binary == "" {
		binary = "soffice"
	}
	return &Soffice{binary: binary}
}

func (c *Soffice) Convert(ctx context.Context, doc models.Artifact) ([]byte, error) {
	dir, err := os.MkdirTemp("", "feedesk-convert-*")
	if err != nil {
		return nil, fmt.Errorf("create conversion dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, inputName(doc.Name))
	if err := os.WriteFile(input, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write conversion input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binary,
		"-env:UserInstallation=file://"+filepath.ToSlash(filepath.Join(dir, "profile")),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", dir,
		input,
	)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("soffice: %w", ctxErr)
		}
		return nil, fmt.Errorf("soffice: %w: %s", err, strings.TrimSpace(output.String()))
	}

	pdfPath := strings.TrimSuffix(input, filepath.Ext(input)) + ".pdf"
	pdf, err := os.ReadFile(pdfPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("soffice: %w: %s", ErrNoOutput, strings.TrimSpace(output.String()))
	}
	if err != nil {
		return nil, fmt.Errorf("read converted pdf: %w", err)
	}
	return pdf, nil
}

func inputName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return defaultInputName
	}
	if filepath.Ext(base) == "" {
		base += ".docx"
	}
	return base
}
