package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"feedesk/internal/receipt/models"
)

const (
	gotenbergRoute   = "/forms/libreoffice/convert"
	maxErrorBodySize = 1 << 10
)

// Gotenberg converts through a Gotenberg server's LibreOffice route.
type Gotenberg struct {
	baseURL string
	client  *http.Client
}

type GotenbergOption func(*Gotenberg)

func WithHTTPClient(client *http.Client) GotenbergOption {
	return func(g *Gotenberg) {
		if client != nil {
			g.client = client
		}
	}
}

func NewGotenberg(baseURL string, opts ...GotenbergOption) *Gotenberg {
	g := &Gotenberg{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gotenberg) Convert(ctx context.Context, doc models.Artifact) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", inputName(doc.Name))
	if err != nil {
		return nil, fmt.Errorf("build gotenberg form: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, fmt.Errorf("build gotenberg form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build gotenberg form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+gotenbergRoute, &body)
	if err != nil {
		return nil, fmt.Errorf("build gotenberg request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("gotenberg returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gotenberg response: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("gotenberg: %w", ErrNoOutput)
	}
	return pdf, nil
}
