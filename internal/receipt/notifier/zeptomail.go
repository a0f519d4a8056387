package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedesk/internal/receipt/models"
)

type zeptoRequest struct {
	From        zeptoAddress      `json:"from"`
	To          []zeptoRecipient  `json:"to"`
	Subject     string            `json:"subject"`
	TextBody    string            `json:"textbody"`
	Attachments []zeptoAttachment `json:"attachments,omitempty"`
}

type zeptoAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type zeptoRecipient struct {
	Email zeptoAddress `json:"email_address"`
}

type zeptoAttachment struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
}

// ZeptoMail sends through the ZeptoMail HTTP API. apiKey is sent verbatim as the
// Authorization header, e.g. "Zoho-enczapikey xxxxx".
type ZeptoMail struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

type ZeptoOption func(*ZeptoMail)

func WithZeptoHTTPClient(client *http.Client) ZeptoOption {
	return func(z *ZeptoMail) {
		if client != nil {
			z.client = client
		}
	}
}

func NewZeptoMail(apiURL, apiKey, from string, opts ...ZeptoOption) *ZeptoMail {
	z := &ZeptoMail{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

func (z *ZeptoMail) Send(ctx context.Context, n models.Notification) error {
	payload := zeptoRequest{
		From:     zeptoAddress{Address: z.from},
		To:       []zeptoRecipient{{Email: zeptoAddress{Address: n.To}}},
		Subject:  n.Subject,
		TextBody: n.Body,
	}
	if n.Attachment.Name != "" {
		payload.Attachments = []zeptoAttachment{{
			Content:  base64.StdEncoding.EncodeToString(n.Attachment.Data),
			MimeType: n.Attachment.ContentType,
			Name:     n.Attachment.Name,
		}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode zeptomail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build zeptomail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", z.apiKey)

	resp, err := z.client.Do(req)
	if err != nil {
		return fmt.Errorf("zeptomail: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("zeptomail returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
}
