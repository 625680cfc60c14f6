package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

type WebhookOptions struct {
	URL      string
	Username string
	Content  string
	Timeout  time.Duration
	Client   *http.Client
}

// WebhookSink uploads the artifact as a multipart form: text fields
// "content" and "username" and the file itself in part "file".
type WebhookSink struct {
	url      string
	username string
	content  string
	client   *http.Client
}

func NewWebhookSink(opts WebhookOptions) *WebhookSink {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookSink{
		url:      opts.URL,
		username: opts.Username,
		content:  opts.Content,
		client:   client,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, artifact Artifact) (Receipt, error) {
	body, contentType, err := s.encode(artifact)
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Receipt{}, &DeliveryError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return Receipt{Sink: s.Name(), Location: s.url, StatusCode: resp.StatusCode}, nil
}

func (s *WebhookSink) encode(artifact Artifact) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("content", s.content); err != nil {
		return nil, "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.WriteField("username", s.username); err != nil {
		return nil, "", fmt.Errorf("failed to write form field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, artifact.Filename))
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
