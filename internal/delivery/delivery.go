// Package delivery pushes an exported dataset artifact to its destination.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lyricgen/lyricgen/internal/config"
	"github.com/lyricgen/lyricgen/internal/metrics"
)

// Artifact is an exported dataset ready for delivery.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Receipt describes where an artifact ended up.
type Receipt struct {
	Sink       string `json:"sink"`
	Location   string `json:"location"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Sink is a delivery collaborator. A failed delivery leaves curation state
// untouched, so callers may retry with the same artifact.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, artifact Artifact) (Receipt, error)
}

// DeliveryError is returned when the destination rejects the artifact.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("delivery rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("delivery rejected with status %d: %s", e.StatusCode, body)
}

var ErrNoWebhookURL = errors.New("webhook url not configured")

// Resolve builds the sink selected by delivery.mode.
func Resolve(cfg config.DeliveryConfig) (Sink, error) {
	switch cfg.Mode {
	case "webhook":
		url := cfg.Webhook.URL
		if url == "" && cfg.Webhook.URLEnv != "" {
			url = os.Getenv(cfg.Webhook.URLEnv)
		}
		if url == "" {
			return nil, fmt.Errorf("%w: set delivery.webhook.url or %s", ErrNoWebhookURL, cfg.Webhook.URLEnv)
		}
		return NewWebhookSink(WebhookOptions{
			URL:      url,
			Username: cfg.Webhook.Username,
			Content:  cfg.Webhook.Content,
			Timeout:  time.Duration(cfg.Webhook.TimeoutMS) * time.Millisecond,
		}), nil
	case "file", "":
		return NewFileSink(cfg.File.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported delivery mode %q", cfg.Mode)
	}
}

// ArtifactFilename picks the filename configured for the active sink.
func ArtifactFilename(cfg config.DeliveryConfig) string {
	name := cfg.File.Filename
	if cfg.Mode == "webhook" {
		name = cfg.Webhook.Filename
	}
	if name == "" {
		name = config.DefaultArtifactName
	}
	return name
}

type instrumented struct {
	Sink
	metrics *metrics.Collectors
}

// Instrument records the outcome of every delivery on m.
func Instrument(sink Sink, m *metrics.Collectors) Sink {
	if m == nil {
		return sink
	}
	return instrumented{Sink: sink, metrics: m}
}

func (s instrumented) Deliver(ctx context.Context, artifact Artifact) (Receipt, error) {
	receipt, err := s.Sink.Deliver(ctx, artifact)
	s.metrics.Delivered(s.Sink.Name(), err)
	return receipt, err
}
