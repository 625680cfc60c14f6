package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lyricgen/lyricgen/internal/model"
)

// Provider is the remote completion API. Execute is an opaque synchronous
// call; implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Execute(ctx context.Context, req ProviderRequest) (ProviderResponse, Timings, error)
}

type ProviderRequest struct {
	// Model overrides the provider's configured model when non-empty.
	Model    string                `json:"model,omitempty"`
	Messages []model.Message       `json:"messages,omitempty"`
	Params   *model.SamplingParams `json:"params,omitempty"`
}

type ProviderResponse struct {
	AssistantText string          `json:"assistant_text,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

type Timings struct {
	Latency time.Duration
}
