package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lyricgen/lyricgen/internal/model"
)

// MockProvider answers offline with a deterministic verse built from the
// user message and the requested temperature.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() string {
	return "mock"
}

func (p *MockProvider) Execute(ctx context.Context, req ProviderRequest) (ProviderResponse, Timings, error) {
	if err := ctx.Err(); err != nil {
		return ProviderResponse{}, Timings{}, err
	}
	var prompt string
	for _, msg := range req.Messages {
		if msg.Role == model.RoleUser {
			prompt = strings.TrimSpace(msg.Content)
		}
	}
	temp := 0.0
	if req.Params != nil && req.Params.Temperature != nil {
		temp = *req.Params.Temperature
	}
	text := fmt.Sprintf("mock verse (t=%.1f): %s", temp, prompt)
	raw, _ := json.Marshal(map[string]string{"message": text})
	return ProviderResponse{AssistantText: text, Raw: raw}, Timings{Latency: 10 * time.Millisecond}, nil
}
