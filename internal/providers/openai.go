package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lyricgen/lyricgen/internal/config"
)

type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(cfg *config.ProjectConfig) (*OpenAIProvider, error) {
	// API Key: env var > hardcoded value
	apiKey := ""
	if cfg.Providers.OpenAI.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(cfg.Providers.OpenAI.APIKeyEnv))
	}
	if apiKey == "" && cfg.Providers.OpenAI.APIKey != "" {
		apiKey = strings.TrimSpace(cfg.Providers.OpenAI.APIKey)
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key (set providers.openai.api_key, api_key_env, or OPENAI_API_KEY)")
	}

	// Base URL: env var > hardcoded value > default
	baseURL := ""
	if cfg.Providers.OpenAI.BaseURLEnv != "" {
		baseURL = strings.TrimSpace(os.Getenv(cfg.Providers.OpenAI.BaseURLEnv))
	}
	if baseURL == "" && cfg.Providers.OpenAI.BaseURL != "" {
		baseURL = strings.TrimSpace(cfg.Providers.OpenAI.BaseURL)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	// Model: generation.model > providers.openai.model > env var.
	// Batches may still override per request.
	modelName := strings.TrimSpace(cfg.Generation.Model)
	if modelName == "" {
		modelName = strings.TrimSpace(cfg.Providers.OpenAI.Model)
	}
	if modelName == "" {
		modelName = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	}

	timeout := time.Duration(cfg.Providers.OpenAI.TimeoutMS) * time.Millisecond
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   modelName,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Execute(ctx context.Context, req ProviderRequest) (ProviderResponse, Timings, error) {
	if len(req.Messages) == 0 {
		return ProviderResponse{}, Timings{}, fmt.Errorf("no messages provided")
	}
	modelName := req.Model
	if modelName == "" {
		modelName = p.model
	}
	if modelName == "" {
		return ProviderResponse{}, Timings{}, fmt.Errorf("openai model is required (set generation.model, providers.openai.model or OPENAI_MODEL)")
	}

	payload := map[string]any{
		"model":    modelName,
		"messages": req.Messages,
	}

	if req.Params != nil {
		if req.Params.Temperature != nil {
			payload["temperature"] = *req.Params.Temperature
		}
		if req.Params.TopP != nil {
			payload["top_p"] = *req.Params.TopP
		}
		if req.Params.MaxOutputTokens != nil {
			payload["max_tokens"] = *req.Params.MaxOutputTokens
		}
		if req.Params.FrequencyPenalty != nil {
			payload["frequency_penalty"] = *req.Params.FrequencyPenalty
		}
		if req.Params.PresencePenalty != nil {
			payload["presence_penalty"] = *req.Params.PresencePenalty
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ProviderResponse{}, Timings{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := openAIEndpoint(p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ProviderResponse{}, Timings{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ProviderResponse{}, Timings{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProviderResponse{}, Timings{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProviderResponse{}, Timings{}, fmt.Errorf("openai error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	text, err := parseOpenAIResponse(respBody)
	if err != nil {
		return ProviderResponse{}, Timings{}, err
	}
	return ProviderResponse{
		AssistantText: text,
		Raw:           respBody,
	}, Timings{Latency: time.Since(start)}, nil
}

func openAIEndpoint(base string) string {
	trimmed := strings.TrimRight(base, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed + "/chat/completions"
	}
	return trimmed + "/v1/chat/completions"
}

func parseOpenAIResponse(body []byte) (string, error) {
	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	if payload.Choices[0].Message.Content != "" {
		return payload.Choices[0].Message.Content, nil
	}
	return payload.Choices[0].Text, nil
}
