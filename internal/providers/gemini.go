package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lyricgen/lyricgen/internal/config"
	"github.com/lyricgen/lyricgen/internal/model"
	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, cfg *config.ProjectConfig) (*GeminiProvider, error) {
	apiKey := ""
	if cfg.Providers.Gemini.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(cfg.Providers.Gemini.APIKeyEnv))
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(cfg.Providers.Gemini.APIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing Gemini API key (set providers.gemini.api_key or api_key_env)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}

	modelName := strings.TrimSpace(cfg.Generation.Model)
	if modelName == "" {
		modelName = strings.TrimSpace(cfg.Providers.Gemini.Model)
	}
	return NewGeminiProviderFromClient(client, modelName), nil
}

func NewGeminiProviderFromClient(c *genai.Client, modelName string) *GeminiProvider {
	return &GeminiProvider{client: c, model: modelName}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Execute(ctx context.Context, req ProviderRequest) (ProviderResponse, Timings, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = p.model
	}
	if modelName == "" {
		return ProviderResponse{}, Timings{}, fmt.Errorf("gemini model is required (set generation.model or providers.gemini.model)")
	}

	var system, user []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		default:
			user = append(user, msg.Content)
		}
	}
	if len(user) == 0 {
		return ProviderResponse{}, Timings{}, fmt.Errorf("no messages provided")
	}

	genCfg := geminiConfig(req.Params)
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	start := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, modelName, genai.Text(strings.Join(user, "\n\n")), genCfg)
	if err != nil {
		return ProviderResponse{}, Timings{}, fmt.Errorf("gemini request: %w", err)
	}
	if len(result.Candidates) == 0 {
		return ProviderResponse{}, Timings{}, fmt.Errorf("gemini response has no candidates")
	}
	return ProviderResponse{AssistantText: result.Text()}, Timings{Latency: time.Since(start)}, nil
}

func geminiConfig(params *model.SamplingParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if params == nil {
		return cfg
	}
	if params.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*params.TopP))
	}
	if params.MaxOutputTokens != nil {
		cfg.MaxOutputTokens = int32(*params.MaxOutputTokens)
	}
	if params.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = genai.Ptr(float32(*params.FrequencyPenalty))
	}
	if params.PresencePenalty != nil {
		cfg.PresencePenalty = genai.Ptr(float32(*params.PresencePenalty))
	}
	return cfg
}
