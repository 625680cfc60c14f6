package providers

import (
	"context"
	"fmt"

	"github.com/lyricgen/lyricgen/internal/config"
)

func Resolve(ctx context.Context, cfg *config.ProjectConfig) (Provider, error) {
	switch cfg.Providers.Default {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(cfg)
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Providers.Default)
	}
}
