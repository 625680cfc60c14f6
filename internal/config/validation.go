package config

import (
	"fmt"
	"net/url"
)

// validateConfig validates the configuration
func validateConfig(cfg *ProjectConfig) error {
	validators := []func(*ProjectConfig) error{
		validateVersion,
		validateProvider,
		validateGeneration,
		validateDelivery,
		validateLogging,
	}

	for _, validator := range validators {
		if err := validator(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *ProjectConfig) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version %d", cfg.Version)
	}
	return nil
}

func validateProvider(cfg *ProjectConfig) error {
	if !isValidProvider(cfg.Providers.Default) {
		return fmt.Errorf("providers.default must be one of openai, gemini, mock")
	}
	if cfg.Providers.OpenAI.TimeoutMS < 0 {
		return fmt.Errorf("providers.openai.timeout_ms must not be negative")
	}
	return nil
}

func isValidProvider(value string) bool {
	validProviders := map[string]bool{
		"openai": true,
		"gemini": true,
		"mock":   true,
	}
	return validProviders[value]
}

func validateGeneration(cfg *ProjectConfig) error {
	if cfg.Generation.Count < 1 {
		return fmt.Errorf("generation.count must be a positive integer")
	}
	if cfg.Generation.MaxCount < 1 {
		return fmt.Errorf("generation.max_count must be a positive integer")
	}
	if cfg.Generation.Count > cfg.Generation.MaxCount {
		return fmt.Errorf("generation.count must not exceed generation.max_count (%d)", cfg.Generation.MaxCount)
	}
	if cfg.Generation.Concurrency < 0 {
		return fmt.Errorf("generation.concurrency must be 0 (unbounded) or positive")
	}
	return nil
}

func validateDelivery(cfg *ProjectConfig) error {
	switch cfg.Delivery.Mode {
	case "file":
		return nil
	case "webhook":
		if cfg.Delivery.Webhook.URL == "" {
			return nil
		}
		parsed, err := url.Parse(cfg.Delivery.Webhook.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("delivery.webhook.url must be an absolute URL")
		}
		return nil
	default:
		return fmt.Errorf("delivery.mode must be webhook or file")
	}
}

func validateLogging(cfg *ProjectConfig) error {
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	return nil
}
