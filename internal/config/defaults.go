package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultCount          = 10
	DefaultMaxCount       = 1000
	DefaultArtifactName   = "selected_responses.jsonl"
	DefaultWebhookContent = "Here are the selected and edited lyrics:"
	DefaultWebhookUser    = "LyricGen Bot"
)

// applyDefaults sets default values for unspecified configuration fields
func applyDefaults(cfg *ProjectConfig, configPath string) {
	applyProjectDefaults(cfg, configPath)
	applyProvidersDefaults(cfg)
	applyGenerationDefaults(cfg)
	applyDeliveryDefaults(cfg)
	applyServerDefaults(cfg)
	applyLoggingDefaults(cfg)
}

func applyProjectDefaults(cfg *ProjectConfig, configPath string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = deriveProjectName(configPath)
	}
}

func deriveProjectName(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		if cwd, err := os.Getwd(); err == nil {
			dir = cwd
		}
	}
	return filepath.Base(dir)
}

func applyProvidersDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Providers.Default, "mock")

	setDefaultString(&cfg.Providers.OpenAI.APIKeyEnv, "OPENAI_API_KEY")
	setDefaultString(&cfg.Providers.OpenAI.BaseURLEnv, "OPENAI_BASE_URL")
	setDefaultInt(&cfg.Providers.OpenAI.TimeoutMS, 120000)

	setDefaultString(&cfg.Providers.Gemini.APIKeyEnv, "GEMINI_API_KEY")
}

func applyGenerationDefaults(cfg *ProjectConfig) {
	setDefaultInt(&cfg.Generation.Count, DefaultCount)
	setDefaultInt(&cfg.Generation.MaxCount, DefaultMaxCount)
}

func applyDeliveryDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Delivery.Mode, "file")

	setDefaultString(&cfg.Delivery.Webhook.URLEnv, "LYRICGEN_WEBHOOK_URL")
	setDefaultString(&cfg.Delivery.Webhook.Username, DefaultWebhookUser)
	setDefaultString(&cfg.Delivery.Webhook.Content, DefaultWebhookContent)
	setDefaultString(&cfg.Delivery.Webhook.Filename, DefaultArtifactName)
	setDefaultInt(&cfg.Delivery.Webhook.TimeoutMS, 30000)

	setDefaultString(&cfg.Delivery.File.Dir, ".lyricgen/exports")
	setDefaultString(&cfg.Delivery.File.Filename, DefaultArtifactName)
}

func applyServerDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Server.Listen, "127.0.0.1:8484")
}

func applyLoggingDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Logging.Level, "info")
	setDefaultString(&cfg.Logging.Format, "console")
}

func setDefaultString(field *string, defaultValue string) {
	if *field == "" {
		*field = defaultValue
	}
}

func setDefaultInt(field *int, defaultValue int) {
	if *field == 0 {
		*field = defaultValue
	}
}
