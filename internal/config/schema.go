package config

type ProjectConfig struct {
	Version    int              `yaml:"version"`
	Project    ProjectMeta      `yaml:"project,omitempty"`
	Providers  ProvidersConfig  `yaml:"providers,omitempty"`
	Generation GenerationConfig `yaml:"generation,omitempty"`
	Delivery   DeliveryConfig   `yaml:"delivery,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

type ProjectMeta struct {
	Name string `yaml:"name,omitempty"`
	Root string `yaml:"root,omitempty"`
}

type ProvidersConfig struct {
	Default string       `yaml:"default,omitempty"`
	OpenAI  OpenAIConfig `yaml:"openai,omitempty"`
	Gemini  GeminiConfig `yaml:"gemini,omitempty"`
}

type OpenAIConfig struct {
	APIKeyEnv  string `yaml:"api_key_env,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURLEnv string `yaml:"base_url_env,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model,omitempty"`
	TimeoutMS  int    `yaml:"timeout_ms,omitempty"`
}

type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

type GenerationConfig struct {
	SystemContext string `yaml:"system_context,omitempty"`
	Model         string `yaml:"model,omitempty"`
	Count         int    `yaml:"count,omitempty"`
	// Concurrency caps in-flight request units; 0 launches the whole batch at once.
	Concurrency int `yaml:"concurrency,omitempty"`
	// MaxCount is the largest batch a single submission may request.
	MaxCount int `yaml:"max_count,omitempty"`
}

type DeliveryConfig struct {
	Mode    string        `yaml:"mode,omitempty"` // "webhook" or "file"
	Webhook WebhookConfig `yaml:"webhook,omitempty"`
	File    FileConfig    `yaml:"file,omitempty"`
}

type WebhookConfig struct {
	URLEnv    string `yaml:"url_env,omitempty"`
	URL       string `yaml:"url,omitempty"`
	Username  string `yaml:"username,omitempty"`
	Content   string `yaml:"content,omitempty"`
	Filename  string `yaml:"filename,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

type FileConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Filename string `yaml:"filename,omitempty"`
}

type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "console" or "json"
}
