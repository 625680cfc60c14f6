package model

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

type SamplingParams struct {
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	MaxOutputTokens  *int     `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
}

// Fixed sampling parameters shared by every request unit; only the
// temperature varies between units.
const (
	DefaultMaxOutputTokens  = 2048
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
)

// UnitSampling returns the sampling parameters for one request unit.
func UnitSampling(temperature float64) *SamplingParams {
	maxTokens := DefaultMaxOutputTokens
	topP := DefaultTopP
	freq := DefaultFrequencyPenalty
	pres := DefaultPresencePenalty
	return &SamplingParams{
		Temperature:      &temperature,
		TopP:             &topP,
		MaxOutputTokens:  &maxTokens,
		FrequencyPenalty: &freq,
		PresencePenalty:  &pres,
	}
}

// GenerationRequest is the prompt configuration shared by every unit of a batch.
type GenerationRequest struct {
	SystemContext string `json:"system_context"`
	UserPrompt    string `json:"user_prompt"`
	Model         string `json:"model,omitempty"`
}

// Messages renders the request as a system + user chat exchange.
func (r GenerationRequest) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: r.SystemContext},
		{Role: RoleUser, Content: r.UserPrompt},
	}
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

type CompletionResult struct {
	Index         int           `json:"index"`
	Text          string        `json:"text,omitempty"`
	Temperature   float64       `json:"temperature"`
	Outcome       Outcome       `json:"outcome"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Latency       time.Duration `json:"-"`
}

func (r CompletionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
