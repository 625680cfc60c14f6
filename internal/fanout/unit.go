package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/lyricgen/lyricgen/internal/model"
	"github.com/lyricgen/lyricgen/internal/providers"
)

// Unit issues a single sampling call against the completion API.
type Unit struct {
	Provider providers.Provider
	Sampler  Sampler
}

// Execute performs one completion call with a freshly drawn temperature.
// Every provider error, including a panic, becomes a failure result; Execute
// never retries.
func (u Unit) Execute(ctx context.Context, index int, req model.GenerationRequest) (res model.CompletionResult) {
	temperature := u.Sampler.Temperature()
	res = model.CompletionResult{Index: index, Temperature: temperature}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = model.OutcomeFailure
			res.FailureReason = fmt.Sprintf("provider panic: %v", r)
			res.Text = ""
		}
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
	}()

	resp, timings, err := u.Provider.Execute(ctx, providers.ProviderRequest{
		Model:    req.Model,
		Messages: req.Messages(),
		Params:   model.UnitSampling(temperature),
	})
	if err != nil {
		res.Outcome = model.OutcomeFailure
		res.FailureReason = err.Error()
		return res
	}
	res.Outcome = model.OutcomeSuccess
	res.Text = resp.AssistantText
	res.Latency = timings.Latency
	return res
}
