// Package fanout launches request units against the completion API and
// aggregates their results, in completion order, into a batch.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/metrics"
	"github.com/lyricgen/lyricgen/internal/model"
	"github.com/lyricgen/lyricgen/internal/providers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Concurrency bounds in-flight units. Zero means every unit of the
	// batch is launched at once.
	Concurrency int
	// MaxCount is the largest batch Run accepts. Zero means DefaultMaxCount.
	MaxCount    int
	Sampler     Sampler
	Logger      *zap.Logger
	Metrics     *metrics.Collectors
}

type Coordinator struct {
	provider    providers.Provider
	unit        Unit
	concurrency int
	maxCount    int
	logger      *zap.Logger
	metrics     *metrics.Collectors
}

func NewCoordinator(provider providers.Provider, opts Options) *Coordinator {
	sampler := opts.Sampler
	if sampler == nil {
		sampler = NewUniformSampler(uint64(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency < 0 {
		concurrency = 0
	}
	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	return &Coordinator{
		provider:    provider,
		unit:        Unit{Provider: provider, Sampler: sampler},
		concurrency: concurrency,
		maxCount:    maxCount,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// Observer is called from the coordinator goroutine for every result
// accepted into the batch, in completion order.
type Observer func(res model.CompletionResult)

type Report struct {
	BatchID   string
	Status    batch.Status
	Requested int
	Succeeded int
	Failure   *model.CompletionResult
	Elapsed   time.Duration
}

// Run submits a batch of count units to state and collects results as they
// complete. On the first failure Run stops waiting, cancels units that are
// still pending and returns a *UnitError; successes collected before that
// point stay in state. Late results are discarded.
//
// Counts outside [1, MaxCount] fail with ErrInvalidCount before anything is
// submitted. Once submitted, the batch always ends in a terminal status,
// even if Run panics.
func (c *Coordinator) Run(ctx context.Context, state *batch.State, req model.GenerationRequest, count int, observe Observer) (Report, error) {
	if err := CheckCount(count, c.maxCount); err != nil {
		return Report{}, err
	}
	ticket, err := state.Submit(req, count)
	if err != nil {
		return Report{}, err
	}
	defer state.Abort(ticket, "batch aborted before completion")
	if err := state.BeginCollecting(ticket); err != nil {
		return Report{}, err
	}

	logger := c.logger.With(zap.String("batch_id", ticket.ID))
	logger.Info("batch submitted",
		zap.Int("count", count),
		zap.Int("concurrency", c.concurrency),
		zap.String("provider", c.provider.Name()),
		zap.String("model", req.Model),
	)

	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan model.CompletionResult, count)
	go c.launch(runCtx, req, count, results)

	report := Report{BatchID: ticket.ID, Requested: count}
	for res := range results {
		if !state.Record(ticket, res) {
			c.metrics.LateResultDiscarded()
			continue
		}
		if observe != nil {
			observe(res)
		}
		if res.Succeeded() {
			report.Succeeded++
			logger.Debug("unit completed",
				zap.Int("unit", res.Index),
				zap.Float64("temperature", res.Temperature),
				zap.Duration("latency", res.Latency),
			)
			continue
		}

		cancel()
		failure := res
		report.Status = batch.StatusFailedPartial
		report.Failure = &failure
		report.Elapsed = time.Since(start)
		logger.Warn("unit failed; batch stopped",
			zap.Int("unit", res.Index),
			zap.Float64("temperature", res.Temperature),
			zap.String("reason", res.FailureReason),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("requested", count),
		)
		c.metrics.BatchFinished(string(batch.StatusFailedPartial))
		go c.discard(results, logger)
		return report, newUnitError(failure)
	}

	state.Complete(ticket)
	report.Status = batch.StatusCompleted
	report.Elapsed = time.Since(start)
	logger.Info("batch completed",
		zap.Int("succeeded", report.Succeeded),
		zap.Duration("elapsed", report.Elapsed),
	)
	c.metrics.BatchFinished(string(batch.StatusCompleted))
	return report, nil
}

// launch starts one goroutine per unit, bounded by the concurrency limit,
// and closes results once every launched unit has reported. Units that have
// not reached the provider when ctx is cancelled report a cancellation
// failure instead.
func (c *Coordinator) launch(ctx context.Context, req model.GenerationRequest, count int, results chan<- model.CompletionResult) {
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			results <- notStarted(i, err)
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results <- notStarted(i, err)
				return nil
			}
			c.metrics.UnitStarted()
			res := c.unit.Execute(ctx, i, req)
			c.metrics.UnitFinished(string(res.Outcome), res.Latency.Seconds())
			results <- res
			return nil
		})
	}
	_ = g.Wait()
	close(results)
}

func notStarted(index int, err error) model.CompletionResult {
	return model.CompletionResult{
		Index:         index,
		Outcome:       model.OutcomeFailure,
		FailureReason: fmt.Sprintf("not started: %v", err),
	}
}

// discard drains results that arrive after the batch stopped. The channel
// is buffered for the whole batch, so units never block on it.
func (c *Coordinator) discard(results <-chan model.CompletionResult, logger *zap.Logger) {
	late := 0
	for range results {
		late++
		c.metrics.LateResultDiscarded()
	}
	if late > 0 {
		logger.Debug("discarded late results", zap.Int("count", late))
	}
}
