package fanout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/metrics"
	"github.com/lyricgen/lyricgen/internal/model"
	"github.com/lyricgen/lyricgen/internal/providers"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// fakeProvider hands each call a 1-based call number and delegates to fn.
type fakeProvider struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int, req providers.ProviderRequest) (string, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Execute(ctx context.Context, req providers.ProviderRequest) (providers.ProviderResponse, providers.Timings, error) {
	call := int(p.calls.Add(1))
	text, err := p.fn(ctx, call, req)
	if err != nil {
		return providers.ProviderResponse{}, providers.Timings{}, err
	}
	return providers.ProviderResponse{AssistantText: text}, providers.Timings{Latency: time.Millisecond}, nil
}

var testRequest = model.GenerationRequest{SystemContext: "S", UserPrompt: "U", Model: "m"}

func TestRun_AllSucceed(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(_ context.Context, call int, _ providers.ProviderRequest) (string, error) {
		return fmt.Sprintf("verse %d", call), nil
	}}
	c := NewCoordinator(p, Options{Sampler: FixedSampler(0.4), Logger: zaptest.NewLogger(t)})
	state := batch.NewState()

	var observed []model.CompletionResult
	report, err := c.Run(context.Background(), state, testRequest, 5, func(res model.CompletionResult) {
		observed = append(observed, res)
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Status != batch.StatusCompleted || state.Status() != batch.StatusCompleted {
		t.Errorf("status = %s / %s, want completed", report.Status, state.Status())
	}
	if report.Succeeded != 5 || len(state.Results()) != 5 || len(observed) != 5 {
		t.Errorf("succeeded = %d, results = %d, observed = %d; want 5", report.Succeeded, len(state.Results()), len(observed))
	}
	for _, res := range state.Results() {
		if !res.Succeeded() || res.Temperature != 0.4 {
			t.Errorf("result = %+v, want success at temperature 0.4", res)
		}
	}
	if state.Curation().Len() != 5 {
		t.Errorf("curation entries = %d, want 5", state.Curation().Len())
	}
	if report.BatchID == "" || report.Requested != 5 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_CompletionOrder(t *testing.T) {
	t.Parallel()
	release := make(chan string)
	p := &fakeProvider{fn: func(ctx context.Context, _ int, _ providers.ProviderRequest) (string, error) {
		select {
		case text := <-release:
			return text, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	c := NewCoordinator(p, Options{Sampler: FixedSampler(0.1)})
	state := batch.NewState()

	seen := make(chan string, 3)
	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), state, testRequest, 3, func(res model.CompletionResult) {
			seen <- res.Text
		})
		done <- err
	}()

	for _, text := range []string{"third", "first", "second"} {
		release <- text
		if got := <-seen; got != text {
			t.Fatalf("observed %q, want %q", got, text)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var got []string
	for _, res := range state.Results() {
		got = append(got, res.Text)
	}
	want := []string{"third", "first", "second"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Results() order = %v, want %v", got, want)
		}
	}
}

func TestRun_FailFastKeepsEarlierSuccesses(t *testing.T) {
	t.Parallel()
	successSeen := make(chan struct{})
	straggler := make(chan struct{})
	t.Cleanup(func() { close(straggler) })

	p := &fakeProvider{fn: func(ctx context.Context, call int, _ providers.ProviderRequest) (string, error) {
		switch call {
		case 1:
			<-straggler
			return "straggler", nil
		case 2:
			return "kept", nil
		default:
			<-successSeen
			return "", errors.New("insufficient_quota")
		}
	}}
	reg := prometheus.NewRegistry()
	c := NewCoordinator(p, Options{Sampler: FixedSampler(0.9), Logger: zap.NewNop(), Metrics: metrics.New(reg)})
	state := batch.NewState()

	var once sync.Once
	report, err := c.Run(context.Background(), state, testRequest, 3, func(res model.CompletionResult) {
		if res.Succeeded() {
			once.Do(func() { close(successSeen) })
		}
	})

	var unitErr *UnitError
	if !errors.As(err, &unitErr) {
		t.Fatalf("Run() error = %v, want *UnitError", err)
	}
	if unitErr.Reason != "insufficient_quota" || unitErr.Temperature != 0.9 {
		t.Errorf("UnitError = %+v", unitErr)
	}
	if report.Status != batch.StatusFailedPartial || state.Status() != batch.StatusFailedPartial {
		t.Errorf("status = %s / %s, want failed_partial", report.Status, state.Status())
	}
	if report.Failure == nil || report.Failure.Outcome != model.OutcomeFailure {
		t.Errorf("report.Failure = %+v", report.Failure)
	}
	results := state.Results()
	if len(results) != 1 || results[0].Text != "kept" {
		t.Fatalf("Results() = %+v, want the single success collected before the failure", results)
	}
	if report.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", report.Succeeded)
	}
	if f, ok := state.Failure(); !ok || f.FailureReason != "insufficient_quota" {
		t.Errorf("Failure() = %+v, %v", f, ok)
	}
}

func TestRun_LateResultsDiscarded(t *testing.T) {
	t.Parallel()
	straggler := make(chan struct{})
	p := &fakeProvider{fn: func(ctx context.Context, call int, _ providers.ProviderRequest) (string, error) {
		if call == 1 {
			<-straggler
			return "late", nil
		}
		return "", errors.New("boom")
	}}
	reg := prometheus.NewRegistry()
	coll := metrics.New(reg)
	c := NewCoordinator(p, Options{Sampler: FixedSampler(0.2), Metrics: coll})
	state := batch.NewState()

	if _, err := c.Run(context.Background(), state, testRequest, 2, nil); err == nil {
		t.Fatal("Run() expected error")
	}
	close(straggler)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if discardedTotal(t, reg) >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := discardedTotal(t, reg); got != 1 {
		t.Fatalf("late results discarded = %v, want 1", got)
	}
	if len(state.Results()) != 0 || state.Curation().Len() != 0 {
		t.Errorf("late result leaked into state: %+v", state.Snapshot())
	}
}

func discardedTotal(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "lyricgen_late_results_discarded_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestRun_InvalidCountLaunchesNothing(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(context.Context, int, providers.ProviderRequest) (string, error) {
		return "x", nil
	}}
	c := NewCoordinator(p, Options{})
	state := batch.NewState()

	for _, count := range []int{0, -3} {
		_, err := c.Run(context.Background(), state, testRequest, count, nil)
		if !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Run(count=%d) error = %v, want ErrInvalidCount", count, err)
		}
	}
	if got := p.calls.Load(); got != 0 {
		t.Errorf("provider calls = %d, want 0", got)
	}
	if state.Status() != batch.StatusIdle {
		t.Errorf("Status() = %s, want idle", state.Status())
	}
}

func TestRun_CountOverLimit(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(context.Context, int, providers.ProviderRequest) (string, error) {
		return "x", nil
	}}
	c := NewCoordinator(p, Options{MaxCount: 50})
	state := batch.NewState()

	for _, count := range []int{51, 1 << 62} {
		_, err := c.Run(context.Background(), state, testRequest, count, nil)
		if !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Run(count=%d) error = %v, want ErrInvalidCount", count, err)
		}
	}
	if got := p.calls.Load(); got != 0 {
		t.Errorf("provider calls = %d, want 0", got)
	}
	if state.Status() != batch.StatusIdle {
		t.Fatalf("Status() = %s, want idle", state.Status())
	}

	report, err := c.Run(context.Background(), state, testRequest, 50, nil)
	if err != nil {
		t.Fatalf("Run(count=50) error: %v", err)
	}
	if report.Succeeded != 50 {
		t.Errorf("succeeded = %d, want 50", report.Succeeded)
	}
}

func TestRun_PanicLeavesBatchTerminal(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(context.Context, int, providers.ProviderRequest) (string, error) {
		return "x", nil
	}}
	c := NewCoordinator(p, Options{Concurrency: 1})
	state := batch.NewState()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("Run() did not panic")
			}
		}()
		_, _ = c.Run(context.Background(), state, testRequest, 3, func(model.CompletionResult) {
			panic("observer broke")
		})
	}()

	if got := state.Status(); got != batch.StatusFailedPartial {
		t.Fatalf("Status() = %s, want failed_partial", got)
	}
	if failure, ok := state.Failure(); !ok || failure.Index != -1 {
		t.Errorf("Failure() = %+v, %v", failure, ok)
	}

	if _, err := c.Run(context.Background(), state, testRequest, 1, nil); err != nil {
		t.Fatalf("Run() after panic error: %v", err)
	}
	if got := state.Status(); got != batch.StatusCompleted {
		t.Errorf("Status() = %s, want completed", got)
	}
}

func TestCheckCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n, limit int
		ok       bool
	}{
		{1, 0, true},
		{DefaultMaxCount, 0, true},
		{DefaultMaxCount + 1, 0, false},
		{5, 5, true},
		{6, 5, false},
		{0, 5, false},
		{-1, 0, false},
		{1 << 62, 0, false},
	}
	for _, tt := range tests {
		err := CheckCount(tt.n, tt.limit)
		if (err == nil) != tt.ok {
			t.Errorf("CheckCount(%d, %d) = %v, want ok=%v", tt.n, tt.limit, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidCount) {
			t.Errorf("CheckCount(%d, %d) = %v, want ErrInvalidCount", tt.n, tt.limit, err)
		}
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	t.Parallel()
	var inFlight, peak atomic.Int32
	p := &fakeProvider{fn: func(_ context.Context, call int, _ providers.ProviderRequest) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return fmt.Sprintf("v%d", call), nil
	}}
	c := NewCoordinator(p, Options{Concurrency: 3, Sampler: FixedSampler(0.5)})
	state := batch.NewState()

	report, err := c.Run(context.Background(), state, testRequest, 10, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Succeeded != 10 {
		t.Errorf("Succeeded = %d, want 10", report.Succeeded)
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak in-flight units = %d, want <= 3", got)
	}
}

func TestRun_BoundedFailureSkipsQueuedUnits(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(ctx context.Context, call int, _ providers.ProviderRequest) (string, error) {
		switch call {
		case 1, 2:
			return fmt.Sprintf("ok %d", call), nil
		case 3:
			return "", errors.New("model not found")
		default:
			<-ctx.Done()
			return "", ctx.Err()
		}
	}}
	c := NewCoordinator(p, Options{Concurrency: 1, Sampler: FixedSampler(0.3)})
	state := batch.NewState()

	report, err := c.Run(context.Background(), state, testRequest, 20, nil)
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if report.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", report.Succeeded)
	}
	if got := p.calls.Load(); got > 4 {
		t.Errorf("provider calls = %d, want queued units to stay unlaunched", got)
	}
}

func TestRun_CancelledParentContext(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(ctx context.Context, _ int, _ providers.ProviderRequest) (string, error) {
		return "", ctx.Err()
	}}
	c := NewCoordinator(p, Options{})
	state := batch.NewState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.Run(ctx, state, testRequest, 3, nil)
	if err == nil {
		t.Fatal("Run() expected error for cancelled context")
	}
	if report.Status != batch.StatusFailedPartial || report.Succeeded != 0 {
		t.Errorf("report = %+v, want failed_partial with no successes", report)
	}
}

func TestRun_IdenticalTextsCollapse(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(context.Context, int, providers.ProviderRequest) (string, error) {
		return "same chorus", nil
	}}
	c := NewCoordinator(p, Options{})
	state := batch.NewState()

	if _, err := c.Run(context.Background(), state, testRequest, 3, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(state.Results()) != 3 {
		t.Errorf("Results() = %d, want 3", len(state.Results()))
	}
	if state.Curation().Len() != 1 {
		t.Errorf("curation entries = %d, want 1", state.Curation().Len())
	}
}

func TestRun_BatchInFlight(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	p := &fakeProvider{fn: func(ctx context.Context, _ int, _ providers.ProviderRequest) (string, error) {
		started <- struct{}{}
		<-block
		return "x", nil
	}}
	c := NewCoordinator(p, Options{})
	state := batch.NewState()

	done := make(chan struct{})
	go func() {
		_, _ = c.Run(context.Background(), state, testRequest, 1, nil)
		close(done)
	}()
	<-started

	_, err := c.Run(context.Background(), state, testRequest, 1, nil)
	if !errors.Is(err, batch.ErrBatchInFlight) {
		t.Errorf("Run() error = %v, want ErrBatchInFlight", err)
	}
	close(block)
	<-done
}

func TestUnit_Execute(t *testing.T) {
	t.Parallel()
	var got providers.ProviderRequest
	p := &fakeProvider{fn: func(_ context.Context, _ int, req providers.ProviderRequest) (string, error) {
		got = req
		return "hook line", nil
	}}
	res := Unit{Provider: p, Sampler: FixedSampler(0.6)}.Execute(context.Background(), 4, testRequest)

	if !res.Succeeded() || res.Text != "hook line" || res.Index != 4 || res.Temperature != 0.6 {
		t.Errorf("Execute() = %+v", res)
	}
	if got.Model != "m" || len(got.Messages) != 2 {
		t.Errorf("request = %+v", got)
	}
	if got.Params == nil || *got.Params.Temperature != 0.6 || *got.Params.MaxOutputTokens != 2048 ||
		*got.Params.TopP != 1 || *got.Params.FrequencyPenalty != 0 || *got.Params.PresencePenalty != 0 {
		t.Errorf("params = %+v", got.Params)
	}
}

func TestUnit_ExecuteError(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(context.Context, int, providers.ProviderRequest) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}}
	res := Unit{Provider: p, Sampler: FixedSampler(0)}.Execute(context.Background(), 0, testRequest)
	if res.Succeeded() || res.FailureReason != "dial tcp: connection refused" {
		t.Errorf("Execute() = %+v, want failure with reason", res)
	}
}

func TestUnit_ExecutePanic(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{fn: func(context.Context, int, providers.ProviderRequest) (string, error) {
		panic("nil choices")
	}}
	res := Unit{Provider: p, Sampler: FixedSampler(1)}.Execute(context.Background(), 0, testRequest)
	if res.Succeeded() || res.FailureReason != "provider panic: nil choices" {
		t.Errorf("Execute() = %+v, want recovered failure", res)
	}
}

func TestParseCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{" 3\n", 3, false},
		{"1", 1, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"ten", 0, true},
		{"2.5", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCount(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCount) {
				t.Errorf("ParseCount(%q) error = %v, want ErrInvalidCount", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseCount(%q) = %d, %v; want %d", tt.input, got, err, tt.want)
		}
	}
}

func TestUniformSampler(t *testing.T) {
	t.Parallel()
	s := NewUniformSampler(42)
	for i := 0; i < 1000; i++ {
		v := s.Temperature()
		if v < 0 || v > 1 {
			t.Fatalf("Temperature() = %v, out of [0,1]", v)
		}
		if tenths := v * 10; math.Abs(tenths-math.Round(tenths)) > 1e-9 {
			t.Fatalf("Temperature() = %v, not rounded to one decimal", v)
		}
	}
}

func TestRoundTenth(t *testing.T) {
	t.Parallel()
	tests := map[float64]float64{0: 0, 0.04: 0, 0.06: 0.1, 0.44: 0.4, 0.96: 1, 1: 1}
	for in, want := range tests {
		if got := roundTenth(in); got != want {
			t.Errorf("roundTenth(%v) = %v, want %v", in, got, want)
		}
	}
}
