// Package batch holds the state of one fan-out batch: the request, the
// lifecycle status, the collected completions and the curation entries
// seeded from them.
package batch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lyricgen/lyricgen/internal/model"
)

// Status is the lifecycle position of a batch.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusSubmitted     Status = "submitted"
	StatusCollecting    Status = "collecting"
	StatusCompleted     Status = "completed"
	StatusFailedPartial Status = "failed_partial"
)

// Terminal reports whether no further results will be accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailedPartial
}

// ErrBatchInFlight is returned by Submit while a batch is still collecting.
var ErrBatchInFlight = errors.New("batch already in flight")

// Ticket identifies one submission. Results stamped with an older ticket
// are discarded.
type Ticket struct {
	ID         string
	generation uint64
}

// State is the explicit handle shared by the coordinator, the curation
// surfaces and the dataset assembler. It is safe for concurrent use.
type State struct {
	mu          sync.Mutex
	generation  uint64
	id          string
	status      Status
	request     model.GenerationRequest
	requested   int
	results     []model.CompletionResult
	failure     *model.CompletionResult
	submittedAt time.Time
	finishedAt  time.Time
	store       *CurationStore
}

func NewState() *State {
	return &State{status: StatusIdle, store: NewCurationStore()}
}

// Submit starts a new batch, discarding the previous batch's results and
// curation entries. It is allowed from Idle or a terminal state.
func (s *State) Submit(req model.GenerationRequest, count int) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSubmitted || s.status == StatusCollecting {
		return Ticket{}, fmt.Errorf("submit: %w (%s)", ErrBatchInFlight, s.id)
	}
	s.generation++
	s.id = uuid.NewString()
	s.status = StatusSubmitted
	s.request = req
	s.requested = count
	s.results = nil
	s.failure = nil
	s.submittedAt = time.Now().UTC()
	s.finishedAt = time.Time{}
	s.store.Reset()
	return Ticket{ID: s.id, generation: s.generation}, nil
}

// BeginCollecting moves a submitted batch to Collecting.
func (s *State) BeginCollecting(t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(t) || s.status != StatusSubmitted {
		return fmt.Errorf("begin collecting %s: batch is %s", t.ID, s.status)
	}
	s.status = StatusCollecting
	return nil
}

// Record stores one completion. Successes seed the curation store; the
// first failure moves the batch to FailedPartial. Results for a stale
// ticket or arriving after a terminal state are dropped and Record
// returns false.
func (s *State) Record(t Ticket, res model.CompletionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(t) || s.status != StatusCollecting {
		return false
	}
	if !res.Succeeded() {
		failure := res
		s.failure = &failure
		s.status = StatusFailedPartial
		s.finishedAt = time.Now().UTC()
		return true
	}
	s.results = append(s.results, res)
	s.store.Seed(res.Text)
	return true
}

// Complete marks a collecting batch as Completed.
func (s *State) Complete(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(t) || s.status != StatusCollecting {
		return false
	}
	s.status = StatusCompleted
	s.finishedAt = time.Now().UTC()
	return true
}

// Abort moves a batch that never reached a terminal status to
// FailedPartial, keeping whatever was collected. It is a no-op for stale
// tickets and finished batches, so callers can defer it right after Submit.
func (s *State) Abort(t Ticket, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(t) || s.status.Terminal() || s.status == StatusIdle {
		return false
	}
	s.failure = &model.CompletionResult{
		Index:         -1,
		Outcome:       model.OutcomeFailure,
		FailureReason: reason,
	}
	s.status = StatusFailedPartial
	s.finishedAt = time.Now().UTC()
	return true
}

func (s *State) current(t Ticket) bool {
	return t.generation == s.generation && t.generation != 0
}

// Curation returns the curation store of the current batch.
func (s *State) Curation() *CurationStore {
	return s.store
}

// Snapshot is a point-in-time copy of a batch.
type Snapshot struct {
	ID          string                   `json:"id,omitempty"`
	Status      Status                   `json:"status"`
	Request     model.GenerationRequest  `json:"request"`
	Requested   int                      `json:"requested"`
	Results     []model.CompletionResult `json:"results"`
	Failure     *model.CompletionResult  `json:"failure,omitempty"`
	Entries     []Entry                  `json:"entries"`
	SubmittedAt time.Time                `json:"submitted_at,omitzero"`
	FinishedAt  time.Time                `json:"finished_at,omitzero"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.id,
		Status:      s.status,
		Request:     s.request,
		Requested:   s.requested,
		Results:     append([]model.CompletionResult(nil), s.results...),
		Entries:     s.store.Entries(),
		SubmittedAt: s.submittedAt,
		FinishedAt:  s.finishedAt,
	}
	if s.failure != nil {
		failure := *s.failure
		snap.Failure = &failure
	}
	return snap
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *State) Request() model.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

// Results returns the successful completions in arrival order.
func (s *State) Results() []model.CompletionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CompletionResult(nil), s.results...)
}

// Failure returns the first observed failure, if any.
func (s *State) Failure() (model.CompletionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return model.CompletionResult{}, false
	}
	return *s.failure, true
}
