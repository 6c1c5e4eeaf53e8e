package screening

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/document"
	"github.com/spigell/shortlister/internal/logger"
)

// Snapshot is a copy of the session state that is safe to keep.
type Snapshot struct {
	State     State
	Job       JobContext
	Documents []*document.Document
	Results   []CandidateAnalysis
	Stats     Stats
	Err       error
}

// Session owns the lifecycle of one batch at a time:
// Idle -> Processing -> Complete | Error, and back to Idle on Reset.
type Session struct {
	runner *Runner
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	job         JobContext
	docs        []*document.Document
	results     []CandidateAnalysis
	stats       Stats
	err         error
	generation  uint64
	subscribers map[int]ProgressFunc
	nextSubID   int
}

func NewSession(runner *Runner, log *zap.Logger) *Session {
	return &Session{
		runner:      runner,
		logger:      logger.WithFields(log),
		state:       StateIdle,
		subscribers: make(map[int]ProgressFunc),
	}
}

// Start validates the input and runs the batch in the background. Invalid input
// and a batch that is still processing leave the current state untouched.
// The returned channel is closed once the batch settles or is discarded by Reset.
func (s *Session) Start(ctx context.Context, docs []*document.Document, jobDescription string) (<-chan struct{}, error) {
	if err := Validate(docs, jobDescription); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateProcessing {
		s.mu.Unlock()
		return nil, ErrBatchInProgress
	}

	s.generation++
	generation := s.generation
	s.state = StateProcessing
	s.job = JobContext{Description: jobDescription}
	s.docs = append([]*document.Document(nil), docs...)
	s.results = nil
	s.stats = Stats{Total: len(docs)}
	s.err = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)

		results, err := s.runner.Run(ctx, docs, jobDescription, func(stats Stats) {
			s.publish(generation, stats)
		})

		s.finish(generation, results, err)
	}()

	return done, nil
}

// Run starts a batch and blocks until it settles.
func (s *Session) Run(ctx context.Context, docs []*document.Document, jobDescription string) (Snapshot, error) {
	done, err := s.Start(ctx, docs, jobDescription)
	if err != nil {
		return s.Snapshot(), err
	}
	<-done

	snap := s.Snapshot()
	return snap, snap.Err
}

func (s *Session) publish(generation uint64, stats Stats) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.stats = stats
	subscribers := make([]ProgressFunc, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(stats)
	}
}

func (s *Session) finish(generation uint64, results []CandidateAnalysis, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		s.logger.Debug("discarding results of a reset batch", zap.Int("results", len(results)))
		return
	}

	if err != nil {
		s.state = StateError
		s.err = err
		if errors.Is(err, ErrPreflight) {
			s.logger.Error("batch could not start", zap.Error(err))
		}
		return
	}

	s.state = StateComplete
	s.results = results
}

// Reset returns the session to Idle and forgets the job, the documents, the
// results and the stats. Requests already in flight keep running but their
// results are dropped when they arrive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.state = StateIdle
	s.job = JobContext{}
	s.docs = nil
	s.results = nil
	s.stats = Stats{}
	s.err = nil
}

// Subscribe registers fn for progress updates of current and future batches.
func (s *Session) Subscribe(fn ProgressFunc) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:     s.state,
		Job:       s.job,
		Documents: append([]*document.Document(nil), s.docs...),
		Results:   append([]CandidateAnalysis(nil), s.results...),
		Stats:     s.stats,
		Err:       s.err,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
