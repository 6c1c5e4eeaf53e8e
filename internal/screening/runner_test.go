package screening

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/document"
	"github.com/spigell/shortlister/internal/logger"
)

type stubGenerator struct {
	responses map[string]string
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ string, doc document.Payload) (string, error) {
	raw, ok := s.responses[doc.Name]
	if !ok {
		return "", fmt.Errorf("no response for %s", doc.Name)
	}
	return raw, nil
}

func (s *stubGenerator) Provider() string { return "stub" }

func (s *stubGenerator) Model() string { return "stub-model" }

type fakeAnalyzer struct {
	preflightErr error
	gate         chan struct{}
	delay        time.Duration
	panicOn      string

	calls       int32
	inFlight    int32
	maxInFlight int32
}

func (f *fakeAnalyzer) Preflight(context.Context) error { return f.preflightErr }

func (f *fakeAnalyzer) Analyze(ctx context.Context, doc document.Payload, _ string) (*ai.Assessment, error) {
	atomic.AddInt32(&f.calls, 1)
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	for {
		observed := atomic.LoadInt32(&f.maxInFlight)
		if current <= observed || atomic.CompareAndSwapInt32(&f.maxInFlight, observed, current) {
			break
		}
	}

	if doc.Name == f.panicOn {
		panic("provider exploded")
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &ai.Assessment{Name: strings.TrimSuffix(doc.Name, ".pdf"), MatchScore: 50, KeyStrengths: []string{}, MissingSkills: []string{}}, nil
}

func pdfDocs(names ...string) []*document.Document {
	docs := make([]*document.Document, 0, len(names))
	for _, name := range names {
		docs = append(docs, document.FromBytes(name, document.MIMEPDF, []byte("%PDF "+name)))
	}
	return docs
}

type progressRecorder struct {
	mu      sync.Mutex
	updates []Stats
}

func (p *progressRecorder) record(stats Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, stats)
}

func (p *progressRecorder) all() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Stats(nil), p.updates...)
}

func response(name string, score int) string {
	return fmt.Sprintf(`{"name": %q, "matchScore": %d, "summary": "ok", "keyStrengths": ["Go"], "missingSkills": [], "experienceYears": 4}`, name, score)
}

func TestRunnerMixedBatch(t *testing.T) {
	generator := &stubGenerator{responses: map[string]string{
		"alice.pdf": response("Alice", 90),
		"bob.pdf":   response("Bob", 60),
		"carol.pdf": "Sorry, I can't help with that.",
	}}

	core, observed := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	runner := NewRunner(ai.NewAnalyzer(generator, 0, log), Options{Concurrency: 2}, log)
	progress := &progressRecorder{}

	results, err := runner.Run(context.Background(), pdfDocs("alice.pdf", "bob.pdf", "carol.pdf"), "Senior Go engineer", progress.record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, result := range results {
		if result.ID != fmt.Sprintf("file-%d", i) {
			t.Fatalf("unexpected id at %d: %s", i, result.ID)
		}
	}

	if results[0].Name != "Alice" || results[0].MatchScore != 90 || !results[0].Succeeded() {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Name != "Bob" || results[1].MatchScore != 60 || results[1].FileName != "bob.pdf" {
		t.Fatalf("unexpected second result: %+v", results[1])
	}

	failed := results[2]
	if failed.Status != StatusError || failed.Name != unknownCandidate || failed.Summary != failedSummary {
		t.Fatalf("unexpected error record: %+v", failed)
	}
	if failed.MatchScore != 0 || failed.ExperienceYears != 0 || failed.KeyStrengths == nil || len(failed.KeyStrengths) != 0 || failed.MissingSkills == nil {
		t.Fatalf("error record must carry zero values and empty lists: %+v", failed)
	}
	if !strings.Contains(failed.ErrorMessage, ai.ErrMalformedResponse.Error()) {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}

	updates := progress.all()
	if len(updates) != 4 {
		t.Fatalf("expected initial update and one per file, got %d", len(updates))
	}
	if updates[0] != (Stats{Total: 3}) {
		t.Fatalf("unexpected initial stats: %+v", updates[0])
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Completed != updates[i-1].Completed+1 {
			t.Fatalf("completed must grow by one per update: %+v", updates)
		}
		if updates[i].Completed != updates[i].Success+updates[i].Failed {
			t.Fatalf("completed must equal success plus failed: %+v", updates[i])
		}
	}
	if last := updates[len(updates)-1]; last != (Stats{Total: 3, Completed: 3, Success: 2, Failed: 1}) {
		t.Fatalf("unexpected final stats: %+v", last)
	}

	finished := observed.FilterMessage("batch finished").All()
	if len(finished) != 1 {
		t.Fatalf("expected batch finished log entry, got %d", len(finished))
	}
	if id, _ := finished[0].ContextMap()[logger.FieldBatchID].(string); id == "" {
		t.Fatal("expected batch id on log entry")
	}
}

func TestRunnerEncodeFailureBecomesErrorRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	missing, err := document.FromPath(path)
	if err != nil {
		t.Fatalf("from path: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	analyzer := &fakeAnalyzer{}
	runner := NewRunner(analyzer, Options{}, nil)

	docs := append(pdfDocs("ok.pdf"), missing)
	results, err := runner.Run(context.Background(), docs, "Go", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !results[0].Succeeded() {
		t.Fatalf("expected first document to succeed: %+v", results[0])
	}
	if results[1].Succeeded() || results[1].FileName != "gone.pdf" || results[1].ErrorMessage == "" {
		t.Fatalf("expected encode failure record, got %+v", results[1])
	}
	if calls := atomic.LoadInt32(&analyzer.calls); calls != 1 {
		t.Fatalf("analyzer must not be called for unreadable files, got %d calls", calls)
	}
}

func TestRunnerRejectsInvalidInput(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	runner := NewRunner(analyzer, Options{Concurrency: 1}, nil)

	tests := []struct {
		name     string
		docs     []*document.Document
		jd       string
		expectIs error
	}{
		{name: "blank job description", docs: pdfDocs("a.pdf"), jd: " \n\t ", expectIs: ErrEmptyJobDescription},
		{name: "no documents", jd: "Go", expectIs: ErrNoDocuments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := runner.Run(context.Background(), tt.docs, tt.jd, nil)
			if !errors.Is(err, tt.expectIs) {
				t.Fatalf("expected %v, got %v", tt.expectIs, err)
			}
			if results != nil {
				t.Fatalf("expected no results, got %+v", results)
			}
		})
	}

	if atomic.LoadInt32(&analyzer.calls) != 0 {
		t.Fatal("analyzer must not be called for invalid input")
	}
}

func TestRunnerPreflightFailure(t *testing.T) {
	missingKey := errors.New("api key is not configured")
	analyzer := &fakeAnalyzer{preflightErr: missingKey}

	_, err := NewRunner(analyzer, Options{}, nil).Run(context.Background(), pdfDocs("a.pdf"), "Go", nil)
	if !errors.Is(err, ErrPreflight) || !errors.Is(err, missingKey) {
		t.Fatalf("expected preflight error wrapping the cause, got %v", err)
	}
	if atomic.LoadInt32(&analyzer.calls) != 0 {
		t.Fatal("no document must be analyzed after a failed preflight")
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	analyzer := &fakeAnalyzer{delay: 20 * time.Millisecond}
	runner := NewRunner(analyzer, Options{Concurrency: 3}, nil)

	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("cv-%d.pdf", i)
	}

	results, err := runner.Run(context.Background(), pdfDocs(names...), "Go", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(names) {
		t.Fatalf("expected %d results, got %d", len(names), len(results))
	}

	if peak := atomic.LoadInt32(&analyzer.maxInFlight); peak > 3 || peak < 1 {
		t.Fatalf("expected at most 3 requests in flight, got %d", peak)
	}
}

func TestRunnerUnboundedStartsEveryRequest(t *testing.T) {
	gate := make(chan struct{})
	analyzer := &fakeAnalyzer{gate: gate}
	runner := NewRunner(analyzer, Options{Concurrency: 0}, nil)

	docs := pdfDocs("a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf", "f.pdf")

	done := make(chan []CandidateAnalysis, 1)
	go func() {
		results, _ := runner.Run(context.Background(), docs, "Go", nil)
		done <- results
	}()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&analyzer.inFlight) < int32(len(docs)) {
		if time.Now().After(deadline) {
			t.Fatalf("expected all %d requests in flight, got %d", len(docs), atomic.LoadInt32(&analyzer.inFlight))
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(gate)

	if results := <-done; len(results) != len(docs) {
		t.Fatalf("expected %d results, got %d", len(docs), len(results))
	}
}

func TestRunnerItemTimeout(t *testing.T) {
	analyzer := &fakeAnalyzer{gate: make(chan struct{})}
	runner := NewRunner(analyzer, Options{ItemTimeout: 20 * time.Millisecond}, nil)

	results, err := runner.Run(context.Background(), pdfDocs("slow.pdf"), "Go", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results[0].Succeeded() || !strings.Contains(results[0].ErrorMessage, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected timeout error record, got %+v", results[0])
	}
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	analyzer := &fakeAnalyzer{panicOn: "bad.pdf"}
	runner := NewRunner(analyzer, Options{Concurrency: 2}, nil)

	results, err := runner.Run(context.Background(), pdfDocs("bad.pdf", "good.pdf"), "Go", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results[0].Succeeded() || !strings.Contains(results[0].ErrorMessage, "panicked") {
		t.Fatalf("expected panic to become an error record, got %+v", results[0])
	}
	if !results[1].Succeeded() {
		t.Fatalf("expected second document to succeed, got %+v", results[1])
	}
}
