package screening

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/document"
	"github.com/spigell/shortlister/internal/logger"
)

// ProgressFunc receives a copy of the stats after every resolved request.
// Calls are serialized and arrive in completion order.
type ProgressFunc func(Stats)

// Options tune a Runner. Zero Concurrency means no bound.
type Options struct {
	Concurrency int
	ItemTimeout time.Duration
}

// Runner fans a batch of resumes out to the analyzer.
type Runner struct {
	analyzer    ai.DocumentAnalyzer
	concurrency int
	itemTimeout time.Duration
	logger      *zap.Logger
}

func NewRunner(analyzer ai.DocumentAnalyzer, opts Options, log *zap.Logger) *Runner {
	return &Runner{
		analyzer:    analyzer,
		concurrency: opts.Concurrency,
		itemTimeout: opts.ItemTimeout,
		logger:      logger.WithFields(log),
	}
}

// Validate checks batch preconditions without touching the provider.
func Validate(docs []*document.Document, jobDescription string) error {
	if !(JobContext{Description: jobDescription}).Valid() {
		return ErrEmptyJobDescription
	}
	if len(docs) == 0 {
		return ErrNoDocuments
	}
	return nil
}

// Run analyzes every document and returns one CandidateAnalysis per input in
// submission order. Item failures become error records and never fail the batch.
// An error is returned only for invalid input or a failed provider preflight.
func (r *Runner) Run(ctx context.Context, docs []*document.Document, jobDescription string, onProgress ProgressFunc) ([]CandidateAnalysis, error) {
	if err := Validate(docs, jobDescription); err != nil {
		return nil, err
	}

	if r.analyzer == nil {
		return nil, fmt.Errorf("%w: no analyzer configured", ErrPreflight)
	}

	if p, ok := r.analyzer.(ai.Preflighter); ok {
		if err := p.Preflight(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
		}
	}

	batchID := uuid.NewString()
	log := logger.WithFields(r.logger, logger.BatchFields(batchID)...)

	requests := make([]Request, len(docs))
	for i, doc := range docs {
		requests[i] = Request{
			ID:             fmt.Sprintf("file-%d", i),
			Document:       doc,
			JobDescription: jobDescription,
		}
	}

	results := make([]CandidateAnalysis, len(requests))

	var mu sync.Mutex
	stats := Stats{Total: len(requests)}
	if onProgress != nil {
		onProgress(stats)
	}

	limit := r.concurrency
	if limit <= 0 {
		limit = -1
	}

	log.Info("batch started",
		zap.Int("files", len(requests)),
		zap.Int("concurrency", r.concurrency),
		zap.Duration("item_timeout", r.itemTimeout),
	)
	started := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, req := range requests {
		g.Go(func() error {
			result := r.process(ctx, log, req)
			results[i] = result

			mu.Lock()
			defer mu.Unlock()

			stats.Completed++
			if result.Succeeded() {
				stats.Success++
			} else {
				stats.Failed++
			}

			if onProgress != nil {
				onProgress(stats)
			}

			return nil
		})
	}

	// tasks never return errors
	_ = g.Wait()

	log.Info("batch finished",
		zap.Int("total", stats.Total),
		zap.Int("success", stats.Success),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", time.Since(started)),
	)

	return results, nil
}

func (r *Runner) process(ctx context.Context, log *zap.Logger, req Request) (result CandidateAnalysis) {
	fileName := ""
	if req.Document != nil {
		fileName = req.Document.Name
	}
	log = log.With(logger.RequestFields(req.ID, fileName)...)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("analysis panicked", zap.Any("panic", rec))
			result = errorRecord(req, fmt.Errorf("analysis panicked: %v", rec))
		}
	}()

	if req.Document == nil {
		return errorRecord(req, errors.New("document is missing"))
	}

	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}

	payload, err := document.Encode(req.Document)
	if err != nil {
		log.Warn("failed to encode resume", zap.Error(err))
		return errorRecord(req, err)
	}

	assessment, err := r.analyzer.Analyze(ctx, payload, req.JobDescription)
	if err != nil {
		log.Warn("failed to analyze resume", zap.Error(err))
		return errorRecord(req, err)
	}

	log.Debug("resume analyzed",
		zap.String("candidate", assessment.Name),
		zap.Int("match_score", assessment.MatchScore),
	)

	return successRecord(req, assessment)
}
