package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/document"
	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

// DefaultTemperature keeps extraction consistent between runs.
const DefaultTemperature float32 = 0.3

const (
	jobDescriptionPlaceholder = "{{JOB_DESCRIPTION}}"
	defaultMaxLogLength       = 200
)

// Analyzer turns a provider answer into a validated Assessment.
type Analyzer struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

// NewAnalyzer wraps generator. A non-positive maxLogLength falls back to the default preview size.
func NewAnalyzer(generator Generator, maxLogLength int, log *zap.Logger) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if generator != nil {
		log = logger.WithCommonFields(log, generator.Provider(), generator.Model())
	}

	return &Analyzer{
		generator: generator,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// Preflight checks the provider configuration without sending a document.
func (a *Analyzer) Preflight(ctx context.Context) error {
	if a == nil || a.generator == nil {
		return errors.New("analysis provider is not configured")
	}
	if p, ok := a.generator.(Preflighter); ok {
		return p.Preflight(ctx)
	}
	return nil
}

// Analyze sends one encoded resume to the provider and parses the answer.
func (a *Analyzer) Analyze(ctx context.Context, doc document.Payload, jobDescription string) (*Assessment, error) {
	if a == nil || a.generator == nil {
		return nil, errors.New("analysis provider is not configured")
	}
	if doc.Data == "" {
		return nil, fmt.Errorf("document %q has no content", doc.Name)
	}

	prompt := BuildPrompt(jobDescription)

	a.logger.Debug("generate content request",
		zap.String("file", doc.Name),
		zap.String("mime_type", doc.MIMEType),
		zap.Int("payload_length", len(doc.Data)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, prompt, doc)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("generate content response",
		zap.String("file", doc.Name),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	return ParseAssessment(raw)
}

// BuildPrompt renders the instruction prompt. The job description is inserted verbatim.
func BuildPrompt(jobDescription string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job description:\n" + jobDescriptionPlaceholder + "\n\nJSON Response:"
	}
	return strings.Replace(template, jobDescriptionPlaceholder, jobDescription, 1)
}
