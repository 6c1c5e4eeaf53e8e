package ai

import (
	"context"
	"errors"

	"github.com/spigell/shortlister/internal/document"
)

var (
	// ErrEmptyResponse is returned when the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from analysis provider")
	// ErrMalformedResponse is returned when the answer is not a valid assessment.
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// Assessment is the structured verdict for one resume.
type Assessment struct {
	Name            string   `json:"name"`
	Email           string   `json:"email,omitempty"`
	MatchScore      int      `json:"matchScore"`
	Summary         string   `json:"summary"`
	KeyStrengths    []string `json:"keyStrengths"`
	MissingSkills   []string `json:"missingSkills"`
	ExperienceYears float64  `json:"experienceYears"`
	EducationLevel  string   `json:"educationLevel,omitempty"`
	Raw             string   `json:"-"`
}

// Generator sends one document and an instruction prompt to a model and
// returns the textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, doc document.Payload) (string, error)
	Provider() string
	Model() string
}

// Preflighter is implemented by generators that can detect unusable
// configuration before any request is made.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// DocumentAnalyzer scores one encoded resume against a job description.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, doc document.Payload, jobDescription string) (*Assessment, error)
}
