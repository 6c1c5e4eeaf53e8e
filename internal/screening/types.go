package screening

import (
	"errors"
	"strings"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/document"
)

const (
	// DefaultConcurrency is the number of files analyzed at the same time.
	DefaultConcurrency = 5

	unknownCandidate = "Unknown Candidate"
	failedSummary    = "Failed to analyze resume."
)

var (
	ErrEmptyJobDescription = errors.New("job description must not be empty")
	ErrNoDocuments         = errors.New("at least one resume is required")
	ErrPreflight           = errors.New("analysis provider is not usable")
	ErrBatchInProgress     = errors.New("a batch is already being processed")
)

// JobContext is the role every resume of a batch is measured against.
type JobContext struct {
	Description string `json:"description"`
}

// Valid reports whether the description carries any text.
func (j JobContext) Valid() bool {
	return strings.TrimSpace(j.Description) != ""
}

// Request is one unit of work: a single resume scored against the job description.
type Request struct {
	ID             string
	Document       *document.Document
	JobDescription string
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// CandidateAnalysis is the outcome of one Request. Every request yields exactly one.
type CandidateAnalysis struct {
	ID              string   `json:"id"`
	FileName        string   `json:"fileName"`
	Name            string   `json:"name"`
	Email           string   `json:"email,omitempty"`
	MatchScore      int      `json:"matchScore"`
	Summary         string   `json:"summary"`
	KeyStrengths    []string `json:"keyStrengths"`
	MissingSkills   []string `json:"missingSkills"`
	ExperienceYears float64  `json:"experienceYears"`
	EducationLevel  string   `json:"educationLevel,omitempty"`
	Status          Status   `json:"status"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
}

// Succeeded reports whether the analysis came from a valid provider answer.
func (c CandidateAnalysis) Succeeded() bool {
	return c.Status == StatusSuccess
}

func successRecord(req Request, a *ai.Assessment) CandidateAnalysis {
	return CandidateAnalysis{
		ID:              req.ID,
		FileName:        req.Document.Name,
		Name:            a.Name,
		Email:           a.Email,
		MatchScore:      a.MatchScore,
		Summary:         a.Summary,
		KeyStrengths:    a.KeyStrengths,
		MissingSkills:   a.MissingSkills,
		ExperienceYears: a.ExperienceYears,
		EducationLevel:  a.EducationLevel,
		Status:          StatusSuccess,
	}
}

func errorRecord(req Request, err error) CandidateAnalysis {
	fileName := ""
	if req.Document != nil {
		fileName = req.Document.Name
	}

	message := "unknown error"
	if err != nil && err.Error() != "" {
		message = err.Error()
	}

	return CandidateAnalysis{
		ID:            req.ID,
		FileName:      fileName,
		Name:          unknownCandidate,
		Summary:       failedSummary,
		KeyStrengths:  []string{},
		MissingSkills: []string{},
		Status:        StatusError,
		ErrorMessage:  message,
	}
}

// Stats tracks batch progress. Completed always equals Success plus Failed.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// Done reports whether every request of the batch has resolved.
func (s Stats) Done() bool {
	return s.Completed >= s.Total
}

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateError      State = "error"
)
