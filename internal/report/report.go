package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/shortlister/internal/ranking"
	"github.com/spigell/shortlister/internal/screening"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"

	listSeparator = "; "
)

var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat accepts json and csv in any case.
func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatJSON, FormatCSV:
		return format, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (use json or csv)", ErrUnknownFormat, value)
	}
}

// Report is the exported view of a finished batch.
type Report struct {
	ID             string                        `json:"id"`
	GeneratedAt    time.Time                     `json:"generatedAt"`
	JobDescription string                        `json:"jobDescription"`
	Summary        ranking.Summary               `json:"summary"`
	Candidates     []screening.CandidateAnalysis `json:"candidates"`
}

// New ranks the results and computes the summary.
func New(jobDescription string, results []screening.CandidateAnalysis) *Report {
	candidates := ranking.Rank(results)
	if candidates == nil {
		candidates = []screening.CandidateAnalysis{}
	}

	return &Report{
		ID:             uuid.NewString(),
		GeneratedAt:    time.Now().UTC(),
		JobDescription: jobDescription,
		Summary:        ranking.Summarize(results),
		Candidates:     candidates,
	}
}

func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatCSV:
		return r.writeCSV(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var csvHeader = []string{
	"rank", "id", "file_name", "name", "email", "match_score", "band",
	"experience_years", "education_level", "status", "key_strengths",
	"missing_skills", "summary", "error_message",
}

func (r *Report) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for i, c := range r.Candidates {
		row := []string{
			strconv.Itoa(i + 1),
			c.ID,
			c.FileName,
			c.Name,
			c.Email,
			strconv.Itoa(c.MatchScore),
			string(ranking.BandOf(c.MatchScore)),
			strconv.FormatFloat(c.ExperienceYears, 'f', -1, 64),
			c.EducationLevel,
			string(c.Status),
			strings.Join(c.KeyStrengths, listSeparator),
			strings.Join(c.MissingSkills, listSeparator),
			c.Summary,
			c.ErrorMessage,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, replacing any existing file.
func (r *Report) WriteFile(path string, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	if err := r.Write(file, format); err != nil {
		file.Close()
		return fmt.Errorf("write report: %w", err)
	}

	return file.Close()
}

// DumpToTmpFile writes the report into a new temporary file and returns its name.
func (r *Report) DumpToTmpFile(format Format) (string, error) {
	if format != FormatJSON && format != FormatCSV {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	file, err := os.CreateTemp("", fmt.Sprintf("shortlist_*.%s", format))
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := r.Write(file, format); err != nil {
		return "", err
	}
	return file.Name(), nil
}
