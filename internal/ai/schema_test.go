package ai

import (
	"errors"
	"testing"
)

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		assert func(t *testing.T, a *Assessment)
	}{
		{
			name: "code fence",
			raw:  "```json\n" + validResponse + "\n```",
			assert: func(t *testing.T, a *Assessment) {
				if a.Email != "jane@example.com" || a.EducationLevel != "MSc" {
					t.Fatalf("optional fields not decoded: %+v", a)
				}
			},
		},
		{
			name: "surrounding prose",
			raw:  "Here is the analysis:\n" + validResponse + "\nGood luck!",
			assert: func(t *testing.T, a *Assessment) {
				if a.Name != "Jane Doe" {
					t.Fatalf("unexpected name: %q", a.Name)
				}
			},
		},
		{
			name: "fractional score is rounded",
			raw:  `{"name": "A", "matchScore": 84.5, "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": 2.5}`,
			assert: func(t *testing.T, a *Assessment) {
				if a.MatchScore != 85 {
					t.Fatalf("expected 85, got %d", a.MatchScore)
				}
				if a.ExperienceYears != 2.5 {
					t.Fatalf("expected 2.5 years, got %v", a.ExperienceYears)
				}
			},
		},
		{
			name: "string numbers are accepted",
			raw:  `{"name": "A", "matchScore": "70", "summary": "s", "keyStrengths": ["Go", " "], "missingSkills": [], "experienceYears": "3"}`,
			assert: func(t *testing.T, a *Assessment) {
				if a.MatchScore != 70 || a.ExperienceYears != 3 {
					t.Fatalf("unexpected numbers: %+v", a)
				}
				if len(a.KeyStrengths) != 1 || a.KeyStrengths[0] != "Go" {
					t.Fatalf("unexpected strengths: %#v", a.KeyStrengths)
				}
			},
		},
		{
			name: "optional fields missing",
			raw:  `{"name": "A", "matchScore": 0, "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": 0}`,
			assert: func(t *testing.T, a *Assessment) {
				if a.Email != "" || a.EducationLevel != "" {
					t.Fatalf("expected empty optional fields: %+v", a)
				}
				if a.KeyStrengths == nil || a.MissingSkills == nil {
					t.Fatal("expected empty non-nil lists")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAssessment(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.assert(t, a)
		})
	}
}

func TestParseAssessmentRejects(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expectIs error
	}{
		{name: "empty", raw: "", expectIs: ErrEmptyResponse},
		{name: "not json", raw: "no idea", expectIs: ErrMalformedResponse},
		{name: "array", raw: `[1, 2]`, expectIs: ErrMalformedResponse},
		{
			name:     "missing summary",
			raw:      `{"name": "A", "matchScore": 50, "keyStrengths": [], "missingSkills": [], "experienceYears": 1}`,
			expectIs: ErrMalformedResponse,
		},
		{
			name:     "null score",
			raw:      `{"name": "A", "matchScore": null, "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": 1}`,
			expectIs: ErrMalformedResponse,
		},
		{
			name:     "wrong type",
			raw:      `{"name": "A", "matchScore": "high", "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": 1}`,
			expectIs: ErrMalformedResponse,
		},
		{
			name:     "score above range",
			raw:      `{"name": "A", "matchScore": 150, "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": 1}`,
			expectIs: ErrMalformedResponse,
		},
		{
			name:     "score below range",
			raw:      `{"name": "A", "matchScore": -1, "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": 1}`,
			expectIs: ErrMalformedResponse,
		},
		{
			name:     "negative experience",
			raw:      `{"name": "A", "matchScore": 10, "summary": "s", "keyStrengths": [], "missingSkills": [], "experienceYears": -2}`,
			expectIs: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAssessment(tt.raw); !errors.Is(err, tt.expectIs) {
				t.Fatalf("expected %v, got %v", tt.expectIs, err)
			}
		})
	}
}
