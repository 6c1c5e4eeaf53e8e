package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/shortlister/internal/utils"
)

const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldMatchScore      = "matchScore"
	FieldSummary         = "summary"
	FieldKeyStrengths    = "keyStrengths"
	FieldMissingSkills   = "missingSkills"
	FieldExperienceYears = "experienceYears"
	FieldEducationLevel  = "educationLevel"

	MinScore = 0
	MaxScore = 100
)

// RequiredFields lists the keys every assessment must carry.
var RequiredFields = []string{
	FieldName,
	FieldMatchScore,
	FieldSummary,
	FieldKeyStrengths,
	FieldMissingSkills,
	FieldExperienceYears,
}

type assessmentWire struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	MatchScore      float64  `json:"matchScore"`
	Summary         string   `json:"summary"`
	KeyStrengths    []string `json:"keyStrengths"`
	MissingSkills   []string `json:"missingSkills"`
	ExperienceYears float64  `json:"experienceYears"`
	EducationLevel  string   `json:"educationLevel"`
}

// ParseAssessment validates and decodes a provider answer.
// Scores outside [0,100] are rejected, fractional scores are rounded.
func ParseAssessment(raw string) (*Assessment, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	for _, key := range RequiredFields {
		if value, ok := data[key]; !ok || value == nil {
			return nil, fmt.Errorf("%w: missing required field %q", ErrMalformedResponse, key)
		}
	}

	var wire assessmentWire
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &wire,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if math.IsNaN(wire.MatchScore) || wire.MatchScore < MinScore || wire.MatchScore > MaxScore {
		return nil, fmt.Errorf("%w: %s %v is outside [%d,%d]", ErrMalformedResponse, FieldMatchScore, wire.MatchScore, MinScore, MaxScore)
	}

	if math.IsNaN(wire.ExperienceYears) || wire.ExperienceYears < 0 {
		return nil, fmt.Errorf("%w: %s must not be negative", ErrMalformedResponse, FieldExperienceYears)
	}

	return &Assessment{
		Name:            strings.TrimSpace(wire.Name),
		Email:           strings.TrimSpace(wire.Email),
		MatchScore:      int(math.Round(wire.MatchScore)),
		Summary:         strings.TrimSpace(wire.Summary),
		KeyStrengths:    utils.NonEmpty(wire.KeyStrengths),
		MissingSkills:   utils.NonEmpty(wire.MissingSkills),
		ExperienceYears: wire.ExperienceYears,
		EducationLevel:  strings.TrimSpace(wire.EducationLevel),
		Raw:             raw,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(raw)

	// models sometimes wrap the object in prose
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		return raw[start : end+1]
	}

	return raw
}
