package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/document"
)

const (
	// ProviderName is the value of the ai.provider setting that selects this package.
	ProviderName = "gemini"

	defaultModel = "gemini-2.5-flash"
)

// ErrMissingAPIKey is reported by Preflight and every request when no key was configured.
var ErrMissingAPIKey = errors.New("gemini api key is not configured")

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to analyze one inline document per request.
type Generator struct {
	models      modelsAPI
	modelName   string
	temperature float32
}

// NewGenerator creates a Generator for the Gemini API backend. An empty key does
// not fail here so that the batch can report it through Preflight.
func NewGenerator(ctx context.Context, apiKey, model string, temperature float32) (*Generator, error) {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	g := &Generator{modelName: model, temperature: temperature}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return g, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	g.models = client.Models
	return g, nil
}

// Preflight reports a missing API key before any document is sent.
func (g *Generator) Preflight(context.Context) error {
	if g == nil || g.models == nil {
		return ErrMissingAPIKey
	}
	return nil
}

// GenerateContent sends the document inline together with the prompt and returns the textual answer.
func (g *Generator) GenerateContent(ctx context.Context, prompt string, doc document.Payload) (string, error) {
	if err := g.Preflight(ctx); err != nil {
		return "", err
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	data, err := doc.Bytes()
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: doc.MIMEType, Data: data}},
			{Text: prompt},
		},
	}}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   assessmentSchema(),
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini: %w", ai.ErrEmptyResponse)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// one candidate is requested, further ones would produce concatenated JSON
		if builder.Len() > 0 {
			break
		}
	}

	output := strings.TrimSpace(builder.String())
	if output != "" {
		return output, nil
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: %w: prompt blocked: %s", ai.ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}

	return "", fmt.Errorf("gemini: %w", ai.ErrEmptyResponse)
}

func assessmentSchema() *genai.Schema {
	text := func(description string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: description}
	}
	number := func(description string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: description}
	}
	list := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: description,
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			ai.FieldName:            text("Candidate's full name inferred from the resume"),
			ai.FieldEmail:           text("Candidate's email address if available"),
			ai.FieldMatchScore:      number("Fit for the role from 0 to 100"),
			ai.FieldSummary:         text("Executive summary of the candidate's fit in 2-3 sentences"),
			ai.FieldKeyStrengths:    list("Top 3-5 strengths relevant to the job description"),
			ai.FieldMissingSkills:   list("Critical skills or qualifications missing from the resume"),
			ai.FieldExperienceYears: number("Total years of relevant experience"),
			ai.FieldEducationLevel:  text("Highest education degree found"),
		},
		Required: append([]string(nil), ai.RequiredFields...),
	}
}

// Provider returns the provider name used in logs.
func (g *Generator) Provider() string {
	return ProviderName
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
