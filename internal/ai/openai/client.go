package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/document"
	"github.com/spigell/shortlister/internal/utils"
)

const (
	// ProviderName is the value of the ai.provider setting that selects this package.
	ProviderName = "openai"

	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second

	maxErrorBody = 300
)

// ErrMissingAPIKey is reported by Preflight and every request when no key was configured.
var ErrMissingAPIKey = errors.New("openai api key is not configured")

// HTTPError is returned for non-2xx answers of the chat completions endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openai api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("openai api returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Config holds the connection settings of an OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Generator talks to any OpenAI-compatible chat completions API that accepts file parts.
type Generator struct {
	client      *resty.Client
	model       string
	temperature float32
	hasKey      bool
}

// NewGenerator creates a Generator. An empty key is reported through Preflight.
func NewGenerator(cfg Config) *Generator {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	apiKey := strings.TrimSpace(cfg.APIKey)

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &Generator{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		hasKey:      apiKey != "",
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content []any  `json:"content"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type filePart struct {
	Type string   `json:"type"`
	File fileData `json:"file"`
}

type fileData struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Preflight reports a missing API key before any document is sent.
func (g *Generator) Preflight(context.Context) error {
	if g == nil || !g.hasKey {
		return ErrMissingAPIKey
	}
	return nil
}

// GenerateContent posts the document as a file part with the prompt and returns the reply text.
func (g *Generator) GenerateContent(ctx context.Context, prompt string, doc document.Payload) (string, error) {
	if err := g.Preflight(ctx); err != nil {
		return "", err
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []any{
				filePart{Type: "file", File: fileData{Filename: doc.Name, FileData: doc.DataURL()}},
				textPart{Type: "text", Text: prompt},
			},
		}},
		Temperature:    g.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	var (
		result  chatResponse
		failure errorResponse
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		// resty reports undecodable bodies as errors, error statuses are handled below
		if resp == nil || resp.StatusCode() == 0 || !resp.IsError() {
			return "", fmt.Errorf("call chat completions: %w", err)
		}
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		message := utils.TruncateForLog(string(resp.Body()), maxErrorBody)
		if failure.Error != nil && strings.TrimSpace(failure.Error.Message) != "" {
			message = failure.Error.Message
		}
		return "", &HTTPError{StatusCode: resp.StatusCode(), Message: message}
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices: %w", ai.ErrEmptyResponse)
	}

	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai: %w", ai.ErrEmptyResponse)
	}

	return content, nil
}

// Provider returns the provider name used in logs.
func (g *Generator) Provider() string {
	return ProviderName
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
