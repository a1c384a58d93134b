package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/summarize"
)

// DefaultPromptTemplate asks for an abstractive summary, since summaries
// that copy input sentences are rejected.
const DefaultPromptTemplate = `Summarize the following text in your own words in at most {{.MaxLength}} words.
Do not copy any sentence from the text verbatim. Reply with the summary only.

{{.Text}}`

// contentGenerator is the part of *genai.Models the backend uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type promptData struct {
	Text      string
	MaxLength int
}

// Backend implements summarize.Backend with Gemini.
type Backend struct {
	models    contentGenerator
	model     string
	maxLength int
	prompt    *template.Template
	logger    *slog.Logger
}

var _ summarize.Backend = (*Backend)(nil)

// NewBackend creates a Gemini client from cfg. APIToken is the Gemini API key.
func NewBackend(ctx context.Context, cfg config.SummarizerConfig, logger *slog.Logger) (*Backend, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIToken,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newBackend(client.Models, cfg, logger)
}

func newBackend(models contentGenerator, cfg config.SummarizerConfig, logger *slog.Logger) (*Backend, error) {
	if cfg.Model == "" {
		return nil, errors.New("gemini model name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	text := cfg.PromptTemplate
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	prompt, err := template.New("summary").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &Backend{
		models:    models,
		model:     cfg.Model,
		maxLength: cfg.MaxLength,
		prompt:    prompt,
		logger:    logger.With(slog.String("component", "gemini_backend")),
	}, nil
}

// Name implements summarize.Backend.
func (b *Backend) Name() string { return "gemini" }

// Summarize implements summarize.Backend.
func (b *Backend) Summarize(ctx context.Context, text string) (string, error) {
	var buf bytes.Buffer
	if err := b.prompt.Execute(&buf, promptData{Text: text, MaxLength: b.maxLength}); err != nil {
		return "", fmt.Errorf("%w: failed to render prompt: %v", summarize.ErrUpstream, err)
	}

	b.logger.DebugContext(ctx, "calling Gemini",
		slog.String("model", b.model),
		slog.Int("prompt_length", buf.Len()))

	resp, err := b.models.GenerateContent(ctx, b.model, genai.Text(buf.String()), nil)
	if err != nil {
		return "", classify(err)
	}

	switch {
	case resp == nil || len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no candidates in response", summarize.ErrUpstream)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: content blocked by safety filters", summarize.ErrUpstream)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", summarize.ErrUpstream)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// classify marks server-side and throttling errors as transient. Other API
// errors are permanent; anything that is not an API error (network, timeout)
// is transient.
func classify(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	if code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", summarize.ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", summarize.ErrUpstream, err)
}
