package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/summarize"
)

// Defaults applied when the configuration leaves them empty.
const (
	DefaultAPIURL    = "https://api-inference.huggingface.co/models"
	DefaultModel     = "facebook/bart-large-cnn"
	DefaultMaxLength = 130

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20
)

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	MaxLength int `json:"max_length,omitempty"`
}

type summaryItem struct {
	SummaryText string `json:"summary_text"`
}

type errorPayload struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// Backend implements summarize.Backend against the Inference API.
type Backend struct {
	httpClient *http.Client
	endpoint   string
	token      string
	maxLength  int
	logger     *slog.Logger
}

var _ summarize.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// NewBackend creates a backend from cfg. Per-attempt timeouts come from the
// caller's context, so the default HTTP client has no timeout of its own.
func NewBackend(cfg config.SummarizerConfig, logger *slog.Logger, opts ...Option) (*Backend, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("hugging face API token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	model := strings.Trim(cfg.Model, "/")
	if model == "" {
		model = DefaultModel
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	b := &Backend{
		httpClient: &http.Client{},
		endpoint:   apiURL + "/" + model,
		token:      cfg.APIToken,
		maxLength:  maxLength,
		logger:     logger.With(slog.String("component", "huggingface_backend")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name implements summarize.Backend.
func (b *Backend) Name() string { return "huggingface" }

// Summarize implements summarize.Backend. Network errors, 429 and 5xx
// responses (including 503 while the model loads) are transient; other
// statuses, error payloads and malformed bodies are upstream failures.
func (b *Backend) Summarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(request{Inputs: text, Parameters: parameters{MaxLength: b.maxLength}})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode request: %v", summarize.ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build request: %v", summarize.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", summarize.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", summarize.ErrTransient, err)
	}

	b.logger.DebugContext(ctx, "inference API responded",
		slog.Int("status", resp.StatusCode),
		slog.Int("body_bytes", len(raw)))

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, raw)
	}

	return parseSummary(raw)
}

func statusError(status int, raw []byte) error {
	detail := http.StatusText(status)
	var payload errorPayload
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		detail = payload.Error
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d: %s", summarize.ErrTransient, status, detail)
	}
	return fmt.Errorf("%w: status %d: %s", summarize.ErrUpstream, status, detail)
}

// parseSummary accepts the list form returned on success. An object with an
// "error" field is an explicit failure even under a 200 status.
func parseSummary(raw []byte) (string, error) {
	var items []summaryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		var payload errorPayload
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			return "", fmt.Errorf("%w: %s", summarize.ErrUpstream, payload.Error)
		}
		return "", fmt.Errorf("%w: malformed response: %v", summarize.ErrUpstream, err)
	}

	if len(items) == 0 {
		return "", fmt.Errorf("%w: response contained no summaries", summarize.ErrUpstream)
	}
	return items[0].SummaryText, nil
}
