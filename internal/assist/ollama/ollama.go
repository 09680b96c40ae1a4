// Package ollama implements the assist capabilities against a local Ollama
// server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/core"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llava"
)

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Images  []string         `json:"images,omitempty"`
	Stream  bool             `json:"stream"`
	Format  any              `json:"format,omitempty"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Adapter talks to /api/generate without streaming.
type Adapter struct {
	baseURL    string
	model      string
	cats       core.Categories
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates an adapter. Empty baseURL and model fall back to the
// defaults.
func New(baseURL, model string, cats core.Categories, opts ...Option) *Adapter {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	a := &Adapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		cats:       cats,
		httpClient: &http.Client{},
		logger:     zerolog.New(os.Stdout).With().Timestamp().Str("component", "ollama").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SuggestCategory implements assist.CategorySuggester.
func (a *Adapter) SuggestCategory(ctx context.Context, description string) (string, error) {
	reply, err := a.generate(ctx, generateRequest{
		Model:   a.model,
		Prompt:  assist.SuggestPrompt(description, a.cats),
		Options: &generateOptions{Temperature: 0, NumPredict: 16},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", assist.ErrSuggestionFailed, err)
	}
	label := assist.CleanSuggestion(reply)
	if label == "" {
		return "", fmt.Errorf("%w: empty reply", assist.ErrSuggestionFailed)
	}
	return label, nil
}

// ExtractReceipt implements assist.ReceiptExtractor. The category enum is
// passed as the structured output format.
func (a *Adapter) ExtractReceipt(ctx context.Context, img assist.DataURI) (assist.ReceiptDraft, error) {
	reply, err := a.generate(ctx, generateRequest{
		Model:   a.model,
		Prompt:  assist.ReceiptPrompt(a.cats),
		Images:  []string{img.Base64()},
		Format:  assist.ReceiptSchema(a.cats),
		Options: &generateOptions{Temperature: 0},
	})
	if err != nil {
		return assist.ReceiptDraft{}, fmt.Errorf("%w: %w", assist.ErrScanFailed, err)
	}
	draft, err := assist.DecodeReceipt(reply)
	if err != nil {
		a.logger.Error().Err(err).Str("raw_text", reply).Msg("failed to decode receipt JSON from ollama")
		return assist.ReceiptDraft{}, err
	}
	return draft, nil
}

func (a *Adapter) generate(ctx context.Context, payload generateRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error().Err(err).Msg("error connecting to ollama API")
		return "", fmt.Errorf("ollama API connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		a.logger.Error().Err(err).Msg("failed to decode ollama response json")
		return "", fmt.Errorf("decode response: %w", err)
	}

	a.logger.Debug().
		Str("model", out.Model).
		Int("response_len", len(out.Response)).
		Msg("ollama response received")

	if out.Response == "" {
		return "", errors.New("ollama returned empty response")
	}
	return out.Response, nil
}
