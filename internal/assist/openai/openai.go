// Package openai implements the assist capabilities on top of an
// OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/core"
)

// DefaultModel is used when no model is configured. It accepts images.
const DefaultModel = goopenai.GPT4oMini

// Config holds provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider calls the chat completions endpoint for both suggestions and
// receipt scans.
type Provider struct {
	client *goopenai.Client
	model  string
	cats   core.Categories
}

// New creates a provider for the given category set.
func New(cfg Config, cats core.Categories) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  model,
		cats:   cats,
	}
}

// SuggestCategory implements assist.CategorySuggester.
func (p *Provider) SuggestCategory(ctx context.Context, description string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{{
			Role:    goopenai.ChatMessageRoleUser,
			Content: assist.SuggestPrompt(description, p.cats),
		}},
		MaxTokens: 16,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", assist.ErrSuggestionFailed, describe(err))
	}
	content, err := firstContent(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", assist.ErrSuggestionFailed, err)
	}
	label := assist.CleanSuggestion(content)
	if label == "" {
		return "", fmt.Errorf("%w: empty reply", assist.ErrSuggestionFailed)
	}
	return label, nil
}

// ExtractReceipt implements assist.ReceiptExtractor.
func (p *Provider) ExtractReceipt(ctx context.Context, img assist.DataURI) (assist.ReceiptDraft, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: assist.ReceiptPrompt(p.cats)},
				{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
					URL:    img.String(),
					Detail: goopenai.ImageURLDetailAuto,
				}},
			},
		}},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   assist.ReceiptSchemaName,
				Schema: receiptSchema(p.cats),
				Strict: true,
			},
		},
	})
	if err != nil {
		return assist.ReceiptDraft{}, fmt.Errorf("%w: %w", assist.ErrScanFailed, describe(err))
	}
	content, err := firstContent(resp)
	if err != nil {
		return assist.ReceiptDraft{}, fmt.Errorf("%w: %w", assist.ErrScanFailed, err)
	}
	return assist.DecodeReceipt(content)
}

func receiptSchema(cats core.Categories) *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"description": {Type: jsonschema.String, Description: "A brief summary or title of the receipt."},
			"amount":      {Type: jsonschema.Number, Description: "The final total amount from the receipt."},
			"category": {
				Type:        jsonschema.String,
				Enum:        cats.Strings(),
				Description: "The most likely spending category for this transaction.",
			},
		},
		Required:             []string{"description", "amount", "category"},
		AdditionalProperties: false,
	}
}

func firstContent(resp goopenai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in reply")
	}
	c := resp.Choices[0]
	if c.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", c.Message.Refusal)
	}
	return c.Message.Content, nil
}

func describe(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("api error %d (%v): %s", apiErr.HTTPStatusCode, apiErr.Code, apiErr.Message)
	}
	return err
}
