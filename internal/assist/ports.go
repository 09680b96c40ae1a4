// Package assist turns free text and receipt photos into transaction data
// with the help of an external model provider.
package assist

import (
	"context"
	"errors"
)

var (
	// ErrSuggestionFailed is the only error a suggestion surfaces to users.
	ErrSuggestionFailed = errors.New("failed to suggest a category")
	// ErrScanFailed is the only error a receipt scan surfaces to users.
	ErrScanFailed = errors.New("failed to scan receipt")

	ErrEmptyDescription = errors.New("description is required")
	ErrEmptyImage       = errors.New("receipt image is required")
	ErrInvalidDataURI   = errors.New("invalid data uri")
	ErrNotAnImage       = errors.New("data uri is not an image")
)

// CategorySuggester classifies a description into one category label. The
// label is untrusted: callers check it against the configured set.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, description string) (string, error)
}

// ReceiptExtractor reads a receipt image into a draft.
type ReceiptExtractor interface {
	ExtractReceipt(ctx context.Context, image DataURI) (ReceiptDraft, error)
}

// ReceiptDraft is what a receipt scan yields. Amount is the receipt's final
// total.
type ReceiptDraft struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}
