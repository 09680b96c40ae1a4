package assist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"pocketbalance/internal/core"
)

var suggestTmpl = template.Must(template.New("suggest").Parse(
	`You are a personal finance assistant. You will suggest a spending category for a given transaction description.

Transaction Description: {{.Description}}

Suggest a single category for this transaction. The category should be one of the following: {{.Categories}}.

Respond with ONLY the name of the category.
`))

var receiptTmpl = template.Must(template.New("receipt").Parse(
	`You are a finance assistant skilled at reading shopping receipts.
Analyse the attached receipt image and extract the key information.

1. description: a short description of the transaction, such as the store name or a summary ("Monthly groceries", "Lunch").
2. amount: the final total on the receipt, the number that was actually paid.
3. category: the best matching spending category from this list: {{.Categories}}.

Reply with JSON matching the given schema and nothing else.
`))

// SuggestPrompt renders the category suggestion instruction.
func SuggestPrompt(description string, cats core.Categories) string {
	return render(suggestTmpl, map[string]string{
		"Description": description,
		"Categories":  cats.Join(", "),
	})
}

// ReceiptPrompt renders the receipt extraction instruction.
func ReceiptPrompt(cats core.Categories) string {
	return render(receiptTmpl, map[string]string{
		"Categories": cats.Join(", "),
	})
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// templates are static and data is a flat map
		panic(err)
	}
	return buf.String()
}

// ReceiptSchemaName names the structured output in provider requests.
const ReceiptSchemaName = "receipt_draft"

// ReceiptSchema is the JSON schema of a ReceiptDraft with the category
// constrained to cats.
func ReceiptSchema(cats core.Categories) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"description": "A brief summary or title of the receipt.",
			},
			"amount": map[string]any{
				"type":        "number",
				"description": "The final total amount from the receipt.",
			},
			"category": map[string]any{
				"type":        "string",
				"enum":        cats.Strings(),
				"description": "The most likely spending category for this transaction.",
			},
		},
		"required":             []string{"description", "amount", "category"},
		"additionalProperties": false,
	}
}

// DecodeReceipt parses a provider's structured reply. Malformed JSON and
// missing fields are schema violations and yield ErrScanFailed. The
// category is not checked against the enumeration here.
func DecodeReceipt(raw string) (ReceiptDraft, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out struct {
		Description *string  `json:"description"`
		Amount      *float64 `json:"amount"`
		Category    *string  `json:"category"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return ReceiptDraft{}, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}
	if out.Description == nil || out.Amount == nil || out.Category == nil {
		return ReceiptDraft{}, fmt.Errorf("%w: reply is missing required fields", ErrScanFailed)
	}
	return ReceiptDraft{
		Description: *out.Description,
		Amount:      *out.Amount,
		Category:    *out.Category,
	}, nil
}

// CleanSuggestion trims a model's free text reply down to the label.
func CleanSuggestion(reply string) string {
	s := strings.TrimSpace(reply)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `."'*`+"`")
}
