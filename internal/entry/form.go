// Package entry validates user input before it reaches the ledger. It is
// the layer that checks amounts and category membership, including labels
// coming back from the AI assistant.
package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/core"
)

// MinDescriptionLen is the shortest accepted description, in characters.
const MinDescriptionLen = 2

var (
	ErrDescriptionNeeded = errors.New("enter a description first")
	ErrInvalidSuggestion = errors.New("suggested category is not a known category")
	ErrDescriptionShort  = fmt.Errorf("description must be at least %d characters", MinDescriptionLen)
)

// ValidationError lists every problem found in a form.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid entry: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// SpendingForm is the spending entry form. Amount is the text as typed.
type SpendingForm struct {
	Description string
	Amount      string
	Category    core.Category
}

// IncomeForm is the income entry form.
type IncomeForm struct {
	Description string
	Amount      string
}

// ApplySuggestion asks s for a category and selects it when it belongs to
// cats. A label outside cats leaves the form untouched and returns
// ErrInvalidSuggestion so the user picks manually.
func (f *SpendingForm) ApplySuggestion(ctx context.Context, s assist.CategorySuggester, cats core.Categories) (core.Category, error) {
	if strings.TrimSpace(f.Description) == "" {
		return "", ErrDescriptionNeeded
	}
	label, err := s.SuggestCategory(ctx, f.Description)
	if err != nil {
		return "", err
	}
	c := core.Category(strings.TrimSpace(label))
	if !cats.Contains(c) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSuggestion, label)
	}
	f.Category = c
	return c, nil
}

// ApplyReceipt fills the form from a scanned receipt. A category outside
// cats is dropped so the user has to choose one.
func (f *SpendingForm) ApplyReceipt(d assist.ReceiptDraft, cats core.Categories) {
	f.Description = d.Description
	f.Amount = core.FormatAmount(d.Amount)
	if c := core.Category(d.Category); cats.Contains(c) {
		f.Category = c
	} else {
		f.Category = ""
	}
}

// Submit validates the form and returns a draft ready for the ledger.
func (f SpendingForm) Submit(cats core.Categories) (core.Draft, error) {
	var problems []error
	desc, err := description(f.Description)
	if err != nil {
		problems = append(problems, err)
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		problems = append(problems, err)
	}
	switch {
	case f.Category == "":
		problems = append(problems, core.ErrMissingCategory)
	case !cats.Contains(f.Category):
		problems = append(problems, fmt.Errorf("%w: %q", core.ErrUnknownCategory, f.Category))
	}
	if len(problems) > 0 {
		return core.Draft{}, &ValidationError{Problems: problems}
	}
	return core.SpendingDraft(desc, amount, f.Category), nil
}

// Submit validates the form and returns a draft ready for the ledger.
func (f IncomeForm) Submit() (core.Draft, error) {
	var problems []error
	desc, err := description(f.Description)
	if err != nil {
		problems = append(problems, err)
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return core.Draft{}, &ValidationError{Problems: problems}
	}
	return core.IncomeDraft(desc, amount), nil
}

func description(raw string) (string, error) {
	d := Sanitize(raw)
	if d == "" {
		return "", core.ErrEmptyDescription
	}
	if utf8.RuneCountInString(d) < MinDescriptionLen {
		return "", ErrDescriptionShort
	}
	return d, nil
}
