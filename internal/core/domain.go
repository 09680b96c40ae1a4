package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindIncome   Kind = "income"
	KindSpending Kind = "spending"
)

// DateLayout is the ISO-8601 form used for transaction timestamps,
// always in UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

type (
	// Kind discriminates the two transaction variants.
	Kind string

	// Transaction is a recorded income or spending event. Category is set
	// only for spending.
	Transaction struct {
		ID          string   `json:"id"`
		Description string   `json:"description"`
		Amount      float64  `json:"amount"`
		Date        string   `json:"date"`
		Type        Kind     `json:"type"`
		Category    Category `json:"category,omitempty"`
	}

	// Draft is a transaction payload that has not been assigned an id or
	// timestamp yet.
	Draft struct {
		Type        Kind     `json:"type"`
		Description string   `json:"description"`
		Amount      float64  `json:"amount"`
		Category    Category `json:"category,omitempty"`
	}
)

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid transaction type")
	ErrMissingCategory    = errors.New("spending requires a category")
	ErrUnexpectedCategory = errors.New("income cannot have a category")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrInvalidDate        = errors.New("invalid date")
)

// IncomeDraft builds an income draft.
func IncomeDraft(description string, amount float64) Draft {
	return Draft{Type: KindIncome, Description: description, Amount: amount}
}

// SpendingDraft builds a spending draft.
func SpendingDraft(description string, amount float64, category Category) Draft {
	return Draft{Type: KindSpending, Description: description, Amount: amount, Category: category}
}

func (k Kind) String() string {
	return string(k)
}

// IsValid reports whether k is one of the known variants.
func (k Kind) IsValid() bool {
	switch k {
	case KindIncome, KindSpending:
		return true
	default:
		return false
	}
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses an ISO-8601 timestamp. Both DateLayout and RFC 3339 are
// accepted so that documents written by other tools still load.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Validate checks the structural invariants of a draft against the
// configured category set.
func (d Draft) Validate(cats Categories) error {
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if !(d.Amount > 0) {
		return ErrInvalidAmount
	}
	return validateCategory(d.Type, d.Category, cats)
}

// Transaction materialises the draft with the given id and timestamp.
func (d Draft) Transaction(id string, at time.Time) Transaction {
	t := Transaction{
		ID:          id,
		Description: d.Description,
		Amount:      d.Amount,
		Date:        FormatDate(at),
		Type:        d.Type,
	}
	if d.Type == KindSpending {
		t.Category = d.Category
	}
	return t
}

// Draft strips the identity fields.
func (t Transaction) Draft() Draft {
	return Draft{Type: t.Type, Description: t.Description, Amount: t.Amount, Category: t.Category}
}

// IsSpending reports whether t is a spending record.
func (t Transaction) IsSpending() bool {
	return t.Type == KindSpending
}

func validateCategory(kind Kind, c Category, cats Categories) error {
	switch kind {
	case KindIncome:
		if c != "" {
			return ErrUnexpectedCategory
		}
		return nil
	case KindSpending:
		if c == "" {
			return ErrMissingCategory
		}
		if !cats.Contains(c) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}
