// Package core holds the transaction model and the pure computations
// performed on it.
//
// This file covers amounts: parsing user input and aggregating totals.
// Totals use arbitrary precision decimals so that repeated sums of values
// such as 0.1 do not drift and the balance identity holds exactly.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Totals is the aggregate view of a transaction list.
type Totals struct {
	TotalIncome   decimal.Decimal
	TotalSpending decimal.Decimal
	Balance       decimal.Decimal
}

// Aggregate computes income, spending and balance over txs. Records with an
// unknown type contribute to neither total.
func Aggregate(txs []Transaction) Totals {
	income := decimal.Zero
	spending := decimal.Zero
	for _, t := range txs {
		amount := decimal.NewFromFloat(t.Amount)
		switch t.Type {
		case KindIncome:
			income = income.Add(amount)
		case KindSpending:
			spending = spending.Add(amount)
		}
	}
	return Totals{
		TotalIncome:   income,
		TotalSpending: spending,
		Balance:       income.Sub(spending),
	}
}

// IsZero reports whether every total is zero.
func (t Totals) IsZero() bool {
	return t.TotalIncome.IsZero() && t.TotalSpending.IsZero() && t.Balance.IsZero()
}

// ParseAmount converts user input to a positive amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Signs, exponents, thousands separators and zero are rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// FormatAmount renders an amount in its shortest decimal form (5, 12.5).
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).String()
}
