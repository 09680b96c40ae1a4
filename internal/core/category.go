package core

import "strings"

// Category labels a spending transaction. The set of valid labels is a
// configuration constant, see DefaultCategories.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryBills         Category = "Bills"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryTravel        Category = "Travel"
	CategoryOther         Category = "Other"
)

// Categories is an ordered, duplicate-free set of labels.
type Categories []Category

// DefaultCategories returns the built-in enumeration.
func DefaultCategories() Categories {
	return Categories{
		CategoryFood,
		CategoryTransport,
		CategoryBills,
		CategoryEntertainment,
		CategoryShopping,
		CategoryTravel,
		CategoryOther,
	}
}

// ParseCategories reads a comma separated list. Blank entries and
// duplicates are dropped; an empty result falls back to the defaults.
func ParseCategories(s string) Categories {
	seen := map[Category]struct{}{}
	var out Categories
	for _, part := range strings.Split(s, ",") {
		c := Category(strings.TrimSpace(part))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return DefaultCategories()
	}
	return out
}

// Contains reports exact membership. Matching is case sensitive: a model
// answering "food" has not produced a valid label.
func (cs Categories) Contains(c Category) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}

// Strings returns the labels as plain strings.
func (cs Categories) Strings() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Join renders the labels separated by sep.
func (cs Categories) Join(sep string) string {
	return strings.Join(cs.Strings(), sep)
}
