package assist

import (
	"context"
	"strings"

	"pocketbalance/internal/cache"
)

// CachedSuggester memoises suggestions per normalised description. Errors
// are passed through and never cached.
type CachedSuggester struct {
	next  CategorySuggester
	cache cache.Cache[string]
}

// NewCachedSuggester wraps next with c.
func NewCachedSuggester(next CategorySuggester, c cache.Cache[string]) *CachedSuggester {
	return &CachedSuggester{next: next, cache: c}
}

func (s *CachedSuggester) SuggestCategory(ctx context.Context, description string) (string, error) {
	key := cacheKey(description)
	if label, ok := s.cache.Get(key); ok {
		return label, nil
	}
	label, err := s.next.SuggestCategory(ctx, description)
	if err != nil {
		return "", err
	}
	s.cache.Set(key, label)
	return label, nil
}

func cacheKey(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}
