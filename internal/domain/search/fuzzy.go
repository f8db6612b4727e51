package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MerchantMatcher suggests known merchant names for approximate queries.
// It covers the case where the Bleve query misses because the user typed a
// fragment or a typo of a merchant they have paid before.
type MerchantMatcher struct {
	mu        sync.RWMutex
	merchants []string
}

func NewMerchantMatcher(merchants []string) *MerchantMatcher {
	m := &MerchantMatcher{}
	m.Reload(merchants)
	return m
}

// Reload replaces the merchant list, typically after new ingests.
func (m *MerchantMatcher) Reload(merchants []string) {
	normalized := make([]string, 0, len(merchants))
	for _, name := range merchants {
		name = strings.TrimSpace(name)
		if name != "" {
			normalized = append(normalized, name)
		}
	}
	m.mu.Lock()
	m.merchants = normalized
	m.mu.Unlock()
}

// Suggest returns up to limit merchant names ranked by closeness to the
// query, best first. Matching is case- and accent-insensitive.
func (m *MerchantMatcher) Suggest(query string, limit int) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	m.mu.RLock()
	ranks := fuzzy.RankFindNormalizedFold(query, m.merchants)
	m.mu.RUnlock()

	sort.Sort(ranks)
	out := make([]string, 0, limit)
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == limit {
			break
		}
	}
	return out
}
