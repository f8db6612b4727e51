// Package category assigns a default spending category from a fixed
// keyword table. The result is a default only; user rules override it.
package category

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Other is the fallback category when no keyword matches.
const Other = "other"

type keywordEntry struct {
	Keyword  string
	Category string
}

// keywordTable maps merchant keywords to categories. Order matters: when
// several keywords match, the first entry in this table wins.
var keywordTable = []keywordEntry{
	{"starbucks", "coffee"},
	{"cafe", "coffee"},
	{"coffee", "coffee"},
	{"caribou", "coffee"},
	{"costa", "coffee"},
	{"talabat", "food"},
	{"pick", "food"},
	{"restaurant", "food"},
	{"burger", "food"},
	{"pizza", "food"},
	{"deliveroo", "food"},
	{"mcdonald", "food"},
	{"kfc", "food"},
	{"shawarma", "food"},
	{"sultan center", "groceries"},
	{"carrefour", "groceries"},
	{"lulu", "groceries"},
	{"supermarket", "groceries"},
	{"coop", "groceries"},
	{"careem", "transport"},
	{"uber", "transport"},
	{"taxi", "transport"},
	{"petrol", "transport"},
	{"knpc", "transport"},
	{"netflix", "entertainment"},
	{"spotify", "entertainment"},
	{"shahid", "entertainment"},
	{"cinema", "entertainment"},
	{"pharmacy", "health"},
	{"clinic", "health"},
	{"hospital", "health"},
	{"zain", "utilities"},
	{"ooredoo", "utilities"},
	{"stc", "utilities"},
	{"electricity", "utilities"},
	{"amazon", "shopping"},
	{"noon", "shopping"},
	{"mall", "shopping"},
	{"salary", "income"},
}

// Heuristic is a multi-keyword substring matcher over merchant text. It uses
// an Aho-Corasick automaton so the whole table is scanned in a single pass.
type Heuristic struct {
	matcher *ahocorasick.Matcher
	table   []keywordEntry
}

// NewHeuristic builds the default keyword matcher.
func NewHeuristic() *Heuristic {
	return newHeuristic(keywordTable)
}

func newHeuristic(table []keywordEntry) *Heuristic {
	patterns := make([][]byte, len(table))
	for i, e := range table {
		patterns[i] = []byte(e.Keyword)
	}
	return &Heuristic{
		matcher: ahocorasick.NewMatcher(patterns),
		table:   table,
	}
}

// Categorize returns the default category for a transaction. The merchant
// text is scanned first; the full message is a fallback haystack. No match
// yields Other, never an empty string.
func (h *Heuristic) Categorize(merchant, message string) string {
	if c, ok := h.lookup(merchant); ok {
		return c
	}
	if c, ok := h.lookup(message); ok {
		return c
	}
	return Other
}

// lookup scans one haystack and resolves ties by table declaration order.
func (h *Heuristic) lookup(haystack string) (string, bool) {
	if haystack == "" {
		return "", false
	}
	hits := h.matcher.Match([]byte(strings.ToLower(haystack)))
	if len(hits) == 0 {
		return "", false
	}
	best := -1
	for _, idx := range hits {
		if idx >= 0 && idx < len(h.table) && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return "", false
	}
	return h.table[best].Category, true
}
