// Package rules implements user-defined categorization override rules.
// Rules are evaluated fresh on every ingestion so edits apply to the very
// next message; there is no cross-request cache to invalidate.
package rules

import (
	"regexp"
	"strings"
	"time"
)

// MatchField selects which haystack a rule is tested against.
type MatchField string

const (
	FieldMerchant MatchField = "merchant"
	FieldMessage  MatchField = "message"
)

// MatchType selects the predicate applied to the haystack.
type MatchType string

const (
	MatchContains MatchType = "contains"
	MatchEquals   MatchType = "equals"
	MatchRegex    MatchType = "regex"
)

// Rule is a user-scoped override directive. Lower Priority sorts first and
// wins under first-match semantics.
type Rule struct {
	ID               int64
	UserID           string
	Enabled          bool
	Priority         int
	MatchField       MatchField
	MatchType        MatchType
	Pattern          string
	SetCategory      *string
	SetMerchantClean *string
	CreatedAt        time.Time
}

// Matches tests the rule against the merchant text and full message.
// All predicates are case-insensitive. A malformed regex never matches and
// never aborts evaluation of the remaining rules.
func (r *Rule) Matches(merchant, message string) bool {
	haystack := merchant
	if r.MatchField == FieldMessage {
		haystack = message
	}
	haystack = strings.ToLower(haystack)
	pattern := strings.ToLower(r.Pattern)

	switch r.MatchType {
	case MatchContains:
		return pattern != "" && strings.Contains(haystack, pattern)
	case MatchEquals:
		return haystack == pattern
	case MatchRegex:
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(haystack)
	default:
		return false
	}
}

// Valid reports whether the rule's field and type values are recognized.
// Used at creation time; stored rules are trusted.
func (r *Rule) Valid() bool {
	switch r.MatchField {
	case FieldMerchant, FieldMessage:
	default:
		return false
	}
	switch r.MatchType {
	case MatchContains, MatchEquals, MatchRegex:
	default:
		return false
	}
	return strings.TrimSpace(r.Pattern) != ""
}
