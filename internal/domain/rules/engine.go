package rules

import (
	"log/slog"
	"regexp"
)

// Overrides is the outcome of a rule pass over one transaction. Nil fields
// mean no rule claimed that field and the heuristic default stands.
type Overrides struct {
	Category      *string
	MerchantClean *string
	CategoryRule  *int64 // rule that set the category
	MerchantRule  *int64 // rule that set merchant_clean
}

// Engine evaluates a user's rules against a parsed transaction.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a rule engine. logger receives skipped-rule diagnostics.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Apply runs the rules (already ordered by priority ASC, id ASC) against the
// merchant and message text. First match wins per overridable field,
// independently for category and merchant_clean, so a category-only rule
// does not shadow a later merchant-only rule.
func (e *Engine) Apply(ruleList []Rule, merchant, message string) Overrides {
	var out Overrides

	for i := range ruleList {
		r := &ruleList[i]

		if r.MatchType == MatchRegex {
			if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
				e.logger.Warn("skipping rule with invalid regex",
					slog.Int64("rule_id", r.ID),
					slog.String("user_id", r.UserID),
					slog.Any("error", err),
				)
				continue
			}
		}

		if !r.Matches(merchant, message) {
			continue
		}

		if out.Category == nil && r.SetCategory != nil && *r.SetCategory != "" {
			out.Category = r.SetCategory
			id := r.ID
			out.CategoryRule = &id
		}
		if out.MerchantClean == nil && r.SetMerchantClean != nil && *r.SetMerchantClean != "" {
			out.MerchantClean = r.SetMerchantClean
			id := r.ID
			out.MerchantRule = &id
		}

		if out.Category != nil && out.MerchantClean != nil {
			break
		}
	}

	return out
}
