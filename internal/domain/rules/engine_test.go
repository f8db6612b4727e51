package rules

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRule_Matches(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		merchant string
		message  string
		want     bool
	}{
		{"contains hit", Rule{MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "STARBUCKS"}, "starbucks coffee", "", true},
		{"contains miss", Rule{MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "costa"}, "starbucks coffee", "", false},
		{"contains empty pattern never matches", Rule{MatchField: FieldMerchant, MatchType: MatchContains, Pattern: ""}, "anything", "", false},
		{"equals hit case-insensitive", Rule{MatchField: FieldMerchant, MatchType: MatchEquals, Pattern: "Starbucks Coffee"}, "starbucks coffee", "", true},
		{"equals miss on substring", Rule{MatchField: FieldMerchant, MatchType: MatchEquals, Pattern: "starbucks"}, "starbucks coffee", "", false},
		{"regex hit", Rule{MatchField: FieldMerchant, MatchType: MatchRegex, Pattern: `star.*coffee`}, "STARBUCKS COFFEE", "", true},
		{"regex invalid never matches", Rule{MatchField: FieldMerchant, MatchType: MatchRegex, Pattern: `([`}, "starbucks", "", false},
		{"message field", Rule{MatchField: FieldMessage, MatchType: MatchContains, Pattern: "debited"}, "", "KWD 1.000 debited for X", true},
		{"merchant field ignores message", Rule{MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "debited"}, "starbucks", "KWD 1.000 debited", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(tt.merchant, tt.message))
		})
	}
}

func TestEngine_FirstMatchWinsPerField(t *testing.T) {
	e := testEngine()

	ruleList := []Rule{
		{ID: 1, Priority: 10, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "starbucks", SetCategory: strPtr("beverages")},
		{ID: 2, Priority: 20, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "starbucks", SetCategory: strPtr("coffee-shops"), SetMerchantClean: strPtr("Starbucks")},
	}

	out := e.Apply(ruleList, "starbucks coffee", "msg")

	// Rule 1 wins the category; rule 2 still gets to set merchant_clean.
	require.NotNil(t, out.Category)
	assert.Equal(t, "beverages", *out.Category)
	require.NotNil(t, out.MerchantClean)
	assert.Equal(t, "Starbucks", *out.MerchantClean)
	assert.Equal(t, int64(1), *out.CategoryRule)
	assert.Equal(t, int64(2), *out.MerchantRule)
}

func TestEngine_LowerPriorityWins(t *testing.T) {
	e := testEngine()

	// Already sorted by (priority ASC, id ASC) as the store returns them.
	ruleList := []Rule{
		{ID: 7, Priority: 10, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "STARBUCKS", SetCategory: strPtr("beverages")},
		{ID: 3, Priority: 50, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "STARBUCKS", SetCategory: strPtr("coffee")},
	}

	out := e.Apply(ruleList, "starbucks downtown", "msg")
	require.NotNil(t, out.Category)
	assert.Equal(t, "beverages", *out.Category)
}

func TestEngine_InvalidRegexIsIsolated(t *testing.T) {
	e := testEngine()

	ruleList := []Rule{
		{ID: 1, Priority: 1, MatchField: FieldMerchant, MatchType: MatchRegex, Pattern: `([`, SetCategory: strPtr("broken")},
		{ID: 2, Priority: 2, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "starbucks", SetCategory: strPtr("coffee")},
	}

	out := e.Apply(ruleList, "starbucks", "msg")
	require.NotNil(t, out.Category)
	assert.Equal(t, "coffee", *out.Category)
}

func TestEngine_NoMatchLeavesDefaults(t *testing.T) {
	e := testEngine()

	ruleList := []Rule{
		{ID: 1, Priority: 1, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "costa", SetCategory: strPtr("coffee")},
	}

	out := e.Apply(ruleList, "starbucks", "msg")
	assert.Nil(t, out.Category)
	assert.Nil(t, out.MerchantClean)
}

func TestEngine_EmptySetFieldsIgnored(t *testing.T) {
	e := testEngine()

	empty := ""
	ruleList := []Rule{
		{ID: 1, Priority: 1, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "starbucks", SetCategory: &empty},
		{ID: 2, Priority: 2, MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "starbucks", SetCategory: strPtr("coffee")},
	}

	out := e.Apply(ruleList, "starbucks", "msg")
	require.NotNil(t, out.Category)
	assert.Equal(t, "coffee", *out.Category)
}

func TestRule_Valid(t *testing.T) {
	valid := Rule{MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "x"}
	assert.True(t, valid.Valid())

	assert.False(t, (&Rule{MatchField: "bogus", MatchType: MatchContains, Pattern: "x"}).Valid())
	assert.False(t, (&Rule{MatchField: FieldMerchant, MatchType: "bogus", Pattern: "x"}).Valid())
	assert.False(t, (&Rule{MatchField: FieldMerchant, MatchType: MatchContains, Pattern: "  "}).Valid())
}
