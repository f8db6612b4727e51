package parser

import "strings"

// Direction tags a message as money-in or money-out. It is a display hint
// only and never participates in fingerprints or deduplication.
type Direction string

const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

var expenseKeywords = []string{"debited", "debit", "paid", "purchase", "card purchase", "withdrawn"}

var incomeKeywords = []string{"credited", "credit", "deposit", "salary", "received", "refund", "transfer received"}

// DetectDirection sniffs direction keywords over the lowercased message.
// Expense keywords take precedence; unknown messages default to expense.
func DetectDirection(text string) Direction {
	low := strings.ToLower(text)
	for _, k := range expenseKeywords {
		if strings.Contains(low, k) {
			return DirectionExpense
		}
	}
	for _, k := range incomeKeywords {
		if strings.Contains(low, k) {
			return DirectionIncome
		}
	}
	return DirectionExpense
}
