// Package insights computes spending summaries over a user's expenses. All
// aggregation happens in SQL; Go only shapes the result.
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CategoryTotal is spend grouped by category within one currency.
type CategoryTotal struct {
	Category string          `json:"category"`
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// CurrencyTotal is overall flow per currency, split by direction.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Expense  decimal.Decimal `json:"expense"`
	Income   decimal.Decimal `json:"income"`
	Count    int             `json:"count"`
}

// Summary is the spending report for one user and period.
type Summary struct {
	UserID     string          `json:"user_id"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Categories []CategoryTotal `json:"categories"`
	Currencies []CurrencyTotal `json:"currencies"`
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Summarize aggregates the user's expenses between from and to (inclusive
// start, exclusive end). Categories are ordered by total descending so the
// biggest spend buckets come first.
func (r *Repository) Summarize(ctx context.Context, userID string, from, to time.Time) (*Summary, error) {
	s := &Summary{
		UserID:     userID,
		From:       from,
		To:         to,
		Categories: []CategoryTotal{},
		Currencies: []CurrencyTotal{},
	}

	catQuery := `
		SELECT category, currency, COALESCE(SUM(amount), 0), COUNT(*)
		FROM expenses
		WHERE user_id = $1 AND direction = 'expense'
		  AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY category, currency
		ORDER BY SUM(amount) DESC
	`
	rows, err := r.db.Query(ctx, catQuery, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("summarizing categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Currency, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("scanning category total: %w", err)
		}
		s.Categories = append(s.Categories, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	curQuery := `
		SELECT currency,
		       COALESCE(SUM(amount) FILTER (WHERE direction = 'expense'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE direction = 'income'), 0),
		       COUNT(*)
		FROM expenses
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY currency
		ORDER BY currency
	`
	curRows, err := r.db.Query(ctx, curQuery, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("summarizing currencies: %w", err)
	}
	defer curRows.Close()
	for curRows.Next() {
		var ct CurrencyTotal
		if err := curRows.Scan(&ct.Currency, &ct.Expense, &ct.Income, &ct.Count); err != nil {
			return nil, fmt.Errorf("scanning currency total: %w", err)
		}
		s.Currencies = append(s.Currencies, ct)
	}
	if err := curRows.Err(); err != nil {
		return nil, err
	}

	return s, nil
}
