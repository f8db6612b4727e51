package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a rule id does not exist for the user.
var ErrNotFound = errors.New("rule not found")

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles rule persistence.
type Repository struct {
	db DB
}

// NewRepository creates a rules repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const ruleColumns = `id, user_id, enabled, priority, match_field, match_type, pattern, set_category, set_merchant_clean, created_at`

// ListEnabled returns the user's enabled rules in evaluation order:
// priority ascending, then id ascending.
func (r *Repository) ListEnabled(ctx context.Context, userID string) ([]Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE user_id = $1 AND enabled
		ORDER BY priority ASC, id ASC
	`
	return r.queryRules(ctx, query, userID)
}

// List returns all of the user's rules, enabled or not, in evaluation order.
func (r *Repository) List(ctx context.Context, userID string) ([]Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE user_id = $1
		ORDER BY priority ASC, id ASC
	`
	return r.queryRules(ctx, query, userID)
}

func (r *Repository) queryRules(ctx context.Context, query, userID string) ([]Rule, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID,
			&rule.UserID,
			&rule.Enabled,
			&rule.Priority,
			&rule.MatchField,
			&rule.MatchType,
			&rule.Pattern,
			&rule.SetCategory,
			&rule.SetMerchantClean,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Create inserts a rule and returns its assigned id.
func (r *Repository) Create(ctx context.Context, rule *Rule) (int64, error) {
	query := `
		INSERT INTO rules (user_id, enabled, priority, match_field, match_type, pattern, set_category, set_merchant_clean)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		rule.UserID,
		rule.Enabled,
		rule.Priority,
		rule.MatchField,
		rule.MatchType,
		rule.Pattern,
		rule.SetCategory,
		rule.SetMerchantClean,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting rule: %w", err)
	}
	return id, nil
}

// SetEnabled flips a rule's enabled flag.
func (r *Repository) SetEnabled(ctx context.Context, userID string, id int64, enabled bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rules SET enabled = $3 WHERE id = $2 AND user_id = $1`,
		userID, id, enabled,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule owned by the user.
func (r *Repository) Delete(ctx context.Context, userID string, id int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM rules WHERE id = $2 AND user_id = $1`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
