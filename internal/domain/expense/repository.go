package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("expense not found")
	// ErrDuplicate is returned when an insert hits a fingerprint uniqueness
	// constraint; the caller resolves it to the winning row.
	ErrDuplicate = errors.New("duplicate expense")
	// ErrFieldNotAllowed is returned by UpdateField for columns outside the
	// inline-edit allowlist.
	ErrFieldNotAllowed = errors.New("field not allowed")
)

const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists transactions in the expenses table.
type Repository struct {
	db DB
}

// NewRepository creates an expense repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// updatableFields is the allowlist for inline dashboard edits. The schema is
// fixed and versioned; field names are mapped explicitly, never interpolated
// from request input.
var updatableFields = map[string]string{
	"merchant_clean": "merchant_clean",
	"category":       "category",
	"currency":       "currency",
	"amount":         "amount",
	"direction":      "direction",
}

const txColumns = `id, user_id, raw_text, normalized_text, amount, currency,
	merchant_raw, merchant_clean, category, direction, occurred_at, ingested_at,
	content_fingerprint, transaction_fingerprint`

// Insert writes a new transaction and returns its assigned id. A uniqueness
// conflict on either fingerprint surfaces as ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, t *Transaction) (int64, error) {
	query := `
		INSERT INTO expenses (
			user_id, raw_text, normalized_text, amount, currency,
			merchant_raw, merchant_clean, category, direction,
			occurred_at, ingested_at, content_fingerprint, transaction_fingerprint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		t.UserID,
		t.RawText,
		t.NormalizedText,
		t.Amount,
		t.Currency,
		t.MerchantRaw,
		t.MerchantClean,
		t.Category,
		t.Direction,
		t.OccurredAt,
		t.IngestedAt,
		t.ContentFingerprint,
		t.TransactionFingerprint,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("inserting expense: %w", err)
	}
	return id, nil
}

// FindByContentFingerprint looks up a record by content fingerprint across
// all users; the dedup gate treats a retransmitted message as the same
// message no matter who submitted it first.
func (r *Repository) FindByContentFingerprint(ctx context.Context, fp string) (*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM expenses WHERE content_fingerprint = $1`
	return r.queryOne(ctx, query, fp)
}

// GetByID fetches a single record owned by the user.
func (r *Repository) GetByID(ctx context.Context, userID string, id int64) (*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM expenses WHERE id = $1 AND user_id = $2`
	return r.queryOne(ctx, query, id, userID)
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*Transaction, error) {
	var t Transaction
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.UserID,
		&t.RawText,
		&t.NormalizedText,
		&t.Amount,
		&t.Currency,
		&t.MerchantRaw,
		&t.MerchantClean,
		&t.Category,
		&t.Direction,
		&t.OccurredAt,
		&t.IngestedAt,
		&t.ContentFingerprint,
		&t.TransactionFingerprint,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying expense: %w", err)
	}
	return &t, nil
}

// List returns the user's most recent transactions, newest first.
func (r *Repository) List(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT ` + txColumns + `
		FROM expenses
		WHERE user_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.RawText,
			&t.NormalizedText,
			&t.Amount,
			&t.Currency,
			&t.MerchantRaw,
			&t.MerchantClean,
			&t.Category,
			&t.Direction,
			&t.OccurredAt,
			&t.IngestedAt,
			&t.ContentFingerprint,
			&t.TransactionFingerprint,
		); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateField applies one inline edit from the dashboard. Only allowlisted
// columns can be touched.
func (r *Repository) UpdateField(ctx context.Context, userID string, id int64, field string, value any) error {
	column, ok := updatableFields[field]
	if !ok {
		return ErrFieldNotAllowed
	}
	query := fmt.Sprintf(`UPDATE expenses SET %s = $3 WHERE id = $1 AND user_id = $2`, column)
	tag, err := r.db.Exec(ctx, query, id, userID, value)
	if err != nil {
		return fmt.Errorf("updating expense field %s: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByUser returns per-user record counts, largest first.
func (r *Repository) CountByUser(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id, COUNT(*) FROM expenses GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("counting expenses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var userID string
		var n int64
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		out[userID] = n
	}
	return out, rows.Err()
}

// DistinctMerchants returns the user's distinct non-empty merchant names,
// used by the search fallback.
func (r *Repository) DistinctMerchants(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT DISTINCT merchant_clean
		FROM expenses
		WHERE user_id = $1 AND merchant_clean <> ''
		ORDER BY merchant_clean
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing merchants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning merchant: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSince returns the user's positive-amount transactions with a merchant,
// ordered for subscription grouping (merchant, then occurrence time).
func (r *Repository) ListSince(ctx context.Context, userID string, since time.Time) ([]Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM expenses
		WHERE user_id = $1
		  AND occurred_at >= $2
		  AND amount > 0
		  AND merchant_clean <> ''
		ORDER BY merchant_clean ASC, occurred_at ASC
	`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("listing expenses since: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.RawText,
			&t.NormalizedText,
			&t.Amount,
			&t.Currency,
			&t.MerchantRaw,
			&t.MerchantClean,
			&t.Category,
			&t.Direction,
			&t.OccurredAt,
			&t.IngestedAt,
			&t.ContentFingerprint,
			&t.TransactionFingerprint,
		); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
