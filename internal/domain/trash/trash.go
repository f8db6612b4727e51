// Package trash implements soft deletion for expenses. A deleted row is
// snapshotted as JSON into deleted_expenses and can be restored within a
// short undo window.
package trash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrUndoExpired   = errors.New("undo window expired")
)

// DB is the transactional surface the repository needs. Both *pgxpool.Pool
// and pgxmock satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// snapshotRow is the persisted JSON shape of a trashed expense. Transaction
// hides normalized_text and the fingerprints from API responses, so the
// snapshot carries every column explicitly; a restore must bring back the
// fingerprints or the row falls out of the dedup gate for good.
type snapshotRow struct {
	ID                     int64           `json:"id"`
	UserID                 string          `json:"user_id"`
	RawText                string          `json:"raw_text"`
	NormalizedText         string          `json:"normalized_text"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	MerchantRaw            string          `json:"merchant_raw"`
	MerchantClean          string          `json:"merchant_clean"`
	Category               string          `json:"category"`
	Direction              string          `json:"direction"`
	OccurredAt             time.Time       `json:"occurred_at"`
	IngestedAt             time.Time       `json:"ingested_at"`
	ContentFingerprint     string          `json:"content_fingerprint"`
	TransactionFingerprint string          `json:"transaction_fingerprint"`
}

func snapshotFrom(t expense.Transaction) snapshotRow {
	return snapshotRow{
		ID:                     t.ID,
		UserID:                 t.UserID,
		RawText:                t.RawText,
		NormalizedText:         t.NormalizedText,
		Amount:                 t.Amount,
		Currency:               t.Currency,
		MerchantRaw:            t.MerchantRaw,
		MerchantClean:          t.MerchantClean,
		Category:               t.Category,
		Direction:              t.Direction,
		OccurredAt:             t.OccurredAt,
		IngestedAt:             t.IngestedAt,
		ContentFingerprint:     t.ContentFingerprint,
		TransactionFingerprint: t.TransactionFingerprint,
	}
}

func (s snapshotRow) transaction() expense.Transaction {
	return expense.Transaction{
		ID:                     s.ID,
		UserID:                 s.UserID,
		RawText:                s.RawText,
		NormalizedText:         s.NormalizedText,
		Amount:                 s.Amount,
		Currency:               s.Currency,
		MerchantRaw:            s.MerchantRaw,
		MerchantClean:          s.MerchantClean,
		Category:               s.Category,
		Direction:              s.Direction,
		OccurredAt:             s.OccurredAt,
		IngestedAt:             s.IngestedAt,
		ContentFingerprint:     s.ContentFingerprint,
		TransactionFingerprint: s.TransactionFingerprint,
	}
}

type Repository struct {
	db         DB
	undoWindow time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewRepository(db DB, undoWindow time.Duration, logger *slog.Logger) *Repository {
	if undoWindow <= 0 {
		undoWindow = 10 * time.Second
	}
	return &Repository{
		db:         db,
		undoWindow: undoWindow,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Trash moves one expense into deleted_expenses. The snapshot and the delete
// happen in a single transaction so the row is never in both tables or
// neither.
func (r *Repository) Trash(ctx context.Context, userID string, expenseID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning trash tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, user_id, raw_text, normalized_text, amount, currency,
		       merchant_raw, merchant_clean, category, direction,
		       occurred_at, ingested_at, content_fingerprint, transaction_fingerprint
		FROM expenses
		WHERE id = $1 AND user_id = $2
	`
	var t expense.Transaction
	err = tx.QueryRow(ctx, query, expenseID, userID).Scan(
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
	if errors.Is(err, pgx.ErrNoRows) {
		return expense.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading expense for trash: %w", err)
	}

	snapshot, err := json.Marshal(snapshotFrom(t))
	if err != nil {
		return fmt.Errorf("snapshotting expense: %w", err)
	}

	deletedAt := r.now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO deleted_expenses (user_id, original_id, row_json, deleted_at) VALUES ($1, $2, $3, $4)`,
		userID, expenseID, snapshot, deletedAt,
	)
	if err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, expenseID, userID); err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing trash: %w", err)
	}

	r.logger.Info("expense trashed",
		slog.String("user_id", userID),
		slog.Int64("expense_id", expenseID),
	)
	return nil
}

// UndoLast restores the user's most recently trashed expense, provided the
// undo window has not elapsed. The restore reuses the original row id when
// that id is still free and falls back to a fresh id otherwise.
func (r *Repository) UndoLast(ctx context.Context, userID string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning undo tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		trashID   int64
		rowJSON   []byte
		deletedAt time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT id, row_json, deleted_at FROM deleted_expenses WHERE user_id = $1 ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		userID,
	).Scan(&trashID, &rowJSON, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNothingToUndo
	}
	if err != nil {
		return 0, fmt.Errorf("loading trash entry: %w", err)
	}

	if r.now().UTC().Sub(deletedAt) > r.undoWindow {
		return 0, ErrUndoExpired
	}

	var row snapshotRow
	if err := json.Unmarshal(rowJSON, &row); err != nil {
		return 0, fmt.Errorf("decoding snapshot: %w", err)
	}
	t := row.transaction()

	restoredID, err := restore(ctx, tx, &t)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM deleted_expenses WHERE id = $1`, trashID); err != nil {
		return 0, fmt.Errorf("clearing trash entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing undo: %w", err)
	}

	r.logger.Info("expense restored",
		slog.String("user_id", userID),
		slog.Int64("restored_id", restoredID),
	)
	return restoredID, nil
}

const restoreColumns = `user_id, raw_text, normalized_text, amount, currency,
	merchant_raw, merchant_clean, category, direction,
	occurred_at, ingested_at, content_fingerprint, transaction_fingerprint`

func restore(ctx context.Context, tx pgx.Tx, t *expense.Transaction) (int64, error) {
	args := []any{
		t.UserID, t.RawText, t.NormalizedText, t.Amount, t.Currency,
		t.MerchantRaw, t.MerchantClean, t.Category, t.Direction,
		t.OccurredAt, t.IngestedAt, t.ContentFingerprint, t.TransactionFingerprint,
	}

	// Try the original id first so external references stay valid. A plain
	// unique violation would abort the surrounding transaction, so the id
	// conflict is absorbed with DO NOTHING and detected via the row count.
	withID := `INSERT INTO expenses (id, ` + restoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`
	ct, err := tx.Exec(ctx, withID, append([]any{t.ID}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("restoring expense: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return t.ID, nil
	}

	var newID int64
	fresh := `INSERT INTO expenses (` + restoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := tx.QueryRow(ctx, fresh, args...).Scan(&newID); err != nil {
		return 0, fmt.Errorf("restoring expense with new id: %w", err)
	}
	return newID, nil
}
