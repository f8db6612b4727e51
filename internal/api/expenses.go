package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/parser"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/money"
)

type ExpenseStore interface {
	List(ctx context.Context, userID string, limit int) ([]expense.Transaction, error)
	GetByID(ctx context.Context, userID string, id int64) (*expense.Transaction, error)
	UpdateField(ctx context.Context, userID string, id int64, field string, value any) error
}

type TrashStore interface {
	Trash(ctx context.Context, userID string, expenseID int64) error
	UndoLast(ctx context.Context, userID string) (int64, error)
}

// SearchIndexer keeps the search index in step with deletes and restores.
type SearchIndexer interface {
	IndexTransaction(t *expense.Transaction) error
	Remove(id int64) error
}

type ExpenseHandler struct {
	resp        *response.Handler
	store       ExpenseStore
	trash       TrashStore
	indexer     SearchIndexer
	defaultUser string
	logger      *slog.Logger
}

func NewExpenseHandler(resp *response.Handler, store ExpenseStore, trash TrashStore, indexer SearchIndexer, defaultUser string, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		resp:        resp,
		store:       store,
		trash:       trash,
		indexer:     indexer,
		defaultUser: defaultUser,
		logger:      logger,
	}
}

func (h *ExpenseHandler) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return h.defaultUser
}

type listResponse struct {
	Count    int                   `json:"count"`
	Expenses []expense.Transaction `json:"expenses"`
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.resp.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	txs, err := h.store.List(r.Context(), h.userID(r), limit)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	if txs == nil {
		txs = []expense.Transaction{}
	}
	h.resp.WriteJSON(w, http.StatusOK, listResponse{Count: len(txs), Expenses: txs})
}

type updateFieldRequest struct {
	UserID string          `json:"user_id"`
	ID     int64           `json:"id"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
}

func (h *ExpenseHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req updateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		req.UserID = h.defaultUser
	}
	if req.ID == 0 || req.Field == "" {
		h.resp.WriteError(w, http.StatusBadRequest, "id and field are required")
		return
	}

	value, errMsg := normalizeFieldValue(req.Field, req.Value)
	if errMsg != "" {
		h.resp.WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := h.store.UpdateField(r.Context(), req.UserID, req.ID, req.Field, value); err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.reindex(r.Context(), req.UserID, req.ID)
	h.resp.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": req.ID})
}

// normalizeFieldValue validates and canonicalizes an inline edit before it
// reaches the database, so a malformed value comes back as a 400 rather than
// a driver error. Returns the normalized value or a non-empty error message.
func normalizeFieldValue(field string, raw json.RawMessage) (any, string) {
	switch field {
	case "category":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "category must be a string"
		}
		return normalizeCategory(s), ""
	case "currency":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "currency must be a string"
		}
		code := strings.ToUpper(strings.TrimSpace(s))
		if !money.IsKnownCurrency(code) {
			return nil, "currency must be an ISO 4217 code"
		}
		return code, ""
	case "amount":
		// Accept a JSON number or a numeric string.
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			d, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				return nil, "amount must be a number"
			}
			return d, ""
		}
		var f json.Number
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, "amount must be a number"
		}
		d, err := decimal.NewFromString(f.String())
		if err != nil {
			return nil, "amount must be a number"
		}
		return d, ""
	case "merchant_clean":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "merchant_clean must be a string"
		}
		return strings.TrimSpace(s), ""
	case "direction":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "direction must be a string"
		}
		v := strings.ToLower(strings.TrimSpace(s))
		if v != string(parser.DirectionExpense) && v != string(parser.DirectionIncome) {
			return nil, "direction must be 'expense' or 'income'"
		}
		return v, ""
	default:
		// Unknown fields fall through to the store's allowlist.
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, "invalid value"
		}
		return value, ""
	}
}

func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, r := range s {
		if r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "other"
	}
	return b.String()
}

type deleteRequest struct {
	UserID string `json:"user_id"`
	ID     int64  `json:"id"`
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		req.UserID = h.defaultUser
	}
	if req.ID == 0 {
		h.resp.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.trash.Trash(r.Context(), req.UserID, req.ID); err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	if h.indexer != nil {
		if err := h.indexer.Remove(req.ID); err != nil {
			h.logger.Warn("search deindex failed", slog.Int64("id", req.ID), slog.Any("error", err))
		}
	}
	h.resp.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted_id": req.ID})
}

type undoRequest struct {
	UserID string `json:"user_id"`
}

func (h *ExpenseHandler) UndoDelete(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		req.UserID = h.defaultUser
	}

	restoredID, err := h.trash.UndoLast(r.Context(), req.UserID)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.reindex(r.Context(), req.UserID, restoredID)
	h.resp.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "restored_id": restoredID})
}

// reindex refreshes one row in the search index. Index drift is logged, not
// surfaced: the database remains the source of truth.
func (h *ExpenseHandler) reindex(ctx context.Context, userID string, id int64) {
	if h.indexer == nil {
		return
	}
	t, err := h.store.GetByID(ctx, userID, id)
	if err != nil {
		h.logger.Warn("reindex lookup failed", slog.Int64("id", id), slog.Any("error", err))
		return
	}
	if err := h.indexer.IndexTransaction(t); err != nil {
		h.logger.Warn("reindex failed", slog.Int64("id", id), slog.Any("error", err))
	}
}
