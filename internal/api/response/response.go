// Package response centralizes JSON output and domain-error mapping for the
// HTTP layer.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/service"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/rules"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/trash"
)

type errorBody struct {
	Error string `json:"error"`
}

type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// WriteJSON writes data with the given status. A nil data writes an empty
// object so clients always get a JSON body.
func (h *Handler) WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		data = struct{}{}
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encoding response", slog.Any("error", err))
	}
}

// WriteError writes a JSON error body with the given status.
func (h *Handler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, errorBody{Error: message})
}

// HandleError maps domain errors onto HTTP statuses. Unknown errors become
// an opaque 500; the detail goes to the log, not the client.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.WriteError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, expense.ErrFieldNotAllowed):
		h.WriteError(w, http.StatusBadRequest, "field not allowed")
	case errors.Is(err, trash.ErrUndoExpired):
		h.WriteError(w, http.StatusBadRequest, "undo window expired")
	case errors.Is(err, trash.ErrNothingToUndo):
		h.WriteError(w, http.StatusNotFound, "nothing to undo")
	case errors.Is(err, expense.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, "expense not found")
	case errors.Is(err, rules.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, "rule not found")
	default:
		h.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		h.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
