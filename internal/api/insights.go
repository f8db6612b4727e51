package api

import (
	"context"
	"net/http"
	"time"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/insights"
)

type InsightsStore interface {
	Summarize(ctx context.Context, userID string, from, to time.Time) (*insights.Summary, error)
}

type InsightsHandler struct {
	resp        *response.Handler
	store       InsightsStore
	defaultUser string
}

func NewInsightsHandler(resp *response.Handler, store InsightsStore, defaultUser string) *InsightsHandler {
	return &InsightsHandler{resp: resp, store: store, defaultUser: defaultUser}
}

// Summary aggregates the user's spend for a period. The period defaults to
// the last 30 days; bounds accept either a date or a full RFC3339 stamp.
func (h *InsightsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user_id")
	if userID == "" {
		userID = h.defaultUser
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if v := q.Get("from"); v != "" {
		parsed, err := parseTimeParam(v)
		if err != nil {
			h.resp.WriteError(w, http.StatusBadRequest, "from must be YYYY-MM-DD or RFC3339")
			return
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := parseTimeParam(v)
		if err != nil {
			h.resp.WriteError(w, http.StatusBadRequest, "to must be YYYY-MM-DD or RFC3339")
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		h.resp.WriteError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	summary, err := h.store.Summarize(r.Context(), userID, from, to)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.resp.WriteJSON(w, http.StatusOK, summary)
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
