package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/subscriptions"
)

type SubscriptionDetector interface {
	Detect(ctx context.Context, userID string, opts subscriptions.Options) (*subscriptions.Report, error)
}

type SubscriptionHandler struct {
	resp        *response.Handler
	detector    SubscriptionDetector
	defaultUser string
}

func NewSubscriptionHandler(resp *response.Handler, detector SubscriptionDetector, defaultUser string) *SubscriptionHandler {
	return &SubscriptionHandler{resp: resp, detector: detector, defaultUser: defaultUser}
}

func (h *SubscriptionHandler) Detect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user_id")
	if userID == "" {
		userID = h.defaultUser
	}

	opts := subscriptions.Options{}
	if v := q.Get("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 30 || n > 3650 {
			h.resp.WriteError(w, http.StatusBadRequest, "lookback_days must be between 30 and 3650")
			return
		}
		opts.LookbackDays = n
	}
	if v := q.Get("min_occurrences"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 3 || n > 12 {
			h.resp.WriteError(w, http.StatusBadRequest, "min_occurrences must be between 3 and 12")
			return
		}
		opts.MinOccurrences = n
	}
	if v := q.Get("amount_tolerance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0.01 || f > 0.30 {
			h.resp.WriteError(w, http.StatusBadRequest, "amount_tolerance must be between 0.01 and 0.30")
			return
		}
		opts.AmountTolerance = f
	}

	report, err := h.detector.Detect(r.Context(), userID, opts)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.resp.WriteJSON(w, http.StatusOK, report)
}
