package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/rules"
)

type RuleStore interface {
	List(ctx context.Context, userID string) ([]rules.Rule, error)
	Create(ctx context.Context, rule *rules.Rule) (int64, error)
	SetEnabled(ctx context.Context, userID string, id int64, enabled bool) error
	Delete(ctx context.Context, userID string, id int64) error
}

type RuleHandler struct {
	resp        *response.Handler
	store       RuleStore
	defaultUser string
}

func NewRuleHandler(resp *response.Handler, store RuleStore, defaultUser string) *RuleHandler {
	return &RuleHandler{resp: resp, store: store, defaultUser: defaultUser}
}

func (h *RuleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{ruleID}", h.SetEnabled)
	r.Delete("/{ruleID}", h.Delete)
	return r
}

func (h *RuleHandler) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return h.defaultUser
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context(), h.userID(r))
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	h.resp.WriteJSON(w, http.StatusOK, map[string]any{"count": len(list), "rules": list})
}

type createRuleRequest struct {
	UserID           string  `json:"user_id"`
	Enabled          *bool   `json:"enabled"`
	Priority         int     `json:"priority"`
	MatchField       string  `json:"match_field"`
	MatchType        string  `json:"match_type"`
	Pattern          string  `json:"pattern"`
	SetCategory      *string `json:"set_category"`
	SetMerchantClean *string `json:"set_merchant_clean"`
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		req.UserID = h.defaultUser
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	priority := req.Priority
	if priority == 0 {
		priority = 100
	}

	rule := rules.Rule{
		UserID:           req.UserID,
		Enabled:          enabled,
		Priority:         priority,
		MatchField:       rules.MatchField(req.MatchField),
		MatchType:        rules.MatchType(req.MatchType),
		Pattern:          req.Pattern,
		SetCategory:      req.SetCategory,
		SetMerchantClean: req.SetMerchantClean,
	}
	if !rule.Valid() {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid rule")
		return
	}

	id, err := h.store.Create(r.Context(), &rule)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.resp.WriteJSON(w, http.StatusCreated, map[string]any{"created": true, "id": id})
}

func (h *RuleHandler) ruleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "rule id must be an integer")
		return 0, false
	}
	return id, true
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *RuleHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.store.SetEnabled(r.Context(), h.userID(r), id, req.Enabled); err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.resp.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "enabled": req.Enabled})
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), h.userID(r), id); err != nil {
		h.resp.HandleError(w, r, err)
		return
	}
	h.resp.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}
