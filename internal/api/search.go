package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/search"
)

type Searcher interface {
	Search(userID, query string, limit int) ([]search.Hit, error)
}

type MerchantLister interface {
	DistinctMerchants(ctx context.Context, userID string) ([]string, error)
}

type SearchHandler struct {
	resp        *response.Handler
	index       Searcher
	merchants   MerchantLister
	defaultUser string
	logger      *slog.Logger
}

func NewSearchHandler(resp *response.Handler, index Searcher, merchants MerchantLister, defaultUser string, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		resp:        resp,
		index:       index,
		merchants:   merchants,
		defaultUser: defaultUser,
		logger:      logger,
	}
}

type searchResponse struct {
	Query       string       `json:"query"`
	Hits        []search.Hit `json:"hits"`
	Suggestions []string     `json:"suggestions,omitempty"`
}

// Search runs a full-text query over the user's expenses. When the index
// comes back empty, known merchant names are fuzzy-matched against the query
// so a typo still gets the user somewhere useful.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user_id")
	if userID == "" {
		userID = h.defaultUser
	}
	query := q.Get("q")
	if query == "" {
		h.resp.WriteError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			h.resp.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	hits, err := h.index.Search(userID, query, limit)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}

	res := searchResponse{Query: query, Hits: hits}
	if len(hits) == 0 {
		res.Suggestions = h.suggest(r.Context(), userID, query)
	}
	h.resp.WriteJSON(w, http.StatusOK, res)
}

func (h *SearchHandler) suggest(ctx context.Context, userID, query string) []string {
	merchants, err := h.merchants.DistinctMerchants(ctx, userID)
	if err != nil {
		h.logger.Warn("merchant suggestions unavailable",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return nil
	}
	return search.NewMerchantMatcher(merchants).Suggest(query, 5)
}
