package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterConfig collects everything the HTTP surface needs.
type RouterConfig struct {
	Ingest        *IngestHandler
	Expenses      *ExpenseHandler
	Rules         *RuleHandler
	Subscriptions *SubscriptionHandler
	Insights      *InsightsHandler
	Search        *SearchHandler
	Export        *ExportHandler

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	APIKey             string
	RateLimitPerSecond int
	RateLimitBurst     int
	Logger             *slog.Logger
}

// NewRouter wires middleware and routes. Health and metrics stay outside the
// API key check so probes and scrapers need no credentials.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(APIKey(cfg.APIKey))

		r.Post("/ingest", cfg.Ingest.Ingest)

		r.Get("/expenses", cfg.Expenses.List)
		r.Post("/update_field", cfg.Expenses.UpdateField)
		r.Post("/delete", cfg.Expenses.Delete)
		r.Post("/undo_delete", cfg.Expenses.UndoDelete)

		r.Mount("/rules", cfg.Rules.Routes())

		r.Get("/api/subscriptions", cfg.Subscriptions.Detect)
		r.Get("/summary", cfg.Insights.Summary)
		r.Get("/search", cfg.Search.Search)

		r.Get("/export/csv", cfg.Export.CSV)
		r.Get("/export/xlsx", cfg.Export.XLSX)
	})

	return r
}
