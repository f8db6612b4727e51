package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api"
	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/category"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/parser"
	ingestservice "github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/service"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/insights"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/rules"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/search"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/subscriptions"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/trash"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/config"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/cron"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/db"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ExpenseRepo  *expense.Repository
	RuleRepo     *rules.Repository
	TrashRepo    *trash.Repository
	InsightsRepo *insights.Repository

	// Services
	IngestService *ingestservice.Service
	Detector      *subscriptions.Detector
	SearchIndex   *search.Index
	Metrics       *metrics.Metrics
	Scheduler     *cron.Scheduler

	// HTTP
	Router api.RouterConfig
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initRouter()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.Connect(ctx, d.Config.Database.DSN(), d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.Migrate(d.Config.Database.DSN()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (d *Dependencies) initServices() error {
	d.ExpenseRepo = expense.NewRepository(d.DB.Pool)
	d.RuleRepo = rules.NewRepository(d.DB.Pool)
	d.TrashRepo = trash.NewRepository(
		d.DB.Pool,
		time.Duration(d.Config.Ingest.UndoWindowSeconds)*time.Second,
		d.Logger,
	)
	d.InsightsRepo = insights.NewRepository(d.DB.Pool)

	index, err := search.NewIndex(d.Config.Search.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	d.SearchIndex = index

	d.Metrics = metrics.New()

	d.IngestService = ingestservice.New(
		d.ExpenseRepo,
		d.RuleRepo,
		parser.New(d.Config.Ingest.DefaultCurrency),
		category.NewHeuristic(),
		rules.NewEngine(d.Logger),
		d.SearchIndex,
		d.Metrics,
		d.Logger,
	)

	d.Detector = subscriptions.NewDetector(d.ExpenseRepo, d.Config.Ingest.DefaultCurrency, d.Logger)
	d.Scheduler = cron.NewScheduler(d.ExpenseRepo, d.Detector, d.Logger)

	return nil
}

func (d *Dependencies) initRouter() {
	resp := response.New(d.Logger)
	defaultUser := d.Config.Ingest.DefaultUser

	d.Router = api.RouterConfig{
		Ingest:        api.NewIngestHandler(resp, d.IngestService, defaultUser),
		Expenses:      api.NewExpenseHandler(resp, d.ExpenseRepo, d.TrashRepo, d.SearchIndex, defaultUser, d.Logger),
		Rules:         api.NewRuleHandler(resp, d.RuleRepo, defaultUser),
		Subscriptions: api.NewSubscriptionHandler(resp, d.Detector, defaultUser),
		Insights:      api.NewInsightsHandler(resp, d.InsightsRepo, defaultUser),
		Search:        api.NewSearchHandler(resp, d.SearchIndex, d.ExpenseRepo, defaultUser, d.Logger),
		Export:        api.NewExportHandler(resp, d.ExpenseRepo, defaultUser),

		APIKey:             d.Config.Auth.APIKey,
		RateLimitPerSecond: d.Config.Server.RateLimitPerSecond,
		RateLimitBurst:     d.Config.Server.RateLimitBurst,
		Logger:             d.Logger,
	}
	if d.Config.Observability.MetricsEnabled {
		d.Router.Metrics = d.Metrics.Handler()
	}
}

// Close releases held resources in reverse init order.
func (d *Dependencies) Close() {
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("closing search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
