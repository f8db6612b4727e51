// Command seed fills the database with plausible bank SMS traffic for local
// development. Every message goes through the real ingest pipeline, so the
// seeded rows carry the same parsing, categorization and fingerprints as
// production traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/category"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/parser"
	ingestservice "github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/service"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/rules"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/config"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/db"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/metrics"
)

var merchants = []string{
	"STARBUCKS KUWAIT", "TALABAT", "CARREFOUR AVENUES", "LULU HYPERMARKET",
	"CAREEM", "NETFLIX.COM", "SPOTIFY AB", "ZAIN TELECOM", "KNPC STATION 12",
	"MCDONALDS MARINA", "SULTAN CENTER", "NOON.COM", "DELIVEROO",
}

var templates = []string{
	"KWD %s debited for %s on %s",
	"Card purchase KWD %s at %s on %s",
	"%s KWD paid for %s, %s",
	"Your account was debited KWD %s for %s on %s",
}

func main() {
	count := flag.Int("count", 200, "number of SMS messages to generate")
	userID := flag.String("user", "", "user to ingest for (default from config)")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")
	days := flag.Int("days", 180, "spread messages over the past N days")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger, *count, *userID, *seed, *days); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, count int, userID string, seed int64, days int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if userID == "" {
		userID = cfg.Ingest.DefaultUser
	}
	if seed != 0 {
		gofakeit.Seed(seed)
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		return err
	}

	expenseRepo := expense.NewRepository(database.Pool)
	svc := ingestservice.New(
		expenseRepo,
		rules.NewRepository(database.Pool),
		parser.New(cfg.Ingest.DefaultCurrency),
		category.NewHeuristic(),
		rules.NewEngine(logger),
		nil,
		metrics.New(),
		logger,
	)

	inserted, duplicates := 0, 0
	for i := 0; i < count; i++ {
		res, err := svc.Ingest(ctx, userID, fakeSMS(days))
		if err != nil {
			logger.Warn("ingest rejected", slog.Any("error", err))
			continue
		}
		if res.Inserted {
			inserted++
		} else {
			duplicates++
		}
	}

	logger.Info("seed complete",
		slog.String("user_id", userID),
		slog.Int("inserted", inserted),
		slog.Int("duplicates", duplicates),
	)
	return nil
}

func fakeSMS(days int) string {
	amount := fmt.Sprintf("%.3f", gofakeit.Float64Range(0.5, 80))
	merchant := merchants[gofakeit.Number(0, len(merchants)-1)]
	occurred := gofakeit.DateRange(
		time.Now().AddDate(0, 0, -days),
		time.Now(),
	).UTC().Format("2006-01-02 15:04:05")

	tpl := templates[gofakeit.Number(0, len(templates)-1)]
	return fmt.Sprintf(tpl, amount, merchant, occurred)
}
