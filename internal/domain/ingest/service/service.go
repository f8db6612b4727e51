// Package service orchestrates the SMS ingestion pipeline: normalize,
// extract, categorize, apply user rules, fingerprint, dedup, persist.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/category"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/parser"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/rules"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/metrics"
)

// ErrInvalidInput rejects requests missing a user id or message text before
// they enter the pipeline. It is the only caller-visible failure; parsing
// ambiguity degrades to defaults instead.
var ErrInvalidInput = errors.New("user_id and sms text are required")

// TransactionStore is the persistence collaborator for the dedup gate.
type TransactionStore interface {
	FindByContentFingerprint(ctx context.Context, fp string) (*expense.Transaction, error)
	Insert(ctx context.Context, t *expense.Transaction) (int64, error)
}

// RuleStore loads the user's enabled rules, fresh on every call.
type RuleStore interface {
	ListEnabled(ctx context.Context, userID string) ([]rules.Rule, error)
}

// Indexer receives persisted records for secondary indexing (search).
// Indexing failures never affect the ingestion outcome.
type Indexer interface {
	IndexTransaction(t *expense.Transaction) error
}

// Result is the outcome of one ingestion call. Inserted=false with a
// non-zero RecordID means the dedup gate matched an existing record.
type Result struct {
	Inserted bool                 `json:"inserted"`
	RecordID int64                `json:"record_id"`
	Record   *expense.Transaction `json:"record,omitempty"`
}

// Service is the ingestion pipeline entry point.
type Service struct {
	txs        TransactionStore
	ruleStore  RuleStore
	parser     *parser.Parser
	heuristic  *category.Heuristic
	ruleEngine *rules.Engine
	indexer    Indexer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New wires the pipeline. indexer may be nil when search is disabled.
func New(
	txs TransactionStore,
	ruleStore RuleStore,
	p *parser.Parser,
	h *category.Heuristic,
	engine *rules.Engine,
	indexer Indexer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		txs:        txs,
		ruleStore:  ruleStore,
		parser:     p,
		heuristic:  h,
		ruleEngine: engine,
		indexer:    indexer,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest runs the full pipeline for one message. It is safe under
// concurrent calls with identical payloads: the storage uniqueness
// constraint guarantees at most one persisted row per content fingerprint,
// and every racing caller observes a consistent duplicate outcome.
func (s *Service) Ingest(ctx context.Context, userID, rawText string) (*Result, error) {
	userID = strings.TrimSpace(userID)
	normalized := parser.Normalize(rawText)
	if userID == "" || normalized == "" {
		s.metrics.RejectedTotal.Inc()
		return nil, ErrInvalidInput
	}

	ingestedAt := s.now().UTC()
	rec := s.assemble(ctx, userID, rawText, normalized, ingestedAt)

	// Dedup gate: exact text resubmission is a no-op, not an error.
	if existing, err := s.txs.FindByContentFingerprint(ctx, rec.ContentFingerprint); err == nil {
		s.metrics.DuplicatesTotal.Inc()
		return &Result{Inserted: false, RecordID: existing.ID, Record: existing}, nil
	} else if !errors.Is(err, expense.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	id, err := s.txs.Insert(ctx, rec)
	if errors.Is(err, expense.ErrDuplicate) {
		// Lost the race to a concurrent identical submission; the winner's
		// row is the canonical one.
		s.metrics.DuplicatesTotal.Inc()
		winner, findErr := s.txs.FindByContentFingerprint(ctx, rec.ContentFingerprint)
		if findErr != nil {
			return nil, fmt.Errorf("resolving duplicate winner: %w", findErr)
		}
		return &Result{Inserted: false, RecordID: winner.ID, Record: winner}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persisting expense: %w", err)
	}

	rec.ID = id
	s.metrics.IngestedTotal.Inc()
	s.logger.Info("ingested sms",
		slog.String("user_id", userID),
		slog.Int64("record_id", id),
		slog.String("category", rec.Category),
		slog.String("merchant", rec.MerchantClean),
	)

	if s.indexer != nil {
		if err := s.indexer.IndexTransaction(rec); err != nil {
			s.logger.Warn("search indexing failed", slog.Int64("record_id", id), slog.Any("error", err))
		}
	}

	return &Result{Inserted: true, RecordID: id, Record: rec}, nil
}

// assemble runs extraction, the category heuristic and the rule engine, and
// produces the final record with both fingerprints and all never-null
// defaults applied.
func (s *Service) assemble(ctx context.Context, userID, rawText, normalized string, ingestedAt time.Time) *expense.Transaction {
	ext := s.parser.Extract(normalized, ingestedAt)
	s.recordFallbacks(&ext)

	cat := s.heuristic.Categorize(ext.MerchantClean, normalized)
	merchantClean := ext.MerchantClean

	// Rules are re-read on every call so edits apply to the next message.
	// A failing rule store degrades to heuristic defaults rather than
	// blocking ingestion.
	ruleList, err := s.ruleStore.ListEnabled(ctx, userID)
	if err != nil {
		s.logger.Warn("rule load failed, using defaults",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		ruleList = nil
	}

	overrides := s.ruleEngine.Apply(ruleList, merchantClean, normalized)
	if overrides.Category != nil {
		cat = *overrides.Category
	}
	if overrides.MerchantClean != nil {
		merchantClean = *overrides.MerchantClean
	}
	if overrides.Category != nil || overrides.MerchantClean != nil {
		s.metrics.RuleOverrides.Inc()
	}

	if cat == "" {
		cat = category.Other
	}

	return &expense.Transaction{
		UserID:                 userID,
		RawText:                rawText,
		NormalizedText:         normalized,
		Amount:                 ext.Amount,
		Currency:               ext.Currency,
		MerchantRaw:            ext.MerchantRaw,
		MerchantClean:          merchantClean,
		Category:               cat,
		Direction:              string(ext.Direction),
		OccurredAt:             ext.OccurredAt,
		IngestedAt:             ingestedAt,
		ContentFingerprint:     expense.ContentFingerprint(normalized),
		TransactionFingerprint: expense.TransactionFingerprint(userID, ext.Amount, ext.Currency, merchantClean, ext.OccurredAt),
	}
}

func (s *Service) recordFallbacks(ext *parser.Extraction) {
	if ext.Amount.IsZero() {
		s.metrics.ParseFallbacks.WithLabelValues("amount").Inc()
	}
	if ext.MerchantRaw == "" {
		s.metrics.ParseFallbacks.WithLabelValues("merchant").Inc()
	}
	if !ext.DateInText {
		s.metrics.ParseFallbacks.WithLabelValues("date").Inc()
	}
}
