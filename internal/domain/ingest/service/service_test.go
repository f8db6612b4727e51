package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/category"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/parser"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/rules"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/metrics"
)

// memStore is an in-memory TransactionStore with the same uniqueness
// semantics as the expenses table.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byFP   map[string]*expense.Transaction
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, byFP: make(map[string]*expense.Transaction)}
}

func (m *memStore) FindByContentFingerprint(_ context.Context, fp string) (*expense.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byFP[fp]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, expense.ErrNotFound
}

func (m *memStore) Insert(_ context.Context, t *expense.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byFP[t.ContentFingerprint]; ok {
		return 0, expense.ErrDuplicate
	}
	cp := *t
	cp.ID = m.nextID
	m.nextID++
	m.byFP[t.ContentFingerprint] = &cp
	return cp.ID, nil
}

type memRules struct {
	rules []rules.Rule
	err   error
}

func (m *memRules) ListEnabled(_ context.Context, userID string) ([]rules.Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []rules.Rule
	for _, r := range m.rules {
		if r.UserID == userID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func newTestService(store *memStore, ruleStore *memRules) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(
		store,
		ruleStore,
		parser.New("KWD"),
		category.NewHeuristic(),
		rules.NewEngine(logger),
		nil,
		metrics.New(),
		logger,
	)
}

func TestIngest_ConcreteScenario(t *testing.T) {
	svc := newTestService(newMemStore(), &memRules{})

	res, err := svc.Ingest(context.Background(), "pedro",
		"KWD 3.500 debited for STARBUCKS COFFEE on 2026-01-15 10:00:00")
	require.NoError(t, err)
	require.True(t, res.Inserted)
	require.NotNil(t, res.Record)

	rec := res.Record
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, "KWD", rec.Currency)
	assert.Equal(t, "starbucks coffee", rec.MerchantClean)
	assert.Equal(t, "coffee", rec.Category)
	assert.Equal(t, "expense", rec.Direction)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), rec.OccurredAt)
}

func TestIngest_Idempotent(t *testing.T) {
	svc := newTestService(newMemStore(), &memRules{})
	ctx := context.Background()
	text := "KWD 3.500 debited for STARBUCKS on 2026-01-15 10:00:00"

	first, err := svc.Ingest(ctx, "pedro", text)
	require.NoError(t, err)
	assert.True(t, first.Inserted)

	second, err := svc.Ingest(ctx, "pedro", text)
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.RecordID, second.RecordID)
	require.NotNil(t, second.Record)
	assert.Equal(t, first.RecordID, second.Record.ID)
}

func TestIngest_WhitespaceVariantsDeduplicate(t *testing.T) {
	svc := newTestService(newMemStore(), &memRules{})
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "pedro", "KWD 1.000  debited  for X")
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, "pedro", "  KWD 1.000 debited for X ")
	require.NoError(t, err)

	assert.True(t, first.Inserted)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.RecordID, second.RecordID)
}

func TestIngest_DefaultTotality(t *testing.T) {
	svc := newTestService(newMemStore(), &memRules{})
	before := time.Now().UTC()

	res, err := svc.Ingest(context.Background(), "pedro", "thank you for shopping with us")
	require.NoError(t, err)
	require.True(t, res.Inserted)

	rec := res.Record
	assert.True(t, rec.Amount.IsZero())
	assert.Equal(t, "KWD", rec.Currency)
	assert.Equal(t, category.Other, rec.Category)
	assert.Equal(t, "shopping with us", rec.MerchantClean)
	assert.WithinDuration(t, before, rec.OccurredAt, 5*time.Second)
	assert.WithinDuration(t, before, rec.IngestedAt, 5*time.Second)
}

func TestIngest_InvalidInput(t *testing.T) {
	svc := newTestService(newMemStore(), &memRules{})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "", "KWD 1.000 debited")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ingest(ctx, "pedro", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ingest(ctx, "pedro", "   \t ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngest_RuleOverridesHeuristic(t *testing.T) {
	ruleStore := &memRules{rules: []rules.Rule{{
		ID: 1, UserID: "pedro", Enabled: true, Priority: 10,
		MatchField: rules.FieldMerchant, MatchType: rules.MatchContains,
		Pattern: "STARBUCKS", SetCategory: strPtr("beverages"),
	}}}
	svc := newTestService(newMemStore(), ruleStore)

	res, err := svc.Ingest(context.Background(), "pedro",
		"KWD 3.500 debited for STARBUCKS on 2026-01-15 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, "beverages", res.Record.Category)
}

func TestIngest_RulePrecedence(t *testing.T) {
	// Already ordered (priority ASC, id ASC) as ListEnabled returns them.
	ruleStore := &memRules{rules: []rules.Rule{
		{
			ID: 1, UserID: "pedro", Enabled: true, Priority: 10,
			MatchField: rules.FieldMerchant, MatchType: rules.MatchContains,
			Pattern: "STARBUCKS", SetCategory: strPtr("beverages"),
		},
		{
			ID: 2, UserID: "pedro", Enabled: true, Priority: 20,
			MatchField: rules.FieldMerchant, MatchType: rules.MatchContains,
			Pattern: "STARBUCKS", SetCategory: strPtr("coffee-shops"),
		},
	}}
	svc := newTestService(newMemStore(), ruleStore)

	res, err := svc.Ingest(context.Background(), "pedro", "KWD 2.000 debited for STARBUCKS")
	require.NoError(t, err)
	assert.Equal(t, "beverages", res.Record.Category)
}

func TestIngest_InvalidRegexRuleIsolated(t *testing.T) {
	ruleStore := &memRules{rules: []rules.Rule{
		{
			ID: 1, UserID: "pedro", Enabled: true, Priority: 1,
			MatchField: rules.FieldMerchant, MatchType: rules.MatchRegex,
			Pattern: `([`, SetCategory: strPtr("broken"),
		},
		{
			ID: 2, UserID: "pedro", Enabled: true, Priority: 2,
			MatchField: rules.FieldMerchant, MatchType: rules.MatchContains,
			Pattern: "STARBUCKS", SetCategory: strPtr("beverages"),
		},
	}}
	svc := newTestService(newMemStore(), ruleStore)

	res, err := svc.Ingest(context.Background(), "pedro", "KWD 2.000 debited for STARBUCKS")
	require.NoError(t, err)
	assert.Equal(t, "beverages", res.Record.Category)
}

func TestIngest_RuleStoreFailureDegradesToDefaults(t *testing.T) {
	ruleStore := &memRules{err: context.DeadlineExceeded}
	svc := newTestService(newMemStore(), ruleStore)

	res, err := svc.Ingest(context.Background(), "pedro",
		"KWD 3.500 debited for STARBUCKS on 2026-01-15 10:00:00")
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, "coffee", res.Record.Category)
}

func TestIngest_ConcurrentIdenticalSubmissions(t *testing.T) {
	svc := newTestService(newMemStore(), &memRules{})
	text := "KWD 3.500 debited for STARBUCKS on 2026-01-15 10:00:00"

	const workers = 16
	results := make([]*Result, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Ingest(context.Background(), "pedro", text)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	inserted := 0
	var winnerID int64
	for _, res := range results {
		if res.Inserted {
			inserted++
			winnerID = res.RecordID
		}
	}
	require.Equal(t, 1, inserted, "exactly one caller wins the insert")
	for _, res := range results {
		assert.Equal(t, winnerID, res.RecordID)
	}
}

func TestIngest_RuleMerchantOverrideFeedsTransactionFingerprint(t *testing.T) {
	ruleStore := &memRules{rules: []rules.Rule{{
		ID: 1, UserID: "pedro", Enabled: true, Priority: 10,
		MatchField: rules.FieldMerchant, MatchType: rules.MatchContains,
		Pattern: "starbucks", SetMerchantClean: strPtr("Starbucks"),
	}}}
	svc := newTestService(newMemStore(), ruleStore)

	res, err := svc.Ingest(context.Background(), "pedro",
		"KWD 3.500 debited for STARBUCKS on 2026-01-15 10:00:00")
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, "Starbucks", rec.MerchantClean)
	want := expense.TransactionFingerprint("pedro", rec.Amount, rec.Currency, "Starbucks", rec.OccurredAt)
	assert.Equal(t, want, rec.TransactionFingerprint)
}
