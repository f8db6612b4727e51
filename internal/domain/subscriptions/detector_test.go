package subscriptions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
)

type fakeStore struct {
	txs   []expense.Transaction
	since time.Time
}

func (f *fakeStore) ListSince(_ context.Context, _ string, since time.Time) ([]expense.Transaction, error) {
	f.since = since
	return f.txs, nil
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func series(merchant, currency string, amount float64, start time.Time, gapDays, n int) []expense.Transaction {
	out := make([]expense.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = expense.Transaction{
			UserID:        "pedro",
			MerchantClean: merchant,
			Currency:      currency,
			Amount:        decimal.NewFromFloat(amount),
			OccurredAt:    start.AddDate(0, 0, i*gapDays),
		}
	}
	return out
}

func newTestDetector(store *fakeStore) *Detector {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDetector(store, "KWD", logger).WithClock(func() time.Time { return testNow })
}

func TestDetect_MonthlySubscription(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{txs: series("netflix", "KWD", 4.0, start, 30, 5)}
	d := newTestDetector(store)

	report, err := d.Detect(context.Background(), "pedro", Options{})
	require.NoError(t, err)

	assert.Equal(t, "pedro", report.UserID)
	assert.Equal(t, 365, report.LookbackDays)
	require.Len(t, report.Subscriptions, 1)

	sub := report.Subscriptions[0]
	assert.Equal(t, "netflix", sub.Merchant)
	assert.Equal(t, FrequencyMonthly, sub.Frequency)
	assert.Equal(t, "KWD", sub.Currency)
	assert.Equal(t, 5, sub.Occurrences)
	assert.Equal(t, "4", sub.MeanAmount.String())
	assert.Equal(t, "4", sub.MonthlyEquivalent.String())
	assert.Equal(t, "2026-05-05", sub.LastSeen)
	assert.Equal(t, "2026-06-04", sub.NextExpected)
	assert.Equal(t, ConfidenceMedium, sub.Confidence)
	assert.Equal(t, "4", report.MonthlyCommitment.String())
}

func TestDetect_WeeklyMonthlyEquivalent(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{txs: series("gym", "KWD", 10.0, start, 7, 6)}
	d := newTestDetector(store)

	report, err := d.Detect(context.Background(), "pedro", Options{})
	require.NoError(t, err)
	require.Len(t, report.Subscriptions, 1)

	sub := report.Subscriptions[0]
	assert.Equal(t, FrequencyWeekly, sub.Frequency)
	// 10 * 4.348 weeks per month
	assert.Equal(t, "43.48", sub.MonthlyEquivalent.String())
	assert.Equal(t, ConfidenceHigh, sub.Confidence)
}

func TestDetect_TooFewOccurrences(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{txs: series("netflix", "KWD", 4.0, start, 30, 2)}
	d := newTestDetector(store)

	report, err := d.Detect(context.Background(), "pedro", Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Subscriptions)
}

func TestDetect_IrregularCadenceSkipped(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	txs := []expense.Transaction{
		{MerchantClean: "talabat", Currency: "KWD", Amount: decimal.NewFromFloat(3), OccurredAt: start},
		{MerchantClean: "talabat", Currency: "KWD", Amount: decimal.NewFromFloat(3), OccurredAt: start.AddDate(0, 0, 2)},
		{MerchantClean: "talabat", Currency: "KWD", Amount: decimal.NewFromFloat(3), OccurredAt: start.AddDate(0, 0, 17)},
		{MerchantClean: "talabat", Currency: "KWD", Amount: decimal.NewFromFloat(3), OccurredAt: start.AddDate(0, 0, 60)},
	}
	store := &fakeStore{txs: txs}
	d := newTestDetector(store)

	report, err := d.Detect(context.Background(), "pedro", Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Subscriptions)
}

func TestDetect_UnstableAmountSkipped(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	txs := series("carrefour", "KWD", 10.0, start, 30, 4)
	txs[2].Amount = decimal.NewFromFloat(25.0)
	store := &fakeStore{txs: txs}
	d := newTestDetector(store)

	report, err := d.Detect(context.Background(), "pedro", Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Subscriptions)
}

func TestDetect_SortedByMonthlyEquivalentDesc(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var txs []expense.Transaction
	txs = append(txs, series("netflix", "KWD", 4.0, start, 30, 4)...)
	txs = append(txs, series("spotify", "KWD", 6.0, start, 30, 4)...)
	store := &fakeStore{txs: txs}
	d := newTestDetector(store)

	report, err := d.Detect(context.Background(), "pedro", Options{})
	require.NoError(t, err)
	require.Len(t, report.Subscriptions, 2)
	assert.Equal(t, "spotify", report.Subscriptions[0].Merchant)
	assert.Equal(t, "netflix", report.Subscriptions[1].Merchant)
	assert.Equal(t, "10", report.MonthlyCommitment.String())
}

func TestDetect_LookbackWindow(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(store)

	_, err := d.Detect(context.Background(), "pedro", Options{LookbackDays: 90})
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 0, -90), store.since)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 365, o.LookbackDays)
	assert.Equal(t, 3, o.MinOccurrences)
	assert.InDelta(t, 0.10, o.AmountTolerance, 1e-9)
}
