// Package subscriptions detects recurring merchant payments from transaction
// history. Detection is read-only: it derives a report on demand instead of
// persisting subscription rows.
package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
)

const (
	FrequencyMonthly = "monthly"
	FrequencyWeekly  = "weekly"

	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	// Average weeks per month, used to normalize weekly cadences.
	weeksPerMonth = 4.348
)

// Options tune the detection sweep. Zero values fall back to the defaults.
type Options struct {
	LookbackDays    int
	MinOccurrences  int
	AmountTolerance float64
}

func (o Options) withDefaults() Options {
	if o.LookbackDays <= 0 {
		o.LookbackDays = 365
	}
	if o.MinOccurrences < 3 {
		o.MinOccurrences = 3
	}
	if o.AmountTolerance <= 0 {
		o.AmountTolerance = 0.10
	}
	return o
}

// Subscription is one detected recurring payment.
type Subscription struct {
	Merchant          string          `json:"merchant"`
	Frequency         string          `json:"frequency"`
	Currency          string          `json:"currency"`
	Occurrences       int             `json:"occurrences"`
	MeanAmount        decimal.Decimal `json:"mean_amount"`
	MonthlyEquivalent decimal.Decimal `json:"monthly_equivalent"`
	LastSeen          string          `json:"last_seen"`
	NextExpected      string          `json:"next_expected"`
	Confidence        string          `json:"confidence"`
}

// Report is the result of one detection sweep for a user.
type Report struct {
	UserID            string          `json:"user_id"`
	LookbackDays      int             `json:"lookback_days"`
	MonthlyCommitment decimal.Decimal `json:"monthly_commitment_estimated"`
	Subscriptions     []Subscription  `json:"subscriptions"`
}

// TransactionStore supplies the positive-amount transaction history ordered
// by merchant then occurrence time.
type TransactionStore interface {
	ListSince(ctx context.Context, userID string, since time.Time) ([]expense.Transaction, error)
}

// Detector analyzes transaction history for recurring merchant payments.
type Detector struct {
	store           TransactionStore
	defaultCurrency string
	logger          *slog.Logger
	now             func() time.Time
}

func NewDetector(store TransactionStore, defaultCurrency string, logger *slog.Logger) *Detector {
	return &Detector{
		store:           store,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Detect runs one sweep over the user's history. A merchant qualifies when it
// has enough occurrences, a recognizable weekly or monthly cadence, and a
// stable amount within the tolerance.
func (d *Detector) Detect(ctx context.Context, userID string, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	since := d.now().UTC().AddDate(0, 0, -opts.LookbackDays)

	txs, err := d.store.ListSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	report := &Report{
		UserID:        userID,
		LookbackDays:  opts.LookbackDays,
		Subscriptions: []Subscription{},
	}

	monthlyCommitment := 0.0
	for _, group := range groupByMerchant(txs) {
		sub, ok := d.analyze(group, opts)
		if !ok {
			continue
		}
		report.Subscriptions = append(report.Subscriptions, sub)
		monthlyCommitment += sub.MonthlyEquivalent.InexactFloat64()
	}

	sort.Slice(report.Subscriptions, func(i, j int) bool {
		a, b := report.Subscriptions[i], report.Subscriptions[j]
		if cmp := a.MonthlyEquivalent.Cmp(b.MonthlyEquivalent); cmp != 0 {
			return cmp > 0
		}
		return a.Merchant < b.Merchant
	})
	report.MonthlyCommitment = decimal.NewFromFloat(monthlyCommitment).Round(3)

	d.logger.Debug("subscription sweep",
		slog.String("user_id", userID),
		slog.Int("detected", len(report.Subscriptions)),
	)
	return report, nil
}

// analyze applies the cadence and stability checks to one merchant's history.
func (d *Detector) analyze(items []expense.Transaction, opts Options) (Subscription, bool) {
	if len(items) < opts.MinOccurrences {
		return Subscription{}, false
	}

	amounts := make([]float64, len(items))
	for i, t := range items {
		amounts[i] = t.Amount.InexactFloat64()
	}

	var diffs []int
	for i := 1; i < len(items); i++ {
		days := int(items[i].OccurredAt.Sub(items[i-1].OccurredAt).Hours() / 24)
		if days > 0 {
			diffs = append(diffs, days)
		}
	}

	freq := detectFrequency(diffs)
	if freq == "" {
		return Subscription{}, false
	}
	if !amountStable(amounts, opts.AmountTolerance) {
		return Subscription{}, false
	}

	mean := meanOf(amounts)
	monthlyEquiv := mean
	if freq == FrequencyWeekly {
		monthlyEquiv = mean * weeksPerMonth
	}

	last := items[len(items)-1]
	nextExpected := last.OccurredAt.AddDate(0, 0, int(math.Round(medianOfInts(diffs))))

	currency := last.Currency
	if currency == "" {
		currency = d.defaultCurrency
	}

	return Subscription{
		Merchant:          last.MerchantClean,
		Frequency:         freq,
		Currency:          currency,
		Occurrences:       len(items),
		MeanAmount:        decimal.NewFromFloat(mean).Round(3),
		MonthlyEquivalent: decimal.NewFromFloat(monthlyEquiv).Round(3),
		LastSeen:          last.OccurredAt.UTC().Format("2006-01-02"),
		NextExpected:      nextExpected.UTC().Format("2006-01-02"),
		Confidence:        confidence(len(items), amounts),
	}, true
}

// groupByMerchant splits an already merchant-sorted slice into per-merchant
// groups, preserving the chronological order inside each group.
func groupByMerchant(txs []expense.Transaction) [][]expense.Transaction {
	var groups [][]expense.Transaction
	for i := 0; i < len(txs); {
		j := i
		for j < len(txs) && txs[j].MerchantClean == txs[i].MerchantClean {
			j++
		}
		groups = append(groups, txs[i:j])
		i = j
	}
	return groups
}

// detectFrequency maps the median gap between occurrences to a cadence.
// At least two gaps are required so a single coincidental interval does not
// qualify.
func detectFrequency(diffs []int) string {
	if len(diffs) < 2 {
		return ""
	}
	m := medianOfInts(diffs)
	switch {
	case m >= 27 && m <= 32:
		return FrequencyMonthly
	case m >= 6 && m <= 8:
		return FrequencyWeekly
	default:
		return ""
	}
}

// amountStable reports whether the amount spread relative to the mean stays
// within the tolerance.
func amountStable(amounts []float64, tolerance float64) bool {
	if len(amounts) == 0 {
		return false
	}
	mean := meanOf(amounts)
	if mean <= 0 {
		return false
	}
	mn, mx := amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < mn {
			mn = a
		}
		if a > mx {
			mx = a
		}
	}
	return (mx-mn)/mean <= tolerance
}

func confidence(n int, amounts []float64) string {
	switch {
	case n >= 6 && amountStable(amounts, 0.07):
		return ConfidenceHigh
	case n >= 4 && amountStable(amounts, 0.10):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func medianOfInts(vals []int) float64 {
	sorted := make([]int, len(vals))
	copy(sorted, vals)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
