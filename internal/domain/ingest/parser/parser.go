// Package parser extracts structured transaction fields from raw bank SMS text.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/sms-finance-tracker/pkg/money"
)

// Extraction holds the best-effort fields pulled out of a single message.
// Every field has a safe default; extraction never fails.
type Extraction struct {
	Amount        decimal.Decimal // zero when no amount found
	Currency      string          // ISO-4217 code, default currency when absent
	MerchantRaw   string          // verbatim matched span, may be empty
	MerchantClean string          // case-folded, punctuation-stripped form
	OccurredAt    time.Time       // parsed from text, else extraction time
	DateRaw       string          // matched date literal, empty when absent
	Direction     Direction       // keyword-sniffed expense/income tag
	DateInText    bool            // true when OccurredAt came from the message
}

// Parser is a permissive SMS field extractor. Bank gateways do not guarantee
// any message format, so a partially parsed record always beats a dropped one.
type Parser struct {
	defaultCurrency string

	amountRe   *regexp.Regexp
	amountSufRe *regexp.Regexp
	dateRe     *regexp.Regexp
	merchantRe []*regexp.Regexp
}

// New creates a parser that falls back to defaultCurrency when the
// message carries no recognizable currency code.
func New(defaultCurrency string) *Parser {
	return &Parser{
		defaultCurrency: defaultCurrency,
		// "KWD 3.500", "USD 1,234.56"
		amountRe: regexp.MustCompile(`\b([A-Z]{3})\s+(\d[\d,]*(?:[.,]\d+)?)\b`),
		// "3.500 KWD"
		amountSufRe: regexp.MustCompile(`\b(\d[\d,]*(?:[.,]\d+)?)\s+([A-Z]{3})\b`),
		dateRe:      regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`),
		// Connector phrases in priority order; the merchant span stops at the
		// next "on" connector, a comma, or end of string.
		merchantRe: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bfor\s+(.+?)(?:\s+on\b|,|$)`),
			regexp.MustCompile(`(?i)\bfrom\s+(.+?)(?:\s+on\b|,|$)`),
			regexp.MustCompile(`(?i)\bat\s+(.+?)(?:\s+on\b|,|$)`),
		},
	}
}

// Normalize collapses whitespace runs to single spaces and trims the ends.
// Idempotent; the content fingerprint is computed over this form.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Extract pulls amount, currency, merchant, timestamp and direction out of
// normalized text. now is used when the message carries no parseable date.
func (p *Parser) Extract(text string, now time.Time) Extraction {
	ext := Extraction{
		Amount:     decimal.Zero,
		Currency:   p.defaultCurrency,
		OccurredAt: now.UTC(),
		Direction:  DetectDirection(text),
	}

	p.extractAmount(text, &ext)
	p.extractMerchant(text, &ext)
	p.extractDate(text, now, &ext)

	return ext
}

func (p *Parser) extractAmount(text string, ext *Extraction) {
	if m := p.amountRe.FindStringSubmatch(text); m != nil && money.IsKnownCurrency(m[1]) {
		ext.Currency = m[1]
		ext.Amount = parseAmount(m[2])
		return
	}
	if m := p.amountSufRe.FindStringSubmatch(text); m != nil && money.IsKnownCurrency(m[2]) {
		ext.Currency = m[2]
		ext.Amount = parseAmount(m[1])
	}
}

func (p *Parser) extractMerchant(text string, ext *Extraction) {
	for _, re := range p.merchantRe {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(m[1]), ",")
		if raw == "" {
			continue
		}
		ext.MerchantRaw = raw
		ext.MerchantClean = CleanMerchant(raw)
		return
	}
}

func (p *Parser) extractDate(text string, now time.Time, ext *Extraction) {
	m := p.dateRe.FindString(text)
	if m == "" {
		return
	}
	ext.DateRaw = m
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", m, time.UTC)
	if err != nil {
		// Shaped like a date but does not parse: same as absent.
		ext.OccurredAt = now.UTC()
		return
	}
	ext.OccurredAt = ts
	ext.DateInText = true
}

// parseAmount converts a numeric literal to a decimal, tolerating both
// decimal-comma and thousands-separator styles. Unparseable input yields zero.
func parseAmount(s string) decimal.Decimal {
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// "1,234.56" - commas are thousands separators
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		// "12,50" - European decimal comma
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// CleanMerchant produces the canonical merchant form: case-folded, punctuation
// stripped, whitespace collapsed. Used for rule matching and fingerprints.
func CleanMerchant(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r >= 0x80:
			// Keep non-ASCII letters as-is; merchants are not ASCII-only.
			b.WriteRune(r)
		}
	}
	return Normalize(b.String())
}
