package expense

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContentFingerprint identifies a message by its normalized text alone.
// Byte-for-byte resubmissions (client retries, carrier retransmissions)
// collapse onto the same value regardless of incidental whitespace.
func ContentFingerprint(normalizedText string) string {
	return sha256Hex(normalizedText)
}

// TransactionFingerprint identifies the underlying transaction so that
// trivially reworded messages about the same payment still collide.
// occurredAt is rendered in UTC and the amount in its canonical decimal
// form, keeping the hash stable across formatting differences.
func TransactionFingerprint(userID string, amount decimal.Decimal, currency, merchantClean string, occurredAt time.Time) string {
	parts := []string{
		userID,
		amount.String(),
		currency,
		merchantClean,
		occurredAt.UTC().Format(time.RFC3339),
	}
	return sha256Hex(strings.Join(parts, "|"))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
