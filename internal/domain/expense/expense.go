// Package expense defines the persisted transaction record and its store.
package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the persisted shape of one ingested bank SMS. Field
// invariants: Category and MerchantClean are never empty-for-null (category
// falls back to "other", merchant_clean may be the empty string), OccurredAt
// is always a valid instant, IngestedAt is always the insertion time.
type Transaction struct {
	ID                     int64           `json:"id" csv:"id"`
	UserID                 string          `json:"user_id" csv:"user_id"`
	RawText                string          `json:"raw_text" csv:"-"`
	NormalizedText         string          `json:"-" csv:"-"`
	Amount                 decimal.Decimal `json:"amount" csv:"amount"`
	Currency               string          `json:"currency" csv:"currency"`
	MerchantRaw            string          `json:"merchant_raw" csv:"-"`
	MerchantClean          string          `json:"merchant_clean" csv:"merchant"`
	Category               string          `json:"category" csv:"category"`
	Direction              string          `json:"direction" csv:"direction"`
	OccurredAt             time.Time       `json:"occurred_at" csv:"occurred_at"`
	IngestedAt             time.Time       `json:"ingested_at" csv:"-"`
	ContentFingerprint     string          `json:"-" csv:"-"`
	TransactionFingerprint string          `json:"-" csv:"-"`
}
