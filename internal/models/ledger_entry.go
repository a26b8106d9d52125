package models

import "time"

// LedgerEntry represents a single signed posting against an account
type LedgerEntry struct {
	ID          string    `json:"entry_id" db:"entry_id"`         // unique identifier
	TxnID       string    `json:"txn_id" db:"txn_id"`             // owning transaction
	AccountID   string    `json:"account_id" db:"account_id"`     // which account this entry belongs to
	AmountCents int64     `json:"amount_cents" db:"amount_cents"` // negative for debits, positive for credits
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Posting is one leg of a transaction before it is written.
type Posting struct {
	AccountID   string
	AmountCents int64
}
