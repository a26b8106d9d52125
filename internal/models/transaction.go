package models

import "time"

const TxnTypeTransfer = "TRANSFER"

// LedgerTransaction is the header of one economic event. Its entries always sum to zero.
type LedgerTransaction struct {
	ID          string    `json:"txn_id" db:"txn_id"`
	Type        string    `json:"txn_type" db:"txn_type"`
	Currency    string    `json:"currency" db:"currency"`
	ExternalRef *string   `json:"external_ref" db:"external_ref"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TransactionDetail is a posted transaction together with its entries.
type TransactionDetail struct {
	LedgerTransaction
	Entries []LedgerEntry `json:"entries"`
}
