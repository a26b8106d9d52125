package models

// UnbalancedTransaction is a transaction whose entries do not sum to zero or
// that has fewer than two entries.
type UnbalancedTransaction struct {
	TxnID      string `json:"txn_id" db:"txn_id"`
	SumCents   int64  `json:"sum_cents" db:"sum_cents"`
	EntryCount int    `json:"entry_count" db:"entry_count"`
}

// BalanceDrift is an account whose stored balance disagrees with its entries.
type BalanceDrift struct {
	AccountID    string `json:"account_id" db:"account_id"`
	BalanceCents int64  `json:"balance_cents" db:"balance_cents"`
	EntriesCents int64  `json:"entries_cents" db:"entries_cents"`
}

type AuditReport struct {
	Transactions           int                     `json:"transactions"`
	Accounts               int                     `json:"accounts"`
	UnbalancedTransactions []UnbalancedTransaction `json:"unbalanced_transactions"`
	BalanceDrifts          []BalanceDrift          `json:"balance_drifts"`
}

func (r AuditReport) OK() bool {
	return len(r.UnbalancedTransactions) == 0 && len(r.BalanceDrifts) == 0
}
