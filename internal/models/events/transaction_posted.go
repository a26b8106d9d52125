package events

const TypeTransactionPosted = "ledger.transaction_posted"

// TransactionPosted is published once per committed ledger transaction.
type TransactionPosted struct {
	TxnID    string `json:"txn_id"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}
