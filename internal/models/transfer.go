package models

// TransferRequest is the caller's intent to move AmountCents between two accounts.
type TransferRequest struct {
	IdempotencyKey string  `json:"-" validate:"required,max=255"`
	FromAccountID  string  `json:"from_account_id" validate:"required,max=64"`
	ToAccountID    string  `json:"to_account_id" validate:"required,max=64"`
	AmountCents    int64   `json:"amount_cents" validate:"gt=0"`
	Currency       string  `json:"currency" validate:"required,len=3,alpha,uppercase"`
	ExternalRef    *string `json:"external_ref" validate:"omitempty,max=255"`
}

// TransferPayload is the canonical form of a transfer used for request hashing.
// Fields are declared in lexical order of their JSON names so the encoding is stable.
type TransferPayload struct {
	AmountCents   int64   `json:"amount_cents"`
	Currency      string  `json:"currency"`
	ExternalRef   *string `json:"external_ref"`
	FromAccountID string  `json:"from_account_id"`
	ToAccountID   string  `json:"to_account_id"`
}

func (r TransferRequest) Canonical() TransferPayload {
	return TransferPayload{
		AmountCents:   r.AmountCents,
		Currency:      r.Currency,
		ExternalRef:   r.ExternalRef,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
	}
}

type EntryResult struct {
	EntryID     string `json:"entry_id"`
	AccountID   string `json:"account_id"`
	AmountCents int64  `json:"amount_cents"`
}

// TransferResult is returned to the caller and cached for replays.
type TransferResult struct {
	TxnID       string        `json:"txn_id"`
	TxnType     string        `json:"txn_type"`
	Currency    string        `json:"currency"`
	ExternalRef *string       `json:"external_ref"`
	Entries     []EntryResult `json:"entries"`

	// Replayed is set when the result came from the idempotency cache.
	Replayed bool `json:"-"`
}

const ResponseKindTransfer = "transfer.v1"

// StoredResponse is the tagged envelope persisted with a completed idempotency key.
type StoredResponse struct {
	Kind     string          `json:"kind"`
	Transfer *TransferResult `json:"transfer,omitempty"`
}
