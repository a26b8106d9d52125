package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrConstraintViolation = errors.New("storage constraint violation")
)

// LedgerStore is the relational source of truth. Every mutation happens inside
// WithinTx; the transaction is rolled back when fn returns an error, panics or
// the context is cancelled, and committed otherwise.
type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	GetBalance(ctx context.Context, accountID string) (models.AccountBalance, error)
	GetTransaction(ctx context.Context, txnID string) (models.TransactionDetail, error)
	Audit(ctx context.Context) (models.AuditReport, error)
}

// LedgerTx is the set of repositories bound to one open transaction.
type LedgerTx interface {
	IdempotencyRepository
	AccountRepository
	JournalRepository
	OutboxRepository
}

type IdempotencyRepository interface {
	// InsertIdempotencyKey reports false when the key already exists.
	InsertIdempotencyKey(ctx context.Context, key, requestHash string) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (models.IdempotencyKey, error)
	CompleteIdempotencyKey(ctx context.Context, key string, response []byte) error
}

type AccountRepository interface {
	// InsertAccount creates the account and its zero balance row.
	InsertAccount(ctx context.Context, account models.Account) (models.Account, error)
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	// AddToBalance is an additive upsert; it never reads the current value first.
	AddToBalance(ctx context.Context, accountID string, deltaCents int64) error
}

type JournalRepository interface {
	InsertTransaction(ctx context.Context, txn models.LedgerTransaction) (models.LedgerTransaction, error)
	InsertEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error)
	ListEntriesByTransaction(ctx context.Context, txnID string) ([]models.LedgerEntry, error)
}

type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) (models.OutboxEvent, error)
	// ClaimUnsentOutboxEvents locks up to limit of the oldest unsent events,
	// skipping rows another transaction already holds.
	ClaimUnsentOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkOutboxEventSent(ctx context.Context, eventID string) error
}
