package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

type postgresTx struct {
	tx *sqlx.Tx
}

// InsertIdempotencyKey relies on the primary key on idempotency_key. A concurrent
// insert of the same key waits for the first transaction and then does nothing.
func (t *postgresTx) InsertIdempotencyKey(ctx context.Context, key, requestHash string) (bool, error) {
	const query = `INSERT INTO idempotency_key (idempotency_key, request_hash, status)
	VALUES ($1, $2, 'IN_PROGRESS')
	ON CONFLICT (idempotency_key) DO NOTHING`

	res, err := t.tx.ExecContext(ctx, query, key, requestHash)
	if err != nil {
		return false, translate(fmt.Errorf("insert idempotency key: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert idempotency key: %w", err)
	}
	return n == 1, nil
}

func (t *postgresTx) GetIdempotencyKey(ctx context.Context, key string) (models.IdempotencyKey, error) {
	const query = `SELECT idempotency_key, request_hash, status, response_body, created_at, updated_at
	FROM idempotency_key WHERE idempotency_key = $1`

	var row models.IdempotencyKey
	if err := t.tx.GetContext(ctx, &row, query, key); err != nil {
		return models.IdempotencyKey{}, translate(fmt.Errorf("get idempotency key: %w", err))
	}
	return row, nil
}

func (t *postgresTx) CompleteIdempotencyKey(ctx context.Context, key string, response []byte) error {
	const query = `UPDATE idempotency_key
	SET status = 'COMPLETED', response_body = $2, updated_at = clock_timestamp()
	WHERE idempotency_key = $1`

	res, err := t.tx.ExecContext(ctx, query, key, response)
	if err != nil {
		return translate(fmt.Errorf("complete idempotency key: %w", err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	} else if n != 1 {
		return fmt.Errorf("complete idempotency key %q: %w", key, interfaces.ErrNotFound)
	}
	return nil
}

func (t *postgresTx) InsertAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const insertAccount = `INSERT INTO account (account_id, name, type, currency)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at`
	const insertBalance = `INSERT INTO account_balance (account_id, balance_cents)
	VALUES ($1, 0)
	ON CONFLICT (account_id) DO NOTHING`

	err := t.tx.QueryRowxContext(ctx, insertAccount, account.ID, account.Name, account.Type, account.Currency).
		Scan(&account.CreatedAt)
	if err != nil {
		return models.Account{}, translate(fmt.Errorf("insert account: %w", err))
	}
	if _, err := t.tx.ExecContext(ctx, insertBalance, account.ID); err != nil {
		return models.Account{}, translate(fmt.Errorf("insert account balance: %w", err))
	}
	return account, nil
}

func (t *postgresTx) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	const query = `SELECT account_id, name, type, currency, created_at FROM account WHERE account_id = $1`

	var account models.Account
	if err := t.tx.GetContext(ctx, &account, query, accountID); err != nil {
		return models.Account{}, translate(fmt.Errorf("get account %s: %w", accountID, err))
	}
	return account, nil
}

func (t *postgresTx) AddToBalance(ctx context.Context, accountID string, deltaCents int64) error {
	const query = `INSERT INTO account_balance (account_id, balance_cents)
	VALUES ($1, $2)
	ON CONFLICT (account_id) DO UPDATE
		SET balance_cents = account_balance.balance_cents + EXCLUDED.balance_cents,
		    updated_at = clock_timestamp()`

	if _, err := t.tx.ExecContext(ctx, query, accountID, deltaCents); err != nil {
		return translate(fmt.Errorf("apply balance delta to %s: %w", accountID, err))
	}
	return nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn models.LedgerTransaction) (models.LedgerTransaction, error) {
	const query = `INSERT INTO ledger_transaction (txn_id, txn_type, currency, external_ref)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at`

	err := t.tx.QueryRowxContext(ctx, query, txn.ID, txn.Type, txn.Currency, txn.ExternalRef).Scan(&txn.CreatedAt)
	if err != nil {
		return models.LedgerTransaction{}, translate(fmt.Errorf("insert transaction: %w", err))
	}
	return txn, nil
}

func (t *postgresTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	const query = `INSERT INTO ledger_entry (entry_id, txn_id, account_id, amount_cents)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at`

	err := t.tx.QueryRowxContext(ctx, query, entry.ID, entry.TxnID, entry.AccountID, entry.AmountCents).Scan(&entry.CreatedAt)
	if err != nil {
		return models.LedgerEntry{}, translate(fmt.Errorf("insert entry: %w", err))
	}
	return entry, nil
}

func (t *postgresTx) ListEntriesByTransaction(ctx context.Context, txnID string) ([]models.LedgerEntry, error) {
	return listEntries(ctx, t.tx, txnID)
}

func (t *postgresTx) InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) (models.OutboxEvent, error) {
	const query = `INSERT INTO outbox_event (event_id, event_type, payload)
	VALUES ($1, $2, $3)
	RETURNING created_at`

	// payload is a JSON column kept byte for byte; lib/pq would send a []byte as bytea.
	err := t.tx.QueryRowxContext(ctx, query, event.ID, event.EventType, string(event.Payload)).Scan(&event.CreatedAt)
	if err != nil {
		return models.OutboxEvent{}, translate(fmt.Errorf("insert outbox event: %w", err))
	}
	event.SentAt = nil
	return event, nil
}

func (t *postgresTx) ClaimUnsentOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	const query = `SELECT event_id, event_type, payload, created_at, sent_at
	FROM outbox_event
	WHERE sent_at IS NULL
	ORDER BY created_at, event_seq
	LIMIT $1
	FOR UPDATE SKIP LOCKED`

	var events []models.OutboxEvent
	if err := t.tx.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, translate(fmt.Errorf("claim outbox events: %w", err))
	}
	return events, nil
}

func (t *postgresTx) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	const query = `UPDATE outbox_event SET sent_at = clock_timestamp() WHERE event_id = $1 AND sent_at IS NULL`

	res, err := t.tx.ExecContext(ctx, query, eventID)
	if err != nil {
		return translate(fmt.Errorf("mark outbox event sent: %w", err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	} else if n != 1 {
		return fmt.Errorf("unsent outbox event %s: %w", eventID, interfaces.ErrNotFound)
	}
	return nil
}

var _ interfaces.LedgerTx = (*postgresTx)(nil)
