package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

var errTxDone = errors.New("memory: transaction already finished")

type memoryTx struct {
	store *MemoryLedgerStore
	id    uint64
	done  bool

	// rows inserted by this transaction
	accounts []*accountRow
	txns     []*txnRow
	keys     []*keyRow
	entries  int
	outbox   int

	// writes applied only at commit
	deltas      map[string]int64
	completions map[string][]byte
	sent        map[*outboxRow]time.Time

	claimed []*outboxRow
}

func newMemoryTx(store *MemoryLedgerStore, id uint64) *memoryTx {
	return &memoryTx{
		store:       store,
		id:          id,
		deltas:      make(map[string]int64),
		completions: make(map[string][]byte),
		sent:        make(map[*outboxRow]time.Time),
	}
}

// lock acquires the store mutex for a single statement.
func (tx *memoryTx) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.store.mu.Lock()
	if tx.done {
		tx.store.mu.Unlock()
		return errTxDone
	}
	return nil
}

func (tx *memoryTx) commit() {
	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.done {
		return
	}
	now := m.now()

	for _, row := range tx.accounts {
		row.owner = 0
		if _, ok := m.balances[row.account.ID]; !ok {
			m.balances[row.account.ID] = &models.AccountBalance{
				AccountID: row.account.ID,
				Currency:  row.account.Currency,
				UpdatedAt: row.account.CreatedAt,
			}
		}
	}
	for _, row := range tx.txns {
		row.owner = 0
	}
	if tx.entries > 0 {
		for _, row := range m.entries {
			if row.owner == tx.id {
				row.owner = 0
			}
		}
	}
	if tx.outbox > 0 {
		for _, row := range m.outbox {
			if row.owner == tx.id {
				row.owner = 0
			}
		}
	}
	for id, delta := range tx.deltas {
		balance, ok := m.balances[id]
		if !ok {
			balance = &models.AccountBalance{AccountID: id}
			if acc, ok := m.accounts[id]; ok {
				balance.Currency = acc.account.Currency
			}
			m.balances[id] = balance
		}
		balance.BalanceCents += delta
		balance.UpdatedAt = now
	}
	for _, row := range tx.keys {
		row.owner = 0
	}
	for key, response := range tx.completions {
		if row, ok := m.keys[key]; ok {
			row.key.Status = models.IdempotencyCompleted
			row.key.Response = response
			row.key.UpdatedAt = now
		}
	}
	for row, sentAt := range tx.sent {
		sentAt := sentAt
		row.event.SentAt = &sentAt
	}
	tx.release()
}

func (tx *memoryTx) rollback() {
	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.done {
		return
	}
	for _, row := range tx.accounts {
		if m.accounts[row.account.ID] == row {
			delete(m.accounts, row.account.ID)
		}
	}
	for _, row := range tx.txns {
		if m.transactions[row.txn.ID] == row {
			delete(m.transactions, row.txn.ID)
		}
	}
	for _, row := range tx.keys {
		if m.keys[row.key.Key] == row {
			delete(m.keys, row.key.Key)
		}
	}
	if tx.entries > 0 {
		kept := m.entries[:0]
		for _, row := range m.entries {
			if row.owner != tx.id {
				kept = append(kept, row)
			}
		}
		m.entries = kept
	}
	if tx.outbox > 0 {
		kept := m.outbox[:0]
		for _, row := range m.outbox {
			if row.owner != tx.id {
				kept = append(kept, row)
			}
		}
		m.outbox = kept
	}
	tx.release()
}

// release must be called with the store mutex held.
func (tx *memoryTx) release() {
	for _, row := range tx.claimed {
		if row.lockedBy == tx.id {
			row.lockedBy = 0
		}
	}
	tx.claimed = nil
	tx.accounts, tx.txns, tx.keys = nil, nil, nil
	tx.deltas, tx.completions, tx.sent = nil, nil, nil
	tx.done = true
}

func (tx *memoryTx) InsertIdempotencyKey(ctx context.Context, key, requestHash string) (bool, error) {
	if err := tx.lock(ctx); err != nil {
		return false, err
	}
	m := tx.store
	defer m.mu.Unlock()

	if _, exists := m.keys[key]; exists {
		return false, nil
	}
	now := m.now()
	row := &keyRow{
		key: models.IdempotencyKey{
			Key:         key,
			RequestHash: requestHash,
			Status:      models.IdempotencyInProgress,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		owner: tx.id,
	}
	m.keys[key] = row
	tx.keys = append(tx.keys, row)
	return true, nil
}

// GetIdempotencyKey sees another transaction's uncommitted key as IN_PROGRESS;
// its completion only shows once that transaction commits.
func (tx *memoryTx) GetIdempotencyKey(ctx context.Context, key string) (models.IdempotencyKey, error) {
	if err := tx.lock(ctx); err != nil {
		return models.IdempotencyKey{}, err
	}
	m := tx.store
	defer m.mu.Unlock()

	row, ok := m.keys[key]
	if !ok {
		return models.IdempotencyKey{}, fmt.Errorf("idempotency key %q: %w", key, interfaces.ErrNotFound)
	}
	out := row.key
	out.Response = append([]byte(nil), row.key.Response...)
	if response, ok := tx.completions[key]; ok {
		out.Status = models.IdempotencyCompleted
		out.Response = append([]byte(nil), response...)
	}
	return out, nil
}

func (tx *memoryTx) CompleteIdempotencyKey(ctx context.Context, key string, response []byte) error {
	if err := tx.lock(ctx); err != nil {
		return err
	}
	m := tx.store
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; !ok {
		return fmt.Errorf("idempotency key %q: %w", key, interfaces.ErrNotFound)
	}
	tx.completions[key] = append([]byte(nil), response...)
	return nil
}

func (tx *memoryTx) InsertAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if err := tx.lock(ctx); err != nil {
		return models.Account{}, err
	}
	m := tx.store
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return models.Account{}, fmt.Errorf("account %s already exists: %w", account.ID, interfaces.ErrConstraintViolation)
	}
	account.CreatedAt = m.now()
	row := &accountRow{account: account, owner: tx.id}
	m.accounts[account.ID] = row
	tx.accounts = append(tx.accounts, row)
	return account, nil
}

func (tx *memoryTx) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if err := tx.lock(ctx); err != nil {
		return models.Account{}, err
	}
	defer tx.store.mu.Unlock()

	row, ok := tx.store.accounts[accountID]
	if !ok || !visibleTo(row.owner, tx.id) {
		return models.Account{}, fmt.Errorf("account %s: %w", accountID, interfaces.ErrNotFound)
	}
	return row.account, nil
}

func (tx *memoryTx) AddToBalance(ctx context.Context, accountID string, deltaCents int64) error {
	if err := tx.lock(ctx); err != nil {
		return err
	}
	defer tx.store.mu.Unlock()

	if row, ok := tx.store.accounts[accountID]; !ok || !visibleTo(row.owner, tx.id) {
		return fmt.Errorf("balance for unknown account %s: %w", accountID, interfaces.ErrConstraintViolation)
	}
	tx.deltas[accountID] += deltaCents
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, txn models.LedgerTransaction) (models.LedgerTransaction, error) {
	if err := tx.lock(ctx); err != nil {
		return models.LedgerTransaction{}, err
	}
	m := tx.store
	defer m.mu.Unlock()

	if _, exists := m.transactions[txn.ID]; exists {
		return models.LedgerTransaction{}, fmt.Errorf("transaction %s already exists: %w", txn.ID, interfaces.ErrConstraintViolation)
	}
	txn.CreatedAt = m.now()
	row := &txnRow{txn: txn, owner: tx.id}
	m.transactions[txn.ID] = row
	tx.txns = append(tx.txns, row)
	return txn, nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if err := tx.lock(ctx); err != nil {
		return models.LedgerEntry{}, err
	}
	m := tx.store
	defer m.mu.Unlock()

	if row, ok := m.transactions[entry.TxnID]; !ok || !visibleTo(row.owner, tx.id) {
		return models.LedgerEntry{}, fmt.Errorf("entry for unknown transaction %s: %w", entry.TxnID, interfaces.ErrConstraintViolation)
	}
	if row, ok := m.accounts[entry.AccountID]; !ok || !visibleTo(row.owner, tx.id) {
		return models.LedgerEntry{}, fmt.Errorf("entry for unknown account %s: %w", entry.AccountID, interfaces.ErrConstraintViolation)
	}
	if entry.AmountCents == 0 {
		return models.LedgerEntry{}, fmt.Errorf("zero amount entry: %w", interfaces.ErrConstraintViolation)
	}
	entry.CreatedAt = m.now()
	m.entries = append(m.entries, &entryRow{entry: entry, owner: tx.id})
	tx.entries++
	return entry, nil
}

func (tx *memoryTx) ListEntriesByTransaction(ctx context.Context, txnID string) ([]models.LedgerEntry, error) {
	if err := tx.lock(ctx); err != nil {
		return nil, err
	}
	defer tx.store.mu.Unlock()

	return tx.store.entriesFor(txnID, tx.id), nil
}

func (tx *memoryTx) InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) (models.OutboxEvent, error) {
	if err := tx.lock(ctx); err != nil {
		return models.OutboxEvent{}, err
	}
	m := tx.store
	defer m.mu.Unlock()

	event.CreatedAt = m.now()
	event.SentAt = nil
	event.Payload = append([]byte(nil), event.Payload...)
	m.outbox = append(m.outbox, &outboxRow{event: event, owner: tx.id})
	tx.outbox++
	return event, nil
}

func (tx *memoryTx) ClaimUnsentOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if err := tx.lock(ctx); err != nil {
		return nil, err
	}
	defer tx.store.mu.Unlock()

	var claimed []models.OutboxEvent
	for _, row := range tx.store.outbox {
		if len(claimed) >= limit {
			break
		}
		if !visibleTo(row.owner, tx.id) || row.event.SentAt != nil {
			continue
		}
		if _, acked := tx.sent[row]; acked {
			continue
		}
		if row.lockedBy != 0 && row.lockedBy != tx.id {
			continue
		}
		tx.lockRow(row)
		event := row.event
		event.Payload = append([]byte(nil), row.event.Payload...)
		claimed = append(claimed, event)
	}
	return claimed, nil
}

func (tx *memoryTx) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	if err := tx.lock(ctx); err != nil {
		return err
	}
	m := tx.store
	defer m.mu.Unlock()

	for _, row := range m.outbox {
		if row.event.ID != eventID || !visibleTo(row.owner, tx.id) || row.event.SentAt != nil {
			continue
		}
		if _, acked := tx.sent[row]; acked {
			break
		}
		if row.lockedBy != 0 && row.lockedBy != tx.id {
			return fmt.Errorf("outbox event %s is held by another transaction: %w", eventID, interfaces.ErrConstraintViolation)
		}
		tx.lockRow(row)
		tx.sent[row] = m.now()
		return nil
	}
	return fmt.Errorf("unsent outbox event %s: %w", eventID, interfaces.ErrNotFound)
}

// lockRow must be called with the store mutex held.
func (tx *memoryTx) lockRow(row *outboxRow) {
	if row.lockedBy == 0 {
		row.lockedBy = tx.id
		tx.claimed = append(tx.claimed, row)
	}
}

var _ interfaces.LedgerTx = (*memoryTx)(nil)
