package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
//
// Rows written inside a transaction carry the id of that transaction as their
// owner until it commits; readers outside the transaction skip them. Balance
// deltas, key completions and outbox acks are buffered on the transaction and
// applied in one critical section at commit. The one deliberate exception is
// the idempotency key row: its insert is visible at once so a concurrent
// attempt on the same key observes IN_PROGRESS, as it would while blocked on
// the unique index in PostgreSQL.
type MemoryLedgerStore struct {
	mu    sync.Mutex
	clock func() time.Time
	last  time.Time

	accounts     map[string]*accountRow
	balances     map[string]*models.AccountBalance
	transactions map[string]*txnRow
	entries      []*entryRow
	keys         map[string]*keyRow
	outbox       []*outboxRow
	nextTxID     uint64
}

// owner is the id of the transaction that wrote a row; zero once committed.
type accountRow struct {
	account models.Account
	owner   uint64
}

type txnRow struct {
	txn   models.LedgerTransaction
	owner uint64
}

type entryRow struct {
	entry models.LedgerEntry
	owner uint64
}

type keyRow struct {
	key   models.IdempotencyKey
	owner uint64
}

type outboxRow struct {
	event    models.OutboxEvent
	owner    uint64
	lockedBy uint64
}

func visibleTo(owner, reader uint64) bool {
	return owner == 0 || owner == reader
}

type Option func(*MemoryLedgerStore)

// WithClock replaces time.Now. The store still forces strictly increasing timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *MemoryLedgerStore) {
		m.clock = clock
	}
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore(opts ...Option) *MemoryLedgerStore {
	m := &MemoryLedgerStore{
		clock:        time.Now,
		accounts:     make(map[string]*accountRow),
		balances:     make(map[string]*models.AccountBalance),
		transactions: make(map[string]*txnRow),
		keys:         make(map[string]*keyRow),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// now must be called with mu held.
func (m *MemoryLedgerStore) now() time.Time {
	t := m.clock().UTC().Truncate(time.Microsecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.LedgerTx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.nextTxID++
	tx := newMemoryTx(m, m.nextTxID)
	m.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	// database/sql refuses to commit once the context is done; mirror that.
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryLedgerStore) GetBalance(ctx context.Context, accountID string) (models.AccountBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.accounts[accountID]
	if !ok || row.owner != 0 {
		return models.AccountBalance{}, fmt.Errorf("balance %s: %w", accountID, interfaces.ErrNotFound)
	}
	balance := models.AccountBalance{AccountID: accountID, Currency: row.account.Currency, UpdatedAt: row.account.CreatedAt}
	if b, ok := m.balances[accountID]; ok {
		balance.BalanceCents = b.BalanceCents
		balance.UpdatedAt = b.UpdatedAt
	}
	return balance, nil
}

func (m *MemoryLedgerStore) GetTransaction(ctx context.Context, txnID string) (models.TransactionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.transactions[txnID]
	if !ok || row.owner != 0 {
		return models.TransactionDetail{}, fmt.Errorf("transaction %s: %w", txnID, interfaces.ErrNotFound)
	}
	return models.TransactionDetail{LedgerTransaction: row.txn, Entries: m.entriesFor(txnID, 0)}, nil
}

// Audit only looks at committed rows.
func (m *MemoryLedgerStore) Audit(ctx context.Context) (models.AuditReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sums := make(map[string]int64, len(m.transactions))
	counts := make(map[string]int, len(m.transactions))
	perAccount := make(map[string]int64, len(m.accounts))
	for _, row := range m.entries {
		if row.owner != 0 {
			continue
		}
		e := row.entry
		sums[e.TxnID] += e.AmountCents
		counts[e.TxnID]++
		perAccount[e.AccountID] += e.AmountCents
	}

	var report models.AuditReport
	for id, row := range m.transactions {
		if row.owner != 0 {
			continue
		}
		report.Transactions++
		if sums[id] != 0 || counts[id] < 2 {
			report.UnbalancedTransactions = append(report.UnbalancedTransactions, models.UnbalancedTransaction{
				TxnID: id, SumCents: sums[id], EntryCount: counts[id],
			})
		}
	}
	for id, row := range m.accounts {
		if row.owner != 0 {
			continue
		}
		report.Accounts++
		var stored int64
		if b, ok := m.balances[id]; ok {
			stored = b.BalanceCents
		}
		if stored != perAccount[id] {
			report.BalanceDrifts = append(report.BalanceDrifts, models.BalanceDrift{
				AccountID: id, BalanceCents: stored, EntriesCents: perAccount[id],
			})
		}
	}
	sort.Slice(report.UnbalancedTransactions, func(i, j int) bool {
		return report.UnbalancedTransactions[i].TxnID < report.UnbalancedTransactions[j].TxnID
	})
	sort.Slice(report.BalanceDrifts, func(i, j int) bool {
		return report.BalanceDrifts[i].AccountID < report.BalanceDrifts[j].AccountID
	})
	return report, nil
}

// entriesFor must be called with mu held. It returns the entries of txnID the
// reader may see, in insertion order, which is also creation-time order.
func (m *MemoryLedgerStore) entriesFor(txnID string, reader uint64) []models.LedgerEntry {
	var result []models.LedgerEntry
	for _, row := range m.entries {
		if row.entry.TxnID == txnID && visibleTo(row.owner, reader) {
			result = append(result, row.entry)
		}
	}
	return result
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
