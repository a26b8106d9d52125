package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/metrics"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
	"github.com/sheikh-saqib/payments-ledger/internal/models/events"
	"github.com/sheikh-saqib/payments-ledger/internal/outbox"
	"github.com/sheikh-saqib/payments-ledger/internal/storage/memory"
)

type fixture struct {
	store  *memory.MemoryLedgerStore
	ledger *Ledger
	a, b   models.Account
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store, opts...)
	return &fixture{
		store:  store,
		ledger: l,
		a:      createAccount(t, l, "A", "USD"),
		b:      createAccount(t, l, "B", "USD"),
	}
}

func createAccount(t *testing.T, l *Ledger, name, currency string) models.Account {
	t.Helper()
	account, err := l.CreateAccount(context.Background(), models.CreateAccountRequest{
		Name:     name,
		Type:     models.AccountTypeAsset,
		Currency: currency,
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) transferReq(key string, amount int64) models.TransferRequest {
	return models.TransferRequest{
		IdempotencyKey: key,
		FromAccountID:  f.a.ID,
		ToAccountID:    f.b.ID,
		AmountCents:    amount,
		Currency:       "USD",
	}
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return b.BalanceCents
}

func (f *fixture) audit(t *testing.T) models.AuditReport {
	t.Helper()
	report, err := f.ledger.Audit(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "audit violations: %+v", report)
	return report
}

func (f *fixture) unsentEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var pending []models.OutboxEvent
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx interfaces.LedgerTx) error {
		var err error
		pending, err = tx.ClaimUnsentOutboxEvents(ctx, 100)
		return err
	})
	require.NoError(t, err)
	return pending
}

func TestCreateAccountStartsAtZero(t *testing.T) {
	f := newFixture(t)

	b, err := f.ledger.GetBalance(context.Background(), f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Currency)
	assert.Zero(t, b.BalanceCents)
}

func TestCreateAccountValidates(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())

	_, err := l.CreateAccount(context.Background(), models.CreateAccountRequest{Name: "x", Type: "EQUITY", Currency: "USD"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = l.CreateAccount(context.Background(), models.CreateAccountRequest{Name: "x", Type: models.AccountTypeAsset, Currency: "usd"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTransferPostsBalancedEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, models.TxnTypeTransfer, res.TxnType)
	assert.Equal(t, "USD", res.Currency)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, f.a.ID, res.Entries[0].AccountID)
	assert.Equal(t, int64(-500), res.Entries[0].AmountCents)
	assert.Equal(t, f.b.ID, res.Entries[1].AccountID)
	assert.Equal(t, int64(500), res.Entries[1].AmountCents)

	assert.Equal(t, int64(-500), f.balance(t, f.a.ID))
	assert.Equal(t, int64(500), f.balance(t, f.b.ID))

	detail, err := f.ledger.GetTransaction(ctx, res.TxnID)
	require.NoError(t, err)
	require.Len(t, detail.Entries, 2)
	assert.Zero(t, detail.Entries[0].AmountCents+detail.Entries[1].AmountCents)

	report := f.audit(t)
	assert.Equal(t, 1, report.Transactions)
}

func TestTransferReplaysSameResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)

	second, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TxnID, second.TxnID)
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, first.ExternalRef, second.ExternalRef)

	assert.Equal(t, int64(-500), f.balance(t, f.a.ID))
	assert.Equal(t, 1, f.audit(t).Transactions)
	assert.Len(t, f.unsentEvents(t), 1)
}

func TestTransferConflictLeavesBooksUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)

	_, err = f.ledger.Transfer(ctx, f.transferReq("K1", 999))
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	assert.Equal(t, int64(-500), f.balance(t, f.a.ID))
	assert.Equal(t, int64(500), f.balance(t, f.b.ID))
	assert.Equal(t, 1, f.audit(t).Transactions)
	assert.Len(t, f.unsentEvents(t), 1)
}

func TestTransferUnknownAccount(t *testing.T) {
	f := newFixture(t)
	req := f.transferReq("K2", 10)
	req.ToAccountID = "nonexistent"

	_, err := f.ledger.Transfer(context.Background(), req)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.Zero(t, f.balance(t, f.a.ID))
	assert.Zero(t, f.audit(t).Transactions)
	assert.Empty(t, f.unsentEvents(t))

	// the failed attempt released the key
	req.ToAccountID = f.b.ID
	res, err := f.ledger.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestTransferCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	eur := createAccount(t, f.ledger, "C", "EUR")

	req := f.transferReq("K3", 10)
	req.ToAccountID = eur.ID
	_, err := f.ledger.Transfer(context.Background(), req)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	req = f.transferReq("K4", 10)
	req.Currency = "EUR"
	_, err = f.ledger.Transfer(context.Background(), req)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	assert.Zero(t, f.audit(t).Transactions)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", 300)

	tests := []struct {
		name   string
		mutate func(*models.TransferRequest)
	}{
		{"zero amount", func(r *models.TransferRequest) { r.AmountCents = 0 }},
		{"negative amount", func(r *models.TransferRequest) { r.AmountCents = -5 }},
		{"lowercase currency", func(r *models.TransferRequest) { r.Currency = "usd" }},
		{"short currency", func(r *models.TransferRequest) { r.Currency = "US" }},
		{"numeric currency", func(r *models.TransferRequest) { r.Currency = "U5D" }},
		{"missing key", func(r *models.TransferRequest) { r.IdempotencyKey = "" }},
		{"missing from", func(r *models.TransferRequest) { r.FromAccountID = "" }},
		{"missing to", func(r *models.TransferRequest) { r.ToAccountID = "" }},
		{"long external ref", func(r *models.TransferRequest) { r.ExternalRef = &long }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.transferReq("K-invalid", 100)
			tt.mutate(&req)
			_, err := f.ledger.Transfer(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	// the gate was never consulted, so the key is still free for a valid payload
	res, err := f.ledger.Transfer(context.Background(), f.transferReq("K-invalid", 100))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestTransferStagesPostedEvent(t *testing.T) {
	f := newFixture(t)
	ref := "invoice-7"
	req := f.transferReq("K1", 500)
	req.ExternalRef = &ref

	res, err := f.ledger.Transfer(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.ExternalRef)
	assert.Equal(t, ref, *res.ExternalRef)

	pending := f.unsentEvents(t)
	require.Len(t, pending, 1)
	assert.Equal(t, events.TypeTransactionPosted, pending[0].EventType)
	assert.JSONEq(t, fmt.Sprintf(`{"txn_id":%q,"type":"TRANSFER","currency":"USD"}`, res.TxnID), string(pending[0].Payload))
}

func TestSelfTransferNetsToZero(t *testing.T) {
	f := newFixture(t)
	req := f.transferReq("K-self", 250)
	req.ToAccountID = f.a.ID

	res, err := f.ledger.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
	assert.Zero(t, f.balance(t, f.a.ID))
	f.audit(t)
}

func TestConcurrentSameKeyPostsOnce(t *testing.T) {
	f := newFixture(t)
	const callers = 16

	var (
		mu      sync.Mutex
		results []models.TransferResult
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			res, err := f.ledger.Transfer(ctx, f.transferReq("K-race", 100))
			if errors.Is(err, ErrIdempotencyInProgress) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NotEmpty(t, results)

	for _, res := range results[1:] {
		assert.Equal(t, results[0].TxnID, res.TxnID)
		assert.Equal(t, results[0].Entries, res.Entries)
	}

	final, err := f.ledger.Transfer(context.Background(), f.transferReq("K-race", 100))
	require.NoError(t, err)
	assert.True(t, final.Replayed)
	assert.Equal(t, results[0].TxnID, final.TxnID)

	assert.Equal(t, 1, f.audit(t).Transactions)
	assert.Equal(t, int64(-100), f.balance(t, f.a.ID))
}

func TestConcurrentDistinctKeysKeepBalances(t *testing.T) {
	f := newFixture(t)
	const transfers = 50

	var g errgroup.Group
	for i := 0; i < transfers; i++ {
		g.Go(func() error {
			req := f.transferReq(fmt.Sprintf("K-%d", i), int64(i+1))
			if i%2 == 1 {
				req.FromAccountID, req.ToAccountID = req.ToAccountID, req.FromAccountID
			}
			_, err := f.ledger.Transfer(context.Background(), req)
			return err
		})
	}
	require.NoError(t, g.Wait())

	var want int64
	for i := 0; i < transfers; i++ {
		if i%2 == 1 {
			want -= int64(i + 1)
		} else {
			want += int64(i + 1)
		}
	}
	assert.Equal(t, want, f.balance(t, f.b.ID))
	assert.Equal(t, -want, f.balance(t, f.a.ID))

	report := f.audit(t)
	assert.Equal(t, transfers, report.Transactions)
	assert.Len(t, f.unsentEvents(t), transfers)
}

// failingStore injects an error into the outbox write, the last step before
// the key is completed.
type failingStore struct {
	*memory.MemoryLedgerStore
	err error
}

type failingTx struct {
	interfaces.LedgerTx
	err error
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.LedgerTx) error) error {
	return s.MemoryLedgerStore.WithinTx(ctx, func(ctx context.Context, tx interfaces.LedgerTx) error {
		return fn(ctx, &failingTx{LedgerTx: tx, err: s.err})
	})
}

func (tx *failingTx) InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) (models.OutboxEvent, error) {
	if tx.err != nil {
		return models.OutboxEvent{}, tx.err
	}
	return tx.LedgerTx.InsertOutboxEvent(ctx, event)
}

func TestFailureRollsBackWholeUnit(t *testing.T) {
	mem := memory.NewMemoryLedgerStore()
	store := &failingStore{MemoryLedgerStore: mem, err: errors.New("disk full")}
	l := NewLedger(store)
	a := createAccount(t, l, "A", "USD")
	b := createAccount(t, l, "B", "USD")
	req := models.TransferRequest{IdempotencyKey: "K1", FromAccountID: a.ID, ToAccountID: b.ID, AmountCents: 500, Currency: "USD"}

	_, err := l.Transfer(context.Background(), req)
	require.Error(t, err)

	report, err := l.Audit(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Zero(t, report.Transactions)
	bal, err := l.GetBalance(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Zero(t, bal.BalanceCents)

	store.err = nil
	res, err := l.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Replayed, "the key must not survive a rolled back attempt")
}

// hookStore runs after on every write a transfer makes, while its
// transaction is still open.
type hookStore struct {
	*memory.MemoryLedgerStore
	after func(ctx context.Context, step string)
	txnID string
}

type hookTx struct {
	interfaces.LedgerTx
	store *hookStore
}

func (s *hookStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.LedgerTx) error) error {
	return s.MemoryLedgerStore.WithinTx(ctx, func(ctx context.Context, tx interfaces.LedgerTx) error {
		return fn(ctx, &hookTx{LedgerTx: tx, store: s})
	})
}

func (tx *hookTx) after(ctx context.Context, step string) {
	tx.store.after(ctx, step)
}

func (tx *hookTx) InsertTransaction(ctx context.Context, txn models.LedgerTransaction) (models.LedgerTransaction, error) {
	out, err := tx.LedgerTx.InsertTransaction(ctx, txn)
	if err == nil {
		tx.store.txnID = out.ID
		tx.after(ctx, "transaction")
	}
	return out, err
}

func (tx *hookTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	out, err := tx.LedgerTx.InsertEntry(ctx, entry)
	if err == nil {
		tx.after(ctx, "entry")
	}
	return out, err
}

func (tx *hookTx) AddToBalance(ctx context.Context, accountID string, deltaCents int64) error {
	err := tx.LedgerTx.AddToBalance(ctx, accountID, deltaCents)
	if err == nil {
		tx.after(ctx, "balance")
	}
	return err
}

func (tx *hookTx) InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) (models.OutboxEvent, error) {
	out, err := tx.LedgerTx.InsertOutboxEvent(ctx, event)
	if err == nil {
		tx.after(ctx, "outbox")
	}
	return out, err
}

func (tx *hookTx) CompleteIdempotencyKey(ctx context.Context, key string, response []byte) error {
	err := tx.LedgerTx.CompleteIdempotencyKey(ctx, key, response)
	if err == nil {
		tx.after(ctx, "complete")
	}
	return err
}

// Scenario: the key is completed but the transaction has not committed yet.
// A concurrent retry must wait rather than replay, readers must see nothing,
// and when the commit fails the retry posts fresh.
func TestCompletedKeyIsNotReplayedBeforeCommit(t *testing.T) {
	mem := memory.NewMemoryLedgerStore()
	store := &hookStore{MemoryLedgerStore: mem, after: func(context.Context, string) {}}
	l := NewLedger(store)
	a := createAccount(t, l, "A", "USD")
	b := createAccount(t, l, "B", "USD")
	req := models.TransferRequest{IdempotencyKey: "K1", FromAccountID: a.ID, ToAccountID: b.ID, AmountCents: 500, Currency: "USD"}

	// a second node sharing the same database
	peer := NewLedger(mem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var hooked bool
	store.after = func(_ context.Context, step string) {
		if step != "complete" {
			return
		}
		hooked = true

		_, err := peer.Transfer(context.Background(), req)
		assert.ErrorIs(t, err, ErrIdempotencyInProgress)

		bal, err := peer.GetBalance(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Zero(t, bal.BalanceCents)
		report, err := peer.Audit(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.Transactions)

		// the commit is lost
		cancel()
	}

	_, err := l.Transfer(ctx, req)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, hooked)

	store.after = func(context.Context, string) {}
	res, err := peer.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Replayed, "a response from a lost commit must never be served")

	bal, err := peer.GetBalance(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.BalanceCents)
	report, err := peer.Audit(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Transactions)
}

func TestReadersNeverSeeAPartialTransfer(t *testing.T) {
	mem := memory.NewMemoryLedgerStore()
	store := &hookStore{MemoryLedgerStore: mem, after: func(context.Context, string) {}}
	l := NewLedger(store)
	a := createAccount(t, l, "A", "USD")
	b := createAccount(t, l, "B", "USD")
	reader := NewLedger(mem)

	var steps []string
	store.after = func(ctx context.Context, step string) {
		steps = append(steps, step)

		report, err := reader.Audit(context.Background())
		require.NoError(t, err)
		assert.True(t, report.OK(), "audit after %s: %+v", step, report)
		assert.Zero(t, report.Transactions, "after %s", step)

		for _, id := range []string{a.ID, b.ID} {
			bal, err := reader.GetBalance(context.Background(), id)
			require.NoError(t, err)
			assert.Zero(t, bal.BalanceCents, "after %s", step)
		}

		var pending []models.OutboxEvent
		err = mem.WithinTx(context.Background(), func(ctx context.Context, tx interfaces.LedgerTx) error {
			pending, err = tx.ClaimUnsentOutboxEvents(ctx, 10)
			return err
		})
		require.NoError(t, err)
		assert.Empty(t, pending, "after %s", step)

		_, err = reader.GetTransaction(context.Background(), store.txnID)
		assert.ErrorIs(t, err, ErrTransactionNotFound, "after %s", step)
	}

	res, err := l.Transfer(context.Background(), models.TransferRequest{
		IdempotencyKey: "K1", FromAccountID: a.ID, ToAccountID: b.ID, AmountCents: 500, Currency: "USD",
	})
	require.NoError(t, err)
	require.Equal(t, store.txnID, res.TxnID)
	assert.Equal(t, []string{"transaction", "entry", "entry", "balance", "balance", "outbox", "complete"}, steps)

	// and all of it shows at once after the commit
	detail, err := reader.GetTransaction(context.Background(), res.TxnID)
	require.NoError(t, err)
	assert.Len(t, detail.Entries, 2)
	bal, err := reader.GetBalance(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.BalanceCents)
}

func TestTransferHonoursCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.audit(t).Transactions)
}

func TestGetTransactionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = f.ledger.GetBalance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestTransferOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	_, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, f.transferReq("K1", 1))
	require.Error(t, err)

	expected := `
# HELP ledger_transfers_total Transfer requests by outcome.
# TYPE ledger_transfers_total counter
ledger_transfers_total{outcome="idempotency_conflict"} 1
ledger_transfers_total{outcome="posted"} 1
ledger_transfers_total{outcome="replayed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_transfers_total"))
}

// Scenario: one transfer, one relay cycle, and a second claimer that must
// never see a row the first one holds.
func TestPostedEventRelaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Transfer(ctx, f.transferReq("K1", 500))
	require.NoError(t, err)

	err = f.store.WithinTx(ctx, func(ctx context.Context, first interfaces.LedgerTx) error {
		claimed, err := first.ClaimUnsentOutboxEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		err = f.store.WithinTx(ctx, func(ctx context.Context, second interfaces.LedgerTx) error {
			other, err := second.ClaimUnsentOutboxEvents(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, other)
			return nil
		})
		require.NoError(t, err)

		return first.MarkOutboxEventSent(ctx, claimed[0].ID)
	})
	require.NoError(t, err)

	assert.Empty(t, f.unsentEvents(t))

	relay, err := outbox.NewRelay(f.store, outbox.PublisherFunc(func(context.Context, models.OutboxEvent) error {
		t.Fatal("nothing left to deliver")
		return nil
	}))
	require.NoError(t, err)
	res, err := relay.RelayBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Claimed)
}

func TestPostRejectsUnbalancedSets(t *testing.T) {
	tests := []struct {
		name     string
		postings []models.Posting
		wantErr  bool
	}{
		{"single leg", []models.Posting{{AccountID: "a", AmountCents: 10}}, true},
		{"non zero sum", []models.Posting{{AccountID: "a", AmountCents: -10}, {AccountID: "b", AmountCents: 9}}, true},
		{"zero leg", []models.Posting{{AccountID: "a", AmountCents: 0}, {AccountID: "b", AmountCents: 0}}, true},
		{"two legs", []models.Posting{{AccountID: "a", AmountCents: -10}, {AccountID: "b", AmountCents: 10}}, false},
		{"three legs", []models.Posting{
			{AccountID: "a", AmountCents: -10},
			{AccountID: "b", AmountCents: 4},
			{AccountID: "c", AmountCents: 6},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPostings(tt.postings)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnbalancedPosting)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostSplitsAcrossAccounts(t *testing.T) {
	f := newFixture(t)
	c := createAccount(t, f.ledger, "C", "USD")
	ctx := context.Background()

	err := f.store.WithinTx(ctx, func(ctx context.Context, tx interfaces.LedgerTx) error {
		txn, err := tx.InsertTransaction(ctx, models.LedgerTransaction{ID: "t-split", Type: "SPLIT", Currency: "USD"})
		if err != nil {
			return err
		}
		return post(ctx, tx, txn.ID, []models.Posting{
			{AccountID: f.a.ID, AmountCents: -100},
			{AccountID: f.b.ID, AmountCents: 30},
			{AccountID: c.ID, AmountCents: 70},
		})
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-100), f.balance(t, f.a.ID))
	assert.Equal(t, int64(30), f.balance(t, f.b.ID))
	assert.Equal(t, int64(70), f.balance(t, c.ID))
	f.audit(t)
}
