package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

// Config holds database connection configuration
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

type PostgresLedgerStore struct {
	db *sqlx.DB
}

func NewPostgresLedgerStore(db *sqlx.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

func (p *PostgresLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.LedgerTx) error) (err error) {
	dbTx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = dbTx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if err = fn(ctx, &postgresTx{tx: dbTx}); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return translate(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (p *PostgresLedgerStore) GetBalance(ctx context.Context, accountID string) (models.AccountBalance, error) {
	const query = `SELECT a.account_id, a.currency,
		COALESCE(b.balance_cents, 0) AS balance_cents,
		COALESCE(b.updated_at, a.created_at) AS updated_at
	FROM account a
	LEFT JOIN account_balance b ON b.account_id = a.account_id
	WHERE a.account_id = $1`

	var balance models.AccountBalance
	if err := p.db.GetContext(ctx, &balance, query, accountID); err != nil {
		return models.AccountBalance{}, translate(fmt.Errorf("get balance %s: %w", accountID, err))
	}
	return balance, nil
}

func (p *PostgresLedgerStore) GetTransaction(ctx context.Context, txnID string) (models.TransactionDetail, error) {
	const query = `SELECT txn_id, txn_type, currency, external_ref, created_at
	FROM ledger_transaction WHERE txn_id = $1`

	var detail models.TransactionDetail
	if err := p.db.GetContext(ctx, &detail.LedgerTransaction, query, txnID); err != nil {
		return models.TransactionDetail{}, translate(fmt.Errorf("get transaction %s: %w", txnID, err))
	}

	entries, err := listEntries(ctx, p.db, txnID)
	if err != nil {
		return models.TransactionDetail{}, err
	}
	detail.Entries = entries
	return detail, nil
}

// Audit runs against one repeatable-read snapshot so concurrent postings cannot
// show up as drift.
func (p *PostgresLedgerStore) Audit(ctx context.Context) (models.AuditReport, error) {
	const countsQuery = `SELECT
		(SELECT COUNT(*) FROM ledger_transaction) AS transactions,
		(SELECT COUNT(*) FROM account) AS accounts`

	const unbalancedQuery = `SELECT t.txn_id,
		COALESCE(SUM(e.amount_cents), 0)::BIGINT AS sum_cents,
		COUNT(e.entry_id) AS entry_count
	FROM ledger_transaction t
	LEFT JOIN ledger_entry e ON e.txn_id = t.txn_id
	GROUP BY t.txn_id
	HAVING COALESCE(SUM(e.amount_cents), 0) <> 0 OR COUNT(e.entry_id) < 2
	ORDER BY t.txn_id`

	const driftQuery = `SELECT a.account_id,
		COALESCE(b.balance_cents, 0) AS balance_cents,
		COALESCE(s.total, 0)::BIGINT AS entries_cents
	FROM account a
	LEFT JOIN account_balance b ON b.account_id = a.account_id
	LEFT JOIN (
		SELECT account_id, SUM(amount_cents) AS total FROM ledger_entry GROUP BY account_id
	) s ON s.account_id = a.account_id
	WHERE COALESCE(b.balance_cents, 0) <> COALESCE(s.total, 0)
	ORDER BY a.account_id`

	dbTx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("begin audit: %w", err)
	}
	defer dbTx.Rollback()

	var report models.AuditReport
	row := dbTx.QueryRowxContext(ctx, countsQuery)
	if err := row.Scan(&report.Transactions, &report.Accounts); err != nil {
		return models.AuditReport{}, fmt.Errorf("audit counts: %w", err)
	}
	if err := dbTx.SelectContext(ctx, &report.UnbalancedTransactions, unbalancedQuery); err != nil {
		return models.AuditReport{}, fmt.Errorf("audit transactions: %w", err)
	}
	if err := dbTx.SelectContext(ctx, &report.BalanceDrifts, driftQuery); err != nil {
		return models.AuditReport{}, fmt.Errorf("audit balances: %w", err)
	}
	return report, nil
}

func listEntries(ctx context.Context, q sqlx.QueryerContext, txnID string) ([]models.LedgerEntry, error) {
	const query = `SELECT entry_id, txn_id, account_id, amount_cents, created_at
	FROM ledger_entry
	WHERE txn_id = $1
	ORDER BY created_at, entry_seq`

	var entries []models.LedgerEntry
	if err := sqlx.SelectContext(ctx, q, &entries, query, txnID); err != nil {
		return nil, translate(fmt.Errorf("list entries for %s: %w", txnID, err))
	}
	return entries, nil
}

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", interfaces.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503", "23514", "23502":
			return fmt.Errorf("%w: %w", interfaces.ErrConstraintViolation, err)
		}
	}
	return err
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
