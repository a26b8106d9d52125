package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

// CreateAccount opens an account with a zero balance.
func (l *Ledger) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (models.Account, error) {
	if err := l.validate.StructCtx(ctx, req); err != nil {
		return models.Account{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var account models.Account
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx interfaces.LedgerTx) error {
		var err error
		account, err = tx.InsertAccount(ctx, models.Account{
			ID:       uuid.NewString(),
			Name:     req.Name,
			Type:     req.Type,
			Currency: req.Currency,
		})
		return err
	})
	if err != nil {
		return models.Account{}, err
	}

	l.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("type", string(account.Type)),
		zap.String("currency", account.Currency),
	)
	return account, nil
}

func (l *Ledger) GetBalance(ctx context.Context, accountID string) (models.AccountBalance, error) {
	balance, err := l.store.GetBalance(ctx, accountID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.AccountBalance{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return balance, err
}

func (l *Ledger) GetTransaction(ctx context.Context, txnID string) (models.TransactionDetail, error) {
	detail, err := l.store.GetTransaction(ctx, txnID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.TransactionDetail{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, txnID)
	}
	return detail, err
}

// Audit checks the books: every transaction sums to zero over at least two
// entries and every stored balance equals the sum of its account's entries.
func (l *Ledger) Audit(ctx context.Context) (models.AuditReport, error) {
	report, err := l.store.Audit(ctx)
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("audit ledger: %w", err)
	}
	if !report.OK() {
		l.logger.Error("ledger audit found violations",
			zap.Int("unbalanced_transactions", len(report.UnbalancedTransactions)),
			zap.Int("balance_drifts", len(report.BalanceDrifts)),
		)
	}
	return report, nil
}
