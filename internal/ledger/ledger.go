// Package ledger posts double-entry transfers.
//
// A transfer runs as one store transaction covering the idempotency gate, the
// journal, the balance upserts, the outbox event and the cached response. A
// failure anywhere rolls all of it back, including the key registration, so a
// crashed attempt never leaves a key stuck in IN_PROGRESS.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-ledger/internal/idempotency"
	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/metrics"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
	"github.com/sheikh-saqib/payments-ledger/internal/models/events"
	"github.com/sheikh-saqib/payments-ledger/internal/outbox"
)

// Ledger is the entry point for every mutation of the books.
// It holds no locks of its own; all coordination goes through the store.
type Ledger struct {
	store    interfaces.LedgerStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
}

type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// NewLedger creates a Ledger on top of any LedgerStore implementation.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		logger:   zap.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Transfer moves req.AmountCents from one account to another.
//
// Retrying with the same idempotency key and payload returns the first
// result (Replayed is set); the same key with a different payload fails with
// ErrIdempotencyConflict. While the first attempt is still open, others fail
// with ErrIdempotencyInProgress and may retry later.
func (l *Ledger) Transfer(ctx context.Context, req models.TransferRequest) (models.TransferResult, error) {
	result, err := l.transfer(ctx, req)
	l.metrics.Transfer(outcomeOf(result, err))
	return result, err
}

func (l *Ledger) transfer(ctx context.Context, req models.TransferRequest) (models.TransferResult, error) {
	if err := l.validate.StructCtx(ctx, req); err != nil {
		return models.TransferResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	requestHash, err := idempotency.RequestHash(req.Canonical())
	if err != nil {
		return models.TransferResult{}, err
	}

	log := l.logger.With(zap.String("idempotency_key", req.IdempotencyKey))

	var result models.TransferResult
	err = l.store.WithinTx(ctx, func(ctx context.Context, tx interfaces.LedgerTx) error {
		outcome, err := idempotency.Begin(ctx, tx, req.IdempotencyKey, requestHash)
		if err != nil {
			return err
		}
		switch outcome.Status {
		case models.IdempotencyCompleted:
			result, err = decodeStoredTransfer(outcome.Response)
			return err
		case models.IdempotencyInProgress:
			return ErrIdempotencyInProgress
		}

		result, err = l.postTransfer(ctx, tx, req)
		if err != nil {
			return err
		}

		response, err := json.Marshal(models.StoredResponse{Kind: models.ResponseKindTransfer, Transfer: &result})
		if err != nil {
			return fmt.Errorf("encode transfer response: %w", err)
		}
		return idempotency.Complete(ctx, tx, req.IdempotencyKey, response)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrIdempotencyConflict), errors.Is(err, ErrIdempotencyInProgress):
			log.Warn("transfer rejected by idempotency gate", zap.Error(err))
		case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrCurrencyMismatch):
			log.Info("transfer rejected", zap.Error(err))
		default:
			log.Error("transfer failed", zap.Error(err))
		}
		return models.TransferResult{}, err
	}

	if result.Replayed {
		log.Debug("transfer replayed", zap.String("txn_id", result.TxnID))
	} else {
		log.Info("transfer posted",
			zap.String("txn_id", result.TxnID),
			zap.String("from_account_id", req.FromAccountID),
			zap.String("to_account_id", req.ToAccountID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.String("currency", req.Currency),
		)
	}
	return result, nil
}

func (l *Ledger) postTransfer(ctx context.Context, tx interfaces.LedgerTx, req models.TransferRequest) (models.TransferResult, error) {
	for _, id := range []string{req.FromAccountID, req.ToAccountID} {
		account, err := tx.GetAccount(ctx, id)
		if errors.Is(err, interfaces.ErrNotFound) {
			return models.TransferResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		if err != nil {
			return models.TransferResult{}, err
		}
		if account.Currency != req.Currency {
			return models.TransferResult{}, fmt.Errorf("%w: account %s holds %s, transfer is in %s",
				ErrCurrencyMismatch, id, account.Currency, req.Currency)
		}
	}

	txn, err := tx.InsertTransaction(ctx, models.LedgerTransaction{
		ID:          uuid.NewString(),
		Type:        models.TxnTypeTransfer,
		Currency:    req.Currency,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		return models.TransferResult{}, err
	}

	postings := []models.Posting{
		{AccountID: req.FromAccountID, AmountCents: -req.AmountCents},
		{AccountID: req.ToAccountID, AmountCents: req.AmountCents},
	}
	if err := post(ctx, tx, txn.ID, postings); err != nil {
		return models.TransferResult{}, err
	}

	entries, err := tx.ListEntriesByTransaction(ctx, txn.ID)
	if err != nil {
		return models.TransferResult{}, err
	}

	_, err = outbox.Stage(ctx, tx, events.TypeTransactionPosted, events.TransactionPosted{
		TxnID:    txn.ID,
		Type:     txn.Type,
		Currency: txn.Currency,
	})
	if err != nil {
		return models.TransferResult{}, err
	}

	result := models.TransferResult{
		TxnID:       txn.ID,
		TxnType:     txn.Type,
		Currency:    txn.Currency,
		ExternalRef: txn.ExternalRef,
		Entries:     make([]models.EntryResult, 0, len(entries)),
	}
	for _, e := range entries {
		result.Entries = append(result.Entries, models.EntryResult{
			EntryID:     e.ID,
			AccountID:   e.AccountID,
			AmountCents: e.AmountCents,
		})
	}
	return result, nil
}

func decodeStoredTransfer(raw []byte) (models.TransferResult, error) {
	var stored models.StoredResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.TransferResult{}, fmt.Errorf("decode cached response: %w", err)
	}
	if stored.Kind != models.ResponseKindTransfer || stored.Transfer == nil {
		return models.TransferResult{}, fmt.Errorf("cached response has kind %q, want %q", stored.Kind, models.ResponseKindTransfer)
	}
	result := *stored.Transfer
	result.Replayed = true
	return result, nil
}

func outcomeOf(result models.TransferResult, err error) string {
	switch {
	case err == nil && result.Replayed:
		return metrics.OutcomeReplayed
	case err == nil:
		return metrics.OutcomePosted
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrAccountNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrCurrencyMismatch):
		return metrics.OutcomeCurrencyMismatch
	case errors.Is(err, ErrIdempotencyConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrIdempotencyInProgress):
		return metrics.OutcomeInProgress
	case errors.Is(err, ErrConstraintViolation):
		return metrics.OutcomeConstraint
	default:
		return metrics.OutcomeError
	}
}
