package ledger

import (
	"errors"

	"github.com/sheikh-saqib/payments-ledger/internal/idempotency"
	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	// ErrUnbalancedPosting guards the double-entry invariant; seeing it means a bug.
	ErrUnbalancedPosting = errors.New("postings must have at least two legs and sum to zero")

	ErrIdempotencyConflict   = idempotency.ErrConflict
	ErrIdempotencyInProgress = idempotency.ErrInProgress
	ErrConstraintViolation   = interfaces.ErrConstraintViolation
)
