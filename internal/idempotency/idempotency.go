// Package idempotency deduplicates retried operations keyed by a caller-supplied token.
//
// The insert of the key row is itself the IN_PROGRESS marker, so the unique
// constraint on the key decides which of several concurrent attempts proceeds.
// Begin and Complete are meant to run inside the transaction of the mutation
// they guard: if that transaction rolls back, the key row goes with it.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

var (
	// ErrConflict means the key was already used with a different payload.
	ErrConflict = errors.New("idempotency key reused with a different payload")
	// ErrInProgress means another attempt holds the key and has not completed. Retryable.
	ErrInProgress = errors.New("idempotency key is in progress")
)

// Outcome is the classification of one Begin call.
type Outcome struct {
	Status models.IdempotencyStatus
	// Response is the cached response, set only when Status is COMPLETED.
	Response []byte
}

// maxInsertAttempts bounds the retry when the competing row disappears
// between our insert attempt and the re-read (its transaction rolled back).
const maxInsertAttempts = 2

// RequestHash returns the hex SHA-256 of the compact JSON encoding of payload.
// Callers pass a struct so field order, and therefore the hash, is stable.
func RequestHash(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Begin registers key for requestHash. It returns NEW when this call won the
// key, COMPLETED with the cached response for a finished attempt with the same
// payload, and IN_PROGRESS for an unfinished one. A different payload under the
// same key fails with ErrConflict.
func Begin(ctx context.Context, repo interfaces.IdempotencyRepository, key, requestHash string) (Outcome, error) {
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		inserted, err := repo.InsertIdempotencyKey(ctx, key, requestHash)
		if err != nil {
			return Outcome{}, fmt.Errorf("register idempotency key: %w", err)
		}
		if inserted {
			return Outcome{Status: models.IdempotencyNew}, nil
		}

		row, err := repo.GetIdempotencyKey(ctx, key)
		if errors.Is(err, interfaces.ErrNotFound) {
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("read idempotency key: %w", err)
		}

		if row.RequestHash != requestHash {
			return Outcome{}, ErrConflict
		}
		if row.Status == models.IdempotencyCompleted {
			return Outcome{Status: models.IdempotencyCompleted, Response: row.Response}, nil
		}
		return Outcome{Status: models.IdempotencyInProgress}, nil
	}
	return Outcome{Status: models.IdempotencyInProgress}, nil
}

// Complete stores the serialized response and marks the key COMPLETED.
func Complete(ctx context.Context, repo interfaces.IdempotencyRepository, key string, response []byte) error {
	if err := repo.CompleteIdempotencyKey(ctx, key, response); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}
