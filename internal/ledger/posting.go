package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

func checkPostings(postings []models.Posting) error {
	if len(postings) < 2 {
		return fmt.Errorf("%w: got %d legs", ErrUnbalancedPosting, len(postings))
	}
	var sum int64
	for _, p := range postings {
		if p.AmountCents == 0 {
			return fmt.Errorf("%w: zero amount on %s", ErrUnbalancedPosting, p.AccountID)
		}
		sum += p.AmountCents
	}
	if sum != 0 {
		return fmt.Errorf("%w: sum is %d", ErrUnbalancedPosting, sum)
	}
	return nil
}

// post writes one entry per posting and then applies the balance deltas.
// Deltas are netted per account and applied in ascending account id order, so
// two transfers touching the same pair of accounts always take the balance row
// locks in the same order.
func post(ctx context.Context, tx interfaces.LedgerTx, txnID string, postings []models.Posting) error {
	if err := checkPostings(postings); err != nil {
		return err
	}

	deltas := make(map[string]int64, len(postings))
	for _, p := range postings {
		_, err := tx.InsertEntry(ctx, models.LedgerEntry{
			ID:          uuid.NewString(),
			TxnID:       txnID,
			AccountID:   p.AccountID,
			AmountCents: p.AmountCents,
		})
		if err != nil {
			return fmt.Errorf("post entry to %s: %w", p.AccountID, err)
		}
		deltas[p.AccountID] += p.AmountCents
	}

	accountIDs := make([]string, 0, len(deltas))
	for id := range deltas {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	for _, id := range accountIDs {
		if deltas[id] == 0 {
			continue
		}
		if err := tx.AddToBalance(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}
