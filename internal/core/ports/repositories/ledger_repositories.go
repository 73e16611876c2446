package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// LedgerRepository owns the append-only transaction log and the atomic
// posting path.
//
// SavePosting must execute as one isolated transaction: lock every account in
// BalanceChanges (stable order), re-verify under lock that each debited
// account can cover its debit within its overdraft, apply the balance deltas,
// append the entries, and fold the limit deltas into the counters, rolling a
// counter over first when the delta's date has moved past its last reset and
// re-verifying the delta's ceilings under the counter lock. BalanceBefore and
// BalanceAfter are stamped onto the passed entries at mutation time, so the
// caller reads the committed balances off its own slice after return. Each
// entry named in ReversedIDs is flipped from completed to reversed inside the
// same transaction; an entry that is no longer completed fails the posting.
//
// Failure modes: apperrors.ErrInsufficientFunds when the under-lock funds
// check fails, apperrors.ErrLimitExceeded when a ceiling re-check fails,
// apperrors.ErrValidation when a ReversedIDs entry is no longer completed,
// apperrors.ErrConflict when the store reports a serialization conflict
// (callers may retry), and AppError for storage failures. On any error no
// part of the posting is observable.
type LedgerRepository interface {
	SavePosting(ctx context.Context, posting Posting) error
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	FindTransactionsByIdempotencyKey(ctx context.Context, key string) ([]domain.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error)
	// BalanceAsOf replays completed entries to derive the account balance at
	// the given instant; used for statement opening balances.
	BalanceAsOf(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error)
}
