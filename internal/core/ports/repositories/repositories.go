package repositories

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// Posting is the unit of atomic commit handed to the ledger repository: the
// entries to append, the signed balance deltas per account, and the limit
// counter increments that must land in the same storage transaction. Either
// everything in a posting becomes durable or none of it does.
type Posting struct {
	Entries []domain.Transaction
	// BalanceChanges maps account id to the signed net effect on its balance.
	// Available balance moves by the same delta (holds are not modeled).
	BalanceChanges map[string]decimal.Decimal
	LimitDeltas    []domain.LimitDelta
	// ReversedIDs lists the completed entries this posting reverses. The
	// store flips each to reversed inside the same transaction and fails the
	// whole posting when one is no longer completed, so two racing reversals
	// of the same entry cannot both commit.
	ReversedIDs []string
	ReversedAt  time.Time
}

// RepositoryProvider bundles every repository implementation for wiring.
type RepositoryProvider struct {
	AccountRepo AccountRepository
	LedgerRepo  LedgerRepository
	LimitRepo   LimitRepository
	FeeRepo     FeeScheduleRepository
	LoanRepo    LoanRepository
}
