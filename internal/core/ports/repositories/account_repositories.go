package repositories

import (
	"context"
	"time"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// AccountRepository is the read/administrative surface for accounts. Balance
// mutation is deliberately absent: balances move only through
// LedgerRepository.SavePosting.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account domain.Account) error
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, updatedBy string, at time.Time) error
	FindAccountType(ctx context.Context, code string) (*domain.AccountType, error)
}
