package services

import (
	"context"

	"github.com/pesacore/corebanking/internal/core/domain"
	"github.com/pesacore/corebanking/internal/dto"
)

// AccountSvcFacade is the read/administrative account surface exposed to
// channel adapters. Balance mutation lives on the transaction engine only.
type AccountSvcFacade interface {
	OpenAccount(ctx context.Context, req dto.OpenAccountRequest, createdBy string) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetBalance(ctx context.Context, accountID string) (*dto.BalanceResponse, error)
	VerifyAccount(ctx context.Context, accountNumber string) (*dto.VerifyAccountResponse, error)
	// VerifyPIN checks the transaction PIN supplied on agent/ATM channels.
	VerifyPIN(ctx context.Context, accountID string, pin string) error
	UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, updatedBy string) error
}
