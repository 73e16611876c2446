package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/dto"
	"github.com/pesacore/corebanking/internal/middleware"
	"github.com/pesacore/corebanking/internal/utils"
)

// accountService handles account lifecycle and read queries. It never moves
// money; opening balances are seeded by the caller through the engine.
type accountService struct {
	accountRepo portsrepo.AccountRepository
}

// NewAccountService creates the account service.
func NewAccountService(accountRepo portsrepo.AccountRepository) portssvc.AccountSvcFacade {
	return &accountService{accountRepo: accountRepo}
}

var _ portssvc.AccountSvcFacade = (*accountService)(nil)

// OpenAccount creates a new active account under the branch's numbering
// scheme. The account starts at zero; any opening balance is posted by the
// caller as a first deposit so it shows in the ledger like every other credit.
func (s *accountService) OpenAccount(ctx context.Context, req dto.OpenAccountRequest, createdBy string) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	accountType, err := s.accountRepo.FindAccountType(ctx, req.AccountTypeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account type %s: %w", req.AccountTypeCode, err)
	}
	if !accountType.IsActive {
		return nil, fmt.Errorf("%w: account type %s is not open for new accounts", apperrors.ErrValidation, req.AccountTypeCode)
	}

	var pinHash string
	if req.PIN != "" {
		pinHash, err = utils.HashPIN(req.PIN)
		if err != nil {
			return nil, fmt.Errorf("failed to hash PIN: %w", err)
		}
	}

	now := time.Now().UTC()
	account := domain.Account{
		AccountID:        uuid.NewString(),
		AccountNumber:    generateAccountNumber(req.BranchCode),
		CustomerID:       req.CustomerID,
		HolderName:       req.HolderName,
		AccountTypeCode:  req.AccountTypeCode,
		BranchCode:       req.BranchCode,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		Status:           domain.AccountActive,
		OverdraftLimit:   decimal.Zero,
		PINHash:          pinHash,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     createdBy,
			LastUpdatedAt: now,
			LastUpdatedBy: createdBy,
		},
	}

	if err := s.accountRepo.CreateAccount(ctx, account); err != nil {
		logger.Error("Failed to create account", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	logger.Info("Account opened",
		slog.String("account_id", account.AccountID),
		slog.String("account_number", account.AccountNumber),
		slog.String("type", account.AccountTypeCode))
	return &account, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	return account, nil
}

func (s *accountService) GetBalance(ctx context.Context, accountID string) (*dto.BalanceResponse, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	return &dto.BalanceResponse{
		Balance:          account.Balance,
		AvailableBalance: account.AvailableBalance,
	}, nil
}

// VerifyAccount resolves an account number to holder and product names for
// beneficiary confirmation before a transfer. Only active accounts resolve;
// everything else is reported as not found to avoid leaking status.
func (s *accountService) VerifyAccount(ctx context.Context, accountNumber string) (*dto.VerifyAccountResponse, error) {
	account, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to verify account %s: %w", accountNumber, err)
	}
	if !account.IsActive() {
		return nil, apperrors.ErrNotFound
	}

	accountType, err := s.accountRepo.FindAccountType(ctx, account.AccountTypeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account type for %s: %w", accountNumber, err)
	}

	return &dto.VerifyAccountResponse{
		HolderName:      account.HolderName,
		AccountTypeName: accountType.Name,
	}, nil
}

// VerifyPIN checks the transaction PIN used on agent and ATM channels.
func (s *accountService) VerifyPIN(ctx context.Context, accountID string, pin string) error {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	if account.PINHash == "" {
		return fmt.Errorf("%w: account has no transaction PIN set", apperrors.ErrValidation)
	}
	if !utils.CheckPIN(pin, account.PINHash) {
		return fmt.Errorf("%w: incorrect PIN", apperrors.ErrValidation)
	}
	return nil
}

// UpdateAccountStatus transitions the lifecycle state. Closed is terminal;
// accounts are never deleted.
func (s *accountService) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, updatedBy string) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	if account.Status == domain.AccountClosed {
		return fmt.Errorf("%w: account %s is closed", apperrors.ErrValidation, accountID)
	}

	if err := s.accountRepo.UpdateAccountStatus(ctx, accountID, status, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	logger.Info("Account status updated",
		slog.String("account_id", accountID),
		slog.String("from", string(account.Status)),
		slog.String("to", string(status)))
	return nil
}

// generateAccountNumber builds branch-prefixed account numbers in the format
// customers already hold: branch code plus a seven digit serial.
func generateAccountNumber(branchCode string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000000))
	if err != nil {
		return fmt.Sprintf("%s%07d", branchCode, time.Now().UnixNano()%9000000+1000000)
	}
	return fmt.Sprintf("%s%07d", branchCode, n.Int64()+1000000)
}
