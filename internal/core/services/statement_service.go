package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
)

// statementService derives statements from the ledger log. Read-only
// projection; the log itself is never touched.
type statementService struct {
	accountRepo portsrepo.AccountRepository
	ledgerRepo  portsrepo.LedgerRepository
}

// NewStatementService creates the statement builder.
func NewStatementService(accountRepo portsrepo.AccountRepository, ledgerRepo portsrepo.LedgerRepository) portssvc.StatementSvcFacade {
	return &statementService{accountRepo: accountRepo, ledgerRepo: ledgerRepo}
}

var _ portssvc.StatementSvcFacade = (*statementService)(nil)

// Build reconstructs the account's activity for [from, to): the opening
// balance is the replayed balance as of from, the closing balance follows
// from applying every completed entry in creation order.
func (s *statementService) Build(ctx context.Context, accountID string, from, to time.Time) (*domain.Statement, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}

	opening, err := s.ledgerRepo.BalanceAsOf(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to derive opening balance: %w", err)
	}

	entries, err := s.ledgerRepo.ListTransactionsByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	closing := opening
	totalCredits := decimal.Zero
	totalDebits := decimal.Zero
	completed := make([]domain.Transaction, 0, len(entries))
	for _, e := range entries {
		if e.Status != domain.TxnCompleted && e.Status != domain.TxnReversed {
			continue
		}
		completed = append(completed, e)
		closing = closing.Add(e.SignedEffect())
		if e.Direction == domain.DirCredit {
			totalCredits = totalCredits.Add(e.TotalAmount)
		} else {
			totalDebits = totalDebits.Add(e.TotalAmount)
		}
	}

	return &domain.Statement{
		AccountID:      account.AccountID,
		AccountNumber:  account.AccountNumber,
		FromDate:       from,
		ToDate:         to,
		OpeningBalance: opening,
		ClosingBalance: closing,
		TotalCredits:   totalCredits,
		TotalDebits:    totalDebits,
		Entries:        completed,
	}, nil
}

// ReplayBalance folds every settled entry up to asOf into a balance from
// zero. A disagreement with the stored account balance means the log and the
// balance have diverged.
func (s *statementService) ReplayBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	entries, err := s.ledgerRepo.ListTransactionsByAccount(ctx, accountID, time.Time{}, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list transactions: %w", err)
	}

	balance := decimal.Zero
	for _, e := range entries {
		if e.Status != domain.TxnCompleted && e.Status != domain.TxnReversed {
			continue
		}
		balance = balance.Add(e.SignedEffect())
	}
	return balance, nil
}
