package services

import (
	"context"

	"github.com/pesacore/corebanking/internal/dto"
)

// TransactionEngineSvcFacade is the one write surface for money movement.
// Every method is a single atomic operation: it validates, prices, moves
// balances, appends ledger entries, and consumes limits all-or-nothing.
type TransactionEngineSvcFacade interface {
	Deposit(ctx context.Context, req dto.DepositRequest) (*dto.TransactionResult, error)
	Withdraw(ctx context.Context, req dto.WithdrawRequest) (*dto.TransactionResult, error)
	Transfer(ctx context.Context, req dto.TransferRequest) (*dto.TransactionResult, error)
	PayBill(ctx context.Context, req dto.BillPaymentRequest) (*dto.TransactionResult, error)
	DisburseLoan(ctx context.Context, req dto.DisburseLoanRequest) (*dto.TransactionResult, error)
	RepayLoan(ctx context.Context, req dto.RepayLoanRequest) (*dto.TransactionResult, error)
	Reverse(ctx context.Context, req dto.ReversalRequest) (*dto.TransactionResult, error)
	CreditInterest(ctx context.Context, req dto.InterestCreditRequest) (*dto.TransactionResult, error)
}
