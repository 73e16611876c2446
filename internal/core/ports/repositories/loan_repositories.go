package repositories

import (
	"context"
	"time"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// LoanRepository persists loans, their repayments, and the applications they
// are disbursed against.
type LoanRepository interface {
	FindApplicationByID(ctx context.Context, applicationID string) (*domain.LoanApplication, error)
	MarkApplicationDisbursed(ctx context.Context, applicationID string, at time.Time) error
	CreateLoan(ctx context.Context, loan domain.Loan) error
	FindLoanByID(ctx context.Context, loanID string) (*domain.Loan, error)
	// UpdateLoanAggregates persists outstanding principal/interest, total
	// paid, and status after a repayment has been applied.
	UpdateLoanAggregates(ctx context.Context, loan domain.Loan) error
	CreateLoanPayment(ctx context.Context, payment domain.LoanPayment) error
	ListLoanPayments(ctx context.Context, loanID string) ([]domain.LoanPayment, error)
}
