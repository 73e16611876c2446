package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// RepaymentApplication is the outcome of applying a payment to a loan.
type RepaymentApplication struct {
	Loan    domain.Loan
	Payment domain.LoanPayment
	PaidOff bool
}

// LoanSvcFacade owns loan lifecycle math. The engine consumes it when
// disbursing and repaying; it performs no balance mutation itself.
type LoanSvcFacade interface {
	// PrepareDisbursement validates the approved application and returns the
	// loan record to create, with the installment already computed.
	PrepareDisbursement(ctx context.Context, applicationID string, disbursedAt time.Time) (*domain.Loan, error)
	// ApplyRepayment splits a payment interest-then-principal and returns the
	// updated aggregates plus the payment record to persist.
	ApplyRepayment(ctx context.Context, loanID string, amount decimal.Decimal, channel domain.Channel, transactionID string, paidAt time.Time) (*RepaymentApplication, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
}
