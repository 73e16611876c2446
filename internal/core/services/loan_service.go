package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/middleware"
	"github.com/pesacore/corebanking/internal/utils/amortization"
)

// loanService owns loan lifecycle arithmetic. Balance movement stays with the
// engine; this service prepares loans for disbursement and applies repayment
// splits to the aggregates.
type loanService struct {
	loanRepo portsrepo.LoanRepository
}

// NewLoanService creates the loan service.
func NewLoanService(loanRepo portsrepo.LoanRepository) portssvc.LoanSvcFacade {
	return &loanService{loanRepo: loanRepo}
}

var _ portssvc.LoanSvcFacade = (*loanService)(nil)

// PrepareDisbursement validates the application and builds the loan record,
// with the monthly installment computed up front.
func (s *loanService) PrepareDisbursement(ctx context.Context, applicationID string, disbursedAt time.Time) (*domain.Loan, error) {
	app, err := s.loanRepo.FindApplicationByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan application %s: %w", applicationID, err)
	}
	if app.Status != domain.ApplicationApproved {
		return nil, fmt.Errorf("%w: application %s is %s, only approved applications can be disbursed",
			apperrors.ErrValidation, applicationID, app.Status)
	}

	installment, err := amortization.EMI(app.ApprovedAmount, app.AnnualRate, app.TenureMonths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	loan := &domain.Loan{
		LoanID:               uuid.NewString(),
		LoanNumber:           domain.NewLoanNumber(disbursedAt),
		ApplicationID:        app.ApplicationID,
		BorrowerID:           app.ApplicantID,
		AccountID:            app.AccountID,
		PrincipalAmount:      app.ApprovedAmount,
		AnnualRate:           app.AnnualRate,
		TenureMonths:         app.TenureMonths,
		MonthlyInstallment:   installment,
		OutstandingPrincipal: app.ApprovedAmount,
		OutstandingInterest:  decimal.Zero,
		TotalPaid:            decimal.Zero,
		DisbursedAt:          disbursedAt,
		Status:               domain.LoanActive,
		AuditFields: domain.AuditFields{
			CreatedAt:     disbursedAt,
			CreatedBy:     app.ApplicantID,
			LastUpdatedAt: disbursedAt,
			LastUpdatedBy: app.ApplicantID,
		},
	}
	return loan, nil
}

// ApplyRepayment splits the payment interest-then-principal against the
// outstanding balance and returns the updated aggregates. Any excess beyond a
// full payoff is accounted as a negative interest carry (a credit the
// customer holds) rather than being dropped.
func (s *loanService) ApplyRepayment(ctx context.Context, loanID string, amount decimal.Decimal, channel domain.Channel, transactionID string, paidAt time.Time) (*portssvc.RepaymentApplication, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: repayment amount must be positive", apperrors.ErrValidation)
	}

	loan, err := s.loanRepo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan %s: %w", loanID, err)
	}
	if loan.Status != domain.LoanActive {
		return nil, fmt.Errorf("%w: loan %s is %s, repayments only apply to active loans",
			apperrors.ErrValidation, loanID, loan.Status)
	}

	monthlyRate := amortization.MonthlyRate(loan.AnnualRate)
	split := amortization.SplitPayment(loan.OutstandingPrincipal, monthlyRate, amount)

	interestDue := loan.OutstandingPrincipal.Mul(monthlyRate).Round(2)
	loan.OutstandingPrincipal = loan.OutstandingPrincipal.Sub(split.Principal)
	// Interest shortfall accrues; overpayment past the principal draws it down.
	loan.OutstandingInterest = loan.OutstandingInterest.Add(interestDue.Sub(split.Interest)).Sub(split.Excess)
	loan.TotalPaid = loan.TotalPaid.Add(amount)
	loan.LastUpdatedAt = paidAt

	if loan.OutstandingPrincipal.LessThanOrEqual(decimal.Zero) && loan.OutstandingInterest.LessThanOrEqual(decimal.Zero) {
		loan.Status = domain.LoanPaidOff
		logger.Info("Loan fully repaid", slog.String("loan_id", loan.LoanID), slog.String("total_paid", loan.TotalPaid.String()))
	}

	payment := domain.LoanPayment{
		PaymentID:       uuid.NewString(),
		LoanID:          loan.LoanID,
		TransactionID:   transactionID,
		Amount:          amount,
		PrincipalAmount: split.Principal,
		InterestAmount:  split.Interest,
		Channel:         channel,
		PaidAt:          paidAt,
	}

	return &portssvc.RepaymentApplication{
		Loan:    *loan,
		Payment: payment,
		PaidOff: loan.Status == domain.LoanPaidOff,
	}, nil
}

func (s *loanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan %s: %w", loanID, err)
	}
	return loan, nil
}
