package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	"github.com/pesacore/corebanking/internal/core/services"
)

type MockLoanRepository struct {
	mock.Mock
}

var _ portsrepo.LoanRepository = (*MockLoanRepository)(nil)

func (m *MockLoanRepository) FindApplicationByID(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanApplication), args.Error(1)
}

func (m *MockLoanRepository) MarkApplicationDisbursed(ctx context.Context, applicationID string, at time.Time) error {
	args := m.Called(ctx, applicationID, at)
	return args.Error(0)
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, loan domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) FindLoanByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) UpdateLoanAggregates(ctx context.Context, loan domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) CreateLoanPayment(ctx context.Context, payment domain.LoanPayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockLoanRepository) ListLoanPayments(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LoanPayment), args.Error(1)
}

func approvedApplication() *domain.LoanApplication {
	return &domain.LoanApplication{
		ApplicationID:   "app-1",
		ApplicantID:     "cust-1",
		AccountID:       "acc-1",
		RequestedAmount: dec("120000"),
		ApprovedAmount:  dec("120000"),
		AnnualRate:      dec("0.12"),
		TenureMonths:    12,
		Status:          domain.ApplicationApproved,
	}
}

func TestPrepareDisbursement(t *testing.T) {
	loanRepo := new(MockLoanRepository)
	loanRepo.On("FindApplicationByID", mock.Anything, "app-1").Return(approvedApplication(), nil)

	svc := services.NewLoanService(loanRepo)
	loan, err := svc.PrepareDisbursement(context.Background(), "app-1", testNow)
	require.NoError(t, err)

	assert.Equal(t, "app-1", loan.ApplicationID)
	assert.Equal(t, "cust-1", loan.BorrowerID)
	assert.Equal(t, "acc-1", loan.AccountID)
	assert.Equal(t, domain.LoanActive, loan.Status)
	assert.True(t, loan.MonthlyInstallment.Equal(dec("10661.85")), "installment %s", loan.MonthlyInstallment)
	assert.True(t, loan.OutstandingPrincipal.Equal(dec("120000")))
	assert.True(t, loan.TotalPaid.IsZero())
	assert.Equal(t, testNow, loan.DisbursedAt)
	assert.Regexp(t, `^LN\d{17}$`, loan.LoanNumber)
}

func TestPrepareDisbursementRejectsUnapproved(t *testing.T) {
	for _, status := range []domain.ApplicationStatus{
		domain.ApplicationPending,
		domain.ApplicationRejected,
		domain.ApplicationDisbursed,
	} {
		t.Run(string(status), func(t *testing.T) {
			app := approvedApplication()
			app.Status = status
			loanRepo := new(MockLoanRepository)
			loanRepo.On("FindApplicationByID", mock.Anything, "app-1").Return(app, nil)

			svc := services.NewLoanService(loanRepo)
			_, err := svc.PrepareDisbursement(context.Background(), "app-1", testNow)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func activeLoan() *domain.Loan {
	return &domain.Loan{
		LoanID:               "loan-1",
		LoanNumber:           "LN20260310093000",
		BorrowerID:           "cust-1",
		AccountID:            "acc-1",
		PrincipalAmount:      dec("120000"),
		AnnualRate:           dec("0.12"),
		TenureMonths:         12,
		MonthlyInstallment:   dec("10661.85"),
		OutstandingPrincipal: dec("120000"),
		OutstandingInterest:  dec("0"),
		TotalPaid:            dec("0"),
		Status:               domain.LoanActive,
	}
}

func TestApplyRepaymentSplitsInterestFirst(t *testing.T) {
	loanRepo := new(MockLoanRepository)
	loanRepo.On("FindLoanByID", mock.Anything, "loan-1").Return(activeLoan(), nil)

	svc := services.NewLoanService(loanRepo)
	application, err := svc.ApplyRepayment(context.Background(), "loan-1", dec("10661.85"), domain.ChannelMobile, "TXN1", testNow)
	require.NoError(t, err)

	// one month of interest on 120000 at 12% is 1200
	assert.True(t, application.Payment.InterestAmount.Equal(dec("1200")), "interest %s", application.Payment.InterestAmount)
	assert.True(t, application.Payment.PrincipalAmount.Equal(dec("9461.85")), "principal %s", application.Payment.PrincipalAmount)
	assert.True(t, application.Loan.OutstandingPrincipal.Equal(dec("110538.15")))
	assert.True(t, application.Loan.TotalPaid.Equal(dec("10661.85")))
	assert.Equal(t, domain.LoanActive, application.Loan.Status)
	assert.False(t, application.PaidOff)
	assert.Equal(t, "TXN1", application.Payment.TransactionID)
}

func TestApplyRepaymentShortPaymentAccruesInterest(t *testing.T) {
	loanRepo := new(MockLoanRepository)
	loanRepo.On("FindLoanByID", mock.Anything, "loan-1").Return(activeLoan(), nil)

	svc := services.NewLoanService(loanRepo)
	application, err := svc.ApplyRepayment(context.Background(), "loan-1", dec("700"), domain.ChannelMobile, "TXN2", testNow)
	require.NoError(t, err)

	assert.True(t, application.Payment.InterestAmount.Equal(dec("700")))
	assert.True(t, application.Payment.PrincipalAmount.IsZero())
	assert.True(t, application.Loan.OutstandingPrincipal.Equal(dec("120000")), "short payment must not touch principal")
	assert.True(t, application.Loan.OutstandingInterest.Equal(dec("500")), "unpaid interest carries forward, got %s", application.Loan.OutstandingInterest)
}

func TestApplyRepaymentPaysOffLoan(t *testing.T) {
	loan := activeLoan()
	loan.OutstandingPrincipal = dec("1000")
	loan.TotalPaid = dec("119000")
	loanRepo := new(MockLoanRepository)
	loanRepo.On("FindLoanByID", mock.Anything, "loan-1").Return(loan, nil)

	svc := services.NewLoanService(loanRepo)
	// 1000 principal plus 10 interest for the final month
	application, err := svc.ApplyRepayment(context.Background(), "loan-1", dec("1010"), domain.ChannelBranch, "TXN3", testNow)
	require.NoError(t, err)

	assert.True(t, application.Loan.OutstandingPrincipal.IsZero())
	assert.Equal(t, domain.LoanPaidOff, application.Loan.Status)
	assert.True(t, application.PaidOff)
}

func TestApplyRepaymentRejectsInactiveLoan(t *testing.T) {
	loan := activeLoan()
	loan.Status = domain.LoanPaidOff
	loanRepo := new(MockLoanRepository)
	loanRepo.On("FindLoanByID", mock.Anything, "loan-1").Return(loan, nil)

	svc := services.NewLoanService(loanRepo)
	_, err := svc.ApplyRepayment(context.Background(), "loan-1", dec("100"), domain.ChannelMobile, "TXN4", testNow)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApplyRepaymentRejectsNonPositiveAmount(t *testing.T) {
	svc := services.NewLoanService(new(MockLoanRepository))
	_, err := svc.ApplyRepayment(context.Background(), "loan-1", dec("0"), domain.ChannelMobile, "TXN5", testNow)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
