package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
)

type PgxLoanRepository struct {
	BaseRepository
}

// newPgxLoanRepository creates the repository for loans, applications, and
// repayment records.
func newPgxLoanRepository(pool *pgxpool.Pool) portsrepo.LoanRepository {
	return &PgxLoanRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LoanRepository = (*PgxLoanRepository)(nil)

// FindApplicationByID retrieves a loan application.
func (r *PgxLoanRepository) FindApplicationByID(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	query := `
		SELECT application_id, applicant_id, account_id, requested_amount, approved_amount,
			annual_rate, tenure_months, status,
			created_at, created_by, last_updated_at, last_updated_by
		FROM loan_applications WHERE application_id = $1;
	`
	var a domain.LoanApplication
	err := r.Pool.QueryRow(ctx, query, applicationID).Scan(
		&a.ApplicationID, &a.ApplicantID, &a.AccountID, &a.RequestedAmount, &a.ApprovedAmount,
		&a.AnnualRate, &a.TenureMonths, &a.Status,
		&a.CreatedAt, &a.CreatedBy, &a.LastUpdatedAt, &a.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find loan application %s: %w", applicationID, err)
	}
	return &a, nil
}

// MarkApplicationDisbursed flips an approved application to disbursed.
func (r *PgxLoanRepository) MarkApplicationDisbursed(ctx context.Context, applicationID string, at time.Time) error {
	query := `
		UPDATE loan_applications SET status = $2, last_updated_at = $3
		WHERE application_id = $1 AND status = $4;
	`
	tag, err := r.Pool.Exec(ctx, query, applicationID, domain.ApplicationDisbursed, at, domain.ApplicationApproved)
	if err != nil {
		return fmt.Errorf("failed to mark application %s disbursed: %w", applicationID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CreateLoan inserts an activated loan.
func (r *PgxLoanRepository) CreateLoan(ctx context.Context, loan domain.Loan) error {
	query := `
		INSERT INTO loans (loan_id, loan_number, application_id, borrower_id, account_id,
			principal_amount, annual_rate, tenure_months, monthly_installment,
			outstanding_principal, outstanding_interest, total_paid, disbursed_at, status,
			created_at, created_by, last_updated_at, last_updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`
	_, err := r.Pool.Exec(ctx, query,
		loan.LoanID, loan.LoanNumber, loan.ApplicationID, loan.BorrowerID, loan.AccountID,
		loan.PrincipalAmount, loan.AnnualRate, loan.TenureMonths, loan.MonthlyInstallment,
		loan.OutstandingPrincipal, loan.OutstandingInterest, loan.TotalPaid, loan.DisbursedAt, loan.Status,
		loan.CreatedAt, loan.CreatedBy, loan.LastUpdatedAt, loan.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: loan for application %s already exists", apperrors.ErrDuplicate, loan.ApplicationID)
		}
		return fmt.Errorf("failed to save loan %s: %w", loan.LoanID, err)
	}
	return nil
}

// FindLoanByID retrieves a loan.
func (r *PgxLoanRepository) FindLoanByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT loan_id, loan_number, application_id, borrower_id, account_id,
			principal_amount, annual_rate, tenure_months, monthly_installment,
			outstanding_principal, outstanding_interest, total_paid, disbursed_at, status,
			created_at, created_by, last_updated_at, last_updated_by
		FROM loans WHERE loan_id = $1;
	`
	var l domain.Loan
	err := r.Pool.QueryRow(ctx, query, loanID).Scan(
		&l.LoanID, &l.LoanNumber, &l.ApplicationID, &l.BorrowerID, &l.AccountID,
		&l.PrincipalAmount, &l.AnnualRate, &l.TenureMonths, &l.MonthlyInstallment,
		&l.OutstandingPrincipal, &l.OutstandingInterest, &l.TotalPaid, &l.DisbursedAt, &l.Status,
		&l.CreatedAt, &l.CreatedBy, &l.LastUpdatedAt, &l.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find loan %s: %w", loanID, err)
	}
	return &l, nil
}

// UpdateLoanAggregates persists the post-repayment loan figures.
func (r *PgxLoanRepository) UpdateLoanAggregates(ctx context.Context, loan domain.Loan) error {
	query := `
		UPDATE loans
		SET outstanding_principal = $2, outstanding_interest = $3, total_paid = $4,
			status = $5, last_updated_at = $6
		WHERE loan_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query,
		loan.LoanID, loan.OutstandingPrincipal, loan.OutstandingInterest, loan.TotalPaid,
		loan.Status, loan.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan %s: %w", loan.LoanID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CreateLoanPayment records one applied repayment split.
func (r *PgxLoanRepository) CreateLoanPayment(ctx context.Context, payment domain.LoanPayment) error {
	query := `
		INSERT INTO loan_payments (payment_id, loan_id, transaction_id, amount,
			principal_amount, interest_amount, channel, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.Pool.Exec(ctx, query,
		payment.PaymentID, payment.LoanID, payment.TransactionID, payment.Amount,
		payment.PrincipalAmount, payment.InterestAmount, payment.Channel, payment.PaidAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment %s already recorded", apperrors.ErrDuplicate, payment.PaymentID)
		}
		return fmt.Errorf("failed to save loan payment %s: %w", payment.PaymentID, err)
	}
	return nil
}

// ListLoanPayments returns a loan's repayments, oldest first.
func (r *PgxLoanRepository) ListLoanPayments(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	query := `
		SELECT payment_id, loan_id, transaction_id, amount, principal_amount, interest_amount, channel, paid_at
		FROM loan_payments WHERE loan_id = $1 ORDER BY paid_at;
	`
	rows, err := r.Pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments of loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []domain.LoanPayment
	for rows.Next() {
		var p domain.LoanPayment
		if err := rows.Scan(&p.PaymentID, &p.LoanID, &p.TransactionID, &p.Amount,
			&p.PrincipalAmount, &p.InterestAmount, &p.Channel, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read loan payments: %w", err)
	}
	return payments, nil
}
