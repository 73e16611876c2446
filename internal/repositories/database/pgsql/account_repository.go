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

type PgxAccountRepository struct {
	BaseRepository
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) portsrepo.AccountRepository {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AccountRepository = (*PgxAccountRepository)(nil)

const accountColumns = `account_id, account_number, customer_id, holder_name, account_type_code, branch_code,
	balance, available_balance, status, overdraft_limit, pin_hash,
	created_at, created_by, last_updated_at, last_updated_by`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.AccountID, &a.AccountNumber, &a.CustomerID, &a.HolderName, &a.AccountTypeCode, &a.BranchCode,
		&a.Balance, &a.AvailableBalance, &a.Status, &a.OverdraftLimit, &a.PINHash,
		&a.CreatedAt, &a.CreatedBy, &a.LastUpdatedAt, &a.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account.
func (r *PgxAccountRepository) CreateAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (account_id, account_number, customer_id, holder_name, account_type_code, branch_code,
			balance, available_balance, status, overdraft_limit, pin_hash,
			created_at, created_by, last_updated_at, last_updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
	`
	_, err := r.Pool.Exec(ctx, query,
		account.AccountID, account.AccountNumber, account.CustomerID, account.HolderName,
		account.AccountTypeCode, account.BranchCode,
		account.Balance, account.AvailableBalance, account.Status, account.OverdraftLimit, account.PINHash,
		account.CreatedAt, account.CreatedBy, account.LastUpdatedAt, account.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account number %s already exists", apperrors.ErrDuplicate, account.AccountNumber)
		}
		return fmt.Errorf("failed to save account %s: %w", account.AccountID, err)
	}
	return nil
}

// FindAccountByID retrieves an account by its primary key.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	account, err := scanAccount(r.Pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	return account, nil
}

// FindAccountByNumber retrieves an account by its customer-facing number.
func (r *PgxAccountRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1;`
	account, err := scanAccount(r.Pool.QueryRow(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account number %s: %w", accountNumber, err)
	}
	return account, nil
}

// UpdateAccountStatus transitions an account's lifecycle state.
func (r *PgxAccountRepository) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, updatedBy string, at time.Time) error {
	query := `
		UPDATE accounts
		SET status = $2, last_updated_at = $3, last_updated_by = $4
		WHERE account_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, accountID, status, at, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update status of account %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindAccountType retrieves product configuration by type code.
func (r *PgxAccountRepository) FindAccountType(ctx context.Context, code string) (*domain.AccountType, error) {
	query := `
		SELECT code, name, minimum_balance, monthly_maintenance_fee, interest_rate,
			withdrawal_limit_daily, withdrawal_limit_monthly, allows_overdraft, is_active
		FROM account_types WHERE code = $1;
	`
	var t domain.AccountType
	err := r.Pool.QueryRow(ctx, query, code).Scan(
		&t.Code, &t.Name, &t.MinimumBalance, &t.MonthlyMaintenanceFee, &t.InterestRate,
		&t.WithdrawalLimitDaily, &t.WithdrawalLimitMonthly, &t.AllowsOverdraft, &t.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account type %s: %w", code, err)
	}
	return &t, nil
}
