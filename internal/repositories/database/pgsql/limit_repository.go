package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
)

type PgxLimitRepository struct {
	BaseRepository
}

// newPgxLimitRepository creates the read-side repository for limit
// configuration and counters. Counter writes go through the posting path.
func newPgxLimitRepository(pool *pgxpool.Pool) portsrepo.LimitRepository {
	return &PgxLimitRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LimitRepository = (*PgxLimitRepository)(nil)

// FindLimitSettings retrieves the configured ceilings for an entity.
func (r *PgxLimitRepository) FindLimitSettings(ctx context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitSettings, error) {
	query := `
		SELECT entity_id, entity_kind, single_transaction_limit,
			daily_withdrawal_limit, daily_transfer_limit,
			monthly_withdrawal_limit, monthly_transfer_limit,
			daily_total_limit, monthly_total_limit
		FROM limit_settings WHERE entity_id = $1 AND entity_kind = $2;
	`
	var s domain.LimitSettings
	err := r.Pool.QueryRow(ctx, query, entityID, kind).Scan(
		&s.EntityID, &s.EntityKind, &s.SingleTransactionLimit,
		&s.DailyWithdrawalLimit, &s.DailyTransferLimit,
		&s.MonthlyWithdrawalLimit, &s.MonthlyTransferLimit,
		&s.DailyTotalLimit, &s.MonthlyTotalLimit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find limit settings for %s: %w", entityID, err)
	}
	return &s, nil
}

// FindLimitUsage retrieves the rolling counters for an entity.
func (r *PgxLimitRepository) FindLimitUsage(ctx context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitUsage, error) {
	query := `
		SELECT entity_id, entity_kind, daily_withdrawals, daily_transfers,
			monthly_withdrawals, monthly_transfers, daily_total, monthly_total, last_reset_date
		FROM limit_usage WHERE entity_id = $1 AND entity_kind = $2;
	`
	var u domain.LimitUsage
	err := r.Pool.QueryRow(ctx, query, entityID, kind).Scan(
		&u.EntityID, &u.EntityKind, &u.DailyWithdrawals, &u.DailyTransfers,
		&u.MonthlyWithdrawals, &u.MonthlyTransfers, &u.DailyTotal, &u.MonthlyTotal, &u.LastResetDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find limit usage for %s: %w", entityID, err)
	}
	return &u, nil
}
