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

type PgxFeeScheduleRepository struct {
	BaseRepository
}

// newPgxFeeScheduleRepository creates the repository for the tariff table and
// the bill payee catalog.
func newPgxFeeScheduleRepository(pool *pgxpool.Pool) portsrepo.FeeScheduleRepository {
	return &PgxFeeScheduleRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.FeeScheduleRepository = (*PgxFeeScheduleRepository)(nil)

// FindFeeSchedule retrieves the active tariff row effective at the given
// instant. The newest effective_from wins when windows overlap.
func (r *PgxFeeScheduleRepository) FindFeeSchedule(ctx context.Context, opType domain.FeeOpType, at time.Time) (*domain.FeeSchedule, error) {
	query := `
		SELECT op_type, fixed_fee, percentage_fee, minimum_fee, maximum_fee,
			is_active, effective_from, effective_to
		FROM fee_schedules
		WHERE op_type = $1 AND is_active AND effective_from <= $2
			AND (effective_to IS NULL OR effective_to > $2)
		ORDER BY effective_from DESC
		LIMIT 1;
	`
	var f domain.FeeSchedule
	err := r.Pool.QueryRow(ctx, query, opType, at).Scan(
		&f.OpType, &f.FixedFee, &f.PercentageFee, &f.MinimumFee, &f.MaximumFee,
		&f.IsActive, &f.EffectiveFrom, &f.EffectiveTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find fee schedule for %s: %w", opType, err)
	}
	return &f, nil
}

// FindBillService retrieves a payee from the bill catalog.
func (r *PgxFeeScheduleRepository) FindBillService(ctx context.Context, serviceID string) (*domain.BillService, error) {
	query := `
		SELECT service_id, name, code, category, fee, is_active
		FROM bill_services WHERE service_id = $1;
	`
	var b domain.BillService
	err := r.Pool.QueryRow(ctx, query, serviceID).Scan(
		&b.ServiceID, &b.Name, &b.Code, &b.Category, &b.Fee, &b.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find bill service %s: %w", serviceID, err)
	}
	return &b, nil
}
