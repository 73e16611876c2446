package repositories

import (
	"context"
	"time"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// FeeScheduleRepository reads the tariff table and the bill payee catalog.
// Both are read-only inputs to the engine; administration is out of scope.
type FeeScheduleRepository interface {
	// FindFeeSchedule returns the active row for the operation type effective
	// at the given instant, or apperrors.ErrNotFound when no row applies.
	FindFeeSchedule(ctx context.Context, opType domain.FeeOpType, at time.Time) (*domain.FeeSchedule, error)
	FindBillService(ctx context.Context, serviceID string) (*domain.BillService, error)
}
