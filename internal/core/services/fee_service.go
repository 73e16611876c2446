package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/middleware"
)

// defaultFees is the fallback tariff applied when no active schedule row
// exists for an operation type. Deliberate policy, not a silent zero: the
// fallback mirrors the bank's published walk-in tariff so a configuration gap
// never blocks customer transactions, and each use is logged for the ops team.
var defaultFees = map[domain.FeeOpType]decimal.Decimal{
	domain.FeeAgentDeposit:        decimal.NewFromInt(10),
	domain.FeeAgentWithdrawal:     decimal.NewFromInt(35),
	domain.FeeMobileTransferOwn:   decimal.NewFromInt(25),
	domain.FeeMobileTransferOther: decimal.NewFromInt(50),
}

// feeService prices operations from the fee schedule snapshot.
type feeService struct {
	feeRepo portsrepo.FeeScheduleRepository
}

// NewFeeService creates the fee calculator.
func NewFeeService(feeRepo portsrepo.FeeScheduleRepository) portssvc.FeeSvcFacade {
	return &feeService{feeRepo: feeRepo}
}

var _ portssvc.FeeSvcFacade = (*feeService)(nil)

// Calculate returns max(fixed, amount*percentage/100) clamped to the row's
// [minimum, maximum]. A maximum of zero means uncapped. When no row is active
// at asOf, the documented default table applies; unknown types fall through
// to zero.
func (s *feeService) Calculate(ctx context.Context, opType domain.FeeOpType, amount decimal.Decimal, asOf time.Time) (decimal.Decimal, error) {
	row, err := s.feeRepo.FindFeeSchedule(ctx, opType, asOf)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			fee, ok := defaultFees[opType]
			if !ok {
				fee = decimal.Zero
			}
			middleware.GetLoggerFromCtx(ctx).Warn("No active fee schedule, using default tariff",
				slog.String("op_type", string(opType)),
				slog.String("default_fee", fee.String()))
			return fee, nil
		}
		return decimal.Zero, err
	}

	percentage := amount.Mul(row.PercentageFee).Div(decimal.NewFromInt(100))
	fee := decimal.Max(row.FixedFee, percentage)

	if fee.LessThan(row.MinimumFee) {
		fee = row.MinimumFee
	}
	if row.MaximumFee.GreaterThan(decimal.Zero) && fee.GreaterThan(row.MaximumFee) {
		fee = row.MaximumFee
	}
	return fee.Round(2), nil
}
